/*
Copyright © 2025 Logicos Software

status.go interprets the device status block: per-slot configuration
bits and the firmware version used to build display names.

This module provides:
  - Status: the decoded status block
  - per-slot "configured for challenge-response" capability tests
  - product-ID keyed display-name table with %ver substitution
*/
package otp

import (
	"fmt"
	"strconv"
	"strings"
)

// Per-slot configuration bits within the status block's touch level.
const (
	config1Valid = 0x01
	config2Valid = 0x02
)

// Status is the decoded device status block.
type Status struct {
	VersionMajor byte
	VersionMinor byte
	VersionBuild byte
	ProgramSeq   byte
	TouchLevel   uint16
}

// SlotConfigured reports whether the given slot (1 or 2) is configured.
// The two slots carry independent configuration bits.
func (s *Status) SlotConfigured(slot int) bool {
	switch slot {
	case 1:
		return s.TouchLevel&config1Valid != 0
	case 2:
		return s.TouchLevel&config2Valid != 0
	default:
		return false
	}
}

// Version renders the firmware version.
func (s *Status) Version() string {
	return fmt.Sprintf("%d.%d.%d", s.VersionMajor, s.VersionMinor, s.VersionBuild)
}

// productNames maps product IDs to display-name templates. A %ver
// placeholder is substituted with the major firmware version from the
// status block.
var productNames = map[uint16]string{
	PIDYubiKey:       "YubiKey 1/2",
	PIDNeoOTP:        "YubiKey NEO - OTP",
	PIDNeoOTPCCID:    "YubiKey NEO - OTP+CCID",
	PIDNeoOTPU2F:     "YubiKey NEO - OTP+U2F",
	PIDNeoOTPU2FCCID: "YubiKey NEO - OTP+U2F+CCID",
	PIDYK4OTP:        "YubiKey %ver - OTP",
	PIDYK4OTPU2F:     "YubiKey %ver - OTP+U2F",
	PIDYK4OTPCCID:    "YubiKey %ver - OTP+CCID",
	PIDYK4OTPU2FCCID: "YubiKey %ver - OTP+U2F+CCID",
	PIDPlusU2FOTP:    "YubiKey Plus",
	PIDOnlyKey:       "OnlyKey %ver",
}

// displayName derives the device display name from its USB identity and
// status block. OnlyKey devices always use the OnlyKey template
// regardless of the product table.
func displayName(vendorID, productID uint16, st *Status) string {
	name, ok := productNames[productID]
	if !ok {
		name = "Unknown"
	}
	if vendorID == VendorOnlyKey {
		name = "OnlyKey %ver"
	}
	if strings.Contains(name, "%ver") {
		name = strings.ReplaceAll(name, "%ver", strconv.Itoa(int(st.VersionMajor)))
	}
	return name
}
