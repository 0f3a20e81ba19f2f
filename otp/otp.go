/*
Copyright © 2025 Logicos Software

Package otp implements HMAC-SHA1 challenge-response against the OTP
interface of USB hardware security keys (YubiKey family and OnlyKey).

The package discovers attached keys and their configured slots, probes
whether a slot answers passively or requires a physical touch, and
performs the real challenge-response exchange. The low-level USB access
is abstracted behind the Transport interface so that the core can be
exercised without hardware; the otphid package provides the real
implementation over hidapi.

A key is addressed by its serial number and a slot number (1 or 2).
Serial numbers are only meaningful while the key stays attached; a
stale identity simply fails to resolve on the next call.
*/
package otp

import "fmt"

// MaxKeys bounds how many attached keys are probed during enumeration.
const MaxKeys = 4

// Challenge-response sizes. The device consumes a fixed 64-byte frame
// and its HMAC-SHA1 output is 20 bytes regardless of how many bytes it
// reports back.
const (
	ChallengeSize = 64
	ResponseSize  = 20
)

// Slot configuration commands understood by the OTP interface.
const (
	slotChalHMAC1 = 0x30 // challenge-response against slot 1
	slotChalHMAC2 = 0x38 // challenge-response against slot 2
)

// USB vendor IDs of supported keys.
const (
	VendorYubico  uint16 = 0x1050
	VendorOnlyKey uint16 = 0x1d50
)

// USB product IDs of supported keys, restricted to configurations that
// expose the OTP interface.
const (
	PIDYubiKey        uint16 = 0x0010 // YubiKey 1/2
	PIDNeoOTP         uint16 = 0x0110
	PIDNeoOTPCCID     uint16 = 0x0111
	PIDNeoOTPU2F      uint16 = 0x0114
	PIDNeoOTPU2FCCID  uint16 = 0x0116
	PIDYK4OTP         uint16 = 0x0401
	PIDYK4OTPU2F      uint16 = 0x0403
	PIDYK4OTPCCID     uint16 = 0x0405
	PIDYK4OTPU2FCCID  uint16 = 0x0407
	PIDPlusU2FOTP     uint16 = 0x0410
	PIDOnlyKey        uint16 = 0x60fc
)

// vendorIDs and productIDs form the enumeration allow-list handed to
// the transport when opening keys by position.
var (
	vendorIDs = []uint16{VendorYubico, VendorOnlyKey}

	productIDs = []uint16{
		PIDYubiKey,
		PIDNeoOTP,
		PIDNeoOTPCCID,
		PIDNeoOTPU2F,
		PIDNeoOTPU2FCCID,
		PIDYK4OTP,
		PIDYK4OTPU2F,
		PIDYK4OTPCCID,
		PIDYK4OTPU2FCCID,
		PIDPlusU2FOTP,
		PIDOnlyKey,
	}
)

// Slot identifies one configured challenge-response slot on a specific
// attached key. It is only valid while that key remains attached with
// the same serial number.
type Slot struct {
	Serial uint32 // device serial number; 0 acts as a wildcard
	Number int    // slot number, 1 or 2
}

// String renders the identity in the serial:slot form accepted by the CLI.
func (s Slot) String() string {
	return fmt.Sprintf("%d:%d", s.Serial, s.Number)
}

// KeyMap maps discovered slot identities to human-readable display
// labels. It is rebuilt from scratch on every discovery call because
// the set of attached keys can change between calls.
type KeyMap map[Slot]string

// ChallengeResult classifies the outcome of a challenge-response
// exchange.
type ChallengeResult int

const (
	// ChallengeError indicates the exchange failed; the issuing
	// interface retains a human-readable message (see USB.LastError).
	ChallengeError ChallengeResult = iota
	// ChallengeSuccess indicates the key answered with a valid
	// 20-byte response.
	ChallengeSuccess
	// ChallengeWouldBlock indicates the slot requires a touch and the
	// exchange was issued in non-blocking mode.
	ChallengeWouldBlock
)

// String returns a short name for the result.
func (r ChallengeResult) String() string {
	switch r {
	case ChallengeSuccess:
		return "success"
	case ChallengeWouldBlock:
		return "would-block"
	default:
		return "error"
	}
}

// wipe zeroes b. Challenge material is wiped as soon as the frame has
// been handed to the transport.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
