/*
Copyright © 2025 Logicos Software

transport.go defines the contract between the challenge-response core
and the low-level USB transport, together with the error taxonomy the
transport reports through.

This module provides:
  - Transport: process-wide transport lifecycle and open-by-position
  - Key: one open device handle with the raw primitives the core needs
  - TransportError and ErrorCode: classified transport failures
*/
package otp

import (
	"errors"
	"fmt"
)

// ErrorCode classifies transport-level failures. The core only branches
// on these codes; the detail string is carried for log and error
// messages.
type ErrorCode int

const (
	// ErrCodeProtocol covers unexpected device behavior: short or
	// corrupt responses, invalid state. Logged and retried at the next
	// candidate during enumeration.
	ErrCodeProtocol ErrorCode = iota
	// ErrCodeNoKey means no device is present at the probed position.
	// It is the only code that terminates enumeration early, and it is
	// not a fault.
	ErrCodeNoKey
	// ErrCodeUSB is a low-level USB I/O failure. Retryable by
	// re-attempting the whole operation.
	ErrCodeUSB
	// ErrCodeWouldBlock means the slot requires a touch and the
	// exchange was issued in non-blocking mode.
	ErrCodeWouldBlock
	// ErrCodeTimeout means a blocking exchange exceeded the device's
	// internal wait window for user interaction.
	ErrCodeTimeout
)

// String returns a human-readable code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeNoKey:
		return "no key"
	case ErrCodeUSB:
		return "USB error"
	case ErrCodeWouldBlock:
		return "operation would block"
	case ErrCodeTimeout:
		return "operation timed out"
	default:
		return "protocol error"
	}
}

// TransportError is a classified transport failure. Detail carries the
// transport-provided message, if any.
type TransportError struct {
	Code   ErrorCode
	Detail string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Detail == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// CodeOf extracts the ErrorCode from err. Errors that are not
// TransportErrors classify as ErrCodeProtocol.
func CodeOf(err error) ErrorCode {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return ErrCodeProtocol
}

// Transport is the low-level USB access contract. Implementations own a
// process-wide transport session: Init is called once before any Open
// and Release tears the session down.
//
// Open attempts to open the device at the given position (0-based)
// among devices matching the vendor/product allow-lists. A position
// past the last attached device reports ErrCodeNoKey.
type Transport interface {
	Init() error
	Release() error
	Open(vendorIDs, productIDs []uint16, index int) (Key, error)
}

// Key is one open device handle. The opener owns it exclusively and
// must call Close exactly once, on every exit path.
type Key interface {
	// Serial reports the device serial number.
	Serial() (uint32, error)
	// Status reads the device status block.
	Status() (*Status, error)
	// VendorProductID reports the USB identity of the device.
	VendorProductID() (vendorID, productID uint16)
	// Exchange submits a slot command with the given input and returns
	// the device's answer, at most outSize bytes. With mayBlock false
	// a touch-guarded slot reports ErrCodeWouldBlock immediately; with
	// mayBlock true the call suspends until the user touches the key
	// or the device's wait window elapses (ErrCodeTimeout).
	Exchange(cmd byte, mayBlock bool, in []byte, outSize int) ([]byte, error)
	// Close releases the handle.
	Close() error
}
