/*
Copyright © 2025 Logicos Software

errors.go implements structured error types for better UX.

This module provides:
  - Categorized error types (Key, Input, Unknown)
  - User-friendly error messages with troubleshooting hints
  - Error wrapping with context preservation
  - Retry suggestions for transient errors
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"ykchal/otp"
)

// ErrorCategory represents the type of error for classification.
type ErrorCategory int

const (
	// ErrCategoryUnknown for unclassified errors.
	ErrCategoryUnknown ErrorCategory = iota
	// ErrCategoryKey for hardware-key-related errors.
	ErrCategoryKey
	// ErrCategoryInput for user input validation errors.
	ErrCategoryInput
)

// String returns a human-readable category name.
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryKey:
		return "Hardware key"
	case ErrCategoryInput:
		return "Input"
	default:
		return "Unknown"
	}
}

// YKChalError is a structured error with category, message, and hints.
type YKChalError struct {
	Category    ErrorCategory
	Message     string
	Hint        string
	Cause       error
	IsRetryable bool
}

// Error implements the error interface.
func (e *YKChalError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *YKChalError) Unwrap() error {
	return e.Cause
}

// FullError returns the error with hint if available.
func (e *YKChalError) FullError() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Hint != "" {
		b.WriteString("\n\nHint: ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// Common error constructors for hardware key errors.

// ErrKeyNotFound indicates the requested key is not attached.
func ErrKeyNotFound(serial uint32, cause error) *YKChalError {
	msg := "no hardware key detected"
	if serial != 0 {
		msg = fmt.Sprintf("hardware key with serial number %d is not attached", serial)
	}
	return &YKChalError{
		Category: ErrCategoryKey,
		Message:  msg,
		Hint:     "Plug in your hardware key and try again. Run 'ykchal list' to see which keys and slots are available.",
		Cause:    cause,
	}
}

// ErrTouchTimeout indicates the user didn't touch the key in time.
func ErrTouchTimeout(cause error) *YKChalError {
	return &YKChalError{
		Category:    ErrCategoryKey,
		Message:     "hardware key touch timeout",
		Hint:        "The slot is configured to require a touch: the key blinks and waits about 15 seconds for you to touch the gold contact. Try again and touch it promptly.",
		Cause:       cause,
		IsRetryable: true,
	}
}

// ErrUSBFault indicates a low-level USB I/O failure.
func ErrUSBFault(cause error) *YKChalError {
	return &YKChalError{
		Category:    ErrCategoryKey,
		Message:     "USB error while accessing the hardware key",
		Hint:        "Re-seat the key and try again. On Linux, make sure your udev rules grant access to the key's HID interface (or run with elevated privileges once to confirm it is a permissions issue).",
		Cause:       cause,
		IsRetryable: true,
	}
}

// ErrSlotNotUsable indicates a slot that is absent or not configured
// for challenge-response.
func ErrSlotNotUsable(slot otp.Slot, cause error) *YKChalError {
	return &YKChalError{
		Category: ErrCategoryKey,
		Message:  fmt.Sprintf("slot %d on key %d is not usable for challenge-response", slot.Number, slot.Serial),
		Hint:     "The slot is not configured for HMAC-SHA1 challenge-response. Program it with your vendor's configuration tool (e.g. 'ykman otp chalresp --generate 2').",
		Cause:    cause,
	}
}

// ErrNotInitialized indicates the USB interface failed to initialize.
func ErrNotInitialized(cause error) *YKChalError {
	return &YKChalError{
		Category: ErrCategoryKey,
		Message:  "hardware key USB interface is not initialized",
		Hint:     "The HID layer could not be set up. Check that your platform's hidapi dependencies are installed.",
		Cause:    cause,
	}
}

// Common error constructors for Input errors.

// ErrInvalidSlotSpec indicates a malformed slot address.
func ErrInvalidSlotSpec(details string) *YKChalError {
	return &YKChalError{
		Category: ErrCategoryInput,
		Message:  "invalid slot spec",
		Hint:     fmt.Sprintf("Address a slot as SERIAL:SLOT (e.g. 16038666:2) or a bare SLOT (1 or 2) for the first attached key. %s", details),
	}
}

// ErrChallengeTooLong indicates a challenge beyond the device frame.
func ErrChallengeTooLong(n int) *YKChalError {
	return &YKChalError{
		Category: ErrCategoryInput,
		Message:  fmt.Sprintf("challenge is too long: %d bytes", n),
		Hint:     fmt.Sprintf("The device consumes at most %d challenge bytes. Hash longer inputs down before challenging.", otp.ChallengeSize),
	}
}

// ClassifyError attempts to categorize a generic error into a YKChalError.
// Transport errors classify by their error code; core errors by their
// message patterns.
func ClassifyError(err error) *YKChalError {
	if err == nil {
		return nil
	}

	// Check if it's already a YKChalError
	var yke *YKChalError
	if errors.As(err, &yke) {
		return yke
	}

	var te *otp.TransportError
	if errors.As(err, &te) {
		switch te.Code {
		case otp.ErrCodeNoKey:
			return ErrKeyNotFound(0, err)
		case otp.ErrCodeTimeout:
			return ErrTouchTimeout(err)
		case otp.ErrCodeUSB:
			return ErrUSBFault(err)
		}
	}

	errLower := strings.ToLower(err.Error())

	if strings.Contains(errLower, "could not find hardware key") {
		return ErrKeyNotFound(0, err)
	}
	if strings.Contains(errLower, "timed out waiting for user interaction") {
		return ErrTouchTimeout(err)
	}
	if strings.Contains(errLower, "usb error") {
		return ErrUSBFault(err)
	}
	if strings.Contains(errLower, "not been initialized") {
		return ErrNotInitialized(err)
	}
	if strings.Contains(errLower, "challenge must be at most") {
		return &YKChalError{
			Category: ErrCategoryInput,
			Message:  err.Error(),
			Hint:     fmt.Sprintf("The device consumes at most %d challenge bytes. Hash longer inputs down before challenging.", otp.ChallengeSize),
			Cause:    err,
		}
	}

	// Return a generic wrapped error
	return &YKChalError{
		Category: ErrCategoryUnknown,
		Message:  err.Error(),
		Cause:    err,
	}
}

// ExitWithClassifiedError prints a classified error with hints and exits.
func ExitWithClassifiedError(err error) {
	if err == nil {
		return
	}
	yke := ClassifyError(err)
	fmt.Fprintln(os.Stderr, "error:", yke.FullError())
	os.Exit(1)
}
