/*
Copyright © 2025 Logicos Software

challenge.go implements the challenge-response engine and the public
USB interface type.

The engine frames an arbitrary 0-64 byte challenge into the fixed
64-byte buffer the device expects (PKCS7-style padding), dispatches it
in blocking or non-blocking mode, truncates the answer to the 20
meaningful HMAC-SHA1 bytes, and classifies failures into the
success / would-block / error result taxonomy.

A blocking exchange against a touch-guarded slot suspends the calling
goroutine until the user touches the key or the device's internal wait
window elapses; there is no cancellation at this layer. Callers needing
responsiveness should run Challenge on a dedicated goroutine and use
the started/completed callbacks to drive a "touch your key" indicator.

The USB type is not safe for concurrent use: the underlying transport
session is a shared process-wide resource, so callers must serialize
calls into one instance.
*/
package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"os"
)

// USB drives challenge-response over the OTP interface of attached
// hardware keys. Construct it with New, call Initialize once before
// any other operation, and Close when done.
type USB struct {
	transport   Transport
	logger      *log.Logger
	initialized bool
	lastError   string

	// MaxKeys bounds how many attached keys enumeration probes.
	MaxKeys int

	// ProbeCeilingPID is the product-generation policy boundary:
	// devices with a product ID at or below it always require a touch
	// when a slot is configured, and probing them would block or
	// misreport, so they are never issued a test challenge. Defaults
	// to the NEO OTP+U2F+CCID product ID.
	ProbeCeilingPID uint16

	// OnChallengeStarted and OnChallengeCompleted, when set, bracket
	// the potentially blocking exchange performed by Challenge so a
	// caller can surface a pending touch prompt.
	OnChallengeStarted   func()
	OnChallengeCompleted func()
}

// New returns a USB interface over the given transport. The transport
// is not initialized until Initialize is called.
func New(t Transport) *USB {
	return &USB{
		transport:       t,
		logger:          log.New(os.Stderr, "", log.LstdFlags),
		MaxKeys:         MaxKeys,
		ProbeCeilingPID: PIDNeoOTPU2FCCID,
	}
}

// SetLogger replaces the logger used for enumeration warnings. A nil
// logger silences them.
func (u *USB) SetLogger(l *log.Logger) {
	u.logger = l
}

// Initialize sets up the transport session. It is idempotent:
// subsequent calls after a successful one are no-ops. Every other
// operation fails without touching hardware until Initialize succeeds.
func (u *USB) Initialize() error {
	if u.initialized {
		return nil
	}
	if err := u.transport.Init(); err != nil {
		return fmt.Errorf("initialize hardware key USB interface: %w", err)
	}
	u.initialized = true
	return nil
}

// Close releases the transport session. The interface must be
// re-initialized before further use.
func (u *USB) Close() {
	if !u.initialized {
		return
	}
	if err := u.transport.Release(); err != nil {
		u.logKeyError(err)
	}
	u.initialized = false
}

// LastError returns the human-readable message of the most recent
// failed operation. It is overwritten on each new call, not
// accumulated.
func (u *USB) LastError() string {
	return u.lastError
}

// failf records and returns an operation error.
func (u *USB) failf(format string, args ...any) error {
	u.lastError = fmt.Sprintf(format, args...)
	return fmt.Errorf(format, args...)
}

// errNotInitialized is the uninitialized-use failure shared by all
// public operations.
func (u *USB) errNotInitialized() error {
	return u.failf("the hardware key USB interface has not been initialized")
}

// Challenge performs a challenge-response exchange against the slot
// identified by slot, blocking if the slot requires a touch. The
// challenge may be 0-64 bytes. On success the returned response is
// exactly ResponseSize bytes, freshly allocated.
//
// A slot serial of 0 addresses the first attached key regardless of
// its serial.
func (u *USB) Challenge(slot Slot, challenge []byte) (ChallengeResult, []byte, error) {
	u.lastError = ""
	if !u.initialized {
		return ChallengeError, nil, u.errNotInitialized()
	}

	k, err := u.openKeySerial(slot.Serial)
	if err != nil {
		// Key with the requested serial number is not attached.
		return ChallengeError, nil, u.failf(
			"could not find hardware key with serial number %d, please plug it in to continue", slot.Serial)
	}

	if u.OnChallengeStarted != nil {
		u.OnChallengeStarted()
	}
	res, resp, err := u.performChallenge(k, slot.Number, true, challenge)
	if cerr := k.Close(); cerr != nil {
		u.logKeyError(cerr)
	}
	if u.OnChallengeCompleted != nil {
		u.OnChallengeCompleted()
	}

	return res, resp, err
}

// TestChallenge determines whether the identified slot is usable for
// challenge-response and whether it requires a physical touch, without
// committing to a real operation. Devices at or below the probe
// ceiling are never probed; their slot is assumed usable-with-touch
// whenever its configuration bit is set.
func (u *USB) TestChallenge(slot Slot) (usable, requiresTouch bool, err error) {
	u.lastError = ""
	if !u.initialized {
		return false, false, u.errNotInitialized()
	}

	k, err := u.openKeySerial(slot.Serial)
	if err != nil {
		return false, false, u.failf(
			"could not find hardware key with serial number %d, please plug it in to continue", slot.Serial)
	}
	defer func() {
		if cerr := k.Close(); cerr != nil {
			u.logKeyError(cerr)
		}
	}()

	st, err := k.Status()
	if err != nil {
		return false, false, u.failf("could not read hardware key status: %v", err)
	}
	if !st.SlotConfigured(slot.Number) {
		return false, false, nil
	}
	if _, pid := k.VendorProductID(); pid <= u.ProbeCeilingPID {
		return true, true, nil
	}

	usable, requiresTouch = u.performTestChallenge(k, slot.Number)
	return usable, requiresTouch, nil
}

// performTestChallenge issues a minimal 1-byte random challenge in
// non-blocking mode. Success and would-block both mean the slot is
// usable; would-block additionally means a touch is required. Any
// error marks the slot unusable for probing purposes.
func (u *USB) performTestChallenge(k Key, slotNumber int) (usable, requiresTouch bool) {
	chall := make([]byte, 1)
	if _, err := io.ReadFull(rand.Reader, chall); err != nil {
		u.logKeyError(fmt.Errorf("test challenge random source: %w", err))
		return false, false
	}
	res, _, _ := u.performChallenge(k, slotNumber, false, chall)
	switch res {
	case ChallengeSuccess:
		return true, false
	case ChallengeWouldBlock:
		return true, true
	default:
		return false, false
	}
}

// padChallenge frames a challenge into the fixed device buffer using
// PKCS7-style padding: the pad byte value equals the number of padding
// bytes appended. Challenges longer than the frame are rejected.
func padChallenge(challenge []byte) ([]byte, error) {
	if len(challenge) > ChallengeSize {
		return nil, fmt.Errorf("challenge must be at most %d bytes, got %d", ChallengeSize, len(challenge))
	}
	padded := make([]byte, ChallengeSize)
	copy(padded, challenge)
	padLen := ChallengeSize - len(challenge)
	for i := len(challenge); i < ChallengeSize; i++ {
		padded[i] = byte(padLen)
	}
	return padded, nil
}

// performChallenge runs one exchange against an already-open key. The
// caller keeps ownership of the handle.
func (u *USB) performChallenge(k Key, slotNumber int, mayBlock bool, challenge []byte) (ChallengeResult, []byte, error) {
	var cmd byte
	switch slotNumber {
	case 1:
		cmd = slotChalHMAC1
	case 2:
		cmd = slotChalHMAC2
	default:
		return ChallengeError, nil, u.failf("invalid slot number %d, must be 1 or 2", slotNumber)
	}

	padded, err := padChallenge(challenge)
	if err != nil {
		return ChallengeError, nil, u.failf("%v", err)
	}
	defer wipe(padded)

	raw, err := k.Exchange(cmd, mayBlock, padded, ChallengeSize)
	if err != nil {
		switch CodeOf(err) {
		case ErrCodeWouldBlock:
			return ChallengeWouldBlock, nil, nil
		case ErrCodeTimeout:
			return ChallengeError, nil, u.failf("hardware key timed out waiting for user interaction")
		case ErrCodeUSB:
			return ChallengeError, nil, u.failf("a USB error occurred when accessing the hardware key: %v", err)
		default:
			return ChallengeError, nil, u.failf("failed to complete a challenge-response, the specific error was: %v", err)
		}
	}

	// Only the first 20 bytes are the meaningful HMAC-SHA1 output.
	if len(raw) < ResponseSize {
		return ChallengeError, nil, u.failf("hardware key returned a short response (%d bytes)", len(raw))
	}
	resp := make([]byte, ResponseSize)
	copy(resp, raw[:ResponseSize])
	wipe(raw)
	return ChallengeSuccess, resp, nil
}
