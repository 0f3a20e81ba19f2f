/*
Package cmd provides utility functions, types, and constants for ykchal.

This file contains:
  - Version information variables (set via ldflags)
  - Slot spec parsing (SERIAL:SLOT addressing)
  - Challenge input helpers (hex, stdin, hidden prompt)
  - Hardware key interface construction from global flags
  - Error handling utilities
*/
package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ykchal/otp"
	"ykchal/otphid"
)

// Version information variables.
// These are set via ldflags during the build process:
//
//	go build -ldflags "-X ykchal/cmd.Version=1.0.0 -X ykchal/cmd.GitCommit=abc123 ..."
var (
	Version   = "dev"     // Semantic version (e.g., "1.0.0")
	BuildTime = "unknown" // Build timestamp
	GitCommit = "unknown" // Git commit hash
	GoVersion = "unknown" // Go compiler version
)

// ParseSlotSpec parses a slot address of the form SERIAL:SLOT or SLOT.
// The bare SLOT form carries serial 0, the wildcard addressing the
// first attached key.
//
// Examples: "16038666:2", "1".
func ParseSlotSpec(s string) (otp.Slot, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")

	var serialStr, slotStr string
	switch len(parts) {
	case 1:
		slotStr = parts[0]
	case 2:
		serialStr, slotStr = parts[0], parts[1]
	default:
		return otp.Slot{}, fmt.Errorf("invalid slot spec %q (expected SERIAL:SLOT or SLOT)", s)
	}

	var serial uint64
	if serialStr != "" {
		var err error
		serial, err = strconv.ParseUint(serialStr, 10, 32)
		if err != nil {
			return otp.Slot{}, fmt.Errorf("invalid serial number %q: %w", serialStr, err)
		}
	}

	slotNumber, err := strconv.Atoi(slotStr)
	if err != nil {
		return otp.Slot{}, fmt.Errorf("invalid slot number %q: %w", slotStr, err)
	}
	if slotNumber != 1 && slotNumber != 2 {
		return otp.Slot{}, fmt.Errorf("slot number must be 1 or 2, got %d", slotNumber)
	}

	return otp.Slot{Serial: uint32(serial), Number: slotNumber}, nil
}

// ParseHexBytes decodes a hex string, tolerating an optional 0x prefix
// and embedded spaces.
func ParseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.ReplaceAll(s, " ", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

// ReadChallenge obtains the challenge bytes for an exchange. Priority:
//  1. The --hex flag value, decoded.
//  2. Piped stdin, read raw (one trailing newline trimmed).
//  3. An interactive hidden prompt; the typed text is used as bytes.
//
// Challenge material is sensitive: it is never echoed or logged.
func ReadChallenge(hexFlag string) ([]byte, error) {
	if hexFlag != "" {
		return ParseHexBytes(hexFlag)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		if n := len(b); n > 0 && b[n-1] == '\n' {
			b = b[:n-1]
		}
		return b, nil
	}

	s, err := PromptHidden("Challenge: ")
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// PromptHidden prompts the user for input without echoing to the terminal.
// This is used for challenge entry.
//
// If stdin is a terminal, uses terminal.ReadPassword for secure input.
// Falls back to normal reading if not a terminal (e.g., piped input).
//
// Returns the trimmed input string or error.
func PromptHidden(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		// Secure terminal input (no echo)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr) // Newline after hidden input
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	// Fallback for non-terminal input
	var s string
	_, err := fmt.Fscanln(os.Stdin, &s)
	return strings.TrimSpace(s), err
}

// OpenInterface builds the hardware key interface from the global
// flags and initializes its transport.
//
// Returns:
//   - u: The initialized interface
//   - closeFn: A function to release the transport (call with defer)
//   - err: Error if the flags are invalid or initialization failed
func OpenInterface(cmd *cobra.Command) (*otp.USB, func(), error) {
	maxKeys, _ := cmd.Flags().GetInt("max-keys")
	ceilingStr, _ := cmd.Flags().GetString("probe-ceiling")

	ceiling, err := strconv.ParseUint(strings.TrimPrefix(ceilingStr, "0x"), 16, 16)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --probe-ceiling %q: %w", ceilingStr, err)
	}

	u := otp.New(otphid.New())
	if maxKeys > 0 {
		u.MaxKeys = maxKeys
	}
	u.ProbeCeilingPID = uint16(ceiling)

	if err := u.Initialize(); err != nil {
		return nil, nil, err
	}
	return u, func() { u.Close() }, nil
}

// Wipe zeroes sensitive byte material once it is no longer needed.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ExitWithError prints an error message to stderr and exits with code 1.
// Does nothing if err is nil.
//
// This is the standard way to handle fatal errors in ykchal commands.
func ExitWithError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// ExitWithErrorMsg formats and prints an error message to stderr, then exits with code 1.
// Uses fmt.Sprintf-style formatting.
//
// This is the standard way to handle fatal errors with custom messages.
func ExitWithErrorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
