/*
Copyright © 2025 Logicos Software

challenge.go implements the 'challenge' command.

This command performs the real challenge-response exchange: it frames
the supplied challenge (0-64 bytes), sends it to the addressed slot in
blocking mode, and prints the 20-byte HMAC-SHA1 response as lowercase
hex on stdout.

If the slot requires a touch, the call blocks until the key is touched
or its internal wait window (about 15 seconds) elapses; a notice is
printed on stderr while the exchange is pending so the user knows to
look at the blinking key. There is no way to abort a pending exchange
from the host side.

The response can optionally be expanded into a longer key with
HKDF-SHA256 (--derive), the common pattern when the response seeds an
encryption key rather than being compared directly.
*/
package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/hkdf"

	"ykchal/otp"
)

// challengeCmd represents the 'challenge' command.
var challengeCmd = &cobra.Command{
	Use:   "challenge SERIAL:SLOT",
	Short: "Perform a challenge-response exchange against a slot",
	Long: `Send a challenge to a hardware key slot and print the HMAC-SHA1
response as lowercase hex.

The challenge is taken from --hex, from piped stdin, or from a hidden
interactive prompt, in that order of preference. It may be up to 64
bytes; shorter challenges are padded on the device frame.

If the slot requires a touch the command waits for it, so run it where
you can reach the key.`,
	Example: `  # Hex challenge against a specific key
  ykchal challenge 16038666:2 --hex aabbcc

  # Challenge from a pipe, response expanded to a 32-byte key
  printf 'login-seed' | ykchal challenge 2 --derive 32`,
	Args: cobra.ExactArgs(1),
	Run:  runChallenge,
}

// init registers the 'challenge' command with the root command and
// configures its flags.
func init() {
	rootCmd.AddCommand(challengeCmd)

	// --hex: challenge bytes as a hex string (otherwise stdin/prompt)
	challengeCmd.Flags().String("hex", "", "Challenge as a hex string")
	// --derive: expand the response with HKDF-SHA256 to N bytes
	challengeCmd.Flags().Int("derive", 0, "Expand the response to N bytes with HKDF-SHA256 (0 = raw response)")
	// --salt: HKDF salt as hex, only meaningful with --derive
	challengeCmd.Flags().String("salt", "", "HKDF salt as a hex string (with --derive)")
}

// runChallenge executes the exchange and prints the (optionally
// derived) result.
func runChallenge(cmd *cobra.Command, args []string) {
	slot, err := ParseSlotSpec(args[0])
	if err != nil {
		ExitWithClassifiedError(ErrInvalidSlotSpec(err.Error()))
	}

	hexFlag, _ := cmd.Flags().GetString("hex")
	deriveLen, _ := cmd.Flags().GetInt("derive")
	saltHex, _ := cmd.Flags().GetString("salt")

	if deriveLen < 0 {
		ExitWithErrorMsg("--derive must be non-negative, got %d", deriveLen)
	}
	var salt []byte
	if saltHex != "" {
		salt, err = ParseHexBytes(saltHex)
		if err != nil {
			ExitWithErrorMsg("invalid --salt: %v", err)
		}
	}

	challenge, err := ReadChallenge(hexFlag)
	if err != nil {
		ExitWithError(err)
	}
	defer Wipe(challenge)
	if len(challenge) > otp.ChallengeSize {
		ExitWithClassifiedError(ErrChallengeTooLong(len(challenge)))
	}

	u, closeFn, err := OpenInterface(cmd)
	if err != nil {
		ExitWithClassifiedError(err)
	}
	defer closeFn()

	// Bracket the potentially blocking exchange so the user knows when
	// to look at the key.
	u.OnChallengeStarted = func() {
		fmt.Fprintln(os.Stderr, "Exchanging challenge... touch your hardware key if it starts blinking.")
	}

	result, response, err := u.Challenge(slot, challenge)
	if result != otp.ChallengeSuccess {
		ExitWithClassifiedError(err)
	}
	defer Wipe(response)

	out := response
	if deriveLen > 0 {
		derived, err := deriveKey(response, salt, deriveLen)
		if err != nil {
			ExitWithError(err)
		}
		out = derived
		defer Wipe(derived)
	}

	fmt.Println(hex.EncodeToString(out))
}

// deriveKey expands a challenge response into n bytes with
// HKDF-SHA256. The fixed info string binds the output to this tool's
// derivation so the same response fed to other KDF consumers cannot
// collide with it.
func deriveKey(response, salt []byte, n int) ([]byte, error) {
	h := hkdf.New(sha256.New, response, salt, []byte("ykchal derive v1"))
	out := make([]byte, n)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return out, nil
}
