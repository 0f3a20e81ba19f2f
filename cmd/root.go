/*
Copyright © 2025 Logicos Software

Package cmd implements all CLI commands for ykchal using the Cobra library.

This package provides:
  - list: Discover attached keys and their configured slots
  - test: Probe a slot without committing to a real operation
  - challenge: Perform a challenge-response exchange
  - version: Display version information

All cryptographic work happens on the hardware key itself; the host
only frames challenges and post-processes the 20-byte HMAC-SHA1
response (optionally expanding it with HKDF-SHA256).
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
// It serves as the parent for all ykchal subcommands and defines
// global flags that are inherited by child commands.
var rootCmd = &cobra.Command{
	Use:   "ykchal",
	Short: "Challenge-response against USB hardware security keys",
	Long: `ykchal performs HMAC-SHA1 challenge-response authentication against the
OTP interface of USB hardware security keys (YubiKey family and OnlyKey).

A key has two configurable slots. A slot configured for challenge-response
either answers immediately ("Passive") or blinks and waits for a physical
touch ("Press"). Slots are addressed as SERIAL:SLOT; a bare SLOT targets
the first attached key.

Quick usage:
  ykchal list                      # Show attached keys and usable slots
  ykchal test 16038666:2           # Probe slot 2 of key 16038666
  ykchal challenge 16038666:2 --hex aabbcc
  ykchal challenge 2               # First attached key, prompt for challenge`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// If an error occurs during command execution, the program exits with status code 1.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// init registers global flags that are available to all subcommands.
func init() {
	// Global flags - available to all subcommands
	// --max-keys bounds how many attached keys enumeration probes
	rootCmd.PersistentFlags().Int("max-keys", 4, "Maximum number of attached keys to probe")
	// --probe-ceiling: slots on devices with a product ID at or below this
	// value always require a touch when configured and are never probed
	rootCmd.PersistentFlags().String("probe-ceiling", "0116", "Product ID ceiling (hex) at or below which slots are assumed touch-only")
}
