/*
Copyright © 2025 Logicos Software

test.go implements the 'test' command.

This command probes a single slot with a throwaway 1-byte challenge in
non-blocking mode to determine whether it is usable and whether it
requires a physical touch, without committing to a real operation. The
probe never blocks: a touch-guarded slot reports "would block"
immediately instead of waiting.
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// testCmd represents the 'test' command.
var testCmd = &cobra.Command{
	Use:   "test SERIAL:SLOT",
	Short: "Probe whether a slot is usable for challenge-response",
	Long: `Probe a slot with a throwaway challenge to check that it is configured
for challenge-response and report whether it requires a physical touch.

The probe is non-blocking: it never waits for a touch. Older devices
(YubiKey NEO and below) are not probed at all; a configured slot on
those is reported as usable with touch required.`,
	Example: `  ykchal test 16038666:2
  ykchal test 1        # slot 1 of the first attached key`,
	Args: cobra.ExactArgs(1),
	Run:  runTest,
}

// init registers the 'test' command with the root command.
func init() {
	rootCmd.AddCommand(testCmd)
}

// runTest probes the addressed slot and reports the outcome.
func runTest(cmd *cobra.Command, args []string) {
	slot, err := ParseSlotSpec(args[0])
	if err != nil {
		ExitWithClassifiedError(ErrInvalidSlotSpec(err.Error()))
	}

	u, closeFn, err := OpenInterface(cmd)
	if err != nil {
		ExitWithClassifiedError(err)
	}
	defer closeFn()

	usable, requiresTouch, err := u.TestChallenge(slot)
	if err != nil {
		ExitWithClassifiedError(err)
	}
	if !usable {
		ExitWithClassifiedError(ErrSlotNotUsable(slot, nil))
	}

	mode := "passive (answers immediately)"
	if requiresTouch {
		mode = "requires touch"
	}
	fmt.Printf("Slot %d on key %d is usable for challenge-response: %s\n", slot.Number, slot.Serial, mode)
}
