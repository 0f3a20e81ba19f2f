/*
Copyright © 2025 Logicos Software

list.go implements the 'list' command.

This command enumerates attached hardware keys and prints every slot
that is configured for challenge-response, together with a display
label naming the device, its serial, the slot number, and whether the
slot answers passively or requires a touch.

Discovery recomputes from current hardware state on every run; a
faulty key never hides the others.
*/
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"ykchal/otp"
)

// listCmd represents the 'list' command.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached keys and their usable challenge-response slots",
	Long: `List every challenge-response slot available on currently attached
hardware keys.

Each line shows the SERIAL:SLOT address to use with the test and
challenge commands, followed by a display label. "Press" marks slots
that require a physical touch; "Passive" marks slots that answer
immediately. Older devices (YubiKey NEO and below) always require a
touch when configured and are listed without probing.`,
	Example: `  ykchal list
  ykchal list --max-keys 2`,
	Run: runList,
}

// init registers the 'list' command with the root command.
func init() {
	rootCmd.AddCommand(listCmd)
}

// runList executes discovery and prints the resulting slot map in a
// stable order (by serial, then slot number).
func runList(cmd *cobra.Command, args []string) {
	u, closeFn, err := OpenInterface(cmd)
	if err != nil {
		ExitWithClassifiedError(err)
	}
	defer closeFn()

	keys, err := u.FindValidKeys()
	if err != nil {
		ExitWithClassifiedError(err)
	}
	if len(keys) == 0 {
		fmt.Println("No hardware keys with configured challenge-response slots were found.")
		return
	}

	ids := make([]otp.Slot, 0, len(keys))
	for id := range keys {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Serial != ids[j].Serial {
			return ids[i].Serial < ids[j].Serial
		}
		return ids[i].Number < ids[j].Number
	})

	for _, id := range ids {
		fmt.Printf("%-12s %s\n", id, keys[id])
	}
}
