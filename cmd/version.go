/*
Copyright © 2025 Logicos Software

version.go implements the 'version' command.

This command displays version information for ykchal, including:
  - Semantic version number
  - Git commit hash
  - Build timestamp
  - Go compiler version

Version information is embedded at build time via ldflags:

	go build -ldflags "-X ykchal/cmd.Version=1.0.0 \
	                   -X ykchal/cmd.GitCommit=$(git rev-parse HEAD) \
	                   -X ykchal/cmd.BuildTime=$(date -Iseconds) \
	                   -X ykchal/cmd.GoVersion=$(go version)"
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// versionCmd represents the 'version' command.
// It displays build and version information for ykchal.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information for ykchal.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Display version information
		fmt.Println("ykchal - hardware key challenge-response tool")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Built:      %s\n", BuildTime)
		fmt.Printf("Go Version: %s\n", GoVersion)
		fmt.Println()
		// Display copyright with current year
		fmt.Printf("Copyright © 2024-%d Logicos Software\n", time.Now().Year())
		fmt.Println("Licensed under the MIT License")
	},
}

// init registers the 'version' command with the root command.
func init() {
	rootCmd.AddCommand(versionCmd)
}
