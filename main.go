/*
Copyright © 2025 Logicos Software

ykchal - YubiKey Challenge-Response Tool

This is the main entry point for the ykchal command-line tool.
ykchal performs HMAC-SHA1 challenge-response authentication against
USB-attached hardware security keys (YubiKey family and OnlyKey) over
their OTP HID interface.

Security Model:
  - The HMAC secret never leaves the hardware key
  - Challenges are padded to a fixed frame before transmission
  - Slots may require a physical touch before the key answers
*/
package main

import "ykchal/cmd"

// main is the entry point for the ykchal application.
// It delegates all command handling to the cmd package which uses
// the Cobra library for CLI argument parsing and command execution.
func main() {
	cmd.Execute()
}
