/*
Copyright © 2025 Logicos Software

status_test.go contains unit tests for status block interpretation and
display-name derivation.
*/
package otp

import "testing"

func TestSlotConfigured(t *testing.T) {
	tests := []struct {
		name       string
		touchLevel uint16
		slot1      bool
		slot2      bool
	}{
		{"none", 0, false, false},
		{"slot 1 only", config1Valid, true, false},
		{"slot 2 only", config2Valid, false, true},
		{"both", config1Valid | config2Valid, true, true},
		{"unrelated bits ignored", 0xff00, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &Status{TouchLevel: tt.touchLevel}
			if got := st.SlotConfigured(1); got != tt.slot1 {
				t.Errorf("SlotConfigured(1) = %v, want %v", got, tt.slot1)
			}
			if got := st.SlotConfigured(2); got != tt.slot2 {
				t.Errorf("SlotConfigured(2) = %v, want %v", got, tt.slot2)
			}
			if st.SlotConfigured(3) {
				t.Error("SlotConfigured(3) = true, want false")
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		vid  uint16
		pid  uint16
		st   Status
		want string
	}{
		{
			name: "fixed name without placeholder",
			vid:  VendorYubico,
			pid:  PIDNeoOTP,
			st:   Status{VersionMajor: 3},
			want: "YubiKey NEO - OTP",
		},
		{
			name: "version placeholder substituted",
			vid:  VendorYubico,
			pid:  PIDYK4OTPU2FCCID,
			st:   Status{VersionMajor: 5},
			want: "YubiKey 5 - OTP+U2F+CCID",
		},
		{
			name: "OnlyKey overrides the table",
			vid:  VendorOnlyKey,
			pid:  PIDOnlyKey,
			st:   Status{VersionMajor: 2},
			want: "OnlyKey 2",
		},
		{
			name: "unknown product",
			vid:  VendorYubico,
			pid:  0x9999,
			st:   Status{VersionMajor: 4},
			want: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(tt.vid, tt.pid, &tt.st); got != tt.want {
				t.Errorf("displayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusVersion(t *testing.T) {
	st := &Status{VersionMajor: 5, VersionMinor: 4, VersionBuild: 3}
	if got := st.Version(); got != "5.4.3" {
		t.Errorf("Version() = %q, want %q", got, "5.4.3")
	}
}
