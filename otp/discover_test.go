/*
Copyright © 2025 Logicos Software

discover_test.go contains unit tests for discovery and the test
challenge evaluator: slot filtering, labels, the no-probe policy for
old device generations, per-device fault isolation, and handle
accounting.
*/
package otp

import (
	"strings"
	"testing"
)

func TestFindValidKeysTwoDevices(t *testing.T) {
	// Two keys, one configured slot each: exactly two entries keyed by
	// their distinct (serial, slot) pairs.
	k1 := newFakeKey(11111111, PIDYK4OTP, 1)
	k2 := newFakeKey(22222222, PIDYK4OTPU2F, 2)
	ft := &fakeTransport{keys: []*fakeKey{k1, k2}}
	u := newTestUSB(t, ft)

	keys, err := u.FindValidKeys()
	if err != nil {
		t.Fatalf("FindValidKeys() failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("FindValidKeys() = %d entries, want 2", len(keys))
	}

	label1, ok := keys[Slot{Serial: 11111111, Number: 1}]
	if !ok {
		t.Fatal("missing entry for 11111111:1")
	}
	if want := "YubiKey 5 - OTP [11111111] - Slot 1, Passive"; label1 != want {
		t.Errorf("label = %q, want %q", label1, want)
	}
	if _, ok := keys[Slot{Serial: 22222222, Number: 2}]; !ok {
		t.Error("missing entry for 22222222:2")
	}

	if ft.opens != ft.closes {
		t.Errorf("handle leak: %d opens, %d closes", ft.opens, ft.closes)
	}
}

func TestFindValidKeysSkipsUnconfiguredSlots(t *testing.T) {
	// Slot 2 is configured, slot 1 is not: only slot 2 appears, for
	// any shape of the status bits.
	k := newFakeKey(12345678, PIDYK4OTP, 2)
	ft := &fakeTransport{keys: []*fakeKey{k}}
	u := newTestUSB(t, ft)

	keys, err := u.FindValidKeys()
	if err != nil {
		t.Fatalf("FindValidKeys() failed: %v", err)
	}
	if _, ok := keys[Slot{Serial: 12345678, Number: 1}]; ok {
		t.Error("unconfigured slot 1 appeared in discovery")
	}
	if _, ok := keys[Slot{Serial: 12345678, Number: 2}]; !ok {
		t.Error("configured slot 2 missing from discovery")
	}
}

func TestFindValidKeysSkipsSerialZero(t *testing.T) {
	// A key whose serial cannot be read is unaddressable later and is
	// skipped entirely.
	k := newFakeKey(0, PIDYK4OTP, 1)
	ft := &fakeTransport{keys: []*fakeKey{k}}
	u := newTestUSB(t, ft)

	keys, err := u.FindValidKeys()
	if err != nil {
		t.Fatalf("FindValidKeys() failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("FindValidKeys() = %d entries, want 0", len(keys))
	}
	if ft.opens != ft.closes {
		t.Errorf("handle leak: %d opens, %d closes", ft.opens, ft.closes)
	}
}

func TestFindValidKeysTouchModes(t *testing.T) {
	// A touch-guarded slot probes as would-block and is labeled
	// "Press"; a passive slot is labeled "Passive".
	k := newFakeKey(12345678, PIDYK4OTP, 1, 2)
	k.touch[2] = true
	ft := &fakeTransport{keys: []*fakeKey{k}}
	u := newTestUSB(t, ft)

	keys, err := u.FindValidKeys()
	if err != nil {
		t.Fatalf("FindValidKeys() failed: %v", err)
	}
	if label := keys[Slot{Serial: 12345678, Number: 1}]; !strings.HasSuffix(label, "Passive") {
		t.Errorf("slot 1 label = %q, want Passive suffix", label)
	}
	if label := keys[Slot{Serial: 12345678, Number: 2}]; !strings.HasSuffix(label, "Press") {
		t.Errorf("slot 2 label = %q, want Press suffix", label)
	}
}

func TestFindValidKeysNeoNeverProbed(t *testing.T) {
	// Devices at or below the probe ceiling are assumed
	// usable-with-touch: the slot appears without any exchange having
	// been issued, and without a mode suffix.
	k := newFakeKey(12345678, PIDNeoOTPU2FCCID, 1)
	k.status.VersionMajor = 3
	ft := &fakeTransport{keys: []*fakeKey{k}}
	u := newTestUSB(t, ft)

	keys, err := u.FindValidKeys()
	if err != nil {
		t.Fatalf("FindValidKeys() failed: %v", err)
	}
	label, ok := keys[Slot{Serial: 12345678, Number: 1}]
	if !ok {
		t.Fatal("NEO slot missing from discovery")
	}
	if want := "YubiKey NEO - OTP+U2F+CCID [12345678] - Slot 1"; label != want {
		t.Errorf("label = %q, want %q", label, want)
	}
	if k.exchanges != 0 {
		t.Errorf("NEO device was probed %d times, want 0", k.exchanges)
	}
}

func TestFindValidKeysSkipsFailingSlotProbe(t *testing.T) {
	// A slot whose probe errors is silently excluded without aborting
	// discovery of the other slot.
	k := newFakeKey(12345678, PIDYK4OTP, 1, 2)
	delete(k.secrets, 2) // slot 2 configured bit set but probe fails
	ft := &fakeTransport{keys: []*fakeKey{k}}
	u := newTestUSB(t, ft)

	keys, err := u.FindValidKeys()
	if err != nil {
		t.Fatalf("FindValidKeys() failed: %v", err)
	}
	if _, ok := keys[Slot{Serial: 12345678, Number: 1}]; !ok {
		t.Error("slot 1 missing after sibling slot probe failure")
	}
	if _, ok := keys[Slot{Serial: 12345678, Number: 2}]; ok {
		t.Error("failing slot 2 appeared in discovery")
	}
}

func TestFindValidKeysStopsOnAbsence(t *testing.T) {
	// The first "no more keys" signal ends enumeration instead of
	// probing the remaining positions.
	ft := &fakeTransport{}
	u := newTestUSB(t, ft)

	keys, err := u.FindValidKeys()
	if err != nil {
		t.Fatalf("FindValidKeys() failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("FindValidKeys() = %d entries, want 0", len(keys))
	}
	if ft.openCalls != 1 {
		t.Errorf("enumeration probed %d positions, want 1", ft.openCalls)
	}
}

func TestFindValidKeysContinuesPastTransportFault(t *testing.T) {
	// A transport fault at one position hides only that position.
	k := newFakeKey(22222222, PIDYK4OTP, 1)
	ft := &fakeTransport{
		keys:     []*fakeKey{nil, k},
		openErrs: map[int]error{0: &TransportError{Code: ErrCodeUSB, Detail: "stall"}},
	}
	u := newTestUSB(t, ft)

	keys, err := u.FindValidKeys()
	if err != nil {
		t.Fatalf("FindValidKeys() failed: %v", err)
	}
	if _, ok := keys[Slot{Serial: 22222222, Number: 1}]; !ok {
		t.Error("device after the faulty position missing from discovery")
	}
}

func TestFindValidKeysUninitialized(t *testing.T) {
	ft := &fakeTransport{keys: []*fakeKey{newFakeKey(1, PIDYK4OTP, 1)}}
	u := New(ft)
	u.SetLogger(nil)

	if _, err := u.FindValidKeys(); err == nil {
		t.Fatal("FindValidKeys() before Initialize() succeeded, want error")
	}
	if ft.openCalls != 0 {
		t.Error("uninitialized discovery touched hardware")
	}
}

func TestTestChallenge(t *testing.T) {
	tests := []struct {
		name          string
		setup         func() *fakeKey
		slot          Slot
		wantUsable    bool
		wantTouch     bool
		wantExchanges int
	}{
		{
			name:          "passive configured slot",
			setup:         func() *fakeKey { return newFakeKey(12345678, PIDYK4OTP, 1) },
			slot:          Slot{Serial: 12345678, Number: 1},
			wantUsable:    true,
			wantTouch:     false,
			wantExchanges: 1,
		},
		{
			name: "touch-guarded slot",
			setup: func() *fakeKey {
				k := newFakeKey(12345678, PIDYK4OTP, 2)
				k.touch[2] = true
				return k
			},
			slot:          Slot{Serial: 12345678, Number: 2},
			wantUsable:    true,
			wantTouch:     true,
			wantExchanges: 1,
		},
		{
			name:          "unconfigured slot",
			setup:         func() *fakeKey { return newFakeKey(12345678, PIDYK4OTP, 1) },
			slot:          Slot{Serial: 12345678, Number: 2},
			wantUsable:    false,
			wantTouch:     false,
			wantExchanges: 0,
		},
		{
			name: "NEO configured slot is never probed",
			setup: func() *fakeKey {
				k := newFakeKey(12345678, PIDNeoOTPU2FCCID, 1)
				k.touch[1] = true
				return k
			},
			slot:          Slot{Serial: 12345678, Number: 1},
			wantUsable:    true,
			wantTouch:     true,
			wantExchanges: 0,
		},
		{
			name: "broken slot probes unusable",
			setup: func() *fakeKey {
				k := newFakeKey(12345678, PIDYK4OTP, 1)
				delete(k.secrets, 1)
				return k
			},
			slot:          Slot{Serial: 12345678, Number: 1},
			wantUsable:    false,
			wantTouch:     false,
			wantExchanges: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := tt.setup()
			ft := &fakeTransport{keys: []*fakeKey{k}}
			u := newTestUSB(t, ft)

			usable, requiresTouch, err := u.TestChallenge(tt.slot)
			if err != nil {
				t.Fatalf("TestChallenge() failed: %v", err)
			}
			if usable != tt.wantUsable || requiresTouch != tt.wantTouch {
				t.Errorf("TestChallenge() = (%v, %v), want (%v, %v)", usable, requiresTouch, tt.wantUsable, tt.wantTouch)
			}
			if k.exchanges != tt.wantExchanges {
				t.Errorf("probe exchanges = %d, want %d", k.exchanges, tt.wantExchanges)
			}
			if ft.opens != ft.closes {
				t.Errorf("handle leak: %d opens, %d closes", ft.opens, ft.closes)
			}
		})
	}
}

func TestTestChallengeAbsentSerial(t *testing.T) {
	ft := &fakeTransport{keys: []*fakeKey{newFakeKey(11111111, PIDYK4OTP, 1)}}
	u := newTestUSB(t, ft)

	usable, _, err := u.TestChallenge(Slot{Serial: 22222222, Number: 1})
	if usable || err == nil {
		t.Fatal("TestChallenge(absent serial) must fail")
	}
	if !strings.Contains(err.Error(), "22222222") {
		t.Errorf("error = %v, want the requested serial named", err)
	}
}
