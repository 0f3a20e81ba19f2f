/*
Copyright © 2025 Logicos Software

discover.go implements the discovery orchestrator: enumerate attached
keys, scan their configured slots, classify the interaction mode per
slot, and aggregate the results into a KeyMap.

A faulty device never prevents discovering the others: per-device
failures are logged and enumeration continues at the next position.
Only the "no more keys attached" signal stops the loop early.
*/
package otp

import "fmt"

// FindValidKeys enumerates all attached keys up to MaxKeys and returns
// the configured challenge-response slots with display labels. The map
// is recomputed from current hardware state on every call.
//
// Keys that report serial 0 are skipped: they cannot be addressed
// later. Slots whose configuration bit is unset never appear. Slots on
// devices above the probe ceiling are test-challenged to tell passive
// slots from touch-guarded ones; slots at or below the ceiling are
// assumed usable-with-touch without probing.
func (u *USB) FindValidKeys() (KeyMap, error) {
	u.lastError = ""
	if !u.initialized {
		return nil, u.errNotInitialized()
	}

	keys := make(KeyMap)
	for i := 0; i < u.MaxKeys; i++ {
		k, err := u.openKey(i)
		if err != nil {
			if CodeOf(err) == ErrCodeNoKey {
				// No more keys are connected
				break
			}
			u.logKeyError(err)
			continue
		}
		u.scanKey(k, keys)
		if err := k.Close(); err != nil {
			u.logKeyError(err)
		}
	}
	return keys, nil
}

// scanKey inspects one open key and inserts an entry per usable slot.
// The caller keeps ownership of the handle.
func (u *USB) scanKey(k Key, keys KeyMap) {
	serial := u.readSerial(k)
	if serial == 0 {
		return
	}
	st, err := k.Status()
	if err != nil {
		u.logKeyError(err)
		return
	}
	vid, pid := k.VendorProductID()
	name := displayName(vid, pid, st)

	for slotNumber := 1; slotNumber <= 2; slotNumber++ {
		if !st.SlotConfigured(slotNumber) {
			continue
		}
		id := Slot{Serial: serial, Number: slotNumber}
		// Don't challenge a YubiKey NEO or below: a configured slot on
		// those always requires a touch, and probing it would fail the
		// detection.
		if pid <= u.ProbeCeilingPID {
			keys[id] = fmt.Sprintf("%s [%d] - Slot %d", name, serial, slotNumber)
			continue
		}
		usable, requiresTouch := u.performTestChallenge(k, slotNumber)
		if !usable {
			continue
		}
		mode := "Passive"
		if requiresTouch {
			mode = "Press"
		}
		keys[id] = fmt.Sprintf("%s [%d] - Slot %d, %s", name, serial, slotNumber, mode)
	}
}
