/*
Copyright © 2025 Logicos Software

session.go implements the device session layer: opening keys by
position or serial number, reading serials, and the logging policy for
transport failures during enumeration.

Handles opened here are owned by the caller and must be closed on every
exit path. A handle is never retained between public operations.
*/
package otp

// openKey opens the device at the given position among the supported
// vendor/product allow-list.
func (u *USB) openKey(index int) (Key, error) {
	return u.transport.Open(vendorIDs, productIDs, index)
}

// openKeySerial opens the first attached key whose serial matches. A
// serial of 0 is a wildcard matching the first openable key. Every
// non-matching handle opened along the way is closed before moving on.
func (u *USB) openKeySerial(serial uint32) (Key, error) {
	for i := 0; i < u.MaxKeys; i++ {
		k, err := u.openKey(i)
		if err != nil {
			if CodeOf(err) == ErrCodeNoKey {
				// No more connected keys
				break
			}
			u.logKeyError(err)
			continue
		}
		if serial == 0 || u.readSerial(k) == serial {
			return k, nil
		}
		if err := k.Close(); err != nil {
			u.logKeyError(err)
		}
	}
	return nil, &TransportError{Code: ErrCodeNoKey}
}

// readSerial reads the serial number of an open key. A failed read is a
// probe failure, not fatal: it is logged and reported as 0.
func (u *USB) readSerial(k Key) uint32 {
	serial, err := k.Serial()
	if err != nil {
		u.logKeyError(err)
		return 0
	}
	return serial
}

// logKeyError logs a transport failure, distinguishing USB faults from
// other device errors. Enumeration-style operations log and continue;
// absence is never logged here.
func (u *USB) logKeyError(err error) {
	if u.logger == nil {
		return
	}
	if CodeOf(err) == ErrCodeUSB {
		u.logger.Printf("hardware key USB error: %v", err)
		return
	}
	u.logger.Printf("hardware key error: %v", err)
}
