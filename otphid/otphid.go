/*
Copyright © 2025 Logicos Software

Package otphid implements the otp.Transport contract over raw HID
feature reports using hidapi (github.com/sstallion/go-hid).

The OTP interface of a hardware key is its keyboard HID interface:
commands and responses cross the wire as 8-byte feature reports, 7
payload bytes plus one sequence/status byte. The status byte carries
the write flag (device busy consuming a frame), the response-pending
flag (device has answer chunks to deliver), and the timeout-wait flag
(device is blinking, waiting for a touch).
*/
package otphid

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sstallion/go-hid"

	"ykchal/otp"
)

// Sequence/status byte flags.
const (
	slotWriteFlag       = 0x80 // device is busy consuming a written frame
	respPendingFlag     = 0x40 // device has response chunks pending
	respTimeoutWaitFlag = 0x20 // device is waiting for a touch
	sequenceMask        = 0x1f

	// dummyReportWrite resets the device's read/write state machine.
	dummyReportWrite = 0x8f
)

// Slot commands handled inside the transport.
const slotDeviceSerial = 0x10

const (
	reportSize = 8

	// writeWait bounds how long the device may hold the write flag
	// between packets.
	writeWait     = 2 * time.Second
	writeInterval = time.Millisecond

	// touchWait bounds a blocking exchange; the device's own touch
	// window is about 15 seconds.
	touchWait    = 16 * time.Second
	respWait     = 2 * time.Second
	respInterval = 5 * time.Millisecond

	// HID usage identifying the keyboard (OTP) interface on platforms
	// where the interface number is not reported.
	usagePageGenericDesktop = 0x01
	usageKeyboard           = 0x06
)

// Transport implements otp.Transport over hidapi.
type Transport struct {
	initialized bool
}

// New returns an uninitialized hidapi transport.
func New() *Transport {
	return &Transport{}
}

// Init sets up the hidapi library. Idempotent.
func (t *Transport) Init() error {
	if t.initialized {
		return nil
	}
	if err := hid.Init(); err != nil {
		return &otp.TransportError{Code: otp.ErrCodeUSB, Detail: err.Error()}
	}
	t.initialized = true
	return nil
}

// Release tears down the hidapi library.
func (t *Transport) Release() error {
	if !t.initialized {
		return nil
	}
	t.initialized = false
	if err := hid.Exit(); err != nil {
		return &otp.TransportError{Code: otp.ErrCodeUSB, Detail: err.Error()}
	}
	return nil
}

// Open opens the index-th attached device matching the allow-lists.
// Enumeration order is whatever the OS reports; it is stable enough
// within one call sequence but not across attach/detach events.
func (t *Transport) Open(vendorIDs, productIDs []uint16, index int) (otp.Key, error) {
	if !t.initialized {
		return nil, &otp.TransportError{Code: otp.ErrCodeUSB, Detail: "transport not initialized"}
	}

	type match struct {
		path     string
		vid, pid uint16
	}
	var matches []match
	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		if !containsID(vendorIDs, info.VendorID) || !containsID(productIDs, info.ProductID) {
			return nil
		}
		if !isOTPInterface(info) {
			return nil
		}
		matches = append(matches, match{path: info.Path, vid: info.VendorID, pid: info.ProductID})
		return nil
	})
	if err != nil {
		return nil, &otp.TransportError{Code: otp.ErrCodeUSB, Detail: err.Error()}
	}
	if index < 0 || index >= len(matches) {
		return nil, &otp.TransportError{Code: otp.ErrCodeNoKey}
	}

	m := matches[index]
	dev, err := hid.OpenPath(m.path)
	if err != nil {
		return nil, &otp.TransportError{Code: otp.ErrCodeUSB, Detail: err.Error()}
	}
	return &device{dev: dev, vid: m.vid, pid: m.pid}, nil
}

// isOTPInterface reports whether a HID interface is the key's OTP
// (keyboard) interface. Multi-mode keys expose several interfaces;
// the OTP one is interface 0, reported as the keyboard usage on
// platforms that hide interface numbers.
func isOTPInterface(info *hid.DeviceInfo) bool {
	if info.InterfaceNbr >= 0 {
		return info.InterfaceNbr == 0
	}
	return info.UsagePage == usagePageGenericDesktop && info.Usage == usageKeyboard
}

func containsID(ids []uint16, id uint16) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// device is one open HID handle, implementing otp.Key.
type device struct {
	dev *hid.Device
	vid uint16
	pid uint16
}

// VendorProductID reports the USB identity recorded at enumeration.
func (d *device) VendorProductID() (uint16, uint16) {
	return d.vid, d.pid
}

// Close releases the HID handle.
func (d *device) Close() error {
	if err := d.dev.Close(); err != nil {
		return &otp.TransportError{Code: otp.ErrCodeUSB, Detail: err.Error()}
	}
	return nil
}

// Status reads the device status block from a single feature report:
// three version bytes, the programming sequence counter, and the
// little-endian touch level carrying the per-slot configuration bits.
func (d *device) Status() (*otp.Status, error) {
	buf, err := d.readReport()
	if err != nil {
		return nil, err
	}
	return &otp.Status{
		VersionMajor: buf[0],
		VersionMinor: buf[1],
		VersionBuild: buf[2],
		ProgramSeq:   buf[3],
		TouchLevel:   binary.LittleEndian.Uint16(buf[4:6]),
	}, nil
}

// Serial asks the device for its serial number: a dedicated slot
// command answered with 4 big-endian bytes.
func (d *device) Serial() (uint32, error) {
	resp, err := d.Exchange(slotDeviceSerial, false, nil, 4)
	if err != nil {
		return 0, err
	}
	if len(resp) < 4 {
		return 0, &otp.TransportError{Code: otp.ErrCodeProtocol, Detail: fmt.Sprintf("serial response too short (%d bytes)", len(resp))}
	}
	return binary.BigEndian.Uint32(resp[:4]), nil
}

// Exchange writes a slot frame and collects the response stream.
func (d *device) Exchange(cmd byte, mayBlock bool, in []byte, outSize int) ([]byte, error) {
	if len(in) > framePayloadSize {
		return nil, &otp.TransportError{Code: otp.ErrCodeProtocol, Detail: fmt.Sprintf("frame payload too long (%d bytes)", len(in))}
	}
	if err := d.writeFrame(buildFrame(cmd, in)); err != nil {
		return nil, err
	}
	return d.readResponse(mayBlock, outSize)
}

// writeFrame sends one 70-byte frame as tagged 7-byte packets, waiting
// for the device to consume each packet before the next.
func (d *device) writeFrame(frame []byte) error {
	for seq := 0; seq < framePackets; seq++ {
		if !packetWanted(frame, seq) {
			continue
		}
		if err := d.waitWriteReady(); err != nil {
			return err
		}
		report := make([]byte, reportSize+1)
		// report[0] is the HID report ID (unnumbered, 0)
		copy(report[1:], packetPayload(frame, seq))
		report[reportSize] = slotWriteFlag | byte(seq)
		if _, err := d.dev.SendFeatureReport(report); err != nil {
			return &otp.TransportError{Code: otp.ErrCodeUSB, Detail: err.Error()}
		}
	}
	return nil
}

// waitWriteReady polls until the device clears the write flag.
func (d *device) waitWriteReady() error {
	deadline := time.Now().Add(writeWait)
	for {
		buf, err := d.readReport()
		if err != nil {
			return err
		}
		if buf[payloadSize]&slotWriteFlag == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return &otp.TransportError{Code: otp.ErrCodeTimeout, Detail: "device kept the write flag set"}
		}
		time.Sleep(writeInterval)
	}
}

// readResponse polls for response chunks after a frame write. The
// device streams the answer in 7-byte chunks with the pending flag
// set; a sequence wrap back to 0 ends the stream. A device waiting on
// a touch raises the timeout-wait flag instead: in non-blocking mode
// that resolves to would-block immediately, in blocking mode polling
// continues until the touch happens or the wait window elapses.
func (d *device) readResponse(mayBlock bool, outSize int) ([]byte, error) {
	limit := respWait
	if mayBlock {
		limit = touchWait
	}
	deadline := time.Now().Add(limit)

	var stream []byte
	for {
		buf, err := d.readReport()
		if err != nil {
			return nil, err
		}
		flags := buf[payloadSize]

		switch {
		case flags&respPendingFlag != 0:
			seq := flags & sequenceMask
			if seq == 0 && len(stream) > 0 {
				// End of response; reset the device state machine.
				if err := d.reset(); err != nil {
					return nil, err
				}
				payload, ok := splitResponse(stream)
				if !ok {
					return nil, &otp.TransportError{Code: otp.ErrCodeProtocol, Detail: "response checksum mismatch"}
				}
				wipeBytes(stream)
				if len(payload) > outSize {
					payload = payload[:outSize]
				}
				return payload, nil
			}
			stream = append(stream, buf[:payloadSize]...)

		case flags&respTimeoutWaitFlag != 0:
			if !mayBlock {
				if err := d.reset(); err != nil {
					return nil, err
				}
				return nil, &otp.TransportError{Code: otp.ErrCodeWouldBlock}
			}

		case len(stream) > 0:
			// Pending flag dropped mid-stream.
			return nil, &otp.TransportError{Code: otp.ErrCodeProtocol, Detail: "response stream ended prematurely"}
		}

		if time.Now().After(deadline) {
			return nil, &otp.TransportError{Code: otp.ErrCodeTimeout, Detail: "timed out waiting for a response"}
		}
		time.Sleep(respInterval)
	}
}

// reset writes the dummy report that clears the device's pending
// read/write state.
func (d *device) reset() error {
	report := make([]byte, reportSize+1)
	report[reportSize] = dummyReportWrite
	if _, err := d.dev.SendFeatureReport(report); err != nil {
		return &otp.TransportError{Code: otp.ErrCodeUSB, Detail: err.Error()}
	}
	return nil
}

// readReport reads one 8-byte feature report, returning its payload
// and status byte (report ID stripped).
func (d *device) readReport() ([]byte, error) {
	buf := make([]byte, reportSize+1)
	// buf[0] carries the HID report ID (unnumbered, 0)
	if _, err := d.dev.GetFeatureReport(buf); err != nil {
		return nil, &otp.TransportError{Code: otp.ErrCodeUSB, Detail: err.Error()}
	}
	return buf[1:], nil
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
