package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Response status bytes (spec §3, §6).
const (
	StatusNotFound byte = 0
	StatusFound    byte = 1
)

// WriteNotFound writes the single-byte "not found" response. The caller
// closes the connection afterward; no further bytes follow.
func WriteNotFound(w io.Writer) error {
	_, err := w.Write([]byte{StatusNotFound})
	return err
}

// WriteFoundHeader writes the "found" status byte followed by the
// total file_size. The payload itself — exactly fileSize-offset bytes —
// is the caller's responsibility to stream afterward.
func WriteFoundHeader(w io.Writer, fileSize uint64) error {
	if _, err := w.Write([]byte{StatusFound}); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, fileSize)
}

// ReadResponseHeader reads the status byte and, if status is
// StatusFound, the file_size that follows it. found is false when the
// server replied "not found"; fileSize is only meaningful when found is
// true.
func ReadResponseHeader(r io.Reader) (found bool, fileSize uint64, err error) {
	var status [1]byte
	if _, err := io.ReadFull(r, status[:]); err != nil {
		return false, 0, err
	}

	switch status[0] {
	case StatusNotFound:
		return false, 0, nil
	case StatusFound:
		if err := binary.Read(r, binary.LittleEndian, &fileSize); err != nil {
			return false, 0, err
		}
		return true, fileSize, nil
	default:
		return false, 0, fmt.Errorf("wire: unrecognized response status byte 0x%02x: %w", status[0], ErrLengthMismatch)
	}
}
