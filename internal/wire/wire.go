// Package wire implements the binary framing used on both the UDP
// announcement socket and the TCP transfer socket. Every multi-byte
// integer is little-endian; this file is the single place that decision
// is made.
package wire

import "errors"

// byteOrderName names the byte order used by every encoder and decoder
// in this package; each of them passes binary.LittleEndian.
const byteOrderName = "little-endian"

var (
	// ErrTruncated is returned when a buffer is shorter than a field it
	// is being decoded into requires.
	ErrTruncated = errors.New("wire: truncated buffer")
	// ErrLengthMismatch is returned when a declared length field does not
	// match the number of bytes actually present or actually read.
	ErrLengthMismatch = errors.New("wire: length field does not match data")
	// ErrTooLarge is returned when a declared length exceeds a sanity
	// bound for untrusted input.
	ErrTooLarge = errors.New("wire: declared length exceeds limit")
)

// MaxDatagramSize is the largest UDP payload this package will ever
// attempt to decode; it matches the practical ceiling for a UDP datagram
// over IPv4 (65535 minus IP/UDP headers).
const MaxDatagramSize = 65507

// MaxNameLength bounds the resource-name field on both the announcement
// and request wire records, per the resource descriptor's own limit.
const MaxNameLength = 256

// MaxResourceCount bounds resource_count in an announcement so a hostile
// or corrupt datagram cannot force an enormous allocation.
const MaxResourceCount = 10000
