package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// requestFixedSize is message_length(4) + name_length(4) + offset(8),
// the portion of a Request preceding the variable-length name.
const requestFixedSize = 4 + 4 + 8

// Request is a resource request record (spec §3, §6): a client asks a
// peer's transfer server for a named resource starting at offset.
type Request struct {
	Offset uint64
	Name   string
}

// EncodeRequest serializes a request including its message_length
// prefix, ready to write to a stream in one call.
func EncodeRequest(req *Request) ([]byte, error) {
	if len(req.Name) > MaxNameLength {
		return nil, fmt.Errorf("wire: resource name %q exceeds %d bytes: %w", req.Name, MaxNameLength, ErrTooLarge)
	}

	total := requestFixedSize + len(req.Name)
	buf := bytes.NewBuffer(make([]byte, 0, total))

	if err := binary.Write(buf, binary.LittleEndian, uint32(total)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(req.Name))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, req.Offset); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString(req.Name); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ReadRequest reads a complete request record from r: first the 4-byte
// message_length, then exactly message_length-4 more bytes, which are
// then parsed as {name_length, offset, name}. A length field that does
// not fit the bytes present returns ErrLengthMismatch or ErrTruncated,
// a name_length over MaxNameLength returns ErrTooLarge, and a stream
// that ends early returns the read error, in every case without side
// effects beyond the bytes already consumed from r (spec §4.5 step
// 3: "closes the connection without response").
func ReadRequest(r io.Reader) (*Request, error) {
	var messageLength uint32
	if err := binary.Read(r, binary.LittleEndian, &messageLength); err != nil {
		return nil, err
	}
	if messageLength < requestFixedSize {
		return nil, fmt.Errorf("wire: message_length %d smaller than fixed request size %d: %w", messageLength, requestFixedSize, ErrLengthMismatch)
	}

	body := make([]byte, messageLength-4)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return decodeRequestBody(body)
}

func decodeRequestBody(body []byte) (*Request, error) {
	const fixedAfterLength = requestFixedSize - 4 // name_length(4) + offset(8)
	if len(body) < fixedAfterLength {
		return nil, fmt.Errorf("wire: request body of %d bytes shorter than %d: %w", len(body), fixedAfterLength, ErrTruncated)
	}

	br := bytes.NewReader(body)

	var nameLength uint32
	if err := binary.Read(br, binary.LittleEndian, &nameLength); err != nil {
		return nil, err
	}
	if nameLength > MaxNameLength {
		return nil, fmt.Errorf("wire: name_length %d exceeds %d: %w", nameLength, MaxNameLength, ErrTooLarge)
	}

	var offset uint64
	if err := binary.Read(br, binary.LittleEndian, &offset); err != nil {
		return nil, err
	}

	if br.Len() != int(nameLength) {
		return nil, fmt.Errorf("wire: name_length %d does not match remaining body of %d bytes: %w", nameLength, br.Len(), ErrLengthMismatch)
	}

	nameBuf := make([]byte, nameLength)
	if _, err := io.ReadFull(br, nameBuf); err != nil {
		return nil, err
	}

	return &Request{Offset: offset, Name: string(nameBuf)}, nil
}
