package wire

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{name: "zero offset", req: &Request{Offset: 0, Name: "file.txt"}},
		{name: "nonzero offset", req: &Request{Offset: 4096, Name: "big.iso"}},
		{name: "empty name", req: &Request{Offset: 0, Name: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeRequest(tt.req)
			require.NoError(t, err)

			decoded, err := ReadRequest(bytes.NewReader(encoded))
			require.NoError(t, err)

			assert.Equal(t, tt.req.Offset, decoded.Offset)
			assert.Equal(t, tt.req.Name, decoded.Name)
		})
	}
}

func TestReadRequestRejectsShortMessageLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(4)) // smaller than fixed size
	_, err := ReadRequest(&buf)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestReadRequestRejectsNameLengthMismatch(t *testing.T) {
	req := &Request{Offset: 0, Name: "name"}
	encoded, err := EncodeRequest(req)
	require.NoError(t, err)

	// Claim a longer name than actually present.
	corrupted := append([]byte{}, encoded...)
	binary.LittleEndian.PutUint32(corrupted[4:8], 100)

	_, err = ReadRequest(bytes.NewReader(corrupted))
	assert.Error(t, err)
}

func TestEncodeRequestRejectsOversizedName(t *testing.T) {
	req := &Request{Name: strings.Repeat("x", MaxNameLength+1)}
	_, err := EncodeRequest(req)
	assert.ErrorIs(t, err, ErrTooLarge)
}
