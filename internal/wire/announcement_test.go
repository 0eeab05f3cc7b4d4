package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncementRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Announcement
	}{
		{
			name: "empty resources",
			in:   &Announcement{TimestampNS: 1000, SenderID: 7, Resources: nil},
		},
		{
			name: "one resource",
			in: &Announcement{
				TimestampNS: 123456789,
				SenderID:    42,
				Resources:   []AnnouncedResource{{Name: "test", Size: 12}},
			},
		},
		{
			name: "several resources, order preserved",
			in: &Announcement{
				TimestampNS: 1,
				SenderID:    1,
				Resources: []AnnouncedResource{
					{Name: "a.txt", Size: 1},
					{Name: "b.bin", Size: 2},
					{Name: "c.iso", Size: 3},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeAnnouncement(tt.in)
			require.NoError(t, err)

			decoded, err := DecodeAnnouncement(encoded)
			require.NoError(t, err)

			assert.Equal(t, tt.in.TimestampNS, decoded.TimestampNS)
			assert.Equal(t, tt.in.SenderID, decoded.SenderID)
			assert.Equal(t, len(tt.in.Resources), len(decoded.Resources))
			for i := range tt.in.Resources {
				assert.Equal(t, tt.in.Resources[i], decoded.Resources[i])
			}
		})
	}
}

func TestDecodeAnnouncementRejectsLengthMismatch(t *testing.T) {
	a := &Announcement{SenderID: 1, Resources: []AnnouncedResource{{Name: "x", Size: 1}}}
	encoded, err := EncodeAnnouncement(a)
	require.NoError(t, err)

	truncated := encoded[:len(encoded)-1]
	_, err = DecodeAnnouncement(truncated)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestDecodeAnnouncementRejectsShortHeader(t *testing.T) {
	_, err := DecodeAnnouncement([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeAnnouncementRejectsBoundsViolationInResourceList(t *testing.T) {
	a := &Announcement{SenderID: 1, Resources: []AnnouncedResource{{Name: "name", Size: 1}}}
	encoded, err := EncodeAnnouncement(a)
	require.NoError(t, err)

	// Corrupt resource_count to claim two resources when only one is
	// present, but keep datagram_length accurate so the header check
	// alone doesn't catch it — the per-resource bounds check must.
	corrupted := append([]byte{}, encoded...)
	corrupted[16] = 2

	_, err = DecodeAnnouncement(corrupted)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEncodeAnnouncementRejectsOversizedName(t *testing.T) {
	a := &Announcement{
		SenderID:  1,
		Resources: []AnnouncedResource{{Name: strings.Repeat("x", MaxNameLength+1), Size: 1}},
	}
	_, err := EncodeAnnouncement(a)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestEncodeAnnouncementRejectsTooManyResources(t *testing.T) {
	resources := make([]AnnouncedResource, MaxResourceCount+1)
	for i := range resources {
		resources[i] = AnnouncedResource{Name: "r", Size: 1}
	}
	a := &Announcement{SenderID: 1, Resources: resources}
	_, err := EncodeAnnouncement(a)
	assert.ErrorIs(t, err, ErrTooLarge)
}
