package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// announcementHeaderSize is the size in bytes of the fixed portion of an
// announcement datagram: datagram_length(4) + timestamp(8) +
// sender_id(4) + resource_count(4).
const announcementHeaderSize = 4 + 8 + 4 + 4

// AnnouncedResource is one {name, size} pair inside an announcement, as
// decoded from the wire or as built for encoding.
type AnnouncedResource struct {
	Name string
	Size uint32
}

// Announcement is the decoded form of a UDP announcement datagram (spec
// §3, §6). TimestampNS is the sender's wall-clock nanosecond timestamp;
// callers MUST NOT use it to drive eviction, only for logging (spec §9).
type Announcement struct {
	TimestampNS uint64
	SenderID    uint32
	Resources   []AnnouncedResource
}

// EncodeAnnouncement serializes an announcement to its wire form. It
// returns ErrTooLarge if the resource list or any resource name exceeds
// this package's bounds, so a caller can never produce a datagram its own
// peers would reject.
func EncodeAnnouncement(a *Announcement) ([]byte, error) {
	if len(a.Resources) > MaxResourceCount {
		return nil, fmt.Errorf("wire: %d resources exceeds limit of %d: %w", len(a.Resources), MaxResourceCount, ErrTooLarge)
	}

	total := announcementHeaderSize
	for _, r := range a.Resources {
		if len(r.Name) > MaxNameLength {
			return nil, fmt.Errorf("wire: resource name %q exceeds %d bytes: %w", r.Name, MaxNameLength, ErrTooLarge)
		}
		total += 4 + len(r.Name) + 4
	}
	if total > MaxDatagramSize {
		return nil, fmt.Errorf("wire: announcement of %d bytes exceeds datagram limit of %d: %w", total, MaxDatagramSize, ErrTooLarge)
	}

	buf := bytes.NewBuffer(make([]byte, 0, total))

	if err := binary.Write(buf, binary.LittleEndian, uint32(total)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, a.TimestampNS); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, a.SenderID); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(a.Resources))); err != nil {
		return nil, err
	}

	for _, r := range a.Resources {
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(r.Name))); err != nil {
			return nil, err
		}
		if _, err := buf.WriteString(r.Name); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, r.Size); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// DecodeAnnouncement parses a received datagram into an Announcement.
// Every read is bounds-checked against the remaining buffer; on any
// violation the datagram is rejected whole (spec §3, §4.4) and the
// returned error wraps ErrTruncated, ErrLengthMismatch or ErrTooLarge — the caller
// must not partially apply the result, and indeed there is no partial
// result: a non-nil error always comes with a nil *Announcement.
func DecodeAnnouncement(data []byte) (*Announcement, error) {
	if len(data) < announcementHeaderSize {
		return nil, fmt.Errorf("wire: datagram of %d bytes shorter than header (%d): %w", len(data), announcementHeaderSize, ErrTruncated)
	}

	r := bytes.NewReader(data)

	var declaredLength uint32
	if err := binary.Read(r, binary.LittleEndian, &declaredLength); err != nil {
		return nil, err
	}
	if int(declaredLength) != len(data) {
		return nil, fmt.Errorf("wire: declared length %d does not match received length %d: %w", declaredLength, len(data), ErrLengthMismatch)
	}

	a := &Announcement{}
	if err := binary.Read(r, binary.LittleEndian, &a.TimestampNS); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &a.SenderID); err != nil {
		return nil, err
	}

	var resourceCount uint32
	if err := binary.Read(r, binary.LittleEndian, &resourceCount); err != nil {
		return nil, err
	}
	if resourceCount > MaxResourceCount {
		return nil, fmt.Errorf("wire: resource_count %d exceeds limit of %d: %w", resourceCount, MaxResourceCount, ErrTooLarge)
	}

	resources := make([]AnnouncedResource, 0, resourceCount)
	for i := uint32(0); i < resourceCount; i++ {
		var nameLength uint32
		if err := binary.Read(r, binary.LittleEndian, &nameLength); err != nil {
			return nil, fmt.Errorf("wire: resource %d: truncated before name_length: %w", i, ErrTruncated)
		}
		if nameLength > MaxNameLength {
			return nil, fmt.Errorf("wire: resource %d: name_length %d exceeds %d: %w", i, nameLength, MaxNameLength, ErrTooLarge)
		}
		if r.Len() < int(nameLength)+4 {
			return nil, fmt.Errorf("wire: resource %d: truncated before name+size: %w", i, ErrTruncated)
		}

		nameBuf := make([]byte, nameLength)
		if _, err := r.Read(nameBuf); err != nil {
			return nil, fmt.Errorf("wire: resource %d: %w", i, err)
		}

		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("wire: resource %d: truncated before resource_size: %w", i, ErrTruncated)
		}

		resources = append(resources, AnnouncedResource{Name: string(nameBuf), Size: size})
	}

	a.Resources = resources
	return a, nil
}
