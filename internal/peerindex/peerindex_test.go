package peerindex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndHas(t *testing.T) {
	idx := New()
	addr := Addr{IP: "10.0.0.5", Port: 9000}

	idx.Upsert(addr, []Resource{{Name: "test", Size: 12}}, 123456789)

	assert.True(t, idx.Has(addr, "test"))
	assert.False(t, idx.Has(addr, "missing"))

	v, ok := idx.View(addr)
	require.True(t, ok)
	assert.Equal(t, uint64(123456789), v.SenderTimestamp)
	assert.WithinDuration(t, time.Now(), v.LastAnnouncement, time.Second,
		"LastAnnouncement must be the receiver's clock, not the sender's")
}

func TestUpsertReplacesAtomically(t *testing.T) {
	idx := New()
	addr := Addr{IP: "10.0.0.5", Port: 9000}

	idx.Upsert(addr, []Resource{{Name: "a", Size: 1}}, 0)
	idx.Upsert(addr, []Resource{{Name: "b", Size: 2}}, 0)

	assert.False(t, idx.Has(addr, "a"))
	assert.True(t, idx.Has(addr, "b"))
}

func TestFindNodesWithOrdering(t *testing.T) {
	idx := New()
	addrHi := Addr{IP: "10.0.0.9", Port: 1}
	addrLo := Addr{IP: "10.0.0.1", Port: 1}

	idx.Upsert(addrHi, []Resource{{Name: "shared", Size: 1}}, 0)
	idx.Upsert(addrLo, []Resource{{Name: "shared", Size: 1}}, 0)

	found := idx.FindNodesWith("shared")
	require.Len(t, found, 2)
	assert.Equal(t, addrLo, found[0])
	assert.Equal(t, addrHi, found[1])
}

func TestAllFlattensInAddressOrder(t *testing.T) {
	idx := New()
	idx.Upsert(Addr{IP: "10.0.0.2", Port: 1}, []Resource{{Name: "x", Size: 1}}, 0)
	idx.Upsert(Addr{IP: "10.0.0.1", Port: 1}, []Resource{{Name: "y", Size: 2}}, 0)

	all := idx.All()
	require.Len(t, all, 2)
	assert.Equal(t, "10.0.0.1", all[0].Addr.IP)
	assert.Equal(t, "10.0.0.2", all[1].Addr.IP)
}

func TestCleanupEvictsByTTL(t *testing.T) {
	idx := New()
	addr := Addr{IP: "10.0.0.5", Port: 9000}
	idx.Upsert(addr, []Resource{{Name: "test", Size: 1}}, 0)

	now := time.Now()
	idx.Cleanup(now, time.Hour)
	assert.Equal(t, 1, idx.Len(), "well within TTL, peer must survive")

	idx.Cleanup(now.Add(time.Hour), time.Minute)
	assert.Equal(t, 0, idx.Len(), "past TTL, peer must be evicted")
}

func TestCleanupIgnoresSenderTimestamp(t *testing.T) {
	idx := New()
	addr := Addr{IP: "10.0.0.5", Port: 9000}

	// A sender claiming a far-future timestamp must not be able to
	// evade eviction: LastAnnouncement comes from the receiver's clock.
	farFuture := uint64(time.Now().Add(365 * 24 * time.Hour).UnixNano())
	idx.Upsert(addr, []Resource{{Name: "test", Size: 1}}, farFuture)

	idx.Cleanup(time.Now().Add(time.Hour), time.Minute)
	assert.Equal(t, 0, idx.Len())
}

func TestConcurrentUpsertAndRead(t *testing.T) {
	idx := New()
	addr := Addr{IP: "10.0.0.5", Port: 9000}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			idx.Upsert(addr, []Resource{{Name: "test", Size: 1}}, 0)
		}()
		go func() {
			defer wg.Done()
			idx.Has(addr, "test")
		}()
		go func() {
			defer wg.Done()
			idx.All()
		}()
	}
	wg.Wait()
}
