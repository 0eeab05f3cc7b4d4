// Package peerindex implements the remote resource index (C2) and its
// staleness reaper (C7): the thread-safe view this peer keeps of every
// other peer currently visible on the LAN.
package peerindex

import (
	"net"
	"sort"
	"sync"
	"time"
)

// DefaultTTL is the reference staleness window: a peer view older than
// this is eligible for eviction by Cleanup.
const DefaultTTL = 10 * time.Second

// Resource is one {name, size} pair as advertised by a peer.
type Resource struct {
	Name string
	Size uint32
}

// Addr identifies a peer by the (IPv4, port) pair its announcements
// arrive from. It is comparable and orders lexicographically by IP
// then port, matching the index's key ordering.
type Addr struct {
	IP   string
	Port int
}

// Less orders two addresses lexicographically, IP high-order and port
// low-order, per the index's ordering invariant.
func (a Addr) Less(b Addr) bool {
	if a.IP != b.IP {
		return a.IP < b.IP
	}
	return a.Port < b.Port
}

// AddrOf builds an Addr from a UDP source address.
func AddrOf(udp *net.UDPAddr) Addr {
	return Addr{IP: udp.IP.String(), Port: udp.Port}
}

// View is the most recent snapshot of one peer's catalog as seen by
// this peer.
type View struct {
	Addr             Addr
	Resources        []Resource
	LastAnnouncement time.Time
	SenderTimestamp  uint64
}

// Index is the remote resource index. Its lock is independent of
// catalog.Index's; no code path in this module holds both at once.
type Index struct {
	mu    sync.RWMutex
	peers map[Addr]View
}

// New returns an empty Index.
func New() *Index {
	return &Index{peers: make(map[Addr]View)}
}

// Upsert replaces the peer view for addr atomically. senderTimestampNS
// is recorded for diagnostics only; LastAnnouncement is stamped with
// the receiver's own monotonic clock so a peer cannot evade eviction by
// advertising a timestamp in the future.
func (idx *Index) Upsert(addr Addr, resources []Resource, senderTimestampNS uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.peers[addr] = View{
		Addr:             addr,
		Resources:        resources,
		LastAnnouncement: time.Now(),
		SenderTimestamp:  senderTimestampNS,
	}
}

// Has reports whether addr's current view advertises a resource named
// name.
func (idx *Index) Has(addr Addr, name string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	v, ok := idx.peers[addr]
	if !ok {
		return false
	}
	for _, r := range v.Resources {
		if r.Name == name {
			return true
		}
	}
	return false
}

// FindNodesWith returns, in address key order, every peer currently
// advertising a resource named name.
func (idx *Index) FindNodesWith(name string) []Addr {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Addr
	for addr, v := range idx.peers {
		for _, r := range v.Resources {
			if r.Name == name {
				out = append(out, addr)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Flattened is one (peer, resource) pair as returned by All.
type Flattened struct {
	Addr     Addr
	Resource Resource
}

// All flattens the index into (address, resource) pairs in address key
// order, for UI consumption.
func (idx *Index) All() []Flattened {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	addrs := make([]Addr, 0, len(idx.peers))
	for addr := range idx.peers {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })

	var out []Flattened
	for _, addr := range addrs {
		for _, r := range idx.peers[addr].Resources {
			out = append(out, Flattened{Addr: addr, Resource: r})
		}
	}
	return out
}

// View returns the current view for addr, if any.
func (idx *Index) View(addr Addr) (View, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.peers[addr]
	return v, ok
}

// Cleanup removes every peer whose last announcement is at least ttl
// old as of now.
func (idx *Index) Cleanup(now time.Time, ttl time.Duration) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for addr, v := range idx.peers {
		if now.Sub(v.LastAnnouncement) >= ttl {
			delete(idx.peers, addr)
		}
	}
}

// Len reports the current number of tracked peers.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.peers)
}
