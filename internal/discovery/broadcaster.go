package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/lanpeer/lanpeer/internal/catalog"
	"github.com/lanpeer/lanpeer/internal/lognode"
	"github.com/lanpeer/lanpeer/internal/wire"
)

// DefaultBroadcastInterval is the reference period between
// announcements.
const DefaultBroadcastInterval = 2 * time.Second

// limitedBroadcastIP is the IPv4 limited broadcast address, reachable
// by every host on the local LAN segment regardless of its own
// subnet configuration.
const limitedBroadcastIP = "255.255.255.255"

// BroadcasterConfig configures a Broadcaster.
type BroadcasterConfig struct {
	NodeID        uint32
	SenderPort    int // local port the broadcaster binds to
	BroadcastPort int // destination port on the LAN
	Interval      time.Duration
}

// Broadcaster is the announcement broadcaster (C3): every Interval it
// serializes catalog's current snapshot and sends it as one UDP
// datagram to the LAN limited broadcast address.
type Broadcaster struct {
	cfg     BroadcasterConfig
	catalog *catalog.Index
	log     lognode.Logger

	conn *net.UDPConn
	dest *net.UDPAddr
}

// NewBroadcaster builds a Broadcaster for the given catalog. Interval
// defaults to DefaultBroadcastInterval when zero.
func NewBroadcaster(cfg BroadcasterConfig, idx *catalog.Index, log lognode.Logger) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultBroadcastInterval
	}
	return &Broadcaster{cfg: cfg, catalog: idx, log: log}
}

// Run opens the broadcaster's socket and sends announcements until ctx
// is cancelled. A send failure is logged; the loop continues at the
// next tick.
func (b *Broadcaster) Run(ctx context.Context) error {
	localAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf(":%d", b.cfg.SenderPort))
	if err != nil {
		return fmt.Errorf("discovery: resolve local broadcaster address: %w", err)
	}

	conn, err := net.ListenUDP("udp4", localAddr)
	if err != nil {
		return fmt.Errorf("discovery: bind broadcaster socket: %w", err)
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		return fmt.Errorf("discovery: enable SO_BROADCAST: %w", err)
	}

	dest, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", limitedBroadcastIP, b.cfg.BroadcastPort))
	if err != nil {
		return fmt.Errorf("discovery: resolve broadcast destination: %w", err)
	}

	b.conn = conn
	b.dest = dest

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	b.tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.tick()
		}
	}
}

func (b *Broadcaster) tick() {
	entries := b.catalog.Snapshot()
	if len(entries) == 0 {
		return
	}

	resources := make([]wire.AnnouncedResource, len(entries))
	for i, e := range entries {
		resources[i] = wire.AnnouncedResource{Name: e.Name, Size: uint32(e.Descriptor.Size)}
	}

	datagram, err := wire.EncodeAnnouncement(&wire.Announcement{
		TimestampNS: uint64(time.Now().UnixNano()),
		SenderID:    b.cfg.NodeID,
		Resources:   resources,
	})
	if err != nil {
		if b.log != nil {
			b.log.Error("discovery: encode announcement", err)
		}
		return
	}

	if _, err := b.conn.WriteToUDP(datagram, b.dest); err != nil {
		if b.log != nil {
			b.log.Error("discovery: send announcement", err)
		}
	}
}

func enableBroadcast(conn *net.UDPConn) error {
	file, err := conn.File()
	if err != nil {
		return err
	}
	defer file.Close()
	return setBroadcast(file.Fd())
}
