package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lanpeer/lanpeer/internal/lognode"
	"github.com/lanpeer/lanpeer/internal/peerindex"
	"github.com/lanpeer/lanpeer/internal/wire"
)

// DefaultReceiveTimeout is the reference per-read deadline; a timeout
// is not an error, it simply gives the run loop a chance to observe
// ctx cancellation.
const DefaultReceiveTimeout = 1000 * time.Millisecond

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	NodeID         uint32
	BroadcastPort  int
	ReceiveTimeout time.Duration
}

// Receiver is the announcement receiver (C4): it listens on the
// broadcast port, validates incoming datagrams, suppresses this
// node's own announcements, and upserts the rest into a peerindex.
type Receiver struct {
	cfg   ReceiverConfig
	peers *peerindex.Index
	log   lognode.Logger
}

// NewReceiver builds a Receiver. ReceiveTimeout defaults to
// DefaultReceiveTimeout when zero.
func NewReceiver(cfg ReceiverConfig, peers *peerindex.Index, log lognode.Logger) *Receiver {
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	return &Receiver{cfg: cfg, peers: peers, log: log}
}

// Run opens the receiver's socket and processes datagrams until ctx is
// cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf(":%d", r.cfg.BroadcastPort))
	if err != nil {
		return fmt.Errorf("discovery: resolve receiver address: %w", err)
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("discovery: bind receiver socket: %w", err)
	}
	defer conn.Close()

	buf := make([]byte, wire.MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(r.cfg.ReceiveTimeout))

		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if r.log != nil {
				r.log.Error("discovery: read announcement", err)
			}
			continue
		}

		r.handle(buf[:n], src)
	}
}

func (r *Receiver) handle(data []byte, src *net.UDPAddr) {
	a, err := wire.DecodeAnnouncement(data)
	if err != nil {
		if r.log != nil {
			r.log.Error("discovery: malformed announcement dropped", err)
		}
		return
	}

	if a.SenderID == r.cfg.NodeID {
		return // self-echo
	}

	resources := make([]peerindex.Resource, len(a.Resources))
	for i, res := range a.Resources {
		resources[i] = peerindex.Resource{Name: res.Name, Size: res.Size}
	}

	r.peers.Upsert(peerindex.AddrOf(src), resources, a.TimestampNS)
}
