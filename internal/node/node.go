// Package node wires the seven components together into one running
// peer process. It owns both indexes and the cancellation handle every
// component is constructed with, replacing the mutable global stop
// flag of the reference implementation with an explicit value passed
// down from the outermost caller.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/lanpeer/lanpeer/internal/catalog"
	"github.com/lanpeer/lanpeer/internal/discovery"
	"github.com/lanpeer/lanpeer/internal/download"
	"github.com/lanpeer/lanpeer/internal/lognode"
	"github.com/lanpeer/lanpeer/internal/peerindex"
	"github.com/lanpeer/lanpeer/internal/transfer"
)

// Config describes one peer process: its identity, its three ports,
// and the fault-injection and timing knobs the reference exposes.
type Config struct {
	NodeID        uint32
	UDPPort       int // local port the broadcaster sends from
	BroadcastPort int // port announcements are sent to and received on
	TCPPort       int

	SimulateDrops bool
	DropFrequency int

	BroadcastInterval time.Duration
	ReceiveTimeout    time.Duration
	ReaperPeriod      time.Duration
	PeerTTL           time.Duration
	DownloadDir       string
	SocketTimeout     time.Duration
	MaxRetries        int

	LogPath   string
	LogStdout bool
}

// Node owns the catalog, the peer index, and every long-running
// component built on top of them.
type Node struct {
	cfg Config
	log lognode.Logger

	Catalog    *catalog.Index
	Peers      *peerindex.Index
	Downloader *download.Downloader

	broadcaster *discovery.Broadcaster
	receiver    *discovery.Receiver
	reaper      *peerindex.Reaper
	transfer    *transfer.Server
}

// New builds a Node and every component it owns, but starts nothing.
func New(cfg Config) *Node {
	log := lognode.New(lognode.Config{Path: cfg.LogPath, Stdout: cfg.LogStdout}, cfg.NodeID)

	c := catalog.New()
	p := peerindex.New()

	n := &Node{
		cfg:     cfg,
		log:     log,
		Catalog: c,
		Peers:   p,
	}

	n.broadcaster = discovery.NewBroadcaster(discovery.BroadcasterConfig{
		NodeID:        cfg.NodeID,
		SenderPort:    cfg.UDPPort,
		BroadcastPort: cfg.BroadcastPort,
		Interval:      cfg.BroadcastInterval,
	}, c, log.With("component", "broadcaster"))

	n.receiver = discovery.NewReceiver(discovery.ReceiverConfig{
		NodeID:         cfg.NodeID,
		BroadcastPort:  cfg.BroadcastPort,
		ReceiveTimeout: cfg.ReceiveTimeout,
	}, p, log.With("component", "receiver"))

	n.reaper = peerindex.NewReaper(p, cfg.ReaperPeriod, cfg.PeerTTL, log.With("component", "reaper"))

	n.transfer = transfer.New(transfer.Config{
		Port:          cfg.TCPPort,
		SimulateDrops: cfg.SimulateDrops,
		DropFrequency: cfg.DropFrequency,
	}, c, log.With("component", "transfer"))

	n.Downloader = download.New(download.Config{
		DownloadDir:   cfg.DownloadDir,
		SocketTimeout: cfg.SocketTimeout,
		MaxRetries:    cfg.MaxRetries,
	}, log.With("component", "downloader"))

	return n
}

// Logger exposes the node's logger so the CLI layer can log through
// the same sink.
func (n *Node) Logger() lognode.Logger { return n.log }

// Run starts C3, C4, C5 and C7 as goroutines and blocks until ctx is
// cancelled, at which point it waits for every component to return
// before returning itself.
func (n *Node) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := n.broadcaster.Run(ctx); err != nil {
			n.log.Error("broadcaster exited", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := n.receiver.Run(ctx); err != nil {
			n.log.Error("receiver exited", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		n.reaper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := n.transfer.Run(ctx); err != nil {
			n.log.Error("transfer server exited", err)
		}
	}()

	<-ctx.Done()
	wg.Wait()
	return nil
}
