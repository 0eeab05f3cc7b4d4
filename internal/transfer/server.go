// Package transfer implements the TCP transfer server (C5): it
// accepts stream connections, parses a resource request, and streams
// the requested byte range from a local catalog.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/lanpeer/lanpeer/internal/catalog"
	"github.com/lanpeer/lanpeer/internal/lognode"
	"github.com/lanpeer/lanpeer/internal/wire"
)

// ChunkSize is the recommended streaming chunk size (spec §4.5).
const ChunkSize = 4 * 1024

// DefaultBacklog is the reference accept backlog.
const DefaultBacklog = 10

var ErrFaultInjected = errors.New("transfer: fault injected by drop simulation")

// Config configures a Server.
type Config struct {
	Port int

	// SimulateDrops enables periodic-drop fault injection: after every
	// DropFrequency chunks sent, the connection is half-closed.
	SimulateDrops bool
	DropFrequency int
}

// DefaultDropFrequency matches the C++ reference's
// DEFAULT_DROP_FREQUENCY constant (original_source/ supplement).
const DefaultDropFrequency = 5

// Server is the TCP transfer server (C5).
type Server struct {
	cfg     Config
	catalog *catalog.Index
	log     lognode.Logger

	ln net.Listener
	wg sync.WaitGroup
}

// New builds a Server backed by idx. DropFrequency defaults to
// DefaultDropFrequency when zero and SimulateDrops is set.
func New(cfg Config, idx *catalog.Index, log lognode.Logger) *Server {
	if cfg.SimulateDrops && cfg.DropFrequency <= 0 {
		cfg.DropFrequency = DefaultDropFrequency
	}
	return &Server{cfg: cfg, catalog: idx, log: log}
}

// Run listens and accepts connections until ctx is cancelled, at which
// point the listening socket is closed — which unblocks Accept — and
// Run waits for every in-flight handler to finish before returning.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("transfer: listen: %w", err)
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.log != nil {
				s.log.Error("transfer: accept", err)
			}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// handle implements the per-connection state machine: ReadHeader ->
// ReadBody -> Resolve -> {NotFound | StreamFile} -> Closed.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	req, err := wire.ReadRequest(conn)
	if err != nil {
		if s.log != nil && err != io.EOF {
			s.log.Error("transfer: malformed request, closing without response", err)
		}
		return
	}

	path, found := s.catalog.PathOf(req.Name)
	if !found {
		if err := wire.WriteNotFound(conn); err != nil && s.log != nil {
			s.log.Error("transfer: write not-found response", err)
		}
		return
	}

	if err := s.streamFile(conn, path, req.Offset); err != nil && s.log != nil {
		s.log.Error("transfer: stream file", err)
	}
}

func (s *Server) streamFile(conn net.Conn, path string, offset uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("transfer: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("transfer: stat %s: %w", path, err)
	}
	fileSize := uint64(info.Size())

	if offset > fileSize {
		return fmt.Errorf("transfer: offset %d exceeds file size %d", offset, fileSize)
	}

	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("transfer: seek %s: %w", path, err)
	}

	if err := wire.WriteFoundHeader(conn, fileSize); err != nil {
		return fmt.Errorf("transfer: write found header: %w", err)
	}

	buf := make([]byte, ChunkSize)
	chunks := 0
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if _, err := conn.Write(buf[:n]); err != nil {
				return fmt.Errorf("transfer: send chunk: %w", err)
			}
			chunks++

			if s.cfg.SimulateDrops && chunks%s.cfg.DropFrequency == 0 {
				if tcp, ok := conn.(*net.TCPConn); ok {
					tcp.CloseWrite()
				}
				return ErrFaultInjected
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("transfer: read %s: %w", path, readErr)
		}
	}
}
