// Package download implements the resource downloader (C6): it opens
// a stream connection to a named peer, requests a resource starting at
// an offset, and writes the response to a local file, retrying with
// resume on transient failure.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/lanpeer/lanpeer/internal/lognode"
	"github.com/lanpeer/lanpeer/internal/wire"
)

// DefaultSocketTimeout is the reference send/recv deadline.
const DefaultSocketTimeout = 60 * time.Second

// DefaultMaxRetries is the reference retry budget for data-transfer
// failures.
const DefaultMaxRetries = 5

// ChunkSize is the read buffer size used while streaming a response.
const ChunkSize = 4 * 1024

var (
	// ErrNotFound is returned by a single attempt when the peer replies
	// status = 0; Download does not retry it and reports it as (0, 0, nil).
	ErrNotFound = errors.New("download: resource not found on peer")
)

// ProgressFunc is the only interface-level polymorphism in this
// package (spec §9): it is invoked after every chunk with a monotonic
// byte count, never decreasing across a single Download call.
type ProgressFunc func(received, total int64)

// Config configures a Downloader.
type Config struct {
	DownloadDir   string
	SocketTimeout time.Duration
	MaxRetries    int
}

// Downloader is the resource downloader (C6).
type Downloader struct {
	cfg Config
	log lognode.Logger
}

// New builds a Downloader. SocketTimeout and MaxRetries default to the
// reference values when zero.
func New(cfg Config, log lognode.Logger) *Downloader {
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = DefaultSocketTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}
	return &Downloader{cfg: cfg, log: log}
}

// Download fetches resourceName from peerHost:peerPort starting at
// offset, writing it to cfg.DownloadDir/resourceName. It returns
// (0, 0, nil) when the peer does not have the resource, received ==
// total when the transfer completed, and received < total with a nil
// error when the stream ended early and the retries were used up; a
// caller can then call again with offset = received. Protocol errors
// and context cancellation are returned as errors.
func (d *Downloader) Download(ctx context.Context, peerHost string, peerPort int, offset int64, resourceName string, progress ProgressFunc) (received, total int64, err error) {
	if err := os.MkdirAll(d.cfg.DownloadDir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("download: create download dir: %w", err)
	}

	destPath := filepath.Join(d.cfg.DownloadDir, resourceName)
	received = offset

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		r, t, attemptErr := d.attempt(ctx, peerHost, peerPort, received, resourceName, destPath, progress)
		if attemptErr == nil {
			return r, t, nil
		}
		if errors.Is(attemptErr, ErrNotFound) {
			return 0, 0, nil
		}
		if isProtocolOrNotFound(attemptErr) {
			return r, t, attemptErr
		}

		received = r
		if t > 0 {
			total = t
		}
		if d.log != nil {
			d.log.Error(fmt.Sprintf("download: attempt %d failed, retrying from offset %d", attempt+1, received), attemptErr)
		}

		select {
		case <-ctx.Done():
			return received, total, ctx.Err()
		default:
		}
	}

	// Retries exhausted: the last partial (received, total) is a valid
	// result, not a failure — the caller decides whether to call again
	// with offset = received.
	if d.log != nil {
		d.log.Warn(fmt.Sprintf("download: exhausted %d retries at %d/%d bytes", d.cfg.MaxRetries, received, total))
	}
	return received, total, nil
}

func isProtocolOrNotFound(err error) bool {
	return errors.Is(err, wire.ErrLengthMismatch) || errors.Is(err, wire.ErrTooLarge) || errors.Is(err, wire.ErrTruncated)
}

// attempt performs a single connect-request-stream cycle starting from
// offset, resolving the peer address fresh every call.
func (d *Downloader) attempt(ctx context.Context, peerHost string, peerPort int, offset int64, resourceName, destPath string, progress ProgressFunc) (received, total int64, err error) {
	addr, err := net.ResolveTCPAddr("tcp4", fmt.Sprintf("%s:%d", peerHost, peerPort))
	if err != nil {
		return offset, 0, fmt.Errorf("download: resolve %s:%d: %w", peerHost, peerPort, err)
	}

	dialer := net.Dialer{Timeout: d.cfg.SocketTimeout}
	conn, err := dialer.DialContext(ctx, "tcp4", addr.String())
	if err != nil {
		return offset, 0, fmt.Errorf("download: connect: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(d.cfg.SocketTimeout))

	encoded, err := wire.EncodeRequest(&wire.Request{Offset: uint64(offset), Name: resourceName})
	if err != nil {
		return offset, 0, fmt.Errorf("download: encode request: %w", err)
	}
	if _, err := conn.Write(encoded); err != nil {
		return offset, 0, fmt.Errorf("download: send request: %w", err)
	}

	found, fileSize, err := wire.ReadResponseHeader(conn)
	if err != nil {
		return offset, 0, fmt.Errorf("download: read response header: %w", err)
	}
	if !found {
		return 0, 0, ErrNotFound
	}
	total = int64(fileSize)

	f, err := openDestination(destPath, offset)
	if err != nil {
		return offset, total, fmt.Errorf("download: open %s: %w", destPath, err)
	}
	defer f.Close()

	received, err = d.stream(conn, f, offset, total, progress)
	return received, total, err
}

func openDestination(path string, offset int64) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// stream reads exactly total-offset bytes from conn and writes them to
// f, reporting monotonic progress after each chunk.
func (d *Downloader) stream(conn net.Conn, f *os.File, offset, total int64, progress ProgressFunc) (received int64, err error) {
	remaining := total - offset
	received = offset

	buf := make([]byte, ChunkSize)
	for remaining > 0 {
		toRead := int64(len(buf))
		if remaining < toRead {
			toRead = remaining
		}

		n, readErr := conn.Read(buf[:toRead])
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return received, fmt.Errorf("download: write to file: %w", writeErr)
			}
			received += int64(n)
			remaining -= int64(n)

			if progress != nil {
				progress(received, total)
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				if remaining > 0 {
					return received, fmt.Errorf("download: connection closed with %d bytes remaining", remaining)
				}
				return received, nil
			}
			return received, fmt.Errorf("download: read response body: %w", readErr)
		}
	}

	return received, nil
}
