package transfer

import (
	"context"
	"crypto/rand"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/lanpeer/lanpeer/internal/catalog"
	"github.com/lanpeer/lanpeer/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", ":0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func startServer(t *testing.T, cfg Config, idx *catalog.Index) {
	t.Helper()
	s := New(cfg, idx, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	addr := "127.0.0.1:" + strconv.Itoa(port)

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp4", addr, 200*time.Millisecond)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			require.NoError(t, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestServerWritesExactByteCount exercises spec §8's invariant: for a
// request with offset <= file_size, the server writes exactly
// 1 + 8 + (file_size - offset) bytes before closing.
func TestServerWritesExactByteCount(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 133*1024)
	_, err := rand.Read(content)
	require.NoError(t, err)
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	idx := catalog.New()
	_, err = idx.Add("f", path)
	require.NoError(t, err)

	port := freeTCPPort(t)
	startServer(t, Config{Port: port}, idx)

	conn := dial(t, port)
	defer conn.Close()

	encoded, err := wire.EncodeRequest(&wire.Request{Offset: 0, Name: "f"})
	require.NoError(t, err)
	_, err = conn.Write(encoded)
	require.NoError(t, err)

	body, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, 1+8+len(content), len(body))
	assert.Equal(t, byte(wire.StatusFound), body[0])
}

func TestServerRespondsNotFound(t *testing.T) {
	idx := catalog.New()
	port := freeTCPPort(t)
	startServer(t, Config{Port: port}, idx)

	conn := dial(t, port)
	defer conn.Close()

	encoded, err := wire.EncodeRequest(&wire.Request{Offset: 0, Name: "absent"})
	require.NoError(t, err)
	_, err = conn.Write(encoded)
	require.NoError(t, err)

	body, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, []byte{wire.StatusNotFound}, body)
}

func TestServerHonorsOffset(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 20*1024)
	_, err := rand.Read(content)
	require.NoError(t, err)
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	idx := catalog.New()
	_, err = idx.Add("f", path)
	require.NoError(t, err)

	port := freeTCPPort(t)
	startServer(t, Config{Port: port}, idx)

	conn := dial(t, port)
	defer conn.Close()

	offset := uint64(10 * 1024)
	encoded, err := wire.EncodeRequest(&wire.Request{Offset: offset, Name: "f"})
	require.NoError(t, err)
	_, err = conn.Write(encoded)
	require.NoError(t, err)

	found, fileSize, err := wire.ReadResponseHeader(conn)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(len(content)), fileSize)

	payload, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, content[offset:], payload)
}

func TestServerDropSimulationHalfClosesPeriodically(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, ChunkSize*12)
	_, err := rand.Read(content)
	require.NoError(t, err)
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	idx := catalog.New()
	_, err = idx.Add("f", path)
	require.NoError(t, err)

	port := freeTCPPort(t)
	startServer(t, Config{Port: port, SimulateDrops: true, DropFrequency: 5}, idx)

	conn := dial(t, port)
	defer conn.Close()

	encoded, err := wire.EncodeRequest(&wire.Request{Offset: 0, Name: "f"})
	require.NoError(t, err)
	_, err = conn.Write(encoded)
	require.NoError(t, err)

	found, fileSize, err := wire.ReadResponseHeader(conn)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(len(content)), fileSize)

	body, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Less(t, len(body), len(content), "drop simulation must end the stream before the full file is sent")
	assert.Equal(t, 5*ChunkSize, len(body))
}
