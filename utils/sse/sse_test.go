package sse

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	err := Send(w, Event{Event: "progress", ID: "1", Data: map[string]int{"step": 1}})
	require.NoError(t, err)
	assert.Equal(t, "id: 1\nevent: progress\ndata: {\"step\":1}\n\n", buf.String())
}

func TestSend_MultilineString(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, Send(w, Event{Data: "a\nb"}))
	assert.Equal(t, "data: a\ndata: b\n\n", buf.String())
}

func TestSendError(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, SendError(w, "failed"))
	assert.Equal(t, "event: error\ndata: {\"error\":{\"message\":\"failed\"},\"type\":\"error\"}\n\n", buf.String())
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSend_FlushErrorSurfaces(t *testing.T) {
	w := bufio.NewWriter(brokenWriter{})
	assert.Error(t, SendKeepAlive(w))
	assert.Error(t, SendJSON(bufio.NewWriter(brokenWriter{}), "progress", map[string]int{"step": 2}))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStream_KeepAliveStopsWithContext(t *testing.T) {
	out := &lockedBuffer{}
	stream := NewStream(bufio.NewWriter(out))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		stream.KeepAlive(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), ": ping\n\n")
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, stream.JSON("result", map[string]string{"type": "result"}))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keep-alive did not stop")
	}
	assert.Contains(t, out.String(), "event: result\n")
}
