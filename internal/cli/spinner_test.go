package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerStop(t *testing.T) {
	var buf syncBuffer
	s := newSpinner(context.Background(), &buf, "Resolving demo")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()
	s.Stop()

	if !bytes.Contains([]byte(buf.String()), []byte("Resolving demo")) {
		t.Error("spinner never drew its message")
	}
	if s.Cancelled() {
		t.Error("Stop() should not count as cancellation")
	}
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := newSpinner(context.Background(), &syncBuffer{}, "idle")
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() without Start() blocked")
	}
}

func TestSpinnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinner(ctx, &syncBuffer{}, "Downloading")
	s.Start()
	cancel()
	s.Stop()

	if !s.Cancelled() {
		t.Error("spinner should report cancellation of its parent context")
	}
}
