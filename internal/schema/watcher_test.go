package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSync struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (c *countingSync) Synchronize(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("template is being written")
	}
	return &Report{}, nil
}

func (c *countingSync) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func fastConfig() WatcherConfig {
	return WatcherConfig{Debounce: 20 * time.Millisecond, Attempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestResync_RetriesUntilSuccess(t *testing.T) {
	target := &countingSync{failures: 2}
	w := NewWatcher("template.xlsx", target, fastConfig())

	require.NoError(t, w.resync(context.Background()))
	assert.Equal(t, 3, target.count())
}

func TestResync_GivesUpAfterAttempts(t *testing.T) {
	target := &countingSync{failures: 10}
	w := NewWatcher("template.xlsx", target, fastConfig())

	err := w.resync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template is being written")
	assert.Equal(t, 3, target.count())
}

func TestWatcher_ResyncsOnTemplateWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "template.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	target := &countingSync{}
	synced := make(chan error, 4)
	w := NewWatcher(path, target, fastConfig())
	w.synced = synced

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))

	select {
	case err := <-synced:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not resync after template write")
	}
	assert.Equal(t, 1, target.count())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
