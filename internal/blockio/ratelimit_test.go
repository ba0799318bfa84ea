package blockio

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBWLimiter(t *testing.T) {
	t.Parallel()

	t.Run("burst capped to rate when rate < 1MB", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(1024)
		assert.Equal(t, 1024, lim.Burst())
	})

	t.Run("burst is 1MB when rate >= 1MB", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(10 * 1024 * 1024)
		assert.Equal(t, 1<<20, lim.Burst())
	})
}

func TestRateLimitedReader(t *testing.T) {
	t.Parallel()

	t.Run("nil limiter passes reader through", func(t *testing.T) {
		t.Parallel()
		src := bytes.NewReader([]byte("abc"))
		assert.Same(t, src, NewRateLimitedReader(context.Background(), src, nil))
	})

	t.Run("reads all data", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("x"), 4096)
		lim := NewBWLimiter(1 << 20) // 1 MB/s
		rl := NewRateLimitedReader(context.Background(), bytes.NewReader(data), lim)

		got, err := io.ReadAll(rl)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("reads larger than the burst", func(t *testing.T) {
		t.Parallel()
		// 8 KB blocks against a 2 KB burst: WaitN must be split.
		data := bytes.Repeat([]byte("y"), 4*8192)
		lim := NewBWLimiter(1 << 20)
		lim.SetBurst(2048)
		rl := NewRateLimitedReader(context.Background(), bytes.NewReader(data), lim)

		s := NewScanner(rl, 8192)
		var n int
		for s.Scan() {
			n++
		}
		require.NoError(t, s.Err())
		assert.Equal(t, 4, n)
	})

	t.Run("throttles to the configured rate", func(t *testing.T) {
		t.Parallel()
		// 4 KB burst is free, the remaining 8 KB costs ~1s at 8 KB/s.
		lim := NewBWLimiter(8 << 10)
		lim.SetBurst(4 << 10)
		rl := NewRateLimitedReader(context.Background(), bytes.NewReader(make([]byte, 12<<10)), lim)

		start := time.Now()
		n, err := io.Copy(io.Discard, rl)
		require.NoError(t, err)
		assert.EqualValues(t, 12<<10, n)
		assert.GreaterOrEqual(t, time.Since(start), 700*time.Millisecond)
	})

	t.Run("cancelled context stops the read", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(512)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rl := NewRateLimitedReader(ctx, bytes.NewReader(make([]byte, 64<<10)), lim)

		_, err := rl.Read(make([]byte, 4096))
		require.ErrorIs(t, err, context.Canceled)
	})
}
