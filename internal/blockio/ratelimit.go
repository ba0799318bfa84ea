package blockio

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps read throughput to
// bytesPerSec. The burst is 1 MB, or the rate itself when that is lower.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// rateLimitedReader wraps an io.Reader and enforces a rate limit.
type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

// NewRateLimitedReader wraps r so that reads are throttled by limiter and
// abort once ctx is done. A nil limiter returns r unchanged.
//
//nolint:ireturn // returns r itself when there is nothing to throttle
func NewRateLimitedReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil || limiter.Burst() <= 0 {
		return r
	}
	return &rateLimitedReader{r: r, limiter: limiter, ctx: ctx}
}

func (rl *rateLimitedReader) Read(p []byte) (int, error) {
	n, err := rl.r.Read(p)
	// WaitN rejects requests larger than the burst, so large block reads
	// are paid for in burst-sized installments.
	for left := n; left > 0; {
		chunk := min(left, rl.limiter.Burst())
		if waitErr := rl.limiter.WaitN(rl.ctx, chunk); waitErr != nil {
			return n, waitErr
		}
		left -= chunk
	}
	return n, err
}
