package blockio

import (
	"crypto/sha1" //nolint:gosec // G505: SHA-1 is the on-disk hash table format, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// DigestSize is the length of a block digest and of one hash table record.
const DigestSize = sha1.Size

// Digest is the SHA-1 of a block's valid bytes.
type Digest [DigestSize]byte

// String returns the lowercase hex form of the digest.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// ParseDigest decodes a hex digest as produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != DigestSize {
		return d, fmt.Errorf("parse digest: got %d bytes, want %d", len(b), DigestSize)
	}
	copy(d[:], b)
	return d, nil
}

// HashBlock computes the digest of data.
func HashBlock(data []byte) Digest {
	return sha1.Sum(data) //nolint:gosec // G401: see DigestSize
}

// Block is one fixed-size chunk of the device.
//
// Data aliases the scanner's read buffer and is only valid until the next
// call to Scan. Consumers that keep the bytes must copy them.
type Block struct {
	Index  int64
	Data   []byte
	Length int
	Hash   Digest
}

// Progress is an advisory observation of how far the scan has got.
type Progress struct {
	BytesRead  int64
	Elapsed    time.Duration
	DeviceSize int64
	Final      bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithProgress reports progress through fn every interval, and always on the
// final block. An interval <= 0 limits reporting to the final block.
func WithProgress(interval time.Duration, deviceSize int64, fn func(Progress)) Option {
	return func(s *Scanner) {
		s.interval = interval
		s.deviceSize = deviceSize
		s.progress = fn
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// Scanner reads a source front to back in fixed-size blocks and hashes each
// block. It is lazy and cannot be restarted: once Scan returns false the
// source is never read again.
type Scanner struct {
	r         io.Reader
	blockSize int
	buf       []byte

	block Block
	next  int64
	done  bool
	err   error

	bytesRead  int64
	start      time.Time
	lastReport time.Time
	interval   time.Duration
	deviceSize int64
	progress   func(Progress)
	now        func() time.Time
}

// NewScanner returns a Scanner reading blockSize bytes at a time from r.
// blockSize must be positive.
func NewScanner(r io.Reader, blockSize int, opts ...Option) *Scanner {
	if blockSize <= 0 {
		panic(fmt.Sprintf("blockio: invalid block size %d", blockSize))
	}
	s := &Scanner{
		r:         r,
		blockSize: blockSize,
		buf:       make([]byte, blockSize),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.start = s.now()
	// Report on the first block as well as on every interval after it.
	s.lastReport = s.start.Add(-s.interval)
	return s
}

// Scan reads the next block. It returns false at the end of the source or on
// a read error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}

	n, err := io.ReadFull(s.r, s.buf)
	s.bytesRead += int64(n)
	short := n < s.blockSize

	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
	default:
		s.done = true
		s.err = fmt.Errorf("read block %d: %w", s.next, err)
		return false
	}

	if short {
		s.done = true
	}
	s.report(short)

	if n == 0 {
		return false
	}

	s.block = Block{
		Index:  s.next,
		Data:   s.buf[:n],
		Length: n,
		Hash:   HashBlock(s.buf[:n]),
	}
	s.next++
	return true
}

// Block returns the block produced by the last successful Scan.
func (s *Scanner) Block() Block { return s.block }

// Err returns the first read error, or nil if the scan ended at EOF.
func (s *Scanner) Err() error { return s.err }

// BytesRead returns the number of source bytes consumed so far.
func (s *Scanner) BytesRead() int64 { return s.bytesRead }

func (s *Scanner) report(final bool) {
	if s.progress == nil {
		return
	}
	now := s.now()
	if !final && (s.interval <= 0 || now.Sub(s.lastReport) < s.interval) {
		return
	}
	s.lastReport = now
	s.progress(Progress{
		BytesRead:  s.bytesRead,
		Elapsed:    now.Sub(s.start),
		DeviceSize: s.deviceSize,
		Final:      final,
	})
}
