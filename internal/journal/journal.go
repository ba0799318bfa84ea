// Package journal writes and reads the two files that carry an increment's
// changed blocks: a raw payload of block bytes with no delimiters, and a JSON
// journal that says which device block each payload range belongs to.
//
// The journal is streamed while the payload grows:
//
//	{"header":{...},
//	"blocks":[
//	{"index":3,"offset":0,"length":4096,"hash":"..."},
//	...],
//	"trailer":{"count":1,"payload_size":4096,"payload_blake3":"..."}}
//
// A journal without a trailer belongs to a run that did not finish and must
// not be trusted.
package journal

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bamsammich/blockshot/internal/backupset"
	"github.com/bamsammich/blockshot/internal/blockio"
)

// FormatVersion is written into every journal header.
const FormatVersion = 1

// Header describes the run that produced the increment.
type Header struct {
	Version    int       `json:"version"`
	RunID      string    `json:"run_id"`
	Sequence   int       `json:"sequence"`
	Device     string    `json:"device"`
	DeviceSize int64     `json:"device_size"`
	BlockSize  int       `json:"block_size"`
	NumBlocks  int64     `json:"num_blocks"`
	Created    time.Time `json:"created"`
}

// Record locates one changed block inside the payload.
type Record struct {
	Index  int64  `json:"index"`
	Offset int64  `json:"offset"`
	Length int    `json:"length"`
	Hash   string `json:"hash"`
}

// Trailer closes the journal once every record has been written.
type Trailer struct {
	Count         int64  `json:"count"`
	PayloadSize   int64  `json:"payload_size"`
	PayloadBLAKE3 string `json:"payload_blake3"`
}

// Document is a fully parsed journal.
type Document struct {
	Header  Header   `json:"header"`
	Blocks  []Record `json:"blocks"`
	Trailer *Trailer `json:"trailer"`
}

// Writer appends changed blocks to an increment's payload and journal.
type Writer struct {
	data    *os.File
	dataBuf *bufio.Writer
	jrnl    *os.File
	jrnlBuf *bufio.Writer
	sum     hash.Hash

	offset int64
	count  int64
	closed bool
}

// Create opens the payload and journal of inc for writing. Both files must
// not exist yet; an existing journal means the increment number is taken.
func Create(inc backupset.Increment, hdr Header) (*Writer, error) {
	hdr.Version = FormatVersion
	hdr.Sequence = inc.Seq

	jrnl, err := os.OpenFile(inc.JournalPath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	data, err := os.OpenFile(inc.DataPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		jrnl.Close()
		return nil, fmt.Errorf("create payload: %w", err)
	}

	w := &Writer{
		data:    data,
		dataBuf: bufio.NewWriterSize(data, 1<<20),
		jrnl:    jrnl,
		jrnlBuf: bufio.NewWriter(jrnl),
		sum:     blake3.New(),
	}

	head, err := json.Marshal(hdr)
	if err != nil {
		w.Abort()
		return nil, fmt.Errorf("encode journal header: %w", err)
	}
	if _, err := fmt.Fprintf(w.jrnlBuf, "{\"header\":%s,\n\"blocks\":[", head); err != nil {
		w.Abort()
		return nil, fmt.Errorf("write journal header: %w", err)
	}
	return w, nil
}

// Append writes the block's bytes to the payload and its record to the
// journal. The bytes are copied before Append returns, so the caller may
// reuse the block buffer.
func (w *Writer) Append(b blockio.Block) (Record, error) {
	if w.closed {
		return Record{}, errors.New("journal: append after close")
	}
	data := b.Data[:b.Length]

	if _, err := w.dataBuf.Write(data); err != nil {
		return Record{}, fmt.Errorf("write payload block %d: %w", b.Index, err)
	}
	w.sum.Write(data) //nolint:errcheck // hash.Hash.Write never fails

	rec := Record{
		Index:  b.Index,
		Offset: w.offset,
		Length: b.Length,
		Hash:   b.Hash.String(),
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode journal record %d: %w", b.Index, err)
	}
	sep := ",\n"
	if w.count == 0 {
		sep = "\n"
	}
	if _, err := fmt.Fprintf(w.jrnlBuf, "%s%s", sep, line); err != nil {
		return Record{}, fmt.Errorf("write journal record %d: %w", b.Index, err)
	}

	w.offset += int64(b.Length)
	w.count++
	return rec, nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int64 { return w.count }

// Close writes the trailer, then flushes, syncs and closes both files. The
// payload is made durable before the trailer that vouches for it.
func (w *Writer) Close() (Trailer, error) {
	if w.closed {
		return Trailer{}, errors.New("journal: already closed")
	}
	w.closed = true

	tr := Trailer{
		Count:         w.count,
		PayloadSize:   w.offset,
		PayloadBLAKE3: hex.EncodeToString(w.sum.Sum(nil)),
	}

	if err := closeFile(w.data, w.dataBuf); err != nil {
		w.jrnl.Close()
		return tr, fmt.Errorf("payload: %w", err)
	}

	tail, err := json.Marshal(tr)
	if err != nil {
		w.jrnl.Close()
		return tr, fmt.Errorf("encode journal trailer: %w", err)
	}
	if _, err := fmt.Fprintf(w.jrnlBuf, "],\n\"trailer\":%s}\n", tail); err != nil {
		w.jrnl.Close()
		return tr, fmt.Errorf("write journal trailer: %w", err)
	}
	if err := closeFile(w.jrnl, w.jrnlBuf); err != nil {
		return tr, fmt.Errorf("journal: %w", err)
	}
	return tr, nil
}

// Abort closes both files without writing the trailer, leaving a journal
// that Verify and Read reject. It is safe to call after Close.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.data.Close()
	w.jrnl.Close()
}

func closeFile(f *os.File, buf *bufio.Writer) error {
	if err := buf.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", f.Name(), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return nil
}

// Read parses the journal at path.
func Read(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var doc Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode journal %s: %w", path, err)
	}
	return &doc, nil
}

// VerifyError reports a payload that does not match its journal.
type VerifyError struct {
	Path   string
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("increment %s: %s", e.Path, e.Reason)
}

// Verify checks the increment's payload against its journal: the journal
// must be complete, records must tile the payload in order, and the payload
// size and BLAKE3 must match the trailer.
func Verify(inc backupset.Increment) (*Document, error) {
	doc, err := Read(inc.JournalPath())
	if err != nil {
		return nil, err
	}
	fail := func(format string, args ...any) (*Document, error) {
		return doc, &VerifyError{Path: inc.JournalPath(), Reason: fmt.Sprintf(format, args...)}
	}

	if doc.Trailer == nil {
		return fail("journal has no trailer; the run did not finish")
	}
	if int64(len(doc.Blocks)) != doc.Trailer.Count {
		return fail("journal lists %d blocks, trailer says %d", len(doc.Blocks), doc.Trailer.Count)
	}

	var offset int64
	prev := int64(-1)
	for _, rec := range doc.Blocks {
		if rec.Offset != offset {
			return fail("block %d at payload offset %d, expected %d", rec.Index, rec.Offset, offset)
		}
		if rec.Index <= prev {
			return fail("block %d listed after block %d", rec.Index, prev)
		}
		if _, err := blockio.ParseDigest(rec.Hash); err != nil {
			return fail("block %d: %v", rec.Index, err)
		}
		prev = rec.Index
		offset += int64(rec.Length)
	}
	if offset != doc.Trailer.PayloadSize {
		return fail("records cover %d bytes, trailer says %d", offset, doc.Trailer.PayloadSize)
	}

	f, err := os.Open(inc.DataPath())
	if err != nil {
		return fail("open payload: %v", err)
	}
	defer f.Close()

	sum := blake3.New()
	n, err := io.Copy(sum, f)
	if err != nil {
		return fail("read payload: %v", err)
	}
	if n != doc.Trailer.PayloadSize {
		return fail("payload is %d bytes, trailer says %d", n, doc.Trailer.PayloadSize)
	}
	if got := hex.EncodeToString(sum.Sum(nil)); got != doc.Trailer.PayloadBLAKE3 {
		return fail("payload BLAKE3 %s does not match trailer %s", got, doc.Trailer.PayloadBLAKE3)
	}
	return doc, nil
}
