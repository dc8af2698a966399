package stream

import (
	"bytes"
	"io"
)

// recordSeparator delimits SSE records on the wire.
var recordSeparator = []byte("\n\n")

// Decoder splits a streaming response body into complete SSE records.
//
// Records are delimited by a blank line. Bytes belonging to an incomplete
// trailing record are buffered until the next read, so a record (or a
// multi-byte character inside one) may be split across any chunk boundary
// without loss. The decoder is forward-only and not restartable.
type Decoder struct {
	reader  io.Reader
	chunk   []byte
	buf     []byte
	pending []string
	record  string
	err     error
	eof     bool
}

// NewDecoder creates a decoder over a streaming response body
func NewDecoder(reader io.Reader) *Decoder {
	return &Decoder{
		reader: reader,
		chunk:  make([]byte, 4096),
	}
}

// Scan advances to the next complete record. It returns false when the
// stream is exhausted or a read error occurred; check Err afterwards.
func (d *Decoder) Scan() bool {
	for {
		if len(d.pending) > 0 {
			d.record = d.pending[0]
			d.pending = d.pending[1:]
			return true
		}
		if d.eof {
			return false
		}

		n, err := d.reader.Read(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
			d.drain()
		}
		if err != nil {
			d.eof = true
			if err != io.EOF {
				d.err = err
			}
			// Any partial trailing record indicates a truncated stream;
			// the protocol guarantees frames end on record boundaries, so
			// the remainder is dropped for leniency.
			d.buf = nil
		}
	}
}

// drain moves every complete record out of the byte buffer. Conversion to
// string happens only at record boundaries, which keeps multi-byte runes
// intact regardless of how the network split the chunks.
func (d *Decoder) drain() {
	for {
		i := bytes.Index(d.buf, recordSeparator)
		if i < 0 {
			return
		}
		d.pending = append(d.pending, string(d.buf[:i]))
		d.buf = d.buf[i+len(recordSeparator):]
	}
}

// Record returns the record produced by the last successful Scan
func (d *Decoder) Record() string {
	return d.record
}

// Err returns the first non-EOF error encountered while reading
func (d *Decoder) Err() error {
	return d.err
}
