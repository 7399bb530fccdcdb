// Package sink streams entity records to per-entity output files.
//
// A Sink serializes each record as soon as it is written and keeps nothing
// but a fixed-size write buffer, so memory use does not grow with the number
// of records. The first I/O error is sticky: every later Write or Close
// returns it.
package sink

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"github.com/golang/snappy"
	"pkg.jsn.cam/datagen/pkg/datagen"
)

// DefaultBufferSize is the write buffer used when Options.BufferSize is 0.
const DefaultBufferSize = 64 * 1024

// Sink is the write side of one entity output file.
type Sink interface {
	// Write serializes rec, which must have the prototype's type.
	Write(rec any) error
	// Close flushes buffered data and closes the file.
	Close() error
	// Path is the file being written.
	Path() string
	// Count is the number of records written so far.
	Count() int64
	// Bytes is the number of bytes handed to the file so far.
	Bytes() int64
}

// Options control the encoding of a sink.
type Options struct {
	Format      Format
	Compression Compression
	BufferSize  int
}

// Open creates dir/<entity>.<ext> and returns a sink for records shaped like
// proto. For CSV the header row is written immediately.
func Open(dir, entity string, proto any, opts Options) (Sink, error) {
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	if opts.Format != FormatJSON && opts.Format != FormatCSV {
		return nil, fmt.Errorf("%w: %q", datagen.ErrUnsupportedFormat, opts.Format)
	}

	sch, err := schemaOf(proto)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, FileName(entity, opts.Format, opts.Compression))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	fs := &fileSink{
		path:   path,
		file:   file,
		schema: sch,
	}
	fs.counter = &countingWriter{w: file}

	var w io.Writer = fs.counter
	if opts.Compression == CompressionSnappy {
		fs.snappy = snappy.NewBufferedWriter(fs.counter)
		w = fs.snappy
	}
	fs.buf = bufio.NewWriterSize(w, opts.BufferSize)

	if opts.Format == FormatCSV {
		ce := &csvEncoder{w: csv.NewWriter(fs.buf), schema: sch}
		if err := ce.header(); err != nil {
			file.Close()
			return nil, fmt.Errorf("write header %s: %w", path, err)
		}
		fs.enc = ce
	} else {
		fs.enc = &jsonEncoder{enc: json.NewEncoder(fs.buf)}
	}

	return fs, nil
}

// encoder turns one record into bytes on the buffered writer.
type encoder interface {
	encode(rec any) error
	flush() error
}

type fileSink struct {
	path    string
	file    *os.File
	counter *countingWriter
	snappy  *snappy.Writer
	buf     *bufio.Writer
	enc     encoder
	schema  *schema
	count   int64
	err     error
	closed  bool
}

func (s *fileSink) Write(rec any) error {
	if s.closed {
		return fmt.Errorf("write %s: %w", s.path, datagen.ErrSinkClosed)
	}
	if s.err != nil {
		return s.err
	}
	if t := reflect.TypeOf(rec); t != s.schema.typ {
		return fmt.Errorf("write %s: record type %v does not match %v", s.path, t, s.schema.typ)
	}
	if err := s.enc.encode(rec); err != nil {
		s.err = fmt.Errorf("write %s: %w", s.path, err)
		return s.err
	}
	s.count++
	return nil
}

func (s *fileSink) Close() error {
	if s.closed {
		return s.err
	}
	s.closed = true

	if err := s.enc.flush(); err != nil && s.err == nil {
		s.err = fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := s.buf.Flush(); err != nil && s.err == nil {
		s.err = fmt.Errorf("flush %s: %w", s.path, err)
	}
	if s.snappy != nil {
		if err := s.snappy.Close(); err != nil && s.err == nil {
			s.err = fmt.Errorf("flush %s: %w", s.path, err)
		}
	}
	if err := s.file.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("close %s: %w", s.path, err)
	}
	return s.err
}

func (s *fileSink) Path() string { return s.path }
func (s *fileSink) Count() int64 { return s.count }
func (s *fileSink) Bytes() int64 { return s.counter.n }

type jsonEncoder struct {
	enc *json.Encoder
}

// encode writes the object followed by a newline.
func (e *jsonEncoder) encode(rec any) error {
	return e.enc.Encode(rec)
}

func (e *jsonEncoder) flush() error { return nil }

type csvEncoder struct {
	w      *csv.Writer
	schema *schema
	row    []string
}

func (e *csvEncoder) header() error {
	return e.w.Write(e.schema.columns)
}

func (e *csvEncoder) encode(rec any) error {
	row, err := e.schema.row(rec, e.row)
	if err != nil {
		return err
	}
	e.row = row
	return e.w.Write(row)
}

func (e *csvEncoder) flush() error {
	e.w.Flush()
	return e.w.Error()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
