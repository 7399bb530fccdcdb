package verify

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"pkg.jsn.cam/datagen/pkg/datagen/sink"
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 1 << 20

// recordReader yields one record at a time as column -> raw value.
// Next returns io.EOF after the last record.
type recordReader interface {
	Next() (map[string]string, error)
	Close() error
}

func openReader(path string, f sink.Format, c sink.Compression) (recordReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.Reader = file
	if c == sink.CompressionSnappy {
		r = snappy.NewReader(file)
	}

	switch f {
	case sink.FormatCSV:
		cr := csv.NewReader(r)
		cr.ReuseRecord = true
		header, err := cr.Read()
		if err == io.EOF {
			file.Close()
			return nil, fmt.Errorf("%s: missing header row", path)
		}
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &csvReader{file: file, r: cr, header: append([]string(nil), header...)}, nil
	default:
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		return &jsonReader{file: file, sc: sc}, nil
	}
}

type jsonReader struct {
	file *os.File
	sc   *bufio.Scanner
	line int
}

func (j *jsonReader) Next() (map[string]string, error) {
	for j.sc.Scan() {
		j.line++
		raw := bytes.TrimSpace(j.sc.Bytes())
		if len(raw) == 0 {
			return nil, fmt.Errorf("line %d: empty line", j.line)
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", j.line, err)
		}
		if dec.InputOffset() != int64(len(raw)) {
			return nil, fmt.Errorf("line %d: trailing data after object", j.line)
		}

		rec := make(map[string]string, len(obj))
		for k, v := range obj {
			rec[k] = fmt.Sprint(v)
		}
		return rec, nil
	}
	if err := j.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (j *jsonReader) Close() error { return j.file.Close() }

type csvReader struct {
	file   *os.File
	r      *csv.Reader
	header []string
}

func (c *csvReader) Next() (map[string]string, error) {
	row, err := c.r.Read()
	if err != nil {
		return nil, err
	}
	rec := make(map[string]string, len(c.header))
	for i, col := range c.header {
		rec[col] = row[i]
	}
	return rec, nil
}

func (c *csvReader) Close() error { return c.file.Close() }
