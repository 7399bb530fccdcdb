package sink

import (
	"fmt"
	"strings"

	"pkg.jsn.cam/datagen/pkg/datagen"
)

// Format is the record encoding of an output file.
type Format string

const (
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
	// FormatCSV writes a header row then one row per record.
	FormatCSV Format = "csv"
)

// ParseFormat validates a format name (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want json or csv)", datagen.ErrUnsupportedFormat, s)
	}
}

// Extension is the file extension for the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Compression wraps the encoded stream before it reaches the file.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
)

// ParseCompression validates a compression name. Empty means none.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionSnappy:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q (want none or snappy)", datagen.ErrUnsupportedCompression, s)
	}
}

// FileName returns the output file name for an entity collection.
func FileName(entity string, f Format, c Compression) string {
	name := entity + "." + f.Extension()
	if c == CompressionSnappy {
		name += ".sz"
	}
	return name
}
