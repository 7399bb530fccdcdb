package pipeline

import (
	"fmt"

	"pkg.jsn.cam/datagen/internal/retain"
	"pkg.jsn.cam/datagen/pkg/datagen"
	"pkg.jsn.cam/datagen/pkg/datagen/idalloc"
	"pkg.jsn.cam/datagen/pkg/datagen/sink"
)

// Config describes one generation run.
type Config struct {
	Users        int64
	Transactions int64
	Providers    int64
	Skewed       bool

	OutputDir   string
	Format      sink.Format
	Compression sink.Compression

	IDs idalloc.Config

	// Seed drives every random choice; 0 picks one from the clock.
	Seed uint64

	Retention  retain.Mode
	ScratchDir string // bolt retention only; empty means the system temp dir
}

// DefaultConfig mirrors the CLI defaults.
func DefaultConfig() Config {
	return Config{
		Users:        100,
		Transactions: 1000,
		Providers:    10,
		OutputDir:    "output",
		Format:       sink.FormatJSON,
		Compression:  sink.CompressionNone,
		IDs: idalloc.Config{
			Mode:             idalloc.ModeShared,
			Start:            1,
			UserStart:        1,
			AddressStart:     1,
			ProviderStart:    1,
			TransactionStart: 1,
			Node:             1,
		},
		Retention: retain.ModeMemory,
	}
}

// Validate reports configuration errors. It touches nothing on disk.
func (c Config) Validate() error {
	_, err := c.Normalize()
	return err
}

// Normalize validates c and returns a copy whose format, compression, id mode
// and retention hold their canonical names, so "JSON" runs as "json".
func (c Config) Normalize() (Config, error) {
	if c.Users < 0 || c.Transactions < 0 || c.Providers < 0 {
		return c, fmt.Errorf("%w: users=%d transactions=%d providers=%d",
			datagen.ErrNegativeCount, c.Users, c.Transactions, c.Providers)
	}
	if c.Transactions > 0 && c.Users == 0 {
		return c, datagen.ErrNoUsers
	}
	if c.Transactions > 0 && c.Providers == 0 {
		return c, datagen.ErrNoProviders
	}

	format, err := sink.ParseFormat(string(c.Format))
	if err != nil {
		return c, err
	}
	compression, err := sink.ParseCompression(string(c.Compression))
	if err != nil {
		return c, err
	}
	mode := c.IDs.Mode
	if mode != "" {
		if mode, err = idalloc.ParseMode(string(mode)); err != nil {
			return c, err
		}
	}
	retention, err := retain.ParseMode(string(c.Retention))
	if err != nil {
		return c, err
	}
	if c.OutputDir == "" {
		return c, fmt.Errorf("output directory is required")
	}

	c.Format = format
	c.Compression = compression
	c.IDs.Mode = mode
	c.Retention = retention
	return c, nil
}
