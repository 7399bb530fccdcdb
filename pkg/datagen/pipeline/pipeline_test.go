package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkg.jsn.cam/datagen/internal/retain"
	"pkg.jsn.cam/datagen/pkg/datagen"
	"pkg.jsn.cam/datagen/pkg/datagen/idalloc"
	"pkg.jsn.cam/datagen/pkg/datagen/sink"
	"pkg.jsn.cam/datagen/pkg/datagen/values"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Seed = 42
	return cfg
}

func runTest(t *testing.T, cfg Config, extra ...Option) *Summary {
	t.Helper()
	opts := append([]Option{
		WithValues(&values.Stub{}),
		WithClock(func() time.Time { return testNow }),
		WithLogger(log.New(io.Discard, "", 0)),
	}, extra...)

	summary, err := Run(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return summary
}

func readJSON[T any](t *testing.T, path string) []T {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []T
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var v T
		dec := json.NewDecoder(bytes.NewReader(sc.Bytes()))
		dec.DisallowUnknownFields()
		require.NoError(t, dec.Decode(&v), "line %q", sc.Text())
		out = append(out, v)
	}
	require.NoError(t, sc.Err())
	return out
}

type dataset struct {
	users        []datagen.User
	addresses    []datagen.Address
	providers    []datagen.PaymentProvider
	transactions []datagen.Transaction
}

func readDataset(t *testing.T, dir string) dataset {
	t.Helper()
	return dataset{
		users:        readJSON[datagen.User](t, filepath.Join(dir, "users.json")),
		addresses:    readJSON[datagen.Address](t, filepath.Join(dir, "addresses.json")),
		providers:    readJSON[datagen.PaymentProvider](t, filepath.Join(dir, "providers.json")),
		transactions: readJSON[datagen.Transaction](t, filepath.Join(dir, "transactions.json")),
	}
}

func (d dataset) assertReferentialIntegrity(t *testing.T) {
	t.Helper()

	userIDs := make(map[int64]bool, len(d.users))
	for _, u := range d.users {
		userIDs[u.ID] = true
	}
	providerIDs := make(map[int64]bool, len(d.providers))
	for _, p := range d.providers {
		providerIDs[p.ID] = true
	}

	for _, a := range d.addresses {
		assert.True(t, userIDs[a.UserID], "address %d references unknown user %d", a.ID, a.UserID)
	}
	for _, tx := range d.transactions {
		assert.True(t, userIDs[tx.UserID], "transaction %d references unknown user %d", tx.ID, tx.UserID)
		assert.True(t, providerIDs[tx.ProviderID], "transaction %d references unknown provider %d", tx.ID, tx.ProviderID)
	}
}

func TestSmallJSONScenario(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 3, 5, 2

	summary := runTest(t, cfg)
	d := readDataset(t, cfg.OutputDir)

	assert.Len(t, d.users, 3)
	assert.Len(t, d.addresses, 3)
	assert.Len(t, d.providers, 2)
	assert.Len(t, d.transactions, 5)
	d.assertReferentialIntegrity(t)

	for _, tx := range d.transactions {
		assert.Greater(t, tx.Amount, 1.0)
		assert.Less(t, tx.Amount, 1000.0)
		assert.Equal(t, "2025-06-01T12:00:00Z", tx.Timestamp)
	}

	// one address per user, in user order
	for i, a := range d.addresses {
		assert.Equal(t, d.users[i].ID, a.UserID)
	}

	assert.Equal(t, int64(3), summary.Records(PhaseUsers))
	assert.Equal(t, int64(3), summary.Records(PhaseAddresses))
	assert.Equal(t, int64(2), summary.Records(PhaseProviders))
	assert.Equal(t, int64(5), summary.Records(PhaseTransactions))
	assert.Len(t, summary.Phases, 4)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, uint64(42), summary.Seed)
	assert.Positive(t, summary.TotalBytes())

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"users.json", "addresses.json", "providers.json", "transactions.json"}, names)
}

func TestSharedSequenceStartsAtConfiguredValue(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 4, 20, 3
	cfg.IDs = idalloc.Config{Mode: idalloc.ModeShared, Start: 1000}

	runTest(t, cfg)
	d := readDataset(t, cfg.OutputDir)

	require.Equal(t, int64(1000), d.users[0].ID)

	var all []int64
	for _, u := range d.users {
		all = append(all, u.ID)
	}
	for _, a := range d.addresses {
		all = append(all, a.ID)
	}
	for _, p := range d.providers {
		all = append(all, p.ID)
	}
	for _, tx := range d.transactions {
		all = append(all, tx.ID)
	}

	// generation order is users, addresses, providers, transactions
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1]+1, all[i], "ids must be consecutive across kinds")
	}
	assert.Equal(t, int64(1004), d.addresses[0].ID)
	d.assertReferentialIntegrity(t)
}

func TestPerKindSequences(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 5, 50, 4
	cfg.IDs = idalloc.Config{
		Mode:             idalloc.ModePerKind,
		UserStart:        1,
		AddressStart:     100,
		ProviderStart:    1,
		TransactionStart: 5000,
	}

	runTest(t, cfg)
	d := readDataset(t, cfg.OutputDir)

	for i, u := range d.users {
		assert.Equal(t, int64(1+i), u.ID)
	}
	for i, a := range d.addresses {
		assert.Equal(t, int64(100+i), a.ID)
	}
	for i, p := range d.providers {
		assert.Equal(t, int64(1+i), p.ID)
	}
	for i, tx := range d.transactions {
		assert.Equal(t, int64(5000+i), tx.ID)
	}
	d.assertReferentialIntegrity(t)
}

func TestSnowflakeIDsAreUniqueAcrossKinds(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 20, 200, 5
	cfg.IDs = idalloc.Config{Mode: idalloc.ModeSnowflake, Node: 7}

	runTest(t, cfg)
	d := readDataset(t, cfg.OutputDir)

	seen := make(map[int64]bool)
	check := func(id int64) {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	for _, u := range d.users {
		check(u.ID)
	}
	for _, a := range d.addresses {
		check(a.ID)
	}
	for _, p := range d.providers {
		check(p.ID)
	}
	for _, tx := range d.transactions {
		check(tx.ID)
	}
	d.assertReferentialIntegrity(t)
}

func TestSkewedRunConcentratesOnEarlyUsers(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 10, 5000, 3
	cfg.Skewed = true

	runTest(t, cfg)
	d := readDataset(t, cfg.OutputDir)
	d.assertReferentialIntegrity(t)

	counts := make(map[int64]int)
	for _, tx := range d.transactions {
		counts[tx.UserID]++
	}
	first, last := d.users[0].ID, d.users[len(d.users)-1].ID
	assert.Greater(t, counts[first], counts[last])
}

func TestCSVOutput(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 6, 12, 3
	cfg.Format = sink.FormatCSV

	runTest(t, cfg)

	want := map[string][]string{
		"users":        {"id", "name", "email", "phone"},
		"addresses":    {"id", "user_id", "street", "city", "state", "country", "postal_code"},
		"providers":    {"id", "name"},
		"transactions": {"id", "user_id", "provider_id", "amount", "timestamp"},
	}
	rowsWant := map[string]int{"users": 6, "addresses": 6, "providers": 3, "transactions": 12}

	for entity, header := range want {
		f, err := os.Open(filepath.Join(cfg.OutputDir, entity+".csv"))
		require.NoError(t, err)

		rows, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err, entity)

		require.NotEmpty(t, rows)
		assert.Equal(t, header, rows[0], entity)
		assert.Len(t, rows[1:], rowsWant[entity], entity)
		for _, row := range rows[1:] {
			assert.Len(t, row, len(header))
		}
		if entity == "transactions" {
			for _, row := range rows[1:] {
				amount, err := strconv.ParseFloat(row[3], 64)
				require.NoError(t, err)
				assert.Greater(t, amount, 1.0)
				assert.Less(t, amount, 1000.0)
			}
		}
	}
}

func TestSnappyOutput(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 3, 5, 2
	cfg.Compression = sink.CompressionSnappy

	summary := runTest(t, cfg)
	for _, ps := range summary.Phases {
		assert.Equal(t, ".sz", filepath.Ext(ps.Path))
	}

	f, err := os.Open(filepath.Join(cfg.OutputDir, "transactions.json.sz"))
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(snappy.NewReader(f))
	n := 0
	for sc.Scan() {
		var tx datagen.Transaction
		require.NoError(t, json.Unmarshal(sc.Bytes(), &tx))
		n++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 5, n)
}

func TestBoltRetentionMatchesMemory(t *testing.T) {
	t.Parallel()

	mem := testConfig(t)
	mem.Users, mem.Transactions, mem.Providers = 50, 300, 5
	mem.Skewed = true

	bolt := mem
	bolt.OutputDir = filepath.Join(t.TempDir(), "bolt")
	bolt.Retention = retain.ModeBolt
	bolt.ScratchDir = t.TempDir()

	runTest(t, mem)
	runTest(t, bolt)

	for _, name := range []string{"users.json", "addresses.json", "providers.json", "transactions.json"} {
		a, err := os.ReadFile(filepath.Join(mem.OutputDir, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(bolt.OutputDir, name))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), name)
	}

	scratch, err := os.ReadDir(bolt.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, scratch, "scratch databases should be removed")
}

func TestZeroCounts(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 0, 0, 0

	summary := runTest(t, cfg)
	assert.Len(t, summary.Phases, 4)
	for _, ps := range summary.Phases {
		assert.Zero(t, ps.Records)
		info, err := os.Stat(ps.Path)
		require.NoError(t, err)
		assert.Zero(t, info.Size())
	}
}

func TestConfigErrorsCreateNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "bad format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: datagen.ErrUnsupportedFormat},
		{name: "bad compression", mutate: func(c *Config) { c.Compression = "zstd" }, wantErr: datagen.ErrUnsupportedCompression},
		{name: "bad id mode", mutate: func(c *Config) { c.IDs.Mode = "random" }, wantErr: datagen.ErrUnsupportedIDMode},
		{name: "bad retention", mutate: func(c *Config) { c.Retention = "disk" }, wantErr: datagen.ErrUnsupportedRetention},
		{name: "no users", mutate: func(c *Config) { c.Users = 0 }, wantErr: datagen.ErrNoUsers},
		{name: "no providers", mutate: func(c *Config) { c.Providers = 0 }, wantErr: datagen.ErrNoProviders},
		{name: "negative", mutate: func(c *Config) { c.Transactions = -1 }, wantErr: datagen.ErrNegativeCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			tt.mutate(&cfg)

			_, err := Run(context.Background(), cfg, WithLogger(log.New(io.Discard, "", 0)))
			assert.ErrorIs(t, err, tt.wantErr)

			_, statErr := os.Stat(cfg.OutputDir)
			assert.True(t, os.IsNotExist(statErr), "output directory must not be created")
		})
	}
}

func TestMixedCaseNamesRunAsCanonical(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 3, 5, 2
	cfg.Format = "JSON"
	cfg.Compression = " SNAPPY "
	cfg.IDs.Mode = "Per-Kind"
	cfg.Retention = "Bolt"
	cfg.ScratchDir = t.TempDir()

	summary := runTest(t, cfg)
	assert.Equal(t, sink.FormatJSON, summary.Format)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"users.json.sz", "addresses.json.sz", "providers.json.sz", "transactions.json.sz"}, names)

	// per-kind sequences: first user and first address both get id 1
	f, err := os.Open(filepath.Join(cfg.OutputDir, "addresses.json.sz"))
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(snappy.NewReader(f))
	require.True(t, sc.Scan())
	var a datagen.Address
	require.NoError(t, json.Unmarshal(sc.Bytes(), &a))
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(1), a.UserID)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Format, cfg.Compression, cfg.IDs.Mode, cfg.Retention = "CSV", "", "SNOWFLAKE", ""

	got, err := cfg.Normalize()
	require.NoError(t, err)
	assert.Equal(t, sink.FormatCSV, got.Format)
	assert.Equal(t, sink.CompressionNone, got.Compression)
	assert.Equal(t, idalloc.ModeSnowflake, got.IDs.Mode)
	assert.Equal(t, retain.ModeMemory, got.Retention)
	assert.Equal(t, sink.Format("CSV"), cfg.Format, "receiver is left untouched")

	cfg.Format = "parquet"
	_, err = cfg.Normalize()
	assert.ErrorIs(t, err, datagen.ErrUnsupportedFormat)
}

func TestOutputDirIsAFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	cfg := testConfig(t)
	cfg.OutputDir = path

	_, err := Run(context.Background(), cfg, WithValues(&values.Stub{}), WithLogger(log.New(io.Discard, "", 0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestCancelledContextAborts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig(t)
	_, err := Run(ctx, cfg, WithValues(&values.Stub{}), WithLogger(log.New(io.Discard, "", 0)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "phase users")

	// partial output is left in place
	_, statErr := os.Stat(filepath.Join(cfg.OutputDir, "users.json"))
	assert.NoError(t, statErr)
}

type recordingReporter struct {
	events []string
	last   map[string]int64
}

func (r *recordingReporter) Start(phase string, total int64) {
	r.events = append(r.events, "start "+phase+" "+strconv.FormatInt(total, 10))
}

func (r *recordingReporter) Update(phase string, current, total int64) {
	if r.last == nil {
		r.last = make(map[string]int64)
	}
	r.last[phase] = current
}

func (r *recordingReporter) Finish(phase string) {
	r.events = append(r.events, "finish "+phase)
}

func TestProgressIsReportedPerPhase(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Users, cfg.Transactions, cfg.Providers = 3, 7, 2

	rep := &recordingReporter{}
	runTest(t, cfg, WithReporter(rep))

	assert.Equal(t, []string{
		"start users 3", "finish users",
		"start addresses 3", "finish addresses",
		"start providers 2", "finish providers",
		"start transactions 7", "finish transactions",
	}, rep.events)
	assert.Equal(t, map[string]int64{"users": 3, "addresses": 3, "providers": 2, "transactions": 7}, rep.last)
}

func TestSameSeedIsReproducible(t *testing.T) {
	t.Parallel()

	a := testConfig(t)
	a.Users, a.Transactions, a.Providers = 10, 40, 4
	b := a
	b.OutputDir = filepath.Join(t.TempDir(), "again")

	runTest(t, a)
	runTest(t, b)

	for _, name := range []string{"providers.json", "transactions.json"} {
		x, err := os.ReadFile(filepath.Join(a.OutputDir, name))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b.OutputDir, name))
		require.NoError(t, err)
		assert.Equal(t, string(x), string(y), name)
	}
}

func TestPhaseTransitions(t *testing.T) {
	t.Parallel()

	p := PhaseUsers
	require.NoError(t, p.advance(PhaseAddresses))
	assert.Error(t, p.advance(PhaseTransactions))
	assert.Error(t, p.advance(PhaseUsers))
	require.NoError(t, p.advance(PhaseProviders))
	require.NoError(t, p.advance(PhaseTransactions))
	require.NoError(t, p.advance(PhaseDone))
	assert.Equal(t, "done", p.String())
	assert.Equal(t, "addresses", PhaseAddresses.String())
}
