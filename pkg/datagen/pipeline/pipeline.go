// Package pipeline runs a full generation: users, addresses, providers, then
// transactions, each streamed to its own sink.
//
// The phases run strictly one after another. Addresses need every user id
// and transactions need both the user and provider ids, which the run keeps
// in retention indexes while the records themselves are dropped once written.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"pkg.jsn.cam/datagen/internal/retain"
	"pkg.jsn.cam/datagen/internal/tracing"
	"pkg.jsn.cam/datagen/pkg/datagen"
	"pkg.jsn.cam/datagen/pkg/datagen/generator"
	"pkg.jsn.cam/datagen/pkg/datagen/idalloc"
	"pkg.jsn.cam/datagen/pkg/datagen/progress"
	"pkg.jsn.cam/datagen/pkg/datagen/sample"
	"pkg.jsn.cam/datagen/pkg/datagen/sink"
	"pkg.jsn.cam/datagen/pkg/datagen/values"
)

// cancelCheckEvery is how many records are produced between context checks.
const cancelCheckEvery = 256

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Seed      uint64
	Format    sink.Format
	OutputDir string
	Started   time.Time
	Duration  time.Duration
	Phases    []PhaseSummary
}

// PhaseSummary describes the output of one phase.
type PhaseSummary struct {
	Phase    Phase
	Records  int64
	Path     string
	Bytes    int64
	Duration time.Duration
}

// Records returns the record count of phase, or 0 if it never ran.
func (s *Summary) Records(p Phase) int64 {
	for _, ps := range s.Phases {
		if ps.Phase == p {
			return ps.Records
		}
	}
	return 0
}

// TotalBytes sums the output sizes.
func (s *Summary) TotalBytes() int64 {
	var n int64
	for _, ps := range s.Phases {
		n += ps.Bytes
	}
	return n
}

type options struct {
	values   values.Provider
	reporter progress.Reporter
	now      func() time.Time
	logger   *log.Logger
}

// Option customises a run.
type Option func(*options)

// WithValues replaces the faker backed value provider.
func WithValues(vp values.Provider) Option {
	return func(o *options) { o.values = vp }
}

// WithReporter sets the progress reporter (default: none).
func WithReporter(r progress.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithClock sets the clock used for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger (default: log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// run is the state of one generation in progress.
type run struct {
	id      string
	cfg     Config
	opts    options
	gen     *generator.Generator
	sinks   map[datagen.Kind]sink.Sink
	users   retain.Index
	provs   retain.Index
	phase   Phase
	summary *Summary
}

// Run validates cfg and generates the dataset. Configuration errors are
// returned before anything is created on disk. Any I/O error aborts the run;
// files written so far are left in place.
func Run(ctx context.Context, cfg Config, opts ...Option) (_ *Summary, err error) {
	cfg, err = cfg.Normalize()
	if err != nil {
		return nil, err
	}

	o := options{
		reporter: progress.Nop{},
		now:      time.Now,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if o.values == nil {
		o.values = values.NewFaker(int64(seed))
	}

	ids, err := idalloc.New(cfg.IDs)
	if err != nil {
		return nil, err
	}

	r := &run{
		id:    uuid.New().String(),
		cfg:   cfg,
		opts:  o,
		sinks: make(map[datagen.Kind]sink.Sink, len(datagen.Kinds)),
		gen: generator.New(
			ids,
			sample.NewSeeded(seed, cfg.Skewed),
			o.values,
			rand.New(rand.NewPCG(seed+1, seed^0xda3e39cb94b95bdb)),
			o.now,
		),
		phase: PhaseUsers,
		summary: &Summary{
			Seed:      seed,
			Format:    cfg.Format,
			OutputDir: cfg.OutputDir,
			Started:   time.Now(),
		},
	}
	r.summary.RunID = r.id

	ctx, span := tracing.StartSpan(ctx, "datagen.run")
	span.SetString("run.id", r.id).
		SetString("format", string(cfg.Format)).
		SetInt("users", cfg.Users).
		SetInt("providers", cfg.Providers).
		SetInt("transactions", cfg.Transactions)
	defer func() { tracing.EndSpan(span, err) }()

	r.logf("Starting run (seed: %d, format: %s, ids: %s, skewed: %t)", seed, cfg.Format, idModeName(cfg.IDs.Mode), cfg.Skewed)

	if err := r.open(); err != nil {
		r.closeAll()
		return nil, err
	}

	if err := r.generate(ctx); err != nil {
		r.closeAll()
		r.logf("Run aborted during %s: %v", r.phase, err)
		return nil, err
	}

	if err := r.finish(); err != nil {
		return nil, err
	}

	r.summary.Duration = time.Since(r.summary.Started)
	r.logf("Run completed in %v", r.summary.Duration.Round(time.Millisecond))
	return r.summary, nil
}

func (r *run) logf(format string, args ...any) {
	r.opts.logger.Printf("[PIPELINE:%s] "+format, append([]any{shortID(r.id)}, args...)...)
}

// open creates the output directory, the four sinks and the retention indexes.
func (r *run) open() error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory %s: %w", r.cfg.OutputDir, err)
	}

	protos := map[datagen.Kind]any{
		datagen.KindUser:        datagen.User{},
		datagen.KindAddress:     datagen.Address{},
		datagen.KindProvider:    datagen.PaymentProvider{},
		datagen.KindTransaction: datagen.Transaction{},
	}
	sinkOpts := sink.Options{Format: r.cfg.Format, Compression: r.cfg.Compression}
	for _, kind := range datagen.Kinds {
		s, err := sink.Open(r.cfg.OutputDir, kind.String(), protos[kind], sinkOpts)
		if err != nil {
			return fmt.Errorf("open %s sink: %w", kind, err)
		}
		r.sinks[kind] = s
	}

	var err error
	if r.users, err = retain.New(r.cfg.Retention, r.cfg.ScratchDir, "users"); err != nil {
		return fmt.Errorf("open user index: %w", err)
	}
	if r.provs, err = retain.New(r.cfg.Retention, r.cfg.ScratchDir, "providers"); err != nil {
		return fmt.Errorf("open provider index: %w", err)
	}
	return nil
}

func (r *run) generate(ctx context.Context) error {
	err := r.runPhase(ctx, PhaseUsers, r.cfg.Users, func(int64) error {
		u := r.gen.User()
		if err := r.sinks[datagen.KindUser].Write(u); err != nil {
			return err
		}
		return r.users.Append(u.ID)
	})
	if err != nil {
		return err
	}

	if err := r.phase.advance(PhaseAddresses); err != nil {
		return err
	}
	err = r.runPhase(ctx, PhaseAddresses, int64(r.users.Len()), func(i int64) error {
		userID, err := r.users.At(int(i))
		if err != nil {
			return err
		}
		return r.sinks[datagen.KindAddress].Write(r.gen.Address(userID))
	})
	if err != nil {
		return err
	}

	if err := r.phase.advance(PhaseProviders); err != nil {
		return err
	}
	err = r.runPhase(ctx, PhaseProviders, r.cfg.Providers, func(int64) error {
		p := r.gen.Provider()
		if err := r.sinks[datagen.KindProvider].Write(p); err != nil {
			return err
		}
		return r.provs.Append(p.ID)
	})
	if err != nil {
		return err
	}

	if err := r.phase.advance(PhaseTransactions); err != nil {
		return err
	}
	return r.runPhase(ctx, PhaseTransactions, r.cfg.Transactions, func(int64) error {
		tx, err := r.gen.Transaction(r.users, r.provs)
		if err != nil {
			return err
		}
		return r.sinks[datagen.KindTransaction].Write(tx)
	})
}

// runPhase calls produce total times, reporting progress and honouring ctx.
func (r *run) runPhase(ctx context.Context, p Phase, total int64, produce func(i int64) error) (err error) {
	_, span := tracing.StartSpan(ctx, "datagen.phase."+p.String())
	defer func() { tracing.EndSpan(span, err) }()

	s := r.sinks[p.Kind()]
	started := time.Now()
	r.opts.reporter.Start(p.String(), total)

	for i := int64(0); i < total; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("phase %s: %w", p, err)
			}
		}
		if err := produce(i); err != nil {
			return fmt.Errorf("phase %s: %w", p, err)
		}
		r.opts.reporter.Update(p.String(), i+1, total)
	}

	r.opts.reporter.Finish(p.String())
	span.SetInt("records", s.Count()).SetString("path", s.Path())

	r.summary.Phases = append(r.summary.Phases, PhaseSummary{
		Phase:    p,
		Records:  s.Count(),
		Path:     s.Path(),
		Duration: time.Since(started),
	})
	r.logf("%s completed (%d records)", titleCase(p.String()), s.Count())
	return nil
}

// finish closes every sink and index, recording final byte counts.
func (r *run) finish() error {
	if err := r.phase.advance(PhaseDone); err != nil {
		return err
	}

	var errs []error
	for i := range r.summary.Phases {
		ps := &r.summary.Phases[i]
		s := r.sinks[ps.Phase.Kind()]
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("phase %s: %w", ps.Phase, err))
		}
		ps.Bytes = s.Bytes()
	}
	if err := r.closeIndexes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeAll releases everything after a failure. Errors are logged only: the
// run is already failing with a more relevant one.
func (r *run) closeAll() {
	for _, kind := range datagen.Kinds {
		if s, ok := r.sinks[kind]; ok {
			if err := s.Close(); err != nil {
				r.logf("Closing %s: %v", s.Path(), err)
			}
		}
	}
	if err := r.closeIndexes(); err != nil {
		r.logf("Closing retention indexes: %v", err)
	}
}

func (r *run) closeIndexes() error {
	var errs []error
	for _, idx := range []retain.Index{r.users, r.provs} {
		if idx != nil {
			errs = append(errs, idx.Close())
		}
	}
	r.users, r.provs = nil, nil
	return errors.Join(errs...)
}

func idModeName(m idalloc.Mode) idalloc.Mode {
	if m == "" {
		return idalloc.ModeShared
	}
	return m
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
