// Package progress reports per-phase generation progress. Reporters are
// purely observational; nothing they do can change the generated data.
package progress

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives (phase, current, total) updates.
type Reporter interface {
	Start(phase string, total int64)
	Update(phase string, current, total int64)
	Finish(phase string)
}

// New returns the reporter registered under name: bar, log or none.
func New(name string) (Reporter, error) {
	switch strings.ToLower(name) {
	case "", "bar":
		return NewBar(os.Stderr), nil
	case "log":
		return NewLog(log.Default(), 10), nil
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown progress reporter: %s", name)
	}
}

// Nop discards every update.
type Nop struct{}

func (Nop) Start(string, int64)         {}
func (Nop) Update(string, int64, int64) {}
func (Nop) Finish(string)               {}

// Bar draws one terminal progress bar per phase.
type Bar struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

// NewBar returns a Bar drawing on w.
func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

func (b *Bar) Start(phase string, total int64) {
	b.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(fmt.Sprintf("Generating %-12s", titleCase(phase))),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerPadding: "-",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(b.w)
		}),
	)
}

func (b *Bar) Update(_ string, current, _ int64) {
	if b.bar != nil {
		b.bar.Set64(current)
	}
}

func (b *Bar) Finish(string) {
	if b.bar != nil {
		b.bar.Finish()
		b.bar = nil
	}
}

// Log prints a line each time a phase crosses another step percent.
type Log struct {
	logger *log.Logger
	step   int64
	last   int64
}

// NewLog returns a Log reporter. step is clamped to [1, 100].
func NewLog(logger *log.Logger, step int64) *Log {
	if step < 1 {
		step = 1
	}
	if step > 100 {
		step = 100
	}
	return &Log{logger: logger, step: step}
}

func (l *Log) Start(phase string, total int64) {
	l.last = 0
	l.logger.Printf("[PROGRESS] %s: starting (%d records)", phase, total)
}

func (l *Log) Update(phase string, current, total int64) {
	if total <= 0 {
		return
	}
	pct := current * 100 / total
	if pct >= l.last+l.step {
		l.last = pct - pct%l.step
		l.logger.Printf("[PROGRESS] %s: %d/%d (%d%%)", phase, current, total, pct)
	}
}

func (l *Log) Finish(phase string) {
	l.logger.Printf("[PROGRESS] %s: completed", phase)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
