// Package verify reads a generated output directory back and checks the
// properties consumers rely on: unique ids, valid foreign keys, one address
// per user, amounts within bounds, and the declared field set on every record.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"strconv"

	"pkg.jsn.cam/datagen/pkg/datagen"
	"pkg.jsn.cam/datagen/pkg/datagen/sink"
)

// maxProblems caps the problems kept in a report; the rest are only counted.
const maxProblems = 20

// Report is the result of checking one output directory.
type Report struct {
	Records map[datagen.Kind]int64

	// HotUserID received the most transactions, HotUserShare is its fraction.
	HotUserID    int64
	HotUserShare float64

	Problems []string
	Dropped  int
}

// OK reports whether no problem was found.
func (r *Report) OK() bool {
	return len(r.Problems) == 0 && r.Dropped == 0
}

func (r *Report) problemf(format string, args ...any) {
	if len(r.Problems) >= maxProblems {
		r.Dropped++
		return
	}
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

type checker struct {
	dir    string
	format sink.Format
	comp   sink.Compression
	report *Report

	users     map[int64]int // user id -> addresses seen
	providers map[int64]struct{}
}

// Dir checks the four entity files in dir. Problems with the data end up in
// the report; an error means a file could not be read at all.
func Dir(ctx context.Context, dir string, format sink.Format, comp sink.Compression) (*Report, error) {
	c := &checker{
		dir:       dir,
		format:    format,
		comp:      comp,
		report:    &Report{Records: make(map[datagen.Kind]int64, len(datagen.Kinds))},
		users:     make(map[int64]int),
		providers: make(map[int64]struct{}),
	}

	if err := c.scan(ctx, datagen.KindUser, datagen.User{}, c.user); err != nil {
		return nil, err
	}
	if err := c.scan(ctx, datagen.KindAddress, datagen.Address{}, c.address()); err != nil {
		return nil, err
	}
	if err := c.scan(ctx, datagen.KindProvider, datagen.PaymentProvider{}, c.provider); err != nil {
		return nil, err
	}
	counts := make(map[int64]int64)
	if err := c.scan(ctx, datagen.KindTransaction, datagen.Transaction{}, c.transaction(counts)); err != nil {
		return nil, err
	}

	c.finish(counts)
	return c.report, nil
}

// scan feeds every record of kind to check after validating its field set.
func (c *checker) scan(ctx context.Context, kind datagen.Kind, proto any, check func(n int64, rec map[string]string)) error {
	columns, err := sink.Columns(proto)
	if err != nil {
		return err
	}

	path := filepath.Join(c.dir, sink.FileName(kind.String(), c.format, c.comp))
	r, err := openReader(path, c.format, c.comp)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	if cr, ok := r.(*csvReader); ok && !slices.Equal(cr.header, columns) {
		c.report.problemf("%s header %v, want %v", kind, cr.header, columns)
	}

	var n int64
	for {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		n++

		if !sameKeys(rec, columns) {
			c.report.problemf("%s record %d: fields %v, want %v", kind, n, keys(rec), columns)
			continue
		}
		check(n, rec)
	}

	c.report.Records[kind] = n
	return nil
}

func (c *checker) user(n int64, rec map[string]string) {
	id, ok := c.int(datagen.KindUser, n, rec, "id")
	if !ok {
		return
	}
	if _, dup := c.users[id]; dup {
		c.report.problemf("users record %d: duplicate id %d", n, id)
		return
	}
	c.users[id] = 0
}

func (c *checker) address() func(int64, map[string]string) {
	seen := make(map[int64]struct{})
	return func(n int64, rec map[string]string) {
		id, ok := c.int(datagen.KindAddress, n, rec, "id")
		if !ok {
			return
		}
		if _, dup := seen[id]; dup {
			c.report.problemf("addresses record %d: duplicate id %d", n, id)
		}
		seen[id] = struct{}{}

		userID, ok := c.int(datagen.KindAddress, n, rec, "user_id")
		if !ok {
			return
		}
		count, known := c.users[userID]
		if !known {
			c.report.problemf("addresses record %d: unknown user_id %d", n, userID)
			return
		}
		if count > 0 {
			c.report.problemf("addresses record %d: user %d already has an address", n, userID)
		}
		c.users[userID] = count + 1
	}
}

func (c *checker) provider(n int64, rec map[string]string) {
	id, ok := c.int(datagen.KindProvider, n, rec, "id")
	if !ok {
		return
	}
	if _, dup := c.providers[id]; dup {
		c.report.problemf("providers record %d: duplicate id %d", n, id)
		return
	}
	c.providers[id] = struct{}{}
}

func (c *checker) transaction(perUser map[int64]int64) func(int64, map[string]string) {
	seen := make(map[int64]struct{})
	minAmount := float64(1)
	maxAmount := float64(1000)
	return func(n int64, rec map[string]string) {
		if id, ok := c.int(datagen.KindTransaction, n, rec, "id"); ok {
			if _, dup := seen[id]; dup {
				c.report.problemf("transactions record %d: duplicate id %d", n, id)
			}
			seen[id] = struct{}{}
		}

		if userID, ok := c.int(datagen.KindTransaction, n, rec, "user_id"); ok {
			if _, known := c.users[userID]; !known {
				c.report.problemf("transactions record %d: unknown user_id %d", n, userID)
			} else {
				perUser[userID]++
			}
		}
		if providerID, ok := c.int(datagen.KindTransaction, n, rec, "provider_id"); ok {
			if _, known := c.providers[providerID]; !known {
				c.report.problemf("transactions record %d: unknown provider_id %d", n, providerID)
			}
		}

		amount, err := strconv.ParseFloat(rec["amount"], 64)
		switch {
		case err != nil:
			c.report.problemf("transactions record %d: bad amount %q", n, rec["amount"])
		case amount <= minAmount || amount >= maxAmount:
			c.report.problemf("transactions record %d: amount %v outside (%v, %v)", n, amount, minAmount, maxAmount)
		}
	}
}

func (c *checker) finish(perUser map[int64]int64) {
	var missing int
	for _, count := range c.users {
		if count == 0 {
			missing++
		}
	}
	if missing > 0 {
		c.report.problemf("%d users have no address", missing)
	}

	total := c.report.Records[datagen.KindTransaction]
	if total == 0 {
		return
	}
	var hot, hotCount int64
	for id, count := range perUser {
		if count > hotCount || (count == hotCount && id < hot) {
			hot, hotCount = id, count
		}
	}
	c.report.HotUserID = hot
	c.report.HotUserShare = float64(hotCount) / float64(total)
}

func (c *checker) int(kind datagen.Kind, n int64, rec map[string]string, field string) (int64, bool) {
	v, err := strconv.ParseInt(rec[field], 10, 64)
	if err != nil {
		c.report.problemf("%s record %d: %s %q is not an integer", kind, n, field, rec[field])
		return 0, false
	}
	return v, true
}

func sameKeys(rec map[string]string, columns []string) bool {
	if len(rec) != len(columns) {
		return false
	}
	for _, col := range columns {
		if _, ok := rec[col]; !ok {
			return false
		}
	}
	return true
}

func keys(rec map[string]string) []string {
	out := make([]string, 0, len(rec))
	for k := range rec {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
