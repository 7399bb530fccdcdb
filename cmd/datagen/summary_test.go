package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pkg.jsn.cam/datagen/pkg/datagen"
	"pkg.jsn.cam/datagen/pkg/datagen/pipeline"
	"pkg.jsn.cam/datagen/pkg/datagen/verify"
)

func TestPrintSummary(t *testing.T) {
	s := &pipeline.Summary{
		RunID:     "3f1c2a9e-0000-4000-8000-000000000000",
		Seed:      42,
		Format:    "json",
		OutputDir: "output",
		Duration:  1500 * time.Millisecond,
		Phases: []pipeline.PhaseSummary{
			{Phase: pipeline.PhaseUsers, Records: 1200, Bytes: 2048, Path: "output/users.json"},
			{Phase: pipeline.PhaseTransactions, Records: 1000000, Bytes: 3 * 1000 * 1000, Path: "output/transactions.json"},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, s)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Data generation complete. Output saved to output directory in json format\n"))
	assert.Contains(t, out, "Run ID:   3f1c2a9e-0000-4000-8000-000000000000")
	assert.Contains(t, out, "Duration: 1.5s")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "1,000,000")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "3.0 MB")
	assert.Contains(t, out, "1,001,200")
	assert.Contains(t, out, "output/transactions.json")
}

func TestPrintReport(t *testing.T) {
	r := &verify.Report{
		Records: map[datagen.Kind]int64{
			datagen.KindUser:        3,
			datagen.KindAddress:     3,
			datagen.KindProvider:    2,
			datagen.KindTransaction: 4000,
		},
		HotUserID:    1,
		HotUserShare: 0.25,
	}

	var buf bytes.Buffer
	printReport(&buf, "output", r)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Verification of output: OK\n"))
	assert.Contains(t, out, "4,000")
	assert.Contains(t, out, "Busiest user 1 holds 25.0% of transactions")

	r.Problems = []string{"users record 2: duplicate id 1"}
	r.Dropped = 3
	buf.Reset()
	printReport(&buf, "output", r)
	out = buf.String()
	assert.True(t, strings.HasPrefix(out, "Verification of output: FAILED\n"))
	assert.Contains(t, out, "  - users record 2: duplicate id 1\n")
	assert.Contains(t, out, "... and 3 more problems")
}
