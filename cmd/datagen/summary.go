package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"pkg.jsn.cam/datagen/pkg/datagen"
	"pkg.jsn.cam/datagen/pkg/datagen/pipeline"
	"pkg.jsn.cam/datagen/pkg/datagen/verify"
)

func printSummary(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "Data generation complete. Output saved to %s directory in %s format\n", s.OutputDir, s.Format)
	fmt.Fprintf(w, "  Run ID:   %s\n", s.RunID)
	fmt.Fprintf(w, "  Seed:     %d\n", s.Seed)
	fmt.Fprintf(w, "  Duration: %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-14s %12s %10s  %s\n", "ENTITY", "RECORDS", "SIZE", "FILE")
	fmt.Fprintln(w, "──────────────────────────────────────────────────────────────────")
	var records int64
	for _, ps := range s.Phases {
		records += ps.Records
		fmt.Fprintf(w, "%-14s %12s %10s  %s\n",
			ps.Phase,
			humanize.Comma(ps.Records),
			humanize.Bytes(uint64(ps.Bytes)),
			ps.Path)
	}
	fmt.Fprintf(w, "%-14s %12s %10s\n", "total", humanize.Comma(records), humanize.Bytes(uint64(s.TotalBytes())))
}

func printReport(w io.Writer, dir string, r *verify.Report) {
	status := "OK"
	if !r.OK() {
		status = "FAILED"
	}
	fmt.Fprintf(w, "Verification of %s: %s\n", dir, status)
	for _, kind := range datagen.Kinds {
		fmt.Fprintf(w, "  %-14s %12s\n", kind, humanize.Comma(r.Records[kind]))
	}
	if r.Records[datagen.KindTransaction] > 0 {
		fmt.Fprintf(w, "  Busiest user %d holds %.1f%% of transactions\n", r.HotUserID, r.HotUserShare*100)
	}
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	if r.Dropped > 0 {
		fmt.Fprintf(w, "  ... and %d more problems\n", r.Dropped)
	}
}
