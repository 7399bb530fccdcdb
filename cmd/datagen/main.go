package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pkg.jsn.cam/datagen/internal/config"
	"pkg.jsn.cam/datagen/internal/tracing"
	"pkg.jsn.cam/datagen/pkg/datagen"
	"pkg.jsn.cam/datagen/pkg/datagen/pipeline"
	"pkg.jsn.cam/datagen/pkg/datagen/progress"
	"pkg.jsn.cam/datagen/pkg/datagen/verify"
)

/*generates users, addresses, payment providers and transactions with consistent foreign keys*/

var (
	ConfigPath = flag.String("config", "", "YAML config file")
	EnvFile    = flag.String("env-file", ".env", "dotenv file loaded before reading DATAGEN_* variables")
	Verify     = flag.Bool("verify", false, "Check an existing output directory instead of generating")
)

func init() {
	d := config.Default()
	p := d.Pipeline

	flag.Int64("users", p.Users, "Number of users (one address each)")
	flag.Int64("transactions", p.Transactions, "Number of transactions")
	flag.Int64("providers", p.Providers, "Number of payment providers")
	flag.Bool("skewed", p.Skewed, "Favour low-index users when assigning transactions")
	flag.String("output", p.OutputDir, "Output directory, created if missing")
	flag.String("format", string(p.Format), "Output format: json or csv")
	flag.String("compress", string(p.Compression), "Output compression: none or snappy")
	flag.String("id-mode", string(p.IDs.Mode), "Identifier mode: shared, per-kind or snowflake")
	flag.Int64("start-id", p.IDs.Start, "First id of the shared sequence")
	flag.Int64("user-start-id", p.IDs.UserStart, "First user id (per-kind mode)")
	flag.Int64("address-start-id", p.IDs.AddressStart, "First address id (per-kind mode)")
	flag.Int64("provider-start-id", p.IDs.ProviderStart, "First provider id (per-kind mode)")
	flag.Int64("transaction-start-id", p.IDs.TransactionStart, "First transaction id (per-kind mode)")
	flag.Int64("snowflake-node", p.IDs.Node, "Node number, 0-1023 (snowflake mode)")
	flag.Uint64("seed", p.Seed, "Random seed, 0 picks one from the clock")
	flag.String("retain", string(p.Retention), "Where user/provider ids are kept: memory or bolt")
	flag.String("scratch-dir", p.ScratchDir, "Directory for bolt retention files (default: system temp)")
	flag.String("progress", d.Progress, "Progress output: bar, log or none")
	flag.String("trace-file", d.TraceFile, "Write OpenTelemetry spans to this file")
}

func main() {
	flag.Parse()

	settings, err := loadSettings()
	if err != nil {
		log.Fatalf("[DATAGEN] Configuration error: %v", err)
	}
	if err := settings.Pipeline.Validate(); err != nil {
		log.Fatalf("[DATAGEN] Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if *Verify {
		err = verifyOutput(ctx, settings, os.Stdout)
	} else {
		err = generate(ctx, settings, os.Stdout)
	}
	stop()

	if err != nil {
		log.Printf("[DATAGEN] %v", err)
		os.Exit(1)
	}
}

var errVerifyFailed = errors.New("verification found problems")

func verifyOutput(ctx context.Context, s config.Settings, w io.Writer) error {
	p := s.Pipeline
	report, err := verify.Dir(ctx, p.OutputDir, p.Format, p.Compression)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	printReport(w, p.OutputDir, report)
	if !report.OK() {
		return errVerifyFailed
	}
	return nil
}

// generate runs the pipeline. Traces are flushed before it returns, whether
// the run failed or not.
func generate(ctx context.Context, s config.Settings, w io.Writer) error {
	reporter, err := progress.New(s.Progress)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if s.TraceFile != "" {
		shutdown, err := tracing.Init("datagen", datagen.Version, s.TraceFile)
		if err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("[DATAGEN] Failed to flush traces: %v", err)
			}
		}()
	}

	summary, err := pipeline.Run(ctx, s.Pipeline, pipeline.WithReporter(reporter))
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	printSummary(w, summary)
	return nil
}

// loadSettings layers defaults, the YAML file, the environment and finally
// the flags that were set explicitly.
func loadSettings() (config.Settings, error) {
	s := config.Default()

	if *ConfigPath != "" {
		if err := s.LoadFile(*ConfigPath); err != nil {
			return s, err
		}
	}

	if err := config.LoadDotEnv(*EnvFile); err != nil {
		return s, fmt.Errorf("load %s: %w", *EnvFile, err)
	}
	if err := s.LoadEnv(os.LookupEnv); err != nil {
		return s, err
	}

	var applyErr error
	flag.Visit(func(f *flag.Flag) {
		if applyErr != nil || f.Name == "config" || f.Name == "env-file" || f.Name == "verify" {
			return
		}
		applyErr = s.Apply(f.Name, f.Value.String())
	})
	return s, applyErr
}
