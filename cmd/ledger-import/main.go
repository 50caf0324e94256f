// Command ledger-import loads a CSV or XLSX ledger into the configured
// store and prints a period report of what it holds afterwards.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ledgerdash/internal/cli"
	"ledgerdash/internal/core"
	"ledgerdash/internal/importer"
	"ledgerdash/internal/log"
	"ledgerdash/internal/services"
)

type options struct {
	file        string
	target      string
	start       string
	end         string
	defaultDate string
	loc         *time.Location
	printer     *message.Printer
}

func main() {
	opts := options{}
	flag.StringVar(&opts.file, "file", "", "CSV or XLSX file to import (required)")
	flag.StringVar(&opts.target, "target", "transactions", "import target: transactions, budget or index")
	flag.StringVar(&opts.start, "start", "", "report start date, YYYY-MM-DD")
	flag.StringVar(&opts.end, "end", "", "report end date, YYYY-MM-DD")
	flag.StringVar(&opts.defaultDate, "default-date", "", "date for rows without a Fecha cell, YYYY-MM-DD")
	lang := flag.String("lang", "es-CL", "locale used to format amounts")
	flag.Parse()

	if opts.file == "" {
		fmt.Fprintln(os.Stderr, "ledger-import: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentImport)
	opts.loc = cfg.Location()
	opts.printer = message.NewPrinter(language.Make(*lang))

	ctx, stop := cli.SignalContext(logger)
	be := cli.InitBackend(ctx, logger, cfg)

	reports := services.NewReportService(be.Store, services.ReportServiceConfig{
		Threshold: cfg.VarianceThreshold(),
		Location:  opts.loc,
	}, logger)
	var publisher services.EventPublisher
	if be.AMQP != nil {
		publisher = be.AMQP
	}
	ledger := services.NewLedgerService(be.Store, reports, publisher, opts.loc, logger)

	err := importAndReport(ctx, ledger, reports, opts, os.Stdout)
	if cerr := be.Cleanup(); cerr != nil {
		logger.Warn("Backend cleanup failed", log.FieldError, cerr)
	}
	stop()
	if err != nil {
		logger.Error("Import failed", log.FieldFile, opts.file, log.FieldError, err)
		os.Exit(1)
	}
}

// importAndReport imports opts.file and writes the import summary followed
// by the report of the affected book.
func importAndReport(ctx context.Context, ledger *services.LedgerService, reports *services.ReportService, opts options, out io.Writer) error {
	rng, err := parseRange(opts.start, opts.end, opts.loc)
	if err != nil {
		return err
	}
	var importOpts []importer.Option
	if opts.defaultDate != "" {
		d, err := core.ParseDate(opts.defaultDate, opts.loc)
		if err != nil {
			return fmt.Errorf("default date: %w", err)
		}
		importOpts = append(importOpts, importer.WithDefaultDate(d))
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := ledger.Import(ctx, opts.target, opts.file, f, importOpts...)
	if err != nil {
		return err
	}
	if err := writeImport(out, res); err != nil {
		return err
	}

	book := core.Actual
	if opts.target == string(core.Budget) {
		book = core.Budget
	}
	rep, err := reports.Report(ctx, book, rng, nil)
	if err != nil {
		return err
	}
	return writeReport(out, opts.printer, book, rep)
}

func parseRange(start, end string, loc *time.Location) (core.Range, error) {
	var r core.Range
	var err error
	if start != "" {
		if r.Start, err = core.ParseDate(start, loc); err != nil {
			return core.Range{}, fmt.Errorf("start: %w", err)
		}
	}
	if end != "" {
		if r.End, err = core.ParseDate(end, loc); err != nil {
			return core.Range{}, fmt.Errorf("end: %w", err)
		}
	}
	return r, r.Validate()
}
