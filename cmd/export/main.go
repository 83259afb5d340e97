// Command export writes the receipt collection as CSV, applying the same
// filters the web UI offers.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"snapreceipt/internal/cli"
	"snapreceipt/internal/core"
	"snapreceipt/internal/engine"
	"snapreceipt/internal/export"
	"snapreceipt/internal/log"
)

func main() {
	fs := ff.NewFlagSet("snapreceipt-export")
	var (
		output        = fs.StringLong("output", "", "Output file path (default: stdout)")
		receiptType   = fs.StringLong("type", "all", "Receipt type: 'all', 'personal' or 'business'")
		search        = fs.StringLong("search", "", "Case-insensitive text search")
		from          = fs.StringLong("from", "", "Inclusive start date (YYYY-MM-DD)")
		to            = fs.StringLong("to", "", "Inclusive end date (YYYY-MM-DD)")
		category      = fs.StringLong("category", "", "Category filter")
		clientID      = fs.StringLong("client", "", "Client ID filter")
		tripID        = fs.StringLong("trip", "", "Trip ID filter")
		paymentMethod = fs.StringLong("payment", "", "Payment method filter")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SNAPRECEIPT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := checkDateFlags(*from, *to); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentExport)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.NotifyShutdown(context.Background())
	defer stop()

	store, cleanup := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	records, err := store.ListReceipts(fetchCtx)
	if err != nil {
		logger.Error("Failed to list receipts", log.FieldError, err)
		os.Exit(1)
	}

	filtered := engine.Apply(records, *receiptType, *search, engine.Criteria{
		DateFrom:      *from,
		DateTo:        *to,
		Category:      *category,
		ClientID:      *clientID,
		TripID:        *tripID,
		PaymentMethod: *paymentMethod,
	})

	body := export.CSV(filtered)

	if *output == "" {
		fmt.Println(body)
		return
	}

	if err := os.WriteFile(*output, []byte(body), 0644); err != nil {
		logger.Error("Failed to write export file", log.FieldError, err, "path", *output)
		os.Exit(1)
	}
	logger.Info("Export written", "path", *output, "receipts", len(filtered))
}

// checkDateFlags rejects malformed date bounds. A bad bound would silently
// narrow the export instead of failing.
func checkDateFlags(from, to string) error {
	for _, d := range []struct{ flag, value string }{{"from", from}, {"to", to}} {
		if d.value != "" && !core.IsISODate(d.value) {
			return fmt.Errorf("--%s must be a YYYY-MM-DD date, got %q", d.flag, d.value)
		}
	}
	return nil
}
