package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyjia/fraudguard/internal/application/dispatcher"
	"github.com/garyjia/fraudguard/internal/application/service"
	"github.com/garyjia/fraudguard/internal/config"
	"github.com/garyjia/fraudguard/internal/document"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/garyjia/fraudguard/internal/domain/event"
	"github.com/garyjia/fraudguard/internal/infrastructure/external/fraudapi"
	"github.com/garyjia/fraudguard/pkg/utils"
)

// Submits claim documents to the fraud detection service as one batch and prints a report

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the exit status so deferred cleanup runs before the process exits
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("upload-claims", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML config file (optional)")
	endpoint := fs.String("endpoint", "", "fraud detection upload URL, overrides the config")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: upload-claims [-config path] [-endpoint url] file...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	paths := fs.Args()
	if len(paths) == 0 {
		fs.Usage()
		return 2
	}

	if *endpoint != "" {
		os.Setenv("FRAUD_API_ENDPOINT", *endpoint)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	inspector := document.NewInspector(logger)
	documents := make([]entity.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := inspector.InspectFile(p)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to read %s: %v\n", p, err)
			return 1
		}
		documents = append(documents, doc)
	}

	fmt.Fprintln(stdout, "=== Claim Fraud Review ===")
	fmt.Fprintf(stdout, "Endpoint: %s\n", cfg.FraudAPI.Endpoint)
	fmt.Fprintf(stdout, "Files:    %d\n\n", len(documents))

	kv := utils.NewKVLogger(logger)
	events := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	defer func() { _ = events.Close() }()

	for _, t := range event.AllTypes() {
		events.SubscribeNamed(t, "console."+string(t), printEvent(stdout))
	}

	client := fraudapi.NewClient(fraudapi.Config{
		Endpoint: cfg.FraudAPI.Endpoint,
		Timeout:  cfg.FraudAPI.Timeout,
	}, logger)
	uploads := service.NewUploadOrchestrator(service.NewUploadBoard(), client, events, kv,
		service.WithConcurrency(cfg.Upload.Concurrency))

	batch, err := uploads.SubmitBatch(ctx, documents)
	if err != nil {
		fmt.Fprintf(stderr, "Upload rejected: %v\n", err)
		return 1
	}

	if failed := printReport(stdout, uploads.Board(), batch); failed > 0 {
		return 1
	}
	return 0
}

// printEvent shows upload progress as each event arrives
func printEvent(w io.Writer) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		n, ok := service.NotificationFor(evt)
		if !ok {
			return nil
		}
		if evt.FileID != "" {
			fmt.Fprintf(w, "[%3.0f%%] %s\n", evt.GetPayloadFloat(event.KeyProgress), n.Text())
			return nil
		}
		fmt.Fprintln(w, n.Text())
		return nil
	}
}

func printReport(w io.Writer, board *service.UploadBoard, batch *entity.Batch) int {
	failed := 0
	for _, id := range batch.FileIDs {
		f, err := board.File(id)
		if err != nil {
			continue
		}

		if f.Status == entity.FileStatusFailed {
			failed++
			fmt.Fprintf(w, "✗ %s (%s): %s\n", f.Name, f.SizeLabel, f.Error)
			continue
		}

		fmt.Fprintf(w, "✓ %s (%s): %s\n", f.Name, f.SizeLabel, f.FraudStatus)
		if d := f.ExtractedData; d != nil {
			if d.ClaimID != "" {
				fmt.Fprintf(w, "    claim:    %s\n", d.ClaimID)
			}
			if d.PatientName != "" {
				fmt.Fprintf(w, "    patient:  %s\n", d.PatientName)
			}
			if d.Hospital != "" {
				fmt.Fprintf(w, "    hospital: %s\n", d.Hospital)
			}
			if d.Amount > 0 {
				fmt.Fprintf(w, "    amount:   %s\n", utils.FormatINR(int64(math.Round(d.Amount))))
			}
			if d.FraudReason != "" {
				fmt.Fprintf(w, "    reason:   %s\n", d.FraudReason)
			}
		}
	}

	progress, _ := board.BatchProgress(batch.ID)
	fmt.Fprintf(w, "\n%d of %d file(s) analyzed, %d failed (%.0f%%)\n",
		progress.Completed, progress.Total, progress.Failed, progress.Progress)
	return failed
}
