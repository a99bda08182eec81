package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-viewer/internal/bootstrap"
	"github.com/kirillkom/document-viewer/internal/config"
	"github.com/kirillkom/document-viewer/internal/core/usecase"
	"github.com/kirillkom/document-viewer/internal/observability/logging"
)

const serviceName = "uploader"

func main() {
	wait := flag.Bool("wait", true, "wait for processing to complete after upload")
	timeout := flag.Duration("timeout", 10*time.Minute, "maximum time to wait for processing per file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-wait=true] [-timeout=10m] FILE...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logging.Install(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var g errgroup.Group
	g.SetLimit(max(cfg.UploadConcurrency, 1))

	for _, path := range flag.Args() {
		g.Go(func() error {
			if err := uploadOne(ctx, app, path, *wait, *timeout); err != nil {
				slog.Error("upload_failed", "path", path, "error", err, "message", usecase.UploadFailureMessage(err))
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		os.Exit(1)
	}
}

func uploadOne(ctx context.Context, app *bootstrap.App, path string, wait bool, timeout time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	result, err := app.Uploads.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	if !wait {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	detail, err := app.Uploads.WaitProcessed(waitCtx, result.DocumentID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("document %s still processing after %s: %w", result.DocumentID, timeout, err)
		}
		return err
	}

	app.ClientMetrics.RecordDocumentReady(detail.Failed())
	if detail.Failed() {
		return fmt.Errorf("document %s processing failed: %s", detail.ID, *detail.ProcessingError)
	}
	slog.Info("document_ready", "document_id", detail.ID, "filename", detail.Filename, "enhanced", detail.EnhancedProcessing)
	return nil
}
