package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-viewer/internal/core/domain"
	"github.com/kirillkom/document-viewer/internal/core/ports"
)

const (
	DefaultMaxUploadBytes = 16 << 20

	msgUploadFailed = "Upload failed. Please try again."
)

type UploadUseCase struct {
	svc          ports.DocumentService
	inspector    ports.FileInspector
	notifier     ports.ReadyNotifier
	pollInterval time.Duration
	maxBytes     int64
}

func NewUploadUseCase(
	svc ports.DocumentService,
	inspector ports.FileInspector,
	notifier ports.ReadyNotifier,
	pollInterval time.Duration,
	maxBytes int64,
) *UploadUseCase {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadUseCase{
		svc:          svc,
		inspector:    inspector,
		notifier:     notifier,
		pollInterval: pollInterval,
		maxBytes:     maxBytes,
	}
}

func (uc *UploadUseCase) Upload(ctx context.Context, filename string, body io.Reader) (*domain.UploadResult, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}

	data, err := io.ReadAll(io.LimitReader(body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(data)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("file too large, maximum size %.1f MB", float64(uc.maxBytes)/(1<<20)))
	}

	report, err := uc.inspector.Inspect(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("preflight %s: %w", name, err)
	}

	result, err := uc.svc.Upload(ctx, name, report.ContentType, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	slog.Info("document_uploaded",
		"document_id", result.DocumentID,
		"filename", result.Filename,
		"size_bytes", report.Size,
		"pages", report.Pages,
		"sheets", report.Sheets,
	)
	return result, nil
}

// WaitProcessed polls document metadata until processing completes, then publishes a
// ready notification. Transient fetch failures are logged and polling continues.
func (uc *UploadUseCase) WaitProcessed(ctx context.Context, documentID string) (*domain.DocumentDetail, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "wait processed", errors.New("document id is required"))
	}

	ticker := time.NewTicker(uc.pollInterval)
	defer ticker.Stop()

	for {
		detail, err := uc.svc.GetDocument(ctx, documentID)
		switch {
		case err == nil && detail.ProcessingComplete:
			logProcessed(*detail)
			uc.notify(ctx, *detail)
			return detail, nil
		case err != nil && (domain.IsKind(err, domain.ErrDocumentNotFound) || domain.IsKind(err, domain.ErrUnauthorized)):
			return nil, fmt.Errorf("poll document %s: %w", documentID, err)
		case err != nil:
			slog.Warn("document_poll_failed", "document_id", documentID, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func logProcessed(detail domain.DocumentDetail) {
	attrs := []any{"document_id", detail.ID, "filename", detail.Filename, "failed", detail.Failed()}
	if uploadedAt, err := detail.UploadedAt(); err == nil {
		attrs = append(attrs, "uploaded_at", uploadedAt, "elapsed_ms", time.Since(uploadedAt).Milliseconds())
	}
	slog.Info("document_processed", attrs...)
}

func (uc *UploadUseCase) notify(ctx context.Context, detail domain.DocumentDetail) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.PublishDocumentReady(ctx, detail); err != nil {
		slog.Warn("document_ready_notify_failed", "document_id", detail.ID, "error", err)
	}
}

// UploadFailureMessage turns an upload error into the user-facing message, preferring
// the service-provided detail when there is one.
func UploadFailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var detailed interface{ ServiceDetail() string }
	if errors.As(err, &detailed) {
		if detail := strings.TrimSpace(detailed.ServiceDetail()); detail != "" {
			return "Upload failed: " + detail
		}
	}
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return "Upload failed: " + rootMessage(err)
	}
	return msgUploadFailed
}

// rootMessage follows the wrap chain to the innermost cause. For errors built by
// domain.WrapError the cause is the last wrapped error.
func rootMessage(err error) string {
	for {
		switch e := err.(type) {
		case interface{ Unwrap() []error }:
			errs := e.Unwrap()
			if len(errs) == 0 {
				return err.Error()
			}
			err = errs[len(errs)-1]
		case interface{ Unwrap() error }:
			next := e.Unwrap()
			if next == nil {
				return err.Error()
			}
			err = next
		default:
			return err.Error()
		}
	}
}
