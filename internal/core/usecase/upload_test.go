package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/document-viewer/internal/core/domain"
)

type inspectorFake struct {
	report domain.FileReport
	err    error
	seen   []string
}

func (f *inspectorFake) Inspect(_ context.Context, filename string, data []byte) (domain.FileReport, error) {
	f.seen = append(f.seen, filename)
	if f.err != nil {
		return domain.FileReport{}, f.err
	}
	report := f.report
	report.Filename = filename
	report.Size = int64(len(data))
	return report, nil
}

type notifierFake struct {
	mu     sync.Mutex
	events []domain.DocumentDetail
	err    error
}

func (f *notifierFake) PublishDocumentReady(_ context.Context, detail domain.DocumentDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, detail)
	return f.err
}

type serviceDetailErr struct{ detail string }

func (d serviceDetailErr) Error() string         { return "service said no" }
func (d serviceDetailErr) ServiceDetail() string { return d.detail }

func TestUploadRunsPreflightAndSendsContentType(t *testing.T) {
	svc := newDocServiceFake()
	inspector := &inspectorFake{report: domain.FileReport{ContentType: "text/csv"}}
	uc := NewUploadUseCase(svc, inspector, nil, time.Millisecond, 0)

	result, err := uc.Upload(context.Background(), "/tmp/reports/q1.csv", strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if result.Filename != "q1.csv" {
		t.Fatalf("expected base filename, got %q", result.Filename)
	}
	if len(svc.uploaded) != 1 || svc.uploaded[0].contentType != "text/csv" || svc.uploaded[0].body != "a,b\n1,2\n" {
		t.Fatalf("unexpected upload calls: %+v", svc.uploaded)
	}
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	svc := newDocServiceFake()
	uc := NewUploadUseCase(svc, &inspectorFake{}, nil, time.Millisecond, 4)

	_, err := uc.Upload(context.Background(), "a.txt", strings.NewReader("hello"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if svc.count("upload") != 0 {
		t.Fatalf("oversized file must not be sent")
	}
	if got := UploadFailureMessage(err); !strings.HasPrefix(got, "Upload failed: file too large") {
		t.Fatalf("unexpected failure message %q", got)
	}
}

func TestUploadRejectsMissingFilename(t *testing.T) {
	uc := NewUploadUseCase(newDocServiceFake(), &inspectorFake{}, nil, time.Millisecond, 0)
	if _, err := uc.Upload(context.Background(), "  ", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUploadPreflightFailureStopsUpload(t *testing.T) {
	svc := newDocServiceFake()
	inspector := &inspectorFake{err: domain.WrapError(domain.ErrInvalidInput, "inspect pdf", errors.New("pdf has no pages"))}
	uc := NewUploadUseCase(svc, inspector, nil, time.Millisecond, 0)

	_, err := uc.Upload(context.Background(), "empty.pdf", strings.NewReader("%PDF"))
	if err == nil || svc.count("upload") != 0 {
		t.Fatalf("expected preflight rejection, err=%v uploads=%d", err, svc.count("upload"))
	}
	if got := UploadFailureMessage(err); got != "Upload failed: pdf has no pages" {
		t.Fatalf("unexpected failure message %q", got)
	}
}

func TestUploadFailureMessage(t *testing.T) {
	withDetail := domain.WrapError(domain.ErrInvalidInput, "upload", serviceDetailErr{detail: "File type not allowed"})
	if got := UploadFailureMessage(withDetail); got != "Upload failed: File type not allowed" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := UploadFailureMessage(errors.New("connection reset")); got != "Upload failed. Please try again." {
		t.Fatalf("unexpected generic message %q", got)
	}
	if got := UploadFailureMessage(serviceDetailErr{}); got != "Upload failed. Please try again." {
		t.Fatalf("empty detail must fall back to generic message, got %q", got)
	}
	if got := UploadFailureMessage(nil); got != "" {
		t.Fatalf("nil error must have no message, got %q", got)
	}
}

func TestWaitProcessedPollsUntilCompleteAndNotifies(t *testing.T) {
	svc := newDocServiceFake()
	svc.setDetail(pendingDetail("doc-1"))
	notifier := &notifierFake{}
	uc := NewUploadUseCase(svc, &inspectorFake{}, notifier, time.Millisecond, 0)

	go func() {
		for svc.count("document") < 3 {
			time.Sleep(time.Millisecond)
		}
		svc.setDetail(completedDetail("doc-1"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	detail, err := uc.WaitProcessed(ctx, "doc-1")
	if err != nil {
		t.Fatalf("WaitProcessed() error = %v", err)
	}
	if !detail.ProcessingComplete || svc.count("document") < 3 {
		t.Fatalf("unexpected detail %+v after %d polls", detail, svc.count("document"))
	}
	if len(notifier.events) != 1 || notifier.events[0].ID != "doc-1" {
		t.Fatalf("expected one ready event, got %+v", notifier.events)
	}
}

func TestWaitProcessedNotifyFailureIsNotFatal(t *testing.T) {
	svc := newDocServiceFake()
	svc.setDetail(completedDetail("doc-1"))
	notifier := &notifierFake{err: domain.WrapError(domain.ErrTemporary, "nats publish", errors.New("no servers"))}
	uc := NewUploadUseCase(svc, &inspectorFake{}, notifier, time.Millisecond, 0)

	if _, err := uc.WaitProcessed(context.Background(), "doc-1"); err != nil {
		t.Fatalf("WaitProcessed() error = %v", err)
	}
}

func TestWaitProcessedLogsUploadTime(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	detail := completedDetail("doc-1")
	detail.UploadTime = "2026-01-02T03:04:05.123456"
	svc := newDocServiceFake()
	svc.setDetail(detail)
	uc := NewUploadUseCase(svc, &inspectorFake{}, nil, time.Millisecond, 0)

	if _, err := uc.WaitProcessed(context.Background(), "doc-1"); err != nil {
		t.Fatalf("WaitProcessed() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"msg":"document_processed"`) || !strings.Contains(out, `"uploaded_at":"2026-01-02T03:04:05.123456Z"`) {
		t.Fatalf("expected processed log with upload time, got %s", out)
	}
}

func TestWaitProcessedStopsOnNotFound(t *testing.T) {
	uc := NewUploadUseCase(newDocServiceFake(), &inspectorFake{}, nil, time.Millisecond, 0)
	_, err := uc.WaitProcessed(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWaitProcessedHonorsCancellation(t *testing.T) {
	svc := newDocServiceFake()
	svc.detailErr = domain.WrapError(domain.ErrTemporary, "get document", errors.New("503"))
	uc := NewUploadUseCase(svc, &inspectorFake{}, nil, time.Millisecond, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := uc.WaitProcessed(ctx, "doc-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if svc.count("document") < 2 {
		t.Fatalf("transient failures must keep polling, got %d polls", svc.count("document"))
	}
}
