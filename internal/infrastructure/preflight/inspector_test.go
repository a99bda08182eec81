package preflight

import (
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-viewer/internal/core/domain"
	"github.com/kirillkom/document-viewer/internal/core/ports"
)

var _ ports.FileInspector = (*Inspector)(nil)

func TestInspectAcceptsText(t *testing.T) {
	report, err := NewInspector(0).Inspect(context.Background(), "notes.TXT", []byte("hello"))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if report.Extension != "txt" || report.ContentType != "text/plain" || report.Size != 5 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestInspectRejectsUnsupportedExtension(t *testing.T) {
	_, err := NewInspector(0).Inspect(context.Background(), "image.png", []byte("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !strings.Contains(err.Error(), "Allowed types") {
		t.Fatalf("expected allowed types in message, got %v", err)
	}
}

func TestInspectRejectsOversizedFile(t *testing.T) {
	_, err := NewInspector(4).Inspect(context.Background(), "a.txt", []byte("hello"))
	if !domain.IsKind(err, domain.ErrInvalidInput) || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size rejection, got %v", err)
	}
}

func TestInspectRejectsBinaryText(t *testing.T) {
	_, err := NewInspector(0).Inspect(context.Background(), "a.txt", []byte{0xff, 0xfe, 0x00})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestInspectCSVHeader(t *testing.T) {
	inspector := NewInspector(0)
	if _, err := inspector.Inspect(context.Background(), "a.csv", []byte("name,size\nx,1\n")); err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if _, err := inspector.Inspect(context.Background(), "b.csv", []byte("\"unterminated,header\n")); err == nil {
		t.Fatalf("expected malformed csv to be rejected")
	}
}

func TestInspectRejectsCorruptPDF(t *testing.T) {
	cases := map[string]string{
		"garbage": "definitely not a pdf",
		"truncated xref": "%PDF-1.4\nxref\n0 2\n0000000000 65535 f \n0000000009 00000 n \n" +
			"trailer\n<< /Size 2 /Root 1 0 R >>\nstartxref\n9\n%%EOF\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewInspector(0).Inspect(context.Background(), "a.pdf", []byte(body))
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestInspectCountsWorkbookSheets(t *testing.T) {
	book := excelize.NewFile()
	if _, err := book.NewSheet("Second"); err != nil {
		t.Fatalf("NewSheet() error = %v", err)
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	_ = book.Close()

	report, err := NewInspector(0).Inspect(context.Background(), "book.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if report.Sheets != 2 {
		t.Fatalf("expected 2 sheets, got %d", report.Sheets)
	}
}

func TestInspectLegacyWorkbookMagic(t *testing.T) {
	inspector := NewInspector(0)
	legacy := append([]byte{}, ole2Magic...)
	legacy = append(legacy, 0x00, 0x01)
	if _, err := inspector.Inspect(context.Background(), "old.xls", legacy); err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if _, err := inspector.Inspect(context.Background(), "fake.xls", []byte("plain text")); err == nil {
		t.Fatalf("expected non-OLE2 xls to be rejected")
	}
}
