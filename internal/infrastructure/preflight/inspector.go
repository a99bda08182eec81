package preflight

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-viewer/internal/core/domain"
)

const DefaultMaxBytes = 16 << 20

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":  "application/vnd.ms-excel",
}

// Legacy .xls files are OLE2 compound documents.
var ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Inspector rejects files the document service would refuse or fail to process.
type Inspector struct {
	maxBytes int64
}

func NewInspector(maxBytes int64) *Inspector {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Inspector{maxBytes: maxBytes}
}

func (i *Inspector) Inspect(ctx context.Context, filename string, data []byte) (domain.FileReport, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileReport{}, err
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	contentType, ok := contentTypes[ext]
	if !ok {
		return domain.FileReport{}, invalid("file type not allowed. Allowed types: pdf, txt, csv, xlsx, xls")
	}
	if len(data) == 0 {
		return domain.FileReport{}, invalid("file is empty")
	}
	if int64(len(data)) > i.maxBytes {
		return domain.FileReport{}, invalid(fmt.Sprintf("file too large, maximum size %.1f MB", float64(i.maxBytes)/(1<<20)))
	}

	report := domain.FileReport{
		Filename:    filepath.Base(filename),
		Extension:   ext,
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	var err error
	switch ext {
	case "pdf":
		report.Pages, err = inspectPDF(data)
	case "xlsx":
		report.Sheets, err = inspectXLSX(data)
	case "xls":
		if !bytes.HasPrefix(data, ole2Magic) {
			err = errors.New("not a legacy excel workbook")
		}
	case "csv":
		err = inspectCSV(data)
	case "txt":
		if !utf8.Valid(data) {
			err = errors.New("text file is not valid UTF-8")
		}
	}
	if err != nil {
		return domain.FileReport{}, domain.WrapError(domain.ErrInvalidInput, "inspect "+ext, err)
	}
	return report, nil
}

// inspectPDF recovers from parser panics, which ledongthuc/pdf raises on some broken
// cross-reference tables.
func inspectPDF(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	pages = reader.NumPage()
	if pages < 1 {
		return 0, errors.New("pdf has no pages")
	}
	return pages, nil
}

func inspectXLSX(data []byte) (int, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	sheets := len(book.GetSheetList())
	if sheets < 1 {
		return 0, errors.New("workbook has no sheets")
	}
	return sheets, nil
}

func inspectCSV(data []byte) error {
	if !utf8.Valid(data) {
		return errors.New("csv file is not valid UTF-8")
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("csv file has no header")
	}
	if err != nil {
		return fmt.Errorf("parse csv header: %w", err)
	}
	if len(header) == 0 {
		return errors.New("csv file has no header")
	}
	return nil
}

func invalid(msg string) error {
	return domain.WrapError(domain.ErrInvalidInput, "preflight", errors.New(msg))
}
