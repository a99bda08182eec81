package domain

import (
	"fmt"
	"strings"
	"time"
)

// DocumentSummaryEntry is one row of the document listing.
type DocumentSummaryEntry struct {
	ID                 string  `json:"document_id"`
	Filename           string  `json:"filename"`
	UploadTime         string  `json:"upload_time"`
	FileSize           int64   `json:"file_size"`
	ContentType        string  `json:"content_type"`
	ProcessingComplete bool    `json:"processing_complete"`
	ProcessingError    *string `json:"processing_error"`
}

// UploadedAt parses the service timestamp. The service emits ISO-8601 without a zone,
// which is interpreted as UTC.
func (e DocumentSummaryEntry) UploadedAt() (time.Time, error) {
	raw := strings.TrimSpace(e.UploadTime)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse upload time %q", e.UploadTime)
}

// Failed reports whether processing finished with an error.
func (e DocumentSummaryEntry) Failed() bool {
	return e.ProcessingComplete && e.ProcessingError != nil && *e.ProcessingError != ""
}

type DocumentCollectionPage struct {
	Entries []DocumentSummaryEntry
	Limit   int
}

// Full reports whether the service returned a complete page. A full page means more
// entries may exist; it is a heuristic, not a server-reported total.
func (p DocumentCollectionPage) Full() bool {
	return p.Limit > 0 && len(p.Entries) >= p.Limit
}

type DocumentDetail struct {
	DocumentSummaryEntry
	TextLength         *int     `json:"text_length,omitempty"`
	ProcessingTime     *float64 `json:"processing_time,omitempty"`
	EnhancedProcessing bool     `json:"has_docling_data"`
}

type SummaryArtifact struct {
	DocumentID     string  `json:"document_id"`
	Summary        string  `json:"summary"`
	ProcessingTime float64 `json:"processing_time"`
	TokensUsed     *int    `json:"tokens_used,omitempty"`
	Enhanced       bool    `json:"processed_with_docling"`
}

type KeyPoint struct {
	Point     string   `json:"point"`
	Relevance *float64 `json:"relevance,omitempty"`
}

type KeyPointsArtifact struct {
	DocumentID     string     `json:"document_id"`
	KeyPoints      []KeyPoint `json:"key_points"`
	ProcessingTime float64    `json:"processing_time"`
	TokensUsed     *int       `json:"tokens_used,omitempty"`
	Enhanced       bool       `json:"processed_with_docling"`
}

type Insight struct {
	Topic       string   `json:"topic"`
	Description string   `json:"description"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

type InsightsArtifact struct {
	DocumentID     string    `json:"document_id"`
	Insights       []Insight `json:"insights"`
	ProcessingTime float64   `json:"processing_time"`
	TokensUsed     *int      `json:"tokens_used,omitempty"`
	Enhanced       bool      `json:"processed_with_docling"`
}

// StructureArtifact is the layout analysis of an enhanced document. Documents processed
// without enhancement report HasStructure=false and an explanatory Message.
type StructureArtifact struct {
	DocumentID     string         `json:"document_id"`
	HasStructure   bool           `json:"has_docling_data"`
	Structure      map[string]any `json:"structure,omitempty"`
	Message        string         `json:"message,omitempty"`
	ProcessingTime *float64       `json:"processing_time,omitempty"`
}

type QueryAnswer struct {
	DocumentID     string  `json:"document_id"`
	Query          string  `json:"query"`
	Response       string  `json:"response"`
	ProcessingTime float64 `json:"processing_time"`
	TokensUsed     *int    `json:"tokens_used,omitempty"`
	Enhanced       bool    `json:"processed_with_docling"`
}

type UploadResult struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	UploadTime     string  `json:"upload_time"`
	FileSize       int64   `json:"file_size"`
	ContentType    string  `json:"content_type"`
	Enhanced       bool    `json:"processed_with_docling"`
	ProcessingTime float64 `json:"processing_time"`
}

type DeleteResult struct {
	DocumentID  string `json:"document_id"`
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	FileDeleted bool   `json:"file_deleted"`
}

// FileReport describes a local file that passed upload preflight.
type FileReport struct {
	Filename    string `json:"filename"`
	Extension   string `json:"extension"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Pages       int    `json:"pages,omitempty"`
	Sheets      int    `json:"sheets,omitempty"`
}

// DocumentReadyEvent announces that a document finished processing.
type DocumentReadyEvent struct {
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	ProcessingError string `json:"processing_error"`
}

func NewDocumentReadyEvent(detail DocumentDetail) DocumentReadyEvent {
	event := DocumentReadyEvent{
		DocumentID: detail.ID,
		Filename:   detail.Filename,
	}
	if detail.ProcessingError != nil {
		event.ProcessingError = *detail.ProcessingError
	}
	return event
}
