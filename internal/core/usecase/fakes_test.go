package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kirillkom/document-viewer/internal/core/domain"
)

// blocker parks one call until released, so tests can interleave requests.
type blocker struct {
	started chan struct{}
	release chan struct{}
}

func newBlocker() *blocker {
	return &blocker{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blocker) wait() {
	b.started <- struct{}{}
	<-b.release
}

type docServiceFake struct {
	mu sync.Mutex

	pages   map[int][]domain.DocumentSummaryEntry
	listErr error

	details   map[string]domain.DocumentDetail
	detailErr error

	summaryErr   error
	keyPointsErr error
	insightsErr  error
	structureErr error
	queryErr     error

	uploadErr error
	uploaded  []uploadCall

	blocks map[string]*blocker
	calls  map[string]int
	params map[string]int
}

type uploadCall struct {
	filename    string
	contentType string
	body        string
}

func newDocServiceFake() *docServiceFake {
	return &docServiceFake{
		pages:   map[int][]domain.DocumentSummaryEntry{},
		details: map[string]domain.DocumentDetail{},
		blocks:  map[string]*blocker{},
		calls:   map[string]int{},
		params:  map[string]int{},
	}
}

func (f *docServiceFake) block(key string) *blocker {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := newBlocker()
	f.blocks[key] = b
	return b
}

// enter counts the call and returns its one-shot blocker, if any.
func (f *docServiceFake) enter(op, key string) *blocker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	b := f.blocks[key]
	delete(f.blocks, key)
	return b
}

func (f *docServiceFake) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *docServiceFake) setDetail(detail domain.DocumentDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[detail.ID] = detail
}

func (f *docServiceFake) ListDocuments(_ context.Context, skip, limit int) (domain.DocumentCollectionPage, error) {
	if b := f.enter("list", fmt.Sprintf("list:%d", skip)); b != nil {
		b.wait()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params["limit"] = limit
	if f.listErr != nil {
		return domain.DocumentCollectionPage{}, f.listErr
	}
	return domain.DocumentCollectionPage{Entries: f.pages[skip], Limit: limit}, nil
}

func (f *docServiceFake) GetDocument(_ context.Context, id string) (*domain.DocumentDetail, error) {
	if b := f.enter("document", "document:"+id); b != nil {
		b.wait()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	detail, ok := f.details[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return &detail, nil
}

func (f *docServiceFake) GetSummary(_ context.Context, id string, maxLength int) (*domain.SummaryArtifact, error) {
	if b := f.enter("summary", "summary:"+id); b != nil {
		b.wait()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params["max_length"] = maxLength
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return &domain.SummaryArtifact{DocumentID: id, Summary: "summary of " + id}, nil
}

func (f *docServiceFake) GetKeyPoints(_ context.Context, id string, maxPoints int) (*domain.KeyPointsArtifact, error) {
	f.enter("key_points", "key_points:"+id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params["max_points"] = maxPoints
	if f.keyPointsErr != nil {
		return nil, f.keyPointsErr
	}
	return &domain.KeyPointsArtifact{DocumentID: id, KeyPoints: []domain.KeyPoint{{Point: "point of " + id}}}, nil
}

func (f *docServiceFake) GetInsights(_ context.Context, id string, maxInsights int) (*domain.InsightsArtifact, error) {
	f.enter("insights", "insights:"+id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params["max_insights"] = maxInsights
	if f.insightsErr != nil {
		return nil, f.insightsErr
	}
	return &domain.InsightsArtifact{DocumentID: id, Insights: []domain.Insight{{Topic: "topic", Description: id}}}, nil
}

func (f *docServiceFake) GetStructure(_ context.Context, id string) (*domain.StructureArtifact, error) {
	f.enter("structure", "structure:"+id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.structureErr != nil {
		return nil, f.structureErr
	}
	return &domain.StructureArtifact{
		DocumentID:   id,
		HasStructure: true,
		Structure:    map[string]any{"pages": float64(1)},
	}, nil
}

func (f *docServiceFake) Query(_ context.Context, id, query string) (*domain.QueryAnswer, error) {
	if b := f.enter("query", "query:"+id); b != nil {
		b.wait()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &domain.QueryAnswer{DocumentID: id, Query: query, Response: "answer to " + query}, nil
}

func (f *docServiceFake) Upload(_ context.Context, filename, contentType string, body io.Reader) (*domain.UploadResult, error) {
	f.enter("upload", "upload:"+filename)
	raw, _ := io.ReadAll(body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploaded = append(f.uploaded, uploadCall{filename: filename, contentType: contentType, body: string(raw)})
	return &domain.UploadResult{DocumentID: "doc-" + filename, Filename: filename, ContentType: contentType}, nil
}

func (f *docServiceFake) Delete(_ context.Context, id string) (*domain.DeleteResult, error) {
	f.enter("delete", "delete:"+id)
	return &domain.DeleteResult{DocumentID: id, FileDeleted: true}, nil
}

func summaryEntries(prefix string, n int) []domain.DocumentSummaryEntry {
	out := make([]domain.DocumentSummaryEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.DocumentSummaryEntry{ID: fmt.Sprintf("%s-%d", prefix, i), ProcessingComplete: true})
	}
	return out
}

func completedDetail(id string) domain.DocumentDetail {
	return domain.DocumentDetail{DocumentSummaryEntry: domain.DocumentSummaryEntry{ID: id, Filename: id + ".pdf", ProcessingComplete: true}}
}

func pendingDetail(id string) domain.DocumentDetail {
	return domain.DocumentDetail{DocumentSummaryEntry: domain.DocumentSummaryEntry{ID: id, Filename: id + ".pdf"}}
}
