package httpadapter

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/kirillkom/document-viewer/internal/core/domain"
)

type fakeDocService struct {
	mu sync.Mutex

	pages     [][]domain.DocumentSummaryEntry
	detail    *domain.DocumentDetail
	detailErr error
	queryErr  error
	deleteErr error
	deleted   []string
	listCalls int
}

func (f *fakeDocService) ListDocuments(_ context.Context, skip, limit int) (domain.DocumentCollectionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	idx := skip / limit
	if idx >= len(f.pages) {
		return domain.DocumentCollectionPage{Entries: []domain.DocumentSummaryEntry{}, Limit: limit}, nil
	}
	return domain.DocumentCollectionPage{Entries: f.pages[idx], Limit: limit}, nil
}

func (f *fakeDocService) GetDocument(_ context.Context, id string) (*domain.DocumentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	if f.detail == nil || f.detail.ID != id {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	d := *f.detail
	return &d, nil
}

func (f *fakeDocService) GetSummary(_ context.Context, id string, _ int) (*domain.SummaryArtifact, error) {
	return &domain.SummaryArtifact{DocumentID: id, Summary: "summary of " + id}, nil
}

func (f *fakeDocService) GetKeyPoints(_ context.Context, id string, _ int) (*domain.KeyPointsArtifact, error) {
	return &domain.KeyPointsArtifact{DocumentID: id, KeyPoints: []domain.KeyPoint{{Point: "p1"}}}, nil
}

func (f *fakeDocService) GetInsights(_ context.Context, id string, _ int) (*domain.InsightsArtifact, error) {
	return &domain.InsightsArtifact{DocumentID: id, Insights: []domain.Insight{{Topic: "t", Description: "d"}}}, nil
}

func (f *fakeDocService) GetStructure(_ context.Context, id string) (*domain.StructureArtifact, error) {
	return &domain.StructureArtifact{DocumentID: id, Message: "no structure data is available"}, nil
}

func (f *fakeDocService) Query(_ context.Context, id, query string) (*domain.QueryAnswer, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &domain.QueryAnswer{DocumentID: id, Query: query, Response: "answer"}, nil
}

func (f *fakeDocService) Upload(_ context.Context, filename, contentType string, _ io.Reader) (*domain.UploadResult, error) {
	return &domain.UploadResult{DocumentID: "new", Filename: filename, ContentType: contentType}, nil
}

func (f *fakeDocService) Delete(_ context.Context, id string) (*domain.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return &domain.DeleteResult{DocumentID: id, FileDeleted: true}, nil
}

type fakeUploader struct {
	err      error
	uploaded []string
}

func (f *fakeUploader) Upload(_ context.Context, filename string, body io.Reader) (*domain.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	_, _ = io.Copy(io.Discard, body)
	f.uploaded = append(f.uploaded, filename)
	return &domain.UploadResult{DocumentID: "new", Filename: filename}, nil
}

func (f *fakeUploader) WaitProcessed(context.Context, string) (*domain.DocumentDetail, error) {
	return nil, errors.New("not used")
}

type memorySettings struct {
	values map[string]string
}

func (m *memorySettings) Get(_ context.Context, name string) (string, error) {
	return m.values[name], nil
}

func (m *memorySettings) Set(_ context.Context, name, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[name] = value
	return nil
}
