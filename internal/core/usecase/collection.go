package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/document-viewer/internal/core/domain"
	"github.com/kirillkom/document-viewer/internal/core/ports"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000

	msgCollectionFailed = "Failed to load documents. Please try again."
)

// CollectionView is a point-in-time copy of the loader state.
type CollectionView struct {
	Entries  []domain.DocumentSummaryEntry `json:"entries"`
	Page     int                           `json:"page"`
	PageSize int                           `json:"page_size"`
	HasMore  bool                          `json:"has_more"`
	Loading  bool                          `json:"loading"`
	Error    string                        `json:"error,omitempty"`
}

// CollectionLoader accumulates document pages fetched one at a time.
type CollectionLoader struct {
	svc      ports.DocumentService
	pageSize int

	mu      sync.Mutex
	entries []domain.DocumentSummaryEntry
	page    int
	hasMore bool
	loading bool
	errMsg  string
	token   uint64
}

func NewCollectionLoader(svc ports.DocumentService, pageSize int) *CollectionLoader {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &CollectionLoader{
		svc:      svc,
		pageSize: pageSize,
		hasMore:  true,
	}
}

// LoadPage fetches page (1-based). Page 1 replaces the accumulated list, later pages append.
// Fetch failures are recorded in the view and do not surface as errors; the returned
// error only reports a rejected call.
func (l *CollectionLoader) LoadPage(ctx context.Context, page int) error {
	if page < 1 {
		return domain.WrapError(domain.ErrInvalidInput, "load page", fmt.Errorf("page=%d", page))
	}

	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return domain.WrapError(domain.ErrBusy, "load page", fmt.Errorf("page=%d", page))
	}
	l.loading = true
	l.token++
	token := l.token
	l.mu.Unlock()

	result, err := l.svc.ListDocuments(ctx, (page-1)*l.pageSize, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	if token != l.token {
		slog.Debug("collection_page_discarded", "page", page, "reason", "stale")
		return nil
	}
	l.loading = false

	if err != nil {
		l.errMsg = msgCollectionFailed
		slog.Warn("collection_page_failed", "page", page, "page_size", l.pageSize, "error", err)
		return nil
	}

	if page == 1 {
		l.entries = append([]domain.DocumentSummaryEntry(nil), result.Entries...)
	} else {
		l.entries = append(l.entries, result.Entries...)
	}
	l.page = page
	l.hasMore = result.Full()
	l.errMsg = ""
	slog.Debug("collection_page_loaded", "page", page, "received", len(result.Entries), "total", len(l.entries), "has_more", l.hasMore)
	return nil
}

// LoadNextPage advances the page counter. It is a no-op once the collection is exhausted.
func (l *CollectionLoader) LoadNextPage(ctx context.Context) error {
	l.mu.Lock()
	if !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	next := l.page + 1
	l.mu.Unlock()
	return l.LoadPage(ctx, next)
}

func (l *CollectionLoader) Reload(ctx context.Context) error {
	return l.LoadPage(ctx, 1)
}

// Reset drops accumulated state. Responses of requests issued before Reset are discarded.
func (l *CollectionLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.token++
	l.entries = nil
	l.page = 0
	l.hasMore = true
	l.loading = false
	l.errMsg = ""
}

func (l *CollectionLoader) View() CollectionView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return CollectionView{
		Entries:  append([]domain.DocumentSummaryEntry{}, l.entries...),
		Page:     l.page,
		PageSize: l.pageSize,
		HasMore:  l.hasMore,
		Loading:  l.loading,
		Error:    l.errMsg,
	}
}
