package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-viewer/internal/core/domain"
)

// DocumentUploader is the inbound contract for preflight + upload + processing watch.
type DocumentUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.UploadResult, error)
	WaitProcessed(ctx context.Context, documentID string) (*domain.DocumentDetail, error)
}

// DocumentRemover deletes a document from the remote service.
type DocumentRemover interface {
	Delete(ctx context.Context, id string) (*domain.DeleteResult, error)
}
