package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-viewer/internal/core/domain"
)

// DocumentService is the remote document-analysis API.
type DocumentService interface {
	ListDocuments(ctx context.Context, skip, limit int) (domain.DocumentCollectionPage, error)
	GetDocument(ctx context.Context, id string) (*domain.DocumentDetail, error)
	GetSummary(ctx context.Context, id string, maxLength int) (*domain.SummaryArtifact, error)
	GetKeyPoints(ctx context.Context, id string, maxPoints int) (*domain.KeyPointsArtifact, error)
	GetInsights(ctx context.Context, id string, maxInsights int) (*domain.InsightsArtifact, error)
	GetStructure(ctx context.Context, id string) (*domain.StructureArtifact, error)
	Query(ctx context.Context, id, query string) (*domain.QueryAnswer, error)
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*domain.UploadResult, error)
	Delete(ctx context.Context, id string) (*domain.DeleteResult, error)
}

// APIKeySource supplies the key attached to outgoing requests. It is read on every call.
type APIKeySource interface {
	APIKey() string
}

// StaticAPIKey is a fixed key, mostly useful in tests and one-shot tools.
type StaticAPIKey string

func (k StaticAPIKey) APIKey() string { return string(k) }

// SettingAPIKey names the persisted service API key.
const SettingAPIKey = "api_key"

// SettingsStore persists named string settings.
type SettingsStore interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// FileInspector validates a local file before it is uploaded.
type FileInspector interface {
	Inspect(ctx context.Context, filename string, data []byte) (domain.FileReport, error)
}

// ReadyNotifier announces documents whose processing has finished.
type ReadyNotifier interface {
	PublishDocumentReady(ctx context.Context, detail domain.DocumentDetail) error
}
