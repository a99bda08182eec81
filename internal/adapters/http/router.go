package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-viewer/internal/config"
	"github.com/kirillkom/document-viewer/internal/core/domain"
	"github.com/kirillkom/document-viewer/internal/core/ports"
	"github.com/kirillkom/document-viewer/internal/core/usecase"
	"github.com/kirillkom/document-viewer/internal/observability/metrics"
)

const (
	serviceName = "viewer"

	multipartOverhead = 1 << 20
)

// Services are the controllers and collaborators the viewer API drives.
type Services struct {
	Library  *usecase.CollectionLoader
	Detail   *usecase.DetailOrchestrator
	Uploader ports.DocumentUploader
	Remover  ports.DocumentRemover
	Settings ports.SettingsStore

	Metrics   *metrics.HTTPServerMetrics
	Gatherers []prometheus.Gatherer
}

// Router exposes the view state of one library listing and one open document.
type Router struct {
	cfg config.Config
	svc Services
}

func NewRouter(cfg config.Config, svc Services) *Router {
	return &Router{cfg: cfg, svc: svc}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.svc.Metrics != nil {
		mux.Handle("GET /metrics", rt.svc.Metrics.Handler(rt.svc.Gatherers...))
	}

	mux.HandleFunc("GET /v1/library", rt.getLibrary)
	mux.HandleFunc("POST /v1/library/reload", rt.reloadLibrary)
	mux.HandleFunc("POST /v1/library/more", rt.loadMore)

	mux.HandleFunc("POST /v1/documents/{id}/open", rt.openDocument)
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("POST /v1/uploads", rt.uploadDocument)

	mux.HandleFunc("GET /v1/document", rt.getDocument)
	mux.HandleFunc("POST /v1/document/refresh", rt.refreshDocument)
	mux.HandleFunc("POST /v1/document/tab", rt.selectTab)
	mux.HandleFunc("POST /v1/document/query", rt.submitQuery)

	mux.HandleFunc("GET /v1/settings/api-key", rt.getAPIKeyStatus)
	mux.HandleFunc("PUT /v1/settings/api-key", rt.putAPIKey)

	var handler http.Handler = mux
	if rt.svc.Metrics != nil {
		handler = rt.svc.Metrics.Middleware(serviceName, handler)
	}
	handler = rateLimitMiddleware(handler, rt.cfg.ViewerRateRPS, rt.cfg.ViewerRateBurst)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) getLibrary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.svc.Library.View())
}

func (rt *Router) reloadLibrary(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Library.Reload(detached(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.svc.Library.View())
}

func (rt *Router) loadMore(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Library.LoadNextPage(detached(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.svc.Library.View())
}

func (rt *Router) openDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Detail.Open(detached(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.svc.Detail.View())
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	ctx := detached(r)

	result, err := rt.svc.Remover.Delete(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.svc.Detail.View().DocumentID == id {
		_ = rt.svc.Detail.Open(ctx, "")
	}
	rt.reloadAfterMutation(ctx, "delete")

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": result,
		"library": rt.svc.Library.View(),
	})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := rt.cfg.UploadMaxBytes
	if maxBytes <= 0 {
		maxBytes = usecase.DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Upload failed: file too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	ctx := detached(r)
	result, err := rt.svc.Uploader.Upload(ctx, fileHeader.Filename, file)
	if err != nil {
		slog.Warn("viewer_upload_failed", "request_id", requestIDFromContext(r.Context()), "filename", fileHeader.Filename, "error", err)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": usecase.UploadFailureMessage(err)})
		return
	}
	rt.reloadAfterMutation(ctx, "upload")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"upload":  result,
		"library": rt.svc.Library.View(),
	})
}

func (rt *Router) getDocument(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.svc.Detail.View())
}

func (rt *Router) refreshDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Detail.Refresh(detached(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.svc.Detail.View())
}

func (rt *Router) selectTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab string `json:"tab"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	tab, err := usecase.ParseTab(req.Tab)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.svc.Metrics != nil {
		rt.svc.Metrics.RecordTabSelection(serviceName, string(tab))
	}
	if err := rt.svc.Detail.SelectTab(detached(r), tab); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.svc.Detail.View())
}

func (rt *Router) submitQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	err := rt.svc.Detail.SubmitQuery(detached(r), req.Query)
	view := rt.svc.Detail.View()
	rt.recordQuery(req.Query, err, view)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) getAPIKeyStatus(w http.ResponseWriter, r *http.Request) {
	key, err := rt.svc.Settings.Get(r.Context(), ports.SettingAPIKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"configured": strings.TrimSpace(key) != ""})
}

// putAPIKey saves the key and restarts the listing so the next page is fetched with it.
func (rt *Router) putAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx := detached(r)
	if err := rt.svc.Settings.Set(ctx, ports.SettingAPIKey, strings.TrimSpace(req.APIKey)); err != nil {
		writeError(w, err)
		return
	}
	rt.svc.Library.Reset()
	rt.reloadAfterMutation(ctx, "api_key")

	writeJSON(w, http.StatusOK, map[string]any{
		"configured": strings.TrimSpace(req.APIKey) != "",
		"library":    rt.svc.Library.View(),
	})
}

func (rt *Router) reloadAfterMutation(ctx context.Context, cause string) {
	if err := rt.svc.Library.Reload(ctx); err != nil {
		// A reload already in flight will pick up the change.
		slog.Debug("library_reload_skipped", "cause", cause, "error", err)
	}
}

func (rt *Router) recordQuery(question string, err error, view usecase.DetailView) {
	if rt.svc.Metrics == nil {
		return
	}
	outcome := "ignored"
	switch {
	case strings.TrimSpace(question) == "" || !view.Eligible:
	case domain.IsKind(err, domain.ErrBusy):
		outcome = "busy"
	case view.Query.Phase == usecase.PhaseError:
		outcome = "failed"
	case view.Query.Phase == usecase.PhaseReady:
		outcome = "answered"
	}
	rt.svc.Metrics.RecordQuery(serviceName, outcome)
}

// detached keeps request values but not cancellation, so a client disconnect does not
// record a fetch as failed.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func decodeJSON(body io.Reader, out any) error {
	decoder := json.NewDecoder(io.LimitReader(body, 1<<20))
	return decoder.Decode(out)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
