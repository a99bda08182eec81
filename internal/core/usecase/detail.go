package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/document-viewer/internal/core/domain"
	"github.com/kirillkom/document-viewer/internal/core/ports"
)

const (
	msgMetadataFailed  = "Failed to load document details. Please try again."
	msgSummaryFailed   = "Failed to load summary. Please try again."
	msgKeyPointsFailed = "Failed to load key points. Please try again."
	msgInsightsFailed  = "Failed to load insights. Please try again."
	msgStructureFailed = "Failed to load document structure. Please try again."
	msgQueryFailed     = "Failed to process your query. Please try again."
)

type Tab string

const (
	TabSummary   Tab = "summary"
	TabKeyPoints Tab = "key_points"
	TabInsights  Tab = "insights"
	TabStructure Tab = "structure"
	TabQuery     Tab = "query"
)

func ParseTab(raw string) (Tab, error) {
	switch tab := Tab(strings.ToLower(strings.TrimSpace(raw))); tab {
	case TabSummary, TabKeyPoints, TabInsights, TabStructure, TabQuery:
		return tab, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse tab", fmt.Errorf("unknown tab %q", raw))
	}
}

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

type ArtifactView[T any] struct {
	Phase Phase  `json:"phase"`
	Value *T     `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// DetailView is a point-in-time copy of the orchestrator state. Derived artifacts are
// only populated while the loaded document is eligible or its metadata is being refreshed.
type DetailView struct {
	DocumentID        string                                 `json:"document_id,omitempty"`
	Metadata          Phase                                  `json:"metadata"`
	Detail            *domain.DocumentDetail                 `json:"detail,omitempty"`
	MetadataError     string                                 `json:"metadata_error,omitempty"`
	ActiveTab         Tab                                    `json:"active_tab"`
	Eligible          bool                                   `json:"eligible"`
	Summary           ArtifactView[domain.SummaryArtifact]   `json:"summary"`
	KeyPoints         ArtifactView[domain.KeyPointsArtifact] `json:"key_points"`
	Insights          ArtifactView[domain.InsightsArtifact]  `json:"insights"`
	Structure         ArtifactView[domain.StructureArtifact] `json:"structure"`
	Query             ArtifactView[domain.QueryAnswer]       `json:"query"`
	QueryInputEnabled bool                                   `json:"query_input_enabled"`
}

type DetailOptions struct {
	SummaryMaxLength int
	MaxKeyPoints     int
	MaxInsights      int
}

func (o DetailOptions) normalize() DetailOptions {
	out := o
	if out.SummaryMaxLength <= 0 {
		out.SummaryMaxLength = 500
	}
	if out.MaxKeyPoints <= 0 {
		out.MaxKeyPoints = 10
	}
	if out.MaxInsights <= 0 {
		out.MaxInsights = 5
	}
	return out
}

// artifactSlot holds one derived view. fetchedGen is the metadata generation the last
// fetch was started for; token identifies the request whose response may be applied.
type artifactSlot[T any] struct {
	phase      Phase
	value      *T
	errMsg     string
	fetchedGen uint64
	token      uint64
}

func (s *artifactSlot[T]) needsFetch(gen uint64) bool {
	return s.fetchedGen != gen
}

func (s *artifactSlot[T]) begin(gen uint64) uint64 {
	s.phase = PhaseLoading
	s.errMsg = ""
	s.fetchedGen = gen
	s.token++
	return s.token
}

func (s *artifactSlot[T]) clear() {
	s.phase = PhaseIdle
	s.value = nil
	s.errMsg = ""
	s.fetchedGen = 0
	s.token++
}

func (s *artifactSlot[T]) view(visible bool) ArtifactView[T] {
	if !visible {
		return ArtifactView[T]{Phase: PhaseIdle}
	}
	out := ArtifactView[T]{Phase: s.phase, Error: s.errMsg}
	if s.value != nil {
		v := *s.value
		out.Value = &v
	}
	return out
}

// DetailOrchestrator loads one document's metadata and, once the document is eligible,
// the derived view selected by the user.
type DetailOrchestrator struct {
	svc  ports.DocumentService
	opts DetailOptions

	mu        sync.Mutex
	id        string
	gen       uint64
	meta      Phase
	detail    *domain.DocumentDetail
	metaErr   string
	activeTab Tab

	summary   artifactSlot[domain.SummaryArtifact]
	keyPoints artifactSlot[domain.KeyPointsArtifact]
	insights  artifactSlot[domain.InsightsArtifact]
	structure artifactSlot[domain.StructureArtifact]
	query     artifactSlot[domain.QueryAnswer]
}

func NewDetailOrchestrator(svc ports.DocumentService, opts DetailOptions) *DetailOrchestrator {
	o := &DetailOrchestrator{
		svc:       svc,
		opts:      opts.normalize(),
		meta:      PhaseIdle,
		activeTab: TabSummary,
	}
	o.clearArtifactsLocked()
	return o
}

// Open switches to document id, discarding everything loaded for the previous one.
// An empty id leaves the orchestrator idle.
func (o *DetailOrchestrator) Open(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	o.mu.Lock()
	o.gen++
	o.id = id
	o.detail = nil
	o.metaErr = ""
	o.clearArtifactsLocked()
	if id == "" {
		o.meta = PhaseIdle
		o.mu.Unlock()
		return nil
	}
	o.meta = PhaseLoading
	gen := o.gen
	o.mu.Unlock()

	o.loadMetadata(ctx, id, gen)
	return nil
}

// Refresh reloads metadata for the current document. Derived views are fetched again
// the next time they are active.
func (o *DetailOrchestrator) Refresh(ctx context.Context) error {
	o.mu.Lock()
	if o.id == "" {
		o.mu.Unlock()
		return nil
	}
	o.gen++
	o.meta = PhaseLoading
	o.metaErr = ""
	id, gen := o.id, o.gen
	o.mu.Unlock()

	o.loadMetadata(ctx, id, gen)
	return nil
}

// SelectTab records the active view and fetches it when the document is eligible and
// the view has not been fetched for the current metadata yet. Selecting a view whose
// last fetch failed retries it.
func (o *DetailOrchestrator) SelectTab(ctx context.Context, tab Tab) error {
	tab, err := ParseTab(string(tab))
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.activeTab = tab
	switch tab {
	case TabSummary:
		retryFailed(&o.summary)
	case TabKeyPoints:
		retryFailed(&o.keyPoints)
	case TabInsights:
		retryFailed(&o.insights)
	case TabStructure:
		retryFailed(&o.structure)
	}
	o.mu.Unlock()

	o.reconcile(ctx)
	return nil
}

// SubmitQuery asks a free-text question. Blank text and ineligible documents are ignored;
// a submission while another query is in flight is rejected with ErrBusy.
func (o *DetailOrchestrator) SubmitQuery(ctx context.Context, text string) error {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil
	}

	o.mu.Lock()
	if !o.eligibleLocked() {
		o.mu.Unlock()
		return nil
	}
	if o.query.phase == PhaseLoading {
		o.mu.Unlock()
		return domain.WrapError(domain.ErrBusy, "submit query", fmt.Errorf("document_id=%s", o.id))
	}
	id := o.id
	token := o.query.begin(o.gen)
	o.mu.Unlock()

	answer, err := o.svc.Query(ctx, id, question)
	settle(o, &o.query, token, id, "query", msgQueryFailed, answer, err)
	return nil
}

func (o *DetailOrchestrator) View() DetailView {
	o.mu.Lock()
	defer o.mu.Unlock()

	eligible := o.eligibleLocked()
	visible := eligible || o.refreshingEligibleLocked()
	v := DetailView{
		DocumentID:        o.id,
		Metadata:          o.meta,
		MetadataError:     o.metaErr,
		ActiveTab:         o.activeTab,
		Eligible:          eligible,
		Summary:           o.summary.view(visible),
		KeyPoints:         o.keyPoints.view(visible),
		Insights:          o.insights.view(visible),
		Structure:         o.structure.view(visible),
		Query:             o.query.view(visible),
		QueryInputEnabled: eligible && o.query.phase != PhaseLoading,
	}
	if o.detail != nil {
		d := *o.detail
		v.Detail = &d
	}
	return v
}

func (o *DetailOrchestrator) loadMetadata(ctx context.Context, id string, gen uint64) {
	detail, err := o.svc.GetDocument(ctx, id)

	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		slog.Debug("document_metadata_discarded", "document_id", id, "reason", "stale")
		return
	}
	if err != nil {
		o.meta = PhaseError
		o.detail = nil
		o.metaErr = msgMetadataFailed
		o.mu.Unlock()
		slog.Warn("document_metadata_failed", "document_id", id, "error", err)
		return
	}
	o.meta = PhaseReady
	o.detail = detail
	o.mu.Unlock()

	o.reconcile(ctx)
}

// reconcile fetches the active derived view if the identifier, completion flag and
// active tab together make it newly eligible.
func (o *DetailOrchestrator) reconcile(ctx context.Context) {
	o.mu.Lock()
	tab := o.activeTab
	o.mu.Unlock()

	switch tab {
	case TabSummary:
		fetchArtifact(ctx, o, &o.summary, "summary", msgSummaryFailed, func(ctx context.Context, id string) (*domain.SummaryArtifact, error) {
			return o.svc.GetSummary(ctx, id, o.opts.SummaryMaxLength)
		})
	case TabKeyPoints:
		fetchArtifact(ctx, o, &o.keyPoints, "key_points", msgKeyPointsFailed, func(ctx context.Context, id string) (*domain.KeyPointsArtifact, error) {
			return o.svc.GetKeyPoints(ctx, id, o.opts.MaxKeyPoints)
		})
	case TabInsights:
		fetchArtifact(ctx, o, &o.insights, "insights", msgInsightsFailed, func(ctx context.Context, id string) (*domain.InsightsArtifact, error) {
			return o.svc.GetInsights(ctx, id, o.opts.MaxInsights)
		})
	case TabStructure:
		fetchArtifact(ctx, o, &o.structure, "structure", msgStructureFailed, o.svc.GetStructure)
	}
}

// fetchArtifact re-checks the eligibility guard at fetch time and issues at most one
// request per metadata generation.
func fetchArtifact[T any](
	ctx context.Context,
	o *DetailOrchestrator,
	slot *artifactSlot[T],
	operation, failMsg string,
	fetch func(context.Context, string) (*T, error),
) {
	o.mu.Lock()
	if !o.eligibleLocked() || !slot.needsFetch(o.gen) {
		o.mu.Unlock()
		return
	}
	id := o.id
	token := slot.begin(o.gen)
	o.mu.Unlock()

	value, err := fetch(ctx, id)
	settle(o, slot, token, id, operation, failMsg, value, err)
}

// settle applies a response unless a newer request or an identifier change superseded it.
func settle[T any](o *DetailOrchestrator, slot *artifactSlot[T], token uint64, id, operation, failMsg string, value *T, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if token != slot.token {
		slog.Debug("document_artifact_discarded", "document_id", id, "operation", operation, "reason", "stale")
		return
	}
	if err != nil {
		slot.phase = PhaseError
		slot.errMsg = failMsg
		slog.Warn("document_artifact_failed", "document_id", id, "operation", operation, "error", err)
		return
	}
	slot.phase = PhaseReady
	slot.value = value
	slot.errMsg = ""
}

func retryFailed[T any](slot *artifactSlot[T]) {
	if slot.phase == PhaseError {
		slot.fetchedGen = 0
	}
}

func (o *DetailOrchestrator) eligibleLocked() bool {
	return o.id != "" && o.meta == PhaseReady && o.detail != nil && o.detail.ProcessingComplete
}

// refreshingEligibleLocked reports a refresh in flight for a document whose previous
// metadata was eligible. Fetching still waits for the new metadata.
func (o *DetailOrchestrator) refreshingEligibleLocked() bool {
	return o.id != "" && o.meta == PhaseLoading && o.detail != nil && o.detail.ProcessingComplete
}

func (o *DetailOrchestrator) clearArtifactsLocked() {
	o.summary.clear()
	o.keyPoints.clear()
	o.insights.clear()
	o.structure.clear()
	o.query.clear()
}
