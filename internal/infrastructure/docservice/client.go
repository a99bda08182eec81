package docservice

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/document-viewer/internal/core/ports"
	"github.com/kirillkom/document-viewer/internal/infrastructure/resilience"
)

const defaultTimeout = 120 * time.Second

// RequestObserver records completed calls. statusCode is 0 when no response arrived.
type RequestObserver interface {
	ObserveRequest(operation string, statusCode int, duration time.Duration)
}

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Executor   *resilience.Executor
	Limiter    *rate.Limiter
	Metrics    RequestObserver
}

// Client talks to the document-analysis service. The API key is read from keys on
// every request, so a key saved after construction applies to the next call.
type Client struct {
	baseURL    string
	keys       ports.APIKeySource
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
	metrics    RequestObserver
}

func New(baseURL string, keys ports.APIKeySource, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if keys == nil {
		keys = ports.StaticAPIKey("")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keys:       keys,
		httpClient: httpClient,
		executor:   opts.Executor,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
	}
}
