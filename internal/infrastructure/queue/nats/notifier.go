package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-viewer/internal/core/domain"
	"github.com/kirillkom/document-viewer/internal/infrastructure/resilience"
)

const (
	DefaultSubject = "documents.ready"

	opPublishReady = "ready_event.publish"
)

// Notifier publishes and consumes document-ready events.
type Notifier struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string, options Options) (*Notifier, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-viewer"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Notifier{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

func (n *Notifier) PublishDocumentReady(ctx context.Context, detail domain.DocumentDetail) error {
	payload, err := json.Marshal(domain.NewDocumentReadyEvent(detail))
	if err != nil {
		return fmt.Errorf("marshal ready event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := n.conn.Publish(n.subject, payload); err != nil {
			return fmt.Errorf("publish ready event %s: %w", detail.ID, err)
		}
		return nil
	}

	if n.executor != nil {
		err = n.executor.Execute(ctx, opPublishReady, call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return markTemporary(err)
}

// classifyPublishError retries only broker connectivity failures. Cancellation is not
// counted against the breaker.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), brokerUnavailable(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func brokerUnavailable(err error) bool {
	for _, target := range []error{nats.ErrNoServers, nats.ErrTimeout, nats.ErrConnectionClosed, nats.ErrDisconnected} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func markTemporary(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyPublishError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, opPublishReady, err)
	}
	return err
}

// SubscribeDocumentReady delivers every ready event to handler until ctx is done.
// Malformed payloads are logged and skipped.
func (n *Notifier) SubscribeDocumentReady(ctx context.Context, handler func(context.Context, domain.DocumentReadyEvent) error) error {
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeReadyEvent(msg.Data)
		if err != nil {
			slog.Warn("ready_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, event); err != nil {
			slog.Warn("ready_event_handler_failed", "document_id", event.DocumentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := n.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func decodeReadyEvent(data []byte) (domain.DocumentReadyEvent, error) {
	var event domain.DocumentReadyEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.DocumentReadyEvent{}, domain.WrapError(domain.ErrParse, "decode ready event", err)
	}
	if event.DocumentID == "" {
		return domain.DocumentReadyEvent{}, domain.WrapError(domain.ErrParse, "decode ready event", fmt.Errorf("document_id is empty"))
	}
	return event, nil
}

// Noop stands in when no broker is configured.
type Noop struct{}

func (Noop) PublishDocumentReady(context.Context, domain.DocumentDetail) error {
	return nil
}
