package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// defaultWebhookRetryIntervals are the waits between delivery attempts.
var defaultWebhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Webhook request headers.
const (
	HeaderWebhookEvent     = "X-Ledger-Event"
	HeaderWebhookEventID   = "X-Ledger-Event-Id"
	HeaderWebhookTimestamp = "X-Ledger-Timestamp"
	HeaderWebhookSignature = "X-Ledger-Signature"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookOptions configures a WebhookNotifier. A nil RetryIntervals uses
// the default schedule; an empty one means a single attempt.
type WebhookOptions struct {
	URL            string
	Secret         string
	MaxFailures    uint32        // consecutive failures before the breaker opens
	OpenTimeout    time.Duration // time the breaker stays open
	RetryIntervals []time.Duration
}

// WebhookNotifier implements ports.EventPublisher by POSTing each event,
// signed with HMAC-SHA256, to one URL. Delivery runs in the background
// behind a circuit breaker so a dead endpoint is not hammered.
type WebhookNotifier struct {
	url     string
	secret  string
	sigSvc  ports.SignatureService
	client  HTTPClient
	breaker *gobreaker.CircuitBreaker
	retry   []time.Duration
	log     zerolog.Logger

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(opts WebhookOptions, sigSvc ports.SignatureService, client HTTPClient, log zerolog.Logger) *WebhookNotifier {
	retry := opts.RetryIntervals
	if retry == nil {
		retry = defaultWebhookRetryIntervals
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	n := &WebhookNotifier{
		url:    opts.URL,
		secret: opts.Secret,
		sigSvc: sigSvc,
		client: client,
		retry:  retry,
		log:    log,
		done:   make(chan struct{}),
	}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("webhook: circuit breaker state changed")
		},
	})
	return n
}

// Publish queues the event for delivery and returns immediately.
func (n *WebhookNotifier) Publish(_ context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	select {
	case <-n.done:
		return errors.New("webhook: notifier closed")
	default:
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliverWithRetries(event, body)
	}()
	return nil
}

// State reports the circuit breaker state.
func (n *WebhookNotifier) State() gobreaker.State {
	return n.breaker.State()
}

// Wait blocks until every queued delivery finished.
func (n *WebhookNotifier) Wait() {
	n.wg.Wait()
}

// Close abandons pending retries and waits for in-flight attempts.
func (n *WebhookNotifier) Close() error {
	n.once.Do(func() { close(n.done) })
	n.wg.Wait()
	return nil
}

// deliverWithRetries attempts delivery until one succeeds, the schedule is
// exhausted, or the notifier is closed.
func (n *WebhookNotifier) deliverWithRetries(event domain.Event, body []byte) {
	eventID := event.ID.String()

	for attempt := 0; attempt <= len(n.retry); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(n.retry[attempt-1])
			select {
			case <-n.done:
				timer.Stop()
				n.log.Warn().Str("event_id", eventID).Int("attempt", attempt+1).Msg("webhook: shutting down, delivery abandoned")
				return
			case <-timer.C:
			}
		}

		_, err := n.breaker.Execute(func() (interface{}, error) {
			return nil, n.send(event, eventID, body)
		})
		if err == nil {
			n.log.Info().Str("event_id", eventID).Str("event_type", string(event.Type)).Int("attempt", attempt+1).Msg("webhook: delivered successfully")
			return
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			n.log.Warn().Str("event_id", eventID).Int("attempt", attempt+1).Msg("webhook: circuit breaker open, attempt skipped")
			continue
		}
		n.log.Warn().Err(err).Str("event_id", eventID).Int("attempt", attempt+1).Msg("webhook: delivery failed")
	}

	n.log.Error().Str("event_id", eventID).Msg("webhook: all retry attempts exhausted")
}

func (n *WebhookNotifier) send(event domain.Event, eventID string, body []byte) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-n.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	timestamp := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookEvent, string(event.Type))
	req.Header.Set(HeaderWebhookEventID, eventID)
	req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderWebhookSignature, n.sigSvc.Sign(n.secret, WebhookCanonicalString(timestamp, eventID, body)))

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
