// Package eventsvc implements the HTTP client for the organizer-owned event
// service: registrations, time slots and meeting locations.
package eventsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/circuitbreaker"
	"github.com/alem-hub/event-networking/pkg/logger"
	"github.com/alem-hub/event-networking/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the event service client.
type ClientConfig struct {
	// BaseURL is the event service base URL, e.g. https://events.internal/api
	BaseURL string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Timeout is the per-attempt HTTP timeout
	Timeout time.Duration

	// MaxRetries is the total number of attempts for a retryable failure
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Circuit breaker settings
	BreakerThreshold int
	BreakerTimeout   time.Duration

	// RateLimit caps outgoing requests per second; zero disables the limiter
	RateLimit float64
	RateBurst int

	// EventTimezone is used to derive slot days
	EventTimezone *time.Location

	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:          baseURL,
		Timeout:          5 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   200 * time.Millisecond,
		RetryMaxDelay:    2 * time.Second,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		RateLimit:        50,
		RateBurst:        20,
		EventTimezone:    time.UTC,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// errNotFound marks a 404 before it is translated per endpoint.
var errNotFound = errors.New("eventsvc: resource not found")

// APIError is a non-2xx response from the event service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("eventsvc: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("eventsvc: status %d: %s", e.StatusCode, e.Message)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements scheduling.Directory over the event service REST API.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	log        *logger.Logger
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	mapper     *Mapper
}

var _ scheduling.Directory = (*Client)(nil)

// NewClient creates a new event service client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	log := config.Logger.With(logger.Component("eventsvc"))

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	breaker := circuitbreaker.DirectoryBreaker(
		config.BreakerThreshold,
		config.BreakerTimeout,
		func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		// A 404 is an answer, not an outage.
		circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, errNotFound) && !isClientError(err)
		}),
	)

	retrier := retry.DirectoryRetrier(
		config.MaxRetries,
		config.RetryBaseDelay,
		config.RetryMaxDelay,
		func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying event service request",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		},
	)

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		log:        log,
		limiter:    limiter,
		breaker:    breaker,
		retrier:    retrier,
		mapper:     NewMapper(config.EventTimezone, log),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetRegistration fetches a participant's registration for an event.
func (c *Client) GetRegistration(ctx context.Context, eventID, participantID string) (*scheduling.Registration, error) {
	var dto RegistrationDTO
	path := fmt.Sprintf("/events/%s/registrations/%s", url.PathEscape(eventID), url.PathEscape(participantID))

	if err := c.get(ctx, path, nil, &dto); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, shared.ErrRegistrationNotFound
		}
		return nil, err
	}
	if dto.EventID == "" {
		dto.EventID = eventID
	}
	return c.mapper.ToRegistration(dto), nil
}

// GetEventActiveSlots fetches the active slots of an event.
func (c *Client) GetEventActiveSlots(ctx context.Context, eventID string) ([]scheduling.TimeSlot, error) {
	var resp listResponse[TimeSlotDTO]
	path := fmt.Sprintf("/events/%s/time-slots", url.PathEscape(eventID))

	if err := c.get(ctx, path, url.Values{"active": {"true"}}, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return []scheduling.TimeSlot{}, nil
		}
		return nil, err
	}
	return c.mapper.ToTimeSlots(eventID, resp.Data), nil
}

// GetEventLocations fetches every meeting location of an event.
func (c *Client) GetEventLocations(ctx context.Context, eventID string) ([]scheduling.MeetingLocation, error) {
	var resp listResponse[LocationDTO]
	path := fmt.Sprintf("/events/%s/locations", url.PathEscape(eventID))

	if err := c.get(ctx, path, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return []scheduling.MeetingLocation{}, nil
		}
		return nil, err
	}
	return c.mapper.ToLocations(eventID, resp.Data), nil
}

// IsHealthy reports whether the circuit is closed.
func (c *Client) IsHealthy() bool {
	return !c.breaker.IsOpen()
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// get runs one logical GET through the rate limiter, the circuit breaker and
// the retrier. Transport failures come back as shared.ErrDirectoryUnavailable.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	start := time.Now()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
			return c.doSingleRequest(ctx, path, query, out)
		})
	})

	c.log.Debug("event service request",
		logger.String("path", path),
		logger.Latency(time.Since(start)),
		logger.Bool("ok", err == nil),
	)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNotFound):
		return errNotFound
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return shared.ErrDirectoryUnavailable.Wrap(err)
	case isClientError(err):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return shared.ErrDirectoryUnavailable.Wrap(err)
	}
}

// doSingleRequest performs one attempt and classifies the outcome for the retrier.
func (c *Client) doSingleRequest(ctx context.Context, path string, query url.Values, out any) error {
	fullURL := c.config.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("eventsvc: build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return retry.Retryable(fmt.Errorf("eventsvc: request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return retry.Retryable(fmt.Errorf("eventsvc: read body: %w", err))
	}

	if resp.StatusCode == http.StatusNotFound {
		return retry.Permanent(errNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var dto APIErrorDTO
		if json.Unmarshal(body, &dto) == nil && dto.Message != "" {
			apiErr.Code = dto.Code
			apiErr.Message = dto.Message
		}
		if isRetryableStatus(resp.StatusCode) {
			return retry.Retryable(apiErr)
		}
		return retry.Permanent(apiErr)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("eventsvc: decode response: %w", err))
	}
	return nil
}

// isClientError reports a non-retryable 4xx other than 404.
func isClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && !isRetryableStatus(apiErr.StatusCode)
}
