package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultDeliveryTimeout = 30 * time.Second
	maxResponseBodyBytes   = 64 * 1024
	apiKeyHeader           = "API-KEY"
)

// Delivery operations
const (
	DeliveryOpCreate = "create"
	DeliveryOpUpdate = "update"
)

var (
	deliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_delivery_attempts_total",
			Help: "Partner delivery attempts by resource, operation and outcome",
		},
		[]string{"resource", "operation", "outcome"},
	)
	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partner_delivery_duration_seconds",
			Help:    "Partner delivery round trip duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "operation"},
	)
)

// ErrCreateUnacknowledged marks a create the partner answered with 200 but without a usable id.
// The partner may already hold the record, so the create must not be repeated blindly.
var ErrCreateUnacknowledged = errors.New("partner accepted the create without an id")

// PartnerConfig is a company's delivery target
type PartnerConfig struct {
	Endpoint string
	APIUser  string
	APIKey   string
}

// DeliveryRecord is a normalized, seller-kind-specific payload.
// ResourcePath names the partner collection, "omc" or "bdc".
type DeliveryRecord interface {
	ResourcePath() string
}

// DeliveryError describes a failed partner call.
// StatusCode is zero when no response was received.
type DeliveryError struct {
	Operation  string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("partner %s %s returned status %d: %s", e.Operation, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("partner %s %s failed: %v", e.Operation, e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// AsDeliveryError extracts a *DeliveryError from err
func AsDeliveryError(err error) (*DeliveryError, bool) {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// DeliveryClient pushes price entry records to a company's partner API, one record per call
type DeliveryClient interface {
	DeliverCreate(ctx context.Context, partner PartnerConfig, record DeliveryRecord) (string, error)
	DeliverUpdate(ctx context.Context, partner PartnerConfig, externalID string, record DeliveryRecord) error
}

// HTTPDeliveryClient implements DeliveryClient over HTTP
type HTTPDeliveryClient struct {
	client *http.Client
}

// NewDeliveryClient creates a delivery client with a fixed per-call timeout
func NewDeliveryClient(timeout time.Duration) *HTTPDeliveryClient {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &HTTPDeliveryClient{
		client: &http.Client{Timeout: timeout},
	}
}

// DeliverCreate POSTs record to {endpoint}/{resource} and returns the id the partner assigned
func (c *HTTPDeliveryClient) DeliverCreate(ctx context.Context, partner PartnerConfig, record DeliveryRecord) (string, error) {
	target := utils.TrimRightSlash(partner.Endpoint) + "/" + record.ResourcePath()

	status, body, err := c.do(ctx, DeliveryOpCreate, http.MethodPost, target, partner.APIKey, record)
	if err != nil {
		return "", err
	}

	externalID, err := decodeExternalID(body)
	if err != nil {
		deliveryAttempts.WithLabelValues(record.ResourcePath(), DeliveryOpCreate, "unacknowledged").Inc()
		return "", &DeliveryError{
			Operation:  DeliveryOpCreate,
			URL:        target,
			StatusCode: status,
			Body:       string(body),
			Err:        fmt.Errorf("%w: %v", ErrCreateUnacknowledged, err),
		}
	}
	deliveryAttempts.WithLabelValues(record.ResourcePath(), DeliveryOpCreate, "success").Inc()
	return externalID, nil
}

// DeliverUpdate PUTs record to {endpoint}/{resource}/{externalID}
func (c *HTTPDeliveryClient) DeliverUpdate(ctx context.Context, partner PartnerConfig, externalID string, record DeliveryRecord) error {
	if externalID == "" {
		return &DeliveryError{Operation: DeliveryOpUpdate, Err: errors.New("external id is required for update")}
	}
	target := utils.TrimRightSlash(partner.Endpoint) + "/" + record.ResourcePath() + "/" + url.PathEscape(externalID)

	if _, _, err := c.do(ctx, DeliveryOpUpdate, http.MethodPut, target, partner.APIKey, record); err != nil {
		return err
	}
	deliveryAttempts.WithLabelValues(record.ResourcePath(), DeliveryOpUpdate, "success").Inc()
	return nil
}

func (c *HTTPDeliveryClient) do(ctx context.Context, op, method, target, apiKey string, record DeliveryRecord) (int, []byte, error) {
	resource := record.ResourcePath()
	start := time.Now()
	defer func() {
		deliveryDuration.WithLabelValues(resource, op).Observe(time.Since(start).Seconds())
	}()

	fail := func(status int, body []byte, err error) (int, []byte, error) {
		deliveryAttempts.WithLabelValues(resource, op, "failure").Inc()
		return status, body, &DeliveryError{Operation: op, URL: target, StatusCode: status, Body: string(body), Err: err}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fail(0, nil, fmt.Errorf("failed to encode record: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return fail(0, nil, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fail(0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return fail(resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return fail(resp.StatusCode, body, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	return resp.StatusCode, body, nil
}

// decodeExternalID reads "id" from a create response; numeric and string ids are both accepted
func decodeExternalID(body []byte) (string, error) {
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}

	raw := bytes.TrimSpace(resp.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("create response carries no id")
	}

	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("failed to decode id: %w", err)
		}
		if id == "" {
			return "", errors.New("create response carries an empty id")
		}
		return id, nil
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", fmt.Errorf("id is neither a string nor a number: %w", err)
	}
	return number.String(), nil
}
