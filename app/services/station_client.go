package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amirphl/omc-bdc-price-service/models"
)

const maxStationListBytes = 8 * 1024 * 1024

// StationSource returns the authoritative station list
type StationSource interface {
	FetchStations(ctx context.Context) ([]models.StationKey, error)
}

// HTTPStationSource reads the station list from an external endpoint
type HTTPStationSource struct {
	url    string
	apiKey string
	client *http.Client
}

func NewStationSource(url, apiKey string, timeout time.Duration) *HTTPStationSource {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &HTTPStationSource{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// FetchStations GETs the list. Duplicates are returned as received.
func (s *HTTPStationSource) FetchStations(ctx context.Context) ([]models.StationKey, error) {
	if s.url == "" {
		return nil, fmt.Errorf("station sync url is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build station request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stations: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStationListBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read station list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("station source returned status %d: %s", resp.StatusCode, string(body))
	}

	var stations []models.StationKey
	if err := json.Unmarshal(body, &stations); err != nil {
		return nil, fmt.Errorf("failed to decode station list: %w", err)
	}
	return stations, nil
}
