package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	resource string
	Price    float64 `json:"price"`
}

func (r testRecord) ResourcePath() string { return r.resource }

type capturedRequest struct {
	method      string
	path        string
	apiKey      string
	contentType string
	body        map[string]any
}

func partnerServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.apiKey = r.Header.Get("API-KEY")
		captured.contentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestDeliverCreate(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		response   string
		resource   string
		expectID   string
		expectCode int
		unacked    bool
	}{
		{name: "numeric id", status: http.StatusOK, response: `{"id": 555}`, resource: "omc", expectID: "555"},
		{name: "string id", status: http.StatusOK, response: `{"id": "bdc-77"}`, resource: "bdc", expectID: "bdc-77"},
		{name: "server error", status: http.StatusInternalServerError, response: `{"detail":"boom"}`, resource: "omc", expectCode: http.StatusInternalServerError},
		{name: "created is not accepted", status: http.StatusCreated, response: `{"id": 1}`, resource: "omc", expectCode: http.StatusCreated},
		{name: "missing id", status: http.StatusOK, response: `{}`, resource: "omc", expectCode: http.StatusOK, unacked: true},
		{name: "null id", status: http.StatusOK, response: `{"id": null}`, resource: "bdc", expectCode: http.StatusOK, unacked: true},
		{name: "malformed body", status: http.StatusOK, response: `not json`, resource: "omc", expectCode: http.StatusOK, unacked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, captured := partnerServer(t, tt.status, tt.response)
			client := NewDeliveryClient(5 * time.Second)

			id, err := client.DeliverCreate(context.Background(), PartnerConfig{Endpoint: srv.URL + "/", APIKey: "k-1"}, testRecord{resource: tt.resource, Price: 14.5})

			assert.Equal(t, http.MethodPost, captured.method)
			assert.Equal(t, "/"+tt.resource, captured.path)
			assert.Equal(t, "k-1", captured.apiKey)
			assert.Equal(t, "application/json", captured.contentType)
			assert.Equal(t, 14.5, captured.body["price"])

			if tt.expectID != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.expectID, id)
				return
			}
			require.Error(t, err)
			de, ok := AsDeliveryError(err)
			require.True(t, ok)
			assert.Equal(t, tt.expectCode, de.StatusCode)
			assert.Equal(t, DeliveryOpCreate, de.Operation)
			assert.Equal(t, tt.response, de.Body)
			assert.Equal(t, tt.unacked, errors.Is(err, ErrCreateUnacknowledged))
		})
	}
}

func TestDeliverUpdate(t *testing.T) {
	srv, captured := partnerServer(t, http.StatusOK, `{}`)
	client := NewDeliveryClient(5 * time.Second)

	err := client.DeliverUpdate(context.Background(), PartnerConfig{Endpoint: srv.URL, APIKey: "k-2"}, "555", testRecord{resource: "bdc", Price: 9})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/bdc/555", captured.path)
	assert.Equal(t, "k-2", captured.apiKey)

	err = client.DeliverUpdate(context.Background(), PartnerConfig{Endpoint: srv.URL}, "", testRecord{resource: "bdc"})
	assert.Error(t, err)
}

func TestDeliver_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	client := NewDeliveryClient(time.Second)
	_, err := client.DeliverCreate(context.Background(), PartnerConfig{Endpoint: endpoint}, testRecord{resource: "omc"})
	require.Error(t, err)
	de, ok := AsDeliveryError(err)
	require.True(t, ok)
	assert.Zero(t, de.StatusCode)
	assert.NotNil(t, de.Err)
}

func TestDeliver_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewDeliveryClient(50 * time.Millisecond)
	err := client.DeliverUpdate(context.Background(), PartnerConfig{Endpoint: srv.URL}, "1", testRecord{resource: "omc"})
	require.Error(t, err)
	_, ok := AsDeliveryError(err)
	assert.True(t, ok)
}
