package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type partnerHit struct {
	Method string
	Path   string
	APIKey string
	Body   map[string]any
}

// fakePartner answers every call with status and body and reports what it received
func fakePartner(t *testing.T, status int, body string) (*httptest.Server, chan partnerHit) {
	t.Helper()
	hits := make(chan partnerHit, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)
		hits <- partnerHit{Method: r.Method, Path: r.URL.Path, APIKey: r.Header.Get("API-KEY"), Body: payload}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

type syncHarness struct {
	entries *memEntryRepo
	logs    *memSyncLogRepo
	flow    SyncFlow
}

func newSyncHarness(endpoint string) *syncHarness {
	entries := newMemEntryRepo()
	entries.users[7] = &models.User{ID: 7, CompanyID: 1, FullName: "Ama Mensah", Email: "ama@star.test"}
	entries.stations[4] = &models.Station{ID: 4, Name: "Airport", Location: "Accra"}

	logs := &memSyncLogRepo{}
	lookup := staticLookup{partner: services.PartnerConfig{Endpoint: endpoint, APIKey: "partner-key"}}
	tracker := NewSyncStatusTracker(entries, zap.NewNop())
	flow := NewSyncFlow(entries, logs, tracker, services.NewDeliveryClient(2*time.Second), lookup, NewLocalEntryLocker(), zap.NewNop())

	return &syncHarness{entries: entries, logs: logs, flow: flow}
}

func omcEntry() *models.PriceEntry {
	return &models.PriceEntry{
		UserID:     7,
		SellerType: models.SellerTypeOMC,
		Date:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Window:     models.WindowFirst,
		StationID:  utils.ToPtr(uint(4)),
		ProductPrice: &models.ProductPrice{
			ProductType:       models.ProductTypePetrol,
			Price:             14.5,
			UnitOfMeasurement: models.UnitOfMeasureFor(models.ProductTypePetrol),
		},
		Images: []models.PriceEntryImage{{ID: 1, ImageURL: "https://cdn.test/docs/a.jpg"}},
	}
}

func bdcEntry(term models.TransactionTerm) *models.PriceEntry {
	entry := &models.PriceEntry{
		UserID:          7,
		SellerType:      models.SellerTypeBDC,
		Date:            time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		Window:          models.WindowSecond,
		TownOfLoading:   utils.ToPtr("Tema"),
		TransactionTerm: utils.ToPtr(term),
		ProductPrice: &models.ProductPrice{
			ProductType:       models.ProductTypeLPG,
			Price:             12,
			UnitOfMeasurement: models.UnitOfMeasureFor(models.ProductTypeLPG),
		},
	}
	if term == models.TransactionTermCredit {
		entry.ProductPrice.CreditPrice = utils.ToPtr(12.8)
		entry.ProductPrice.CreditDays = utils.ToPtr(30)
	}
	return entry
}

func TestNextSyncAction(t *testing.T) {
	tests := []struct {
		name  string
		entry *models.PriceEntry
		want  SyncAction
	}{
		{"nil entry", nil, SyncActionNone},
		{"never created", &models.PriceEntry{}, SyncActionCreate},
		{"empty external id", &models.PriceEntry{ExternalID: utils.ToPtr("")}, SyncActionCreate},
		{"update flag without external id still creates", &models.PriceEntry{UpdateSyncStatus: true}, SyncActionCreate},
		{"created and flagged", &models.PriceEntry{ExternalID: utils.ToPtr("9"), UpdateSyncStatus: true}, SyncActionUpdate},
		{"created and settled", &models.PriceEntry{ExternalID: utils.ToPtr("9"), SyncStatus: true}, SyncActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextSyncAction(tt.entry))
		})
	}
}

func TestSyncEntry_CreateStoresExternalID(t *testing.T) {
	srv, hits := fakePartner(t, http.StatusOK, `{"id":555}`)
	h := newSyncHarness(srv.URL + "/")
	entry := h.entries.put(omcEntry())

	outcome, err := h.flow.SyncEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Delivered)
	assert.Equal(t, SyncActionCreate, outcome.Action)
	assert.Equal(t, "555", outcome.ExternalID)

	hit := <-hits
	assert.Equal(t, http.MethodPost, hit.Method)
	assert.Equal(t, "/omc", hit.Path)
	assert.Equal(t, "partner-key", hit.APIKey)
	assert.Equal(t, "Ama Mensah", hit.Body["user"])
	assert.Equal(t, "omc", hit.Body["seller_type"])
	assert.Equal(t, "2024-01-01", hit.Body["date"])
	assert.Equal(t, "1st_window", hit.Body["window"])
	assert.Equal(t, "Accra", hit.Body["station_location"])
	assert.NotContains(t, hit.Body, "id")
	assert.Equal(t, []any{"https://cdn.test/docs/a.jpg"}, hit.Body["images"])
	price := hit.Body["product_price"].(map[string]any)
	assert.Equal(t, "petrol", price["product_type"])
	assert.Equal(t, 14.5, price["price"])
	assert.Equal(t, "Ghana Cedis per litre", price["unit_of_measurement"])

	stored := h.entries.get(entry.ID)
	require.NotNil(t, stored.ExternalID)
	assert.Equal(t, "555", *stored.ExternalID)
	assert.True(t, stored.SyncStatus)

	logs := h.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncOperationCreate, logs[0].Operation)
	assert.Equal(t, models.SyncLogStatusSucceeded, logs[0].Status)

	// settled entries are left alone
	again, err := h.flow.SyncEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncActionNone, again.Action)
	assert.Len(t, hits, 0)
}

func TestSyncEntry_PartnerFailureKeepsEntryPending(t *testing.T) {
	srv, hits := fakePartner(t, http.StatusInternalServerError, `{"detail":"boom"}`)
	h := newSyncHarness(srv.URL)
	entry := h.entries.put(bdcEntry(models.TransactionTermCash))

	outcome, err := h.flow.SyncEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Delivered)
	de, ok := services.AsDeliveryError(outcome.Err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, de.StatusCode)

	hit := <-hits
	assert.Equal(t, "/bdc", hit.Path)
	assert.Equal(t, "Tema", hit.Body["town_of_loading"])
	assert.Equal(t, "cash", hit.Body["transaction_term"])
	price := hit.Body["product_price"].(map[string]any)
	assert.Contains(t, price, "credit_price")
	assert.Nil(t, price["credit_price"])
	assert.Equal(t, "Ghana Cedis per Kg", price["unit_of_measurement"])

	stored := h.entries.get(entry.ID)
	assert.Nil(t, stored.ExternalID)
	assert.False(t, stored.SyncStatus)

	logs := h.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncLogStatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].StatusCode)
	assert.Equal(t, http.StatusInternalServerError, *logs[0].StatusCode)

	pending, err := h.entries.ListPendingCreate(context.Background(), models.SellerTypeBDC)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSyncEntry_PriceOnlyUpdate(t *testing.T) {
	srv, hits := fakePartner(t, http.StatusOK, `{"status":"ok"}`)
	h := newSyncHarness(srv.URL)

	seeded := omcEntry()
	seeded.ExternalID = utils.ToPtr("555")
	seeded.SyncStatus = true
	entry := h.entries.put(seeded)

	revision, err := h.entries.ApplyUpdate(context.Background(), entry.ID, repository.PriceEntryUpdate{Price: utils.ToPtr(15.25)})
	require.NoError(t, err)
	assert.Equal(t, uint(1), revision)
	assert.True(t, h.entries.get(entry.ID).UpdateSyncStatus)

	outcome, err := h.flow.SyncEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Delivered)
	assert.Equal(t, SyncActionUpdate, outcome.Action)

	hit := <-hits
	assert.Equal(t, http.MethodPut, hit.Method)
	assert.Equal(t, "/omc/555", hit.Path)
	assert.Equal(t, 15.25, hit.Body["product_price"].(map[string]any)["price"])
	assert.Equal(t, "Accra", hit.Body["station_location"])

	stored := h.entries.get(entry.ID)
	assert.False(t, stored.UpdateSyncStatus)
	assert.Equal(t, "555", *stored.ExternalID)
}

func TestSyncEntry_UpdateDuringDeliveryStaysPending(t *testing.T) {
	var h *syncHarness
	var entryID uint
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = h.entries.ApplyUpdate(r.Context(), entryID, repository.PriceEntryUpdate{Price: utils.ToPtr(16.0)})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h = newSyncHarness(srv.URL)
	seeded := omcEntry()
	seeded.ExternalID = utils.ToPtr("555")
	seeded.UpdateSyncStatus = true
	entryID = h.entries.put(seeded).ID

	outcome, err := h.flow.SyncEntry(context.Background(), entryID)
	require.NoError(t, err)
	assert.True(t, outcome.Delivered)

	stored := h.entries.get(entryID)
	assert.True(t, stored.UpdateSyncStatus)
	assert.Equal(t, uint(1), stored.Revision)
}

func TestSyncEntry_CreateAfterEditSettlesEntry(t *testing.T) {
	srv, hits := fakePartner(t, http.StatusOK, `{"id":555}`)
	h := newSyncHarness(srv.URL)
	entry := h.entries.put(omcEntry())

	_, err := h.entries.ApplyUpdate(context.Background(), entry.ID, repository.PriceEntryUpdate{Price: utils.ToPtr(15.0)})
	require.NoError(t, err)

	outcome, err := h.flow.SyncEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncActionCreate, outcome.Action)
	assert.True(t, outcome.Delivered)

	hit := <-hits
	assert.Equal(t, http.MethodPost, hit.Method)
	assert.Equal(t, 15.0, hit.Body["product_price"].(map[string]any)["price"])

	stored := h.entries.get(entry.ID)
	assert.Equal(t, "555", *stored.ExternalID)
	assert.False(t, stored.UpdateSyncStatus)
	assert.Equal(t, SyncActionNone, NextSyncAction(stored))

	again, err := h.flow.SyncEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncActionNone, again.Action)
	assert.Len(t, hits, 0)
}

func TestSyncEntry_EditDuringCreateStaysPendingForUpdate(t *testing.T) {
	var h *syncHarness
	var entryID uint
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = h.entries.ApplyUpdate(r.Context(), entryID, repository.PriceEntryUpdate{Price: utils.ToPtr(16.0)})
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":556}`))
	}))
	defer srv.Close()

	h = newSyncHarness(srv.URL)
	entryID = h.entries.put(omcEntry()).ID

	outcome, err := h.flow.SyncEntry(context.Background(), entryID)
	require.NoError(t, err)
	assert.True(t, outcome.Delivered)

	stored := h.entries.get(entryID)
	assert.Equal(t, "556", *stored.ExternalID)
	assert.True(t, stored.UpdateSyncStatus)
	assert.Equal(t, SyncActionUpdate, NextSyncAction(stored))
}

func TestSyncEntry_CreateAcceptedWithoutIDIsHeld(t *testing.T) {
	srv, hits := fakePartner(t, http.StatusOK, `{}`)
	h := newSyncHarness(srv.URL)
	entry := h.entries.put(omcEntry())

	outcome, err := h.flow.SyncEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncActionCreate, outcome.Action)
	assert.False(t, outcome.Delivered)
	assert.True(t, outcome.Unconfirmed)
	assert.ErrorIs(t, outcome.Err, services.ErrCreateUnacknowledged)
	<-hits

	stored := h.entries.get(entry.ID)
	assert.Nil(t, stored.ExternalID)
	assert.True(t, stored.CreateUnconfirmed)
	assert.Equal(t, SyncActionNone, NextSyncAction(stored))

	logs := h.logs.all()
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncLogStatusUnconfirmed, logs[0].Status)
	assert.Equal(t, http.StatusOK, *logs[0].StatusCode)

	pending, err := h.entries.ListPendingCreate(context.Background(), models.SellerTypeOMC)
	require.NoError(t, err)
	assert.Empty(t, pending)

	again, err := h.flow.SyncEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncActionNone, again.Action)
	assert.Len(t, hits, 0)
}

func TestSyncEntry_Guards(t *testing.T) {
	t.Run("claimed elsewhere", func(t *testing.T) {
		entries := newMemEntryRepo()
		entry := entries.put(omcEntry())
		flow := NewSyncFlow(entries, &memSyncLogRepo{}, NewSyncStatusTracker(entries, zap.NewNop()),
			services.NewDeliveryClient(time.Second), staticLookup{}, busyLocker{}, zap.NewNop())

		_, err := flow.SyncEntry(context.Background(), entry.ID)
		assert.ErrorIs(t, err, ErrEntryLocked)
	})

	t.Run("missing entry", func(t *testing.T) {
		h := newSyncHarness("http://partner.invalid")
		_, err := h.flow.SyncEntry(context.Background(), 42)
		assert.ErrorIs(t, err, ErrPriceEntryNotFound)
	})

	t.Run("company without endpoint", func(t *testing.T) {
		entries := newMemEntryRepo()
		entries.stations[4] = &models.Station{ID: 4, Name: "Airport", Location: "Accra"}
		entry := entries.put(omcEntry())
		logs := &memSyncLogRepo{}
		flow := NewSyncFlow(entries, logs, NewSyncStatusTracker(entries, zap.NewNop()),
			services.NewDeliveryClient(time.Second), staticLookup{err: ErrPartnerNotConfigured}, NewLocalEntryLocker(), zap.NewNop())

		outcome, err := flow.SyncEntry(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.False(t, outcome.Delivered)
		assert.True(t, errors.Is(outcome.Err, ErrPartnerNotConfigured))
		assert.Nil(t, entries.get(entry.ID).ExternalID)
		require.Len(t, logs.all(), 1)
		assert.Nil(t, logs.all()[0].StatusCode)
	})
}

func TestSyncStatusTracker_CreateOutcome(t *testing.T) {
	ctx := context.Background()
	entries := newMemEntryRepo()
	entry := entries.put(omcEntry())
	tracker := NewSyncStatusTracker(entries, zap.NewNop())

	require.NoError(t, tracker.MarkCreateOutcome(ctx, entry.ID, false, nil, 0))
	assert.Nil(t, entries.get(entry.ID).ExternalID)

	require.NoError(t, tracker.MarkCreateOutcome(ctx, entry.ID, true, utils.ToPtr("A"), 0))
	require.NoError(t, tracker.MarkCreateOutcome(ctx, entry.ID, true, utils.ToPtr("A"), 0))

	err := tracker.MarkCreateOutcome(ctx, entry.ID, true, utils.ToPtr("B"), 0)
	assert.ErrorIs(t, err, ErrExternalIDConflict)
	assert.Equal(t, "A", *entries.get(entry.ID).ExternalID)

	// a late failure report never undoes an accepted create
	require.NoError(t, tracker.MarkCreateOutcome(ctx, entry.ID, false, nil, 0))
	stored := entries.get(entry.ID)
	assert.True(t, stored.SyncStatus)
	assert.Equal(t, "A", *stored.ExternalID)
}

func TestBuildSyncRecord(t *testing.T) {
	t.Run("omc", func(t *testing.T) {
		entry := omcEntry()
		entry.ID = 3
		entry.User = &models.User{FullName: "Ama Mensah"}
		entry.Station = &models.Station{ID: 4, Name: "Airport", Location: "Accra"}

		record, err := BuildSyncRecord(entry)
		require.NoError(t, err)
		omc, ok := record.(OMCSyncRecord)
		require.True(t, ok)
		assert.Equal(t, "omc", omc.ResourcePath())
		assert.Equal(t, "Airport", omc.StationName)
		assert.Equal(t, "2024-01-01", omc.Date)
	})

	t.Run("bdc credit", func(t *testing.T) {
		entry := bdcEntry(models.TransactionTermCredit)
		record, err := BuildSyncRecord(entry)
		require.NoError(t, err)
		bdc, ok := record.(BDCSyncRecord)
		require.True(t, ok)
		assert.Equal(t, "bdc", bdc.ResourcePath())
		assert.Equal(t, models.TransactionTermCredit, bdc.TransactionTerm)
		assert.Equal(t, 30, *bdc.ProductPrice.CreditDays)
		assert.Empty(t, bdc.User)
		assert.NotNil(t, bdc.Images)
	})

	t.Run("location of the wrong kind", func(t *testing.T) {
		entry := bdcEntry(models.TransactionTermCash)
		entry.StationID = utils.ToPtr(uint(4))
		_, err := BuildSyncRecord(entry)
		assert.ErrorIs(t, err, ErrSellerKindMismatch)
	})

	t.Run("omc without loaded station", func(t *testing.T) {
		_, err := BuildSyncRecord(omcEntry())
		assert.ErrorIs(t, err, ErrStationNotFound)
	})
}
