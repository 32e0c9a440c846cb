package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/omc-bdc-price-service/app/services"
	businessflow "github.com/amirphl/omc-bdc-price-service/business_flow"
	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pendingRepo struct {
	repository.PriceEntryRepository
	create map[models.SellerType][]*models.PriceEntry
	update map[models.SellerType][]*models.PriceEntry
	err    error
}

func (r *pendingRepo) ListPendingCreate(_ context.Context, seller models.SellerType) ([]*models.PriceEntry, error) {
	return r.create[seller], r.err
}

func (r *pendingRepo) ListPendingUpdate(_ context.Context, seller models.SellerType) ([]*models.PriceEntry, error) {
	return r.update[seller], r.err
}

type scriptedSync struct {
	outcomes map[uint]*businessflow.SyncOutcome
	errs     map[uint]error
	calls    []uint
}

func (s *scriptedSync) SyncEntry(_ context.Context, id uint) (*businessflow.SyncOutcome, error) {
	s.calls = append(s.calls, id)
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	return s.outcomes[id], nil
}

func entries(ids ...uint) []*models.PriceEntry {
	out := make([]*models.PriceEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.PriceEntry{ID: id})
	}
	return out
}

func TestRunOnce_CountsOutcomesAndContinuesAfterFailures(t *testing.T) {
	repo := &pendingRepo{
		create: map[models.SellerType][]*models.PriceEntry{
			models.SellerTypeOMC: entries(1, 2, 3),
		},
		update: map[models.SellerType][]*models.PriceEntry{
			models.SellerTypeBDC: entries(10, 11),
		},
	}
	flow := &scriptedSync{
		outcomes: map[uint]*businessflow.SyncOutcome{
			1:  {EntryID: 1, Action: businessflow.SyncActionCreate, Delivered: true, ExternalID: "a"},
			2:  {EntryID: 2, Action: businessflow.SyncActionCreate, Err: &services.DeliveryError{StatusCode: 500}},
			3:  {EntryID: 3, Action: businessflow.SyncActionCreate, Delivered: true, ExternalID: "c"},
			10: {EntryID: 10, Action: businessflow.SyncActionUpdate, Delivered: true},
			11: {EntryID: 11, Action: businessflow.SyncActionUpdate, Delivered: true},
		},
	}

	s := NewRetryScheduler(repo, flow, config.SyncConfig{}, zap.NewNop())
	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []uint{1, 2, 3, 10, 11}, flow.calls)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
}

func TestRunOnce_SkipsLockedAndSettledEntries(t *testing.T) {
	repo := &pendingRepo{
		create: map[models.SellerType][]*models.PriceEntry{
			models.SellerTypeOMC: entries(1, 2, 3, 4),
		},
	}
	flow := &scriptedSync{
		outcomes: map[uint]*businessflow.SyncOutcome{
			2: {EntryID: 2, Action: businessflow.SyncActionNone},
		},
		errs: map[uint]error{
			1: businessflow.ErrEntryLocked,
			3: businessflow.ErrPriceEntryNotFound,
			4: errors.New("connection reset"),
		},
	}

	s := NewRetryScheduler(repo, flow, config.SyncConfig{}, zap.NewNop())
	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunOnce_CountsUnacknowledgedCreatesAsHeld(t *testing.T) {
	repo := &pendingRepo{
		create: map[models.SellerType][]*models.PriceEntry{
			models.SellerTypeOMC: entries(1, 2),
		},
	}
	flow := &scriptedSync{
		outcomes: map[uint]*businessflow.SyncOutcome{
			1: {EntryID: 1, Action: businessflow.SyncActionCreate, Unconfirmed: true, Err: &services.DeliveryError{StatusCode: 200, Err: services.ErrCreateUnacknowledged}},
			2: {EntryID: 2, Action: businessflow.SyncActionCreate, Delivered: true, ExternalID: "b"},
		},
	}

	s := NewRetryScheduler(repo, flow, config.SyncConfig{}, zap.NewNop())
	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Held)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Failed)
}

func TestRunOnce_ReportsListingErrors(t *testing.T) {
	repo := &pendingRepo{err: errors.New("db down")}
	flow := &scriptedSync{}

	s := NewRetryScheduler(repo, flow, config.SyncConfig{}, zap.NewNop())
	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, flow.calls)
}

func TestRunOnce_RejectsOverlappingPass(t *testing.T) {
	s := NewRetryScheduler(&pendingRepo{}, &scriptedSync{}, config.SyncConfig{}, zap.NewNop())
	s.running.Lock()
	defer s.running.Unlock()

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRetryRunning)
}

func TestStart(t *testing.T) {
	s := NewRetryScheduler(&pendingRepo{}, &scriptedSync{}, config.SyncConfig{
		RetryHour:     15,
		RetryMinute:   55,
		RetryLocation: "UTC",
	}, zap.NewNop())
	assert.Equal(t, "55 15 * * *", s.CronSpec())

	stop, err := s.Start(context.Background())
	require.NoError(t, err)
	stop()

	bad := NewRetryScheduler(&pendingRepo{}, &scriptedSync{}, config.SyncConfig{RetryLocation: "Nowhere/City"}, zap.NewNop())
	_, err = bad.Start(context.Background())
	assert.Error(t, err)

	invalid := NewRetryScheduler(&pendingRepo{}, &scriptedSync{}, config.SyncConfig{RetryHour: 25}, zap.NewNop())
	_, err = invalid.Start(context.Background())
	assert.Error(t, err)
}
