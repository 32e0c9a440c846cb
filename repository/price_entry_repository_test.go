package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	testingutil "github.com/amirphl/omc-bdc-price-service/testing"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seeded struct {
	ctx      context.Context
	fixtures *testingutil.TestFixtures
	repo     repository.PriceEntryRepository
	user     *models.User
	other    *models.User
	station  *models.Station
}

func withDB(t *testing.T, fn func(t *testing.T, testDB *testingutil.TestDB)) {
	t.Helper()
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fn(t, testDB)
		return nil
	})
	if errors.Is(err, testingutil.ErrDatabaseUnavailable) {
		t.Skipf("skipping database test: %v", err)
	}
	require.NoError(t, err)
}

func seed(t *testing.T, testDB *testingutil.TestDB) *seeded {
	t.Helper()
	fixtures := testingutil.NewTestFixtures(testDB)

	company, err := fixtures.CreateTestCompany("http://partner.local")
	require.NoError(t, err)
	user, err := fixtures.CreateTestUser(company.ID)
	require.NoError(t, err)
	other, err := fixtures.CreateTestUser(company.ID)
	require.NoError(t, err)
	station, err := fixtures.CreateTestStation("Shell Osu", "Accra")
	require.NoError(t, err)

	return &seeded{
		ctx:      testingutil.CreateTestContext(),
		fixtures: fixtures,
		repo:     repository.NewPriceEntryRepository(testDB.DB),
		user:     user,
		other:    other,
		station:  station,
	}
}

func TestPriceEntryRepository_SaveWithDetails(t *testing.T) {
	withDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		s := seed(t, testDB)

		entry := s.fixtures.NewOMCEntry(s.user.ID, s.station.ID, models.ProductTypePetrol, 14.50)
		entry.Images = []models.PriceEntryImage{{ImageURL: "http://s3/bucket/a.jpg", ObjectKey: "a.jpg", UploadedAt: utils.UTCNow()}}
		require.NoError(t, s.repo.Save(s.ctx, entry))
		require.NotZero(t, entry.ID)

		got, err := s.repo.ByIDWithDetails(s.ctx, entry.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.HasLocation())
		assert.Nil(t, got.ExternalID)
		assert.False(t, got.SyncStatus)
		require.NotNil(t, got.ProductPrice)
		assert.Equal(t, 14.50, got.ProductPrice.Price)
		assert.Equal(t, "Ghana Cedis per litre", got.ProductPrice.UnitOfMeasurement)
		require.NotNil(t, got.Station)
		assert.Equal(t, "Shell Osu", got.Station.Name)
		assert.Len(t, got.Images, 1)

		missing, err := s.repo.ByIDWithDetails(s.ctx, 99999)
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestPriceEntryRepository_Paginate(t *testing.T) {
	withDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		s := seed(t, testDB)
		day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		saved := make([]*models.PriceEntry, 0)
		for i, product := range []models.ProductType{models.ProductTypePetrol, models.ProductTypeDiesel, models.ProductTypePetrol} {
			entry := s.fixtures.NewOMCEntry(s.user.ID, s.station.ID, product, 10+float64(i))
			require.NoError(t, s.repo.Save(s.ctx, entry))
			saved = append(saved, entry)
		}
		require.NoError(t, s.fixtures.SetCreatedAt(saved[0].ID, day))
		require.NoError(t, s.fixtures.SetCreatedAt(saved[1].ID, day.Add(23*time.Hour+59*time.Minute+59*time.Second)))
		require.NoError(t, s.fixtures.SetCreatedAt(saved[2].ID, day.Add(24*time.Hour)))

		bdc := s.fixtures.NewBDCEntry(s.user.ID, "Tema", models.TransactionTermCredit, models.ProductTypeLPG, 9)
		require.NoError(t, s.repo.Save(s.ctx, bdc))
		foreign := s.fixtures.NewOMCEntry(s.other.ID, s.station.ID, models.ProductTypePetrol, 12)
		require.NoError(t, s.repo.Save(s.ctx, foreign))

		omc := models.SellerTypeOMC

		t.Run("OwnEntriesOnly", func(t *testing.T) {
			entries, total, err := s.repo.Paginate(s.ctx, models.PriceEntryFilter{UserID: &s.user.ID, SellerType: &omc}, models.PriceEntrySort{}, 50, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			for _, e := range entries {
				assert.Equal(t, s.user.ID, e.UserID)
				assert.Equal(t, models.SellerTypeOMC, e.SellerType)
			}
		})

		t.Run("ProductTypeJoin", func(t *testing.T) {
			petrol := models.ProductTypePetrol
			entries, total, err := s.repo.Paginate(s.ctx, models.PriceEntryFilter{UserID: &s.user.ID, ProductType: &petrol}, models.PriceEntrySort{}, 50, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			for _, e := range entries {
				require.NotNil(t, e.ProductPrice)
				assert.Equal(t, models.ProductTypePetrol, e.ProductPrice.ProductType)
			}
		})

		t.Run("DateRangeIncludesWholeEndDay", func(t *testing.T) {
			from := day
			to := day.Add(24 * time.Hour)
			entries, total, err := s.repo.Paginate(s.ctx, models.PriceEntryFilter{UserID: &s.user.ID, SellerType: &omc, CreatedAfter: &from, CreatedBefore: &to}, models.PriceEntrySort{}, 50, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			ids := []uint{entries[0].ID, entries[1].ID}
			assert.ElementsMatch(t, []uint{saved[0].ID, saved[1].ID}, ids)
		})

		t.Run("UnknownSortFallsBackToCreatedAtDesc", func(t *testing.T) {
			entries, _, err := s.repo.Paginate(s.ctx, models.PriceEntryFilter{UserID: &s.user.ID, SellerType: &omc}, models.PriceEntrySort{Column: "password_hash; DROP TABLE users", Ascending: true}, 50, 0)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, saved[2].ID, entries[0].ID)
			assert.Equal(t, saved[0].ID, entries[2].ID)
		})

		t.Run("StablePages", func(t *testing.T) {
			window := models.PriceEntrySort{Column: "window", Ascending: true}
			filter := models.PriceEntryFilter{UserID: &s.user.ID, SellerType: &omc}

			first, _, err := s.repo.Paginate(s.ctx, filter, window, 2, 0)
			require.NoError(t, err)
			again, _, err := s.repo.Paginate(s.ctx, filter, window, 2, 0)
			require.NoError(t, err)
			second, _, err := s.repo.Paginate(s.ctx, filter, window, 2, 2)
			require.NoError(t, err)

			require.Len(t, first, 2)
			require.Len(t, second, 1)
			assert.Equal(t, first[0].ID, again[0].ID)
			assert.Equal(t, first[1].ID, again[1].ID)
			assert.Less(t, first[0].ID, first[1].ID)
			assert.Less(t, first[1].ID, second[0].ID)
		})
	})
}

func TestPriceEntryRepository_SyncBookkeeping(t *testing.T) {
	withDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		s := seed(t, testDB)

		entry := s.fixtures.NewOMCEntry(s.user.ID, s.station.ID, models.ProductTypePetrol, 14.50)
		require.NoError(t, s.repo.Save(s.ctx, entry))

		t.Run("PendingCreate", func(t *testing.T) {
			pending, err := s.repo.ListPendingCreate(s.ctx, models.SellerTypeOMC)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, entry.ID, pending[0].ID)

			none, err := s.repo.ListPendingCreate(s.ctx, models.SellerTypeBDC)
			require.NoError(t, err)
			assert.Empty(t, none)
		})

		t.Run("FailedCreateKeepsEntryPending", func(t *testing.T) {
			applied, err := s.repo.MarkCreateOutcome(s.ctx, entry.ID, false, nil, 0)
			require.NoError(t, err)
			assert.True(t, applied)

			got, err := s.repo.ByID(s.ctx, entry.ID)
			require.NoError(t, err)
			assert.Nil(t, got.ExternalID)
			assert.False(t, got.SyncStatus)
		})

		t.Run("CreateOutcomeIsIdempotent", func(t *testing.T) {
			applied, err := s.repo.MarkCreateOutcome(s.ctx, entry.ID, true, utils.ToPtr("555"), 0)
			require.NoError(t, err)
			assert.True(t, applied)

			applied, err = s.repo.MarkCreateOutcome(s.ctx, entry.ID, true, utils.ToPtr("555"), 0)
			require.NoError(t, err)
			assert.True(t, applied)

			applied, err = s.repo.MarkCreateOutcome(s.ctx, entry.ID, true, utils.ToPtr("777"), 0)
			require.NoError(t, err)
			assert.False(t, applied)

			applied, err = s.repo.MarkCreateOutcome(s.ctx, entry.ID, false, nil, 0)
			require.NoError(t, err)
			assert.False(t, applied)

			got, err := s.repo.ByID(s.ctx, entry.ID)
			require.NoError(t, err)
			require.NotNil(t, got.ExternalID)
			assert.Equal(t, "555", *got.ExternalID)
			assert.True(t, got.SyncStatus)
		})

		t.Run("PartialUpdateTouchesOnlySuppliedFields", func(t *testing.T) {
			before, err := s.repo.ByIDWithDetails(s.ctx, entry.ID)
			require.NoError(t, err)

			revision, err := s.repo.ApplyUpdate(s.ctx, entry.ID, repository.PriceEntryUpdate{Price: utils.ToPtr(15.25), CreditDays: utils.ToPtr(0)})
			require.NoError(t, err)
			assert.Equal(t, before.Revision+1, revision)

			after, err := s.repo.ByIDWithDetails(s.ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, 15.25, after.ProductPrice.Price)
			assert.Equal(t, before.ProductPrice.ProductType, after.ProductPrice.ProductType)
			assert.Equal(t, before.Window, after.Window)
			assert.Equal(t, *before.StationID, *after.StationID)
			assert.True(t, after.UpdateSyncStatus)

			pending, err := s.repo.ListPendingUpdate(s.ctx, models.SellerTypeOMC)
			require.NoError(t, err)
			require.Len(t, pending, 1)
		})

		t.Run("StaleUpdateOutcomeDoesNotClearFlag", func(t *testing.T) {
			current, err := s.repo.ByID(s.ctx, entry.ID)
			require.NoError(t, err)
			delivered := current.Revision

			newer, err := s.repo.FlagForUpdate(s.ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, delivered+1, newer)

			applied, err := s.repo.MarkUpdateOutcome(s.ctx, entry.ID, true, delivered)
			require.NoError(t, err)
			assert.False(t, applied)

			applied, err = s.repo.MarkUpdateOutcome(s.ctx, entry.ID, true, newer)
			require.NoError(t, err)
			assert.True(t, applied)

			pending, err := s.repo.ListPendingUpdate(s.ctx, models.SellerTypeOMC)
			require.NoError(t, err)
			assert.Empty(t, pending)
		})

		t.Run("CreateCarryingLatestRevisionSettlesEdits", func(t *testing.T) {
			edited := s.fixtures.NewOMCEntry(s.user.ID, s.station.ID, models.ProductTypeDiesel, 13.10)
			require.NoError(t, s.repo.Save(s.ctx, edited))
			revision, err := s.repo.ApplyUpdate(s.ctx, edited.ID, repository.PriceEntryUpdate{Price: utils.ToPtr(13.40)})
			require.NoError(t, err)

			applied, err := s.repo.MarkCreateOutcome(s.ctx, edited.ID, true, utils.ToPtr("901"), revision)
			require.NoError(t, err)
			assert.True(t, applied)

			got, err := s.repo.ByID(s.ctx, edited.ID)
			require.NoError(t, err)
			assert.True(t, got.SyncStatus)
			assert.False(t, got.UpdateSyncStatus)
		})

		t.Run("CreateCarryingOlderRevisionKeepsEditsPending", func(t *testing.T) {
			edited := s.fixtures.NewOMCEntry(s.user.ID, s.station.ID, models.ProductTypeDiesel, 13.10)
			require.NoError(t, s.repo.Save(s.ctx, edited))
			delivered := edited.Revision
			_, err := s.repo.ApplyUpdate(s.ctx, edited.ID, repository.PriceEntryUpdate{Price: utils.ToPtr(13.40)})
			require.NoError(t, err)

			applied, err := s.repo.MarkCreateOutcome(s.ctx, edited.ID, true, utils.ToPtr("902"), delivered)
			require.NoError(t, err)
			assert.True(t, applied)

			got, err := s.repo.ByID(s.ctx, edited.ID)
			require.NoError(t, err)
			require.NotNil(t, got.ExternalID)
			assert.True(t, got.UpdateSyncStatus)
		})

		t.Run("UnacknowledgedCreateIsHeldUntilResolved", func(t *testing.T) {
			held := s.fixtures.NewOMCEntry(s.user.ID, s.station.ID, models.ProductTypeDiesel, 13.20)
			require.NoError(t, s.repo.Save(s.ctx, held))

			applied, err := s.repo.MarkCreateUnconfirmed(s.ctx, held.ID)
			require.NoError(t, err)
			assert.True(t, applied)

			pending, err := s.repo.ListPendingCreate(s.ctx, models.SellerTypeOMC)
			require.NoError(t, err)
			for _, p := range pending {
				assert.NotEqual(t, held.ID, p.ID)
			}

			resolved, err := s.repo.ResolveUnconfirmedCreate(s.ctx, held.ID, nil)
			require.NoError(t, err)
			assert.True(t, resolved)

			resolved, err = s.repo.ResolveUnconfirmedCreate(s.ctx, held.ID, nil)
			require.NoError(t, err)
			assert.False(t, resolved)

			pending, err = s.repo.ListPendingCreate(s.ctx, models.SellerTypeOMC)
			require.NoError(t, err)
			ids := make([]uint, 0, len(pending))
			for _, p := range pending {
				ids = append(ids, p.ID)
			}
			assert.Contains(t, ids, held.ID)

			_, err = s.repo.MarkCreateUnconfirmed(s.ctx, held.ID)
			require.NoError(t, err)
			resolved, err = s.repo.ResolveUnconfirmedCreate(s.ctx, held.ID, utils.ToPtr("903"))
			require.NoError(t, err)
			assert.True(t, resolved)

			got, err := s.repo.ByID(s.ctx, held.ID)
			require.NoError(t, err)
			require.NotNil(t, got.ExternalID)
			assert.Equal(t, "903", *got.ExternalID)
			assert.False(t, got.CreateUnconfirmed)
			assert.True(t, got.UpdateSyncStatus)
		})
	})
}

func TestStationRepository_SoftDeleteAndRestore(t *testing.T) {
	withDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewStationRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		station, err := fixtures.CreateTestStation("Goil Tema", "Tema")
		require.NoError(t, err)

		require.NoError(t, repo.SoftDeleteByIDs(ctx, []uint{station.ID}))
		active, err := repo.ByFilter(ctx, models.StationFilter{}, "", 0, 0)
		require.NoError(t, err)
		assert.Empty(t, active)

		all, err := repo.ByFilter(ctx, models.StationFilter{IncludeDeleted: true}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.True(t, all[0].DeletedAt.Valid)

		require.NoError(t, repo.RestoreByIDs(ctx, []uint{station.ID}))
		restored, err := repo.ByID(ctx, station.ID)
		require.NoError(t, err)
		require.NotNil(t, restored)
	})
}
