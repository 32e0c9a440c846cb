package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StationFlow mirrors the external station list and serves station lookups
type StationFlow interface {
	SyncStations(ctx context.Context) (*dto.StationSyncResponse, error)
	ListStations(ctx context.Context) ([]dto.StationDTO, error)
	GetStation(ctx context.Context, id uint) (*dto.StationDTO, error)
}

type StationFlowImpl struct {
	stationRepo repository.StationRepository
	source      services.StationSource
	db          *gorm.DB
	logger      *zap.Logger
}

func NewStationFlow(stationRepo repository.StationRepository, source services.StationSource, db *gorm.DB, logger *zap.Logger) StationFlow {
	return &StationFlowImpl{
		stationRepo: stationRepo,
		source:      source,
		db:          db,
		logger:      logger,
	}
}

// SyncStations reconciles local stations with the source list: new pairs are inserted,
// active pairs missing from the list are soft-deleted and deleted pairs present in it are restored.
func (f *StationFlowImpl) SyncStations(ctx context.Context) (*dto.StationSyncResponse, error) {
	received, err := f.source.FetchStations(ctx)
	if err != nil {
		return nil, NewBusinessError("STATION_SOURCE_FAILED", "Failed to fetch station list", fmt.Errorf("%w: %v", ErrStationSourceFailed, err))
	}

	wanted := lo.Uniq(lo.Filter(received, func(s models.StationKey, _ int) bool {
		return strings.TrimSpace(s.Name) != "" && strings.TrimSpace(s.Location) != ""
	}))
	wantedSet := lo.SliceToMap(wanted, func(s models.StationKey) (models.StationKey, struct{}) { return s, struct{}{} })

	resp := &dto.StationSyncResponse{Received: len(received), Unique: len(wanted)}

	err = f.inTx(ctx, func(ctx context.Context) error {
		existing, err := f.stationRepo.ByFilter(ctx, models.StationFilter{IncludeDeleted: true}, "id ASC", 0, 0)
		if err != nil {
			return err
		}

		var toDelete, toRestore []uint
		known := make(map[models.StationKey]struct{}, len(existing))
		for _, st := range existing {
			key := st.Key()
			known[key] = struct{}{}
			_, listed := wantedSet[key]
			switch {
			case listed && st.DeletedAt.Valid:
				toRestore = append(toRestore, st.ID)
			case !listed && !st.DeletedAt.Valid:
				toDelete = append(toDelete, st.ID)
			}
		}

		toCreate := lo.FilterMap(wanted, func(s models.StationKey, _ int) (*models.Station, bool) {
			_, ok := known[s]
			return &models.Station{Name: s.Name, Location: s.Location}, !ok
		})

		if err := f.stationRepo.SaveBatch(ctx, toCreate); err != nil {
			return err
		}
		if err := f.stationRepo.SoftDeleteByIDs(ctx, toDelete); err != nil {
			return err
		}
		if err := f.stationRepo.RestoreByIDs(ctx, toRestore); err != nil {
			return err
		}

		resp.Created, resp.Deleted, resp.Restored = len(toCreate), len(toDelete), len(toRestore)
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("STATION_SYNC_FAILED", "Failed to sync stations", err)
	}

	f.logger.Info("stations synced",
		zap.Int("received", resp.Received),
		zap.Int("created", resp.Created),
		zap.Int("deleted", resp.Deleted),
		zap.Int("restored", resp.Restored),
	)
	return resp, nil
}

func (f *StationFlowImpl) ListStations(ctx context.Context) ([]dto.StationDTO, error) {
	stations, err := f.stationRepo.ByFilter(ctx, models.StationFilter{}, "name ASC, location ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("STATION_LIST_FAILED", "Failed to list stations", err)
	}
	return lo.Map(stations, func(s *models.Station, _ int) dto.StationDTO { return ToStationDTO(*s) }), nil
}

func (f *StationFlowImpl) GetStation(ctx context.Context, id uint) (*dto.StationDTO, error) {
	station, err := f.stationRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("STATION_FETCH_FAILED", "Failed to fetch station", err)
	}
	if station == nil {
		return nil, NewBusinessError("STATION_NOT_FOUND", "Station not found", ErrStationNotFound)
	}
	out := ToStationDTO(*station)
	return &out, nil
}

func (f *StationFlowImpl) inTx(ctx context.Context, fn func(context.Context) error) error {
	if f.db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, f.db, fn)
}
