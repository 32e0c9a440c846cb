package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubStationSource struct {
	stations []models.StationKey
	err      error
}

func (s stubStationSource) FetchStations(context.Context) ([]models.StationKey, error) {
	return s.stations, s.err
}

func TestSyncStations_Reconciles(t *testing.T) {
	repo := newMemStationRepo(
		models.Station{ID: 1, Name: "Airport", Location: "Accra"},
		models.Station{ID: 2, Name: "Harbour", Location: "Tema"},
		models.Station{ID: 3, Name: "Junction", Location: "Kumasi", DeletedAt: gorm.DeletedAt{Time: utils.UTCNow(), Valid: true}},
	)
	source := stubStationSource{stations: []models.StationKey{
		{Name: "Airport", Location: "Accra"},
		{Name: "Airport", Location: "Accra"},
		{Name: "Junction", Location: "Kumasi"},
		{Name: "Lakeside", Location: "Ho"},
		{Name: "", Location: "Nowhere"},
	}}
	flow := NewStationFlow(repo, source, nil, zap.NewNop())

	resp, err := flow.SyncStations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Received)
	assert.Equal(t, 3, resp.Unique)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 1, resp.Deleted)
	assert.Equal(t, 1, resp.Restored)

	active, err := flow.ListStations(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(active))
	for _, st := range active {
		names = append(names, st.Name)
	}
	assert.ElementsMatch(t, []string{"Airport", "Junction", "Lakeside"}, names)

	_, err = flow.GetStation(context.Background(), 2)
	assert.True(t, IsStationNotFound(err))

	// a second run with the same list changes nothing
	again, err := flow.SyncStations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Created+again.Deleted+again.Restored)
}

func TestSyncStations_SourceFailure(t *testing.T) {
	repo := newMemStationRepo(models.Station{ID: 1, Name: "Airport", Location: "Accra"})
	flow := NewStationFlow(repo, stubStationSource{err: errors.New("timeout")}, nil, zap.NewNop())

	_, err := flow.SyncStations(context.Background())
	assert.True(t, IsStationSourceFailed(err))

	st, _ := repo.ByID(context.Background(), 1)
	assert.NotNil(t, st)
}
