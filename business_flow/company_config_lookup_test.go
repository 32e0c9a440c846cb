package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyConfigLookup(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo(
		models.User{ID: 7, CompanyID: 1},
		models.User{ID: 8, CompanyID: 2},
	)
	companies := newMemCompanyRepo(
		models.Company{ID: 1, Name: "Star Oil", APIEndpoint: "https://partner.test/api", APIKey: "k1"},
		models.Company{ID: 2, Name: "Quiet Fuels"},
	)
	lookup := NewCompanyConfigLookup(users, companies, time.Minute)

	partner, err := lookup.ConfigForUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "https://partner.test/api", partner.Endpoint)
	assert.Equal(t, "k1", partner.APIKey)

	_, err = lookup.ConfigForUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, users.byIDCalls)
	assert.Equal(t, 1, companies.byIDCalls)

	companies.setEndpoint(1, "https://partner.test/v2")
	partner, _ = lookup.ConfigForUser(ctx, 7)
	assert.Equal(t, "https://partner.test/api", partner.Endpoint)

	lookup.InvalidateCompany(1)
	partner, err = lookup.ConfigForUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "https://partner.test/v2", partner.Endpoint)
	assert.Equal(t, 1, users.byIDCalls)

	lookup.InvalidateUser(7)
	_, err = lookup.ConfigForUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, users.byIDCalls)

	_, err = lookup.ConfigForUser(ctx, 8)
	assert.ErrorIs(t, err, ErrPartnerNotConfigured)

	_, err = lookup.ConfigForUser(ctx, 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
