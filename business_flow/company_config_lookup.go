package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/patrickmn/go-cache"
)

const defaultCompanyCacheTTL = 5 * time.Minute

// CompanyConfigLookup resolves the partner delivery target of a user's company
type CompanyConfigLookup interface {
	ConfigForUser(ctx context.Context, userID uint) (services.PartnerConfig, error)
	InvalidateCompany(companyID uint)
	InvalidateUser(userID uint)
}

// CachedCompanyConfigLookup keeps user->company and company->config in memory for a short TTL
type CachedCompanyConfigLookup struct {
	userRepo    repository.UserRepository
	companyRepo repository.CompanyRepository
	cache       *cache.Cache
}

func NewCompanyConfigLookup(userRepo repository.UserRepository, companyRepo repository.CompanyRepository, ttl time.Duration) *CachedCompanyConfigLookup {
	if ttl <= 0 {
		ttl = defaultCompanyCacheTTL
	}
	return &CachedCompanyConfigLookup{
		userRepo:    userRepo,
		companyRepo: companyRepo,
		cache:       cache.New(ttl, 2*ttl),
	}
}

func userCacheKey(userID uint) string       { return fmt.Sprintf("user:%d", userID) }
func companyCacheKey(companyID uint) string { return fmt.Sprintf("company:%d", companyID) }

func (l *CachedCompanyConfigLookup) ConfigForUser(ctx context.Context, userID uint) (services.PartnerConfig, error) {
	companyID, err := l.companyOf(ctx, userID)
	if err != nil {
		return services.PartnerConfig{}, err
	}

	if cached, ok := l.cache.Get(companyCacheKey(companyID)); ok {
		return cached.(services.PartnerConfig), nil
	}

	company, err := l.companyRepo.ByID(ctx, companyID)
	if err != nil {
		return services.PartnerConfig{}, err
	}
	if company == nil {
		return services.PartnerConfig{}, ErrCompanyNotFound
	}
	if company.APIEndpoint == "" {
		return services.PartnerConfig{}, fmt.Errorf("company %d: %w", companyID, ErrPartnerNotConfigured)
	}

	partner := services.PartnerConfig{
		Endpoint: company.APIEndpoint,
		APIUser:  company.APIUser,
		APIKey:   company.APIKey,
	}
	l.cache.SetDefault(companyCacheKey(companyID), partner)
	return partner, nil
}

func (l *CachedCompanyConfigLookup) companyOf(ctx context.Context, userID uint) (uint, error) {
	if cached, ok := l.cache.Get(userCacheKey(userID)); ok {
		return cached.(uint), nil
	}

	user, err := l.userRepo.ByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}
	l.cache.SetDefault(userCacheKey(userID), user.CompanyID)
	return user.CompanyID, nil
}

func (l *CachedCompanyConfigLookup) InvalidateCompany(companyID uint) {
	l.cache.Delete(companyCacheKey(companyID))
}

func (l *CachedCompanyConfigLookup) InvalidateUser(userID uint) {
	l.cache.Delete(userCacheKey(userID))
}
