package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain password of every fixture user
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCompany creates a company pointing at the given delivery endpoint
func (tf *TestFixtures) CreateTestCompany(endpoint string) (*models.Company, error) {
	company := &models.Company{
		Name:        fmt.Sprintf("Test Company %d", rand.Intn(1000000)),
		APIEndpoint: endpoint,
		APIUser:     "integration",
		APIKey:      "test-api-key",
	}
	if err := tf.DB.DB.Create(company).Error; err != nil {
		return nil, fmt.Errorf("failed to create test company: %w", err)
	}
	return company, nil
}

// CreateTestUser creates an active user of the given company
func (tf *TestFixtures) CreateTestUser(companyID uint) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		CompanyID:    companyID,
		Email:        fmt.Sprintf("staff.%d.%d@example.com", companyID, rand.Intn(100000000)),
		FullName:     "Ama Mensah",
		PasswordHash: string(hashedPassword),
		UserType:     models.UserTypeMarketingStaff,
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestStation creates an active station
func (tf *TestFixtures) CreateTestStation(name, location string) (*models.Station, error) {
	station := &models.Station{Name: name, Location: location}
	if err := tf.DB.DB.Create(station).Error; err != nil {
		return nil, fmt.Errorf("failed to create test station: %w", err)
	}
	return station, nil
}

// NewOMCEntry builds an unsaved OMC price entry with one product price
func (tf *TestFixtures) NewOMCEntry(userID, stationID uint, product models.ProductType, price float64) *models.PriceEntry {
	return &models.PriceEntry{
		UserID:     userID,
		SellerType: models.SellerTypeOMC,
		Date:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Window:     models.WindowFirst,
		StationID:  &stationID,
		ProductPrice: &models.ProductPrice{
			ProductType:       product,
			Price:             price,
			UnitOfMeasurement: models.UnitOfMeasureFor(product),
		},
	}
}

// NewBDCEntry builds an unsaved BDC price entry with one product price
func (tf *TestFixtures) NewBDCEntry(userID uint, town string, term models.TransactionTerm, product models.ProductType, price float64) *models.PriceEntry {
	entry := &models.PriceEntry{
		UserID:          userID,
		SellerType:      models.SellerTypeBDC,
		Date:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Window:          models.WindowSecond,
		TownOfLoading:   &town,
		TransactionTerm: &term,
		ProductPrice: &models.ProductPrice{
			ProductType:       product,
			Price:             price,
			UnitOfMeasurement: models.UnitOfMeasureFor(product),
		},
	}
	if term == models.TransactionTermCredit {
		entry.ProductPrice.CreditPrice = utils.ToPtr(price + 0.5)
		entry.ProductPrice.CreditDays = utils.ToPtr(30)
	}
	return entry
}

// SetCreatedAt overrides the creation timestamp of a saved entry
func (tf *TestFixtures) SetCreatedAt(entryID uint, at time.Time) error {
	return tf.DB.DB.Model(&models.PriceEntry{}).Where("id = ?", entryID).UpdateColumn("created_at", at).Error
}
