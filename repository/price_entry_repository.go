package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"gorm.io/gorm"
)

// sortableColumns whitelists the price entry columns a listing may be ordered by
var sortableColumns = map[string]string{
	"id":               "price_entries.id",
	"created_at":       "price_entries.created_at",
	"updated_at":       "price_entries.updated_at",
	"date":             "price_entries.date",
	"window":           "price_entries.window",
	"seller_type":      "price_entries.seller_type",
	"station_id":       "price_entries.station_id",
	"town_of_loading":  "price_entries.town_of_loading",
	"transaction_term": "price_entries.transaction_term",
}

// PriceEntryRepositoryImpl implements PriceEntryRepository interface
type PriceEntryRepositoryImpl struct {
	*BaseRepository[models.PriceEntry, models.PriceEntryFilter]
}

// NewPriceEntryRepository creates a new price entry repository
func NewPriceEntryRepository(db *gorm.DB) PriceEntryRepository {
	return &PriceEntryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PriceEntry, models.PriceEntryFilter](db),
	}
}

// Save inserts the entry together with its product price and images
func (r *PriceEntryRepositoryImpl) Save(ctx context.Context, entry *models.PriceEntry) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	if err = db.Omit("User", "Station").Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save price entry: %w", err)
	}
	return nil
}

// ByIDWithDetails retrieves an entry with its user, station, product price and images
func (r *PriceEntryRepositoryImpl) ByIDWithDetails(ctx context.Context, id uint) (*models.PriceEntry, error) {
	var entry models.PriceEntry
	err := withDetails(r.getDB(ctx)).Where("price_entries.id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Station", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
		Preload("ProductPrice").
		Preload("Images", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") })
}

// applyFilter applies filter criteria to a GORM query
func (r *PriceEntryRepositoryImpl) applyFilter(query *gorm.DB, filter models.PriceEntryFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("price_entries.id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("price_entries.user_id = ?", *filter.UserID)
	}
	if filter.SellerType != nil {
		query = query.Where("price_entries.seller_type = ?", *filter.SellerType)
	}
	if filter.ProductType != nil {
		query = query.
			Joins("JOIN product_prices ON product_prices.price_entry_id = price_entries.id AND product_prices.deleted_at IS NULL").
			Where("product_prices.product_type = ?", *filter.ProductType)
	}
	if filter.Window != nil {
		query = query.Where("price_entries.window = ?", *filter.Window)
	}
	if filter.TransactionTerm != nil {
		query = query.Where("price_entries.transaction_term = ?", *filter.TransactionTerm)
	}
	if filter.StationID != nil {
		query = query.Where("price_entries.station_id = ?", *filter.StationID)
	}
	if filter.HasExternalID != nil {
		if *filter.HasExternalID {
			query = query.Where("price_entries.external_id IS NOT NULL")
		} else {
			query = query.Where("price_entries.external_id IS NULL")
		}
	}
	if filter.UpdatePending != nil {
		query = query.Where("price_entries.update_sync_status = ?", *filter.UpdatePending)
	}
	if filter.Unconfirmed != nil {
		query = query.Where("price_entries.create_unconfirmed = ?", *filter.Unconfirmed)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("price_entries.created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("price_entries.created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// orderClause resolves a requested sort into a whitelisted column with an id tie-break
func orderClause(sort models.PriceEntrySort) string {
	column, ok := sortableColumns[strings.ToLower(strings.TrimSpace(sort.Column))]
	if !ok {
		return "price_entries.created_at DESC, price_entries.id DESC"
	}
	direction := "DESC"
	if sort.Ascending {
		direction = "ASC"
	}
	if column == "price_entries.id" {
		return column + " " + direction
	}
	return fmt.Sprintf("%s %s, price_entries.id %s", column, direction, direction)
}

// ByFilter retrieves price entries based on filter criteria
func (r *PriceEntryRepositoryImpl) ByFilter(ctx context.Context, filter models.PriceEntryFilter, orderBy string, limit, offset int) ([]*models.PriceEntry, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PriceEntry{}), filter)

	if orderBy == "" {
		orderBy = "price_entries.id DESC"
	}
	query = applyPage(query.Order(orderBy), limit, offset)

	var entries []*models.PriceEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Paginate returns one ordered page of entries with details and the total match count
func (r *PriceEntryRepositoryImpl) Paginate(ctx context.Context, filter models.PriceEntryFilter, sort models.PriceEntrySort, limit, offset int) ([]*models.PriceEntry, int64, error) {
	total, err := r.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*models.PriceEntry{}, 0, nil
	}

	query := r.applyFilter(withDetails(r.getDB(ctx)).Model(&models.PriceEntry{}), filter)
	query = applyPage(query.Order(orderClause(sort)), limit, offset)

	var entries []*models.PriceEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to paginate price entries: %w", err)
	}
	return entries, total, nil
}

// Count returns the number of price entries matching the filter
func (r *PriceEntryRepositoryImpl) Count(ctx context.Context, filter models.PriceEntryFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PriceEntry{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any price entry matching the filter exists
func (r *PriceEntryRepositoryImpl) Exists(ctx context.Context, filter models.PriceEntryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListPendingCreate lists entries of a seller kind that were never accepted upstream.
// Entries held as unconfirmed are left out.
func (r *PriceEntryRepositoryImpl) ListPendingCreate(ctx context.Context, seller models.SellerType) ([]*models.PriceEntry, error) {
	hasExternalID := false
	unconfirmed := false
	return r.listPending(ctx, models.PriceEntryFilter{SellerType: &seller, HasExternalID: &hasExternalID, Unconfirmed: &unconfirmed})
}

// ListPendingUpdate lists entries of a seller kind whose latest update still needs delivery
func (r *PriceEntryRepositoryImpl) ListPendingUpdate(ctx context.Context, seller models.SellerType) ([]*models.PriceEntry, error) {
	hasExternalID := true
	pending := true
	return r.listPending(ctx, models.PriceEntryFilter{SellerType: &seller, HasExternalID: &hasExternalID, UpdatePending: &pending})
}

func (r *PriceEntryRepositoryImpl) listPending(ctx context.Context, filter models.PriceEntryFilter) ([]*models.PriceEntry, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PriceEntry{}), filter)

	var entries []*models.PriceEntry
	if err := query.Order("price_entries.id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending price entries: %w", err)
	}
	return entries, nil
}

// ApplyUpdate writes the supplied fields, flags the entry for update delivery and returns the new revision.
// Product price fields that are zero are treated as unset. Switching to a cash term clears the credit columns.
func (r *PriceEntryRepositoryImpl) ApplyUpdate(ctx context.Context, id uint, update PriceEntryUpdate) (revision uint, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer finish(db, shouldCommit, &err)

	updates := map[string]any{
		"updated_at":         utils.UTCNow(),
		"update_sync_status": true,
		"revision":           gorm.Expr("revision + 1"),
	}
	if update.Date != nil {
		updates["date"] = *update.Date
	}
	if update.Window != nil && *update.Window != "" {
		updates["window"] = *update.Window
	}
	if update.StationID != nil && *update.StationID != 0 {
		updates["station_id"] = *update.StationID
	}
	if update.TownOfLoading != nil && *update.TownOfLoading != "" {
		updates["town_of_loading"] = *update.TownOfLoading
	}
	if update.TransactionTerm != nil && *update.TransactionTerm != "" {
		updates["transaction_term"] = *update.TransactionTerm
	}

	result := db.Model(&models.PriceEntry{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("price entry not found with ID: %d", id)
		return 0, err
	}

	priceUpdates := map[string]any{}
	if update.ProductType != nil && *update.ProductType != "" {
		priceUpdates["product_type"] = *update.ProductType
		priceUpdates["unit_of_measurement"] = models.UnitOfMeasureFor(*update.ProductType)
	}
	if update.Price != nil && *update.Price != 0 {
		priceUpdates["price"] = *update.Price
	}
	if update.CreditPrice != nil && *update.CreditPrice != 0 {
		priceUpdates["credit_price"] = *update.CreditPrice
	}
	if update.CreditDays != nil && *update.CreditDays != 0 {
		priceUpdates["credit_days"] = *update.CreditDays
	}
	// cash sales carry no credit terms
	if update.TransactionTerm != nil && *update.TransactionTerm == models.TransactionTermCash {
		priceUpdates["credit_price"] = nil
		priceUpdates["credit_days"] = nil
	}
	if len(priceUpdates) > 0 {
		priceUpdates["updated_at"] = utils.UTCNow()
		if err = db.Model(&models.ProductPrice{}).Where("price_entry_id = ?", id).Updates(priceUpdates).Error; err != nil {
			return 0, err
		}
	}

	var revisions []uint
	if err = db.Model(&models.PriceEntry{}).Where("id = ?", id).Pluck("revision", &revisions).Error; err != nil {
		return 0, err
	}
	if len(revisions) == 0 {
		err = fmt.Errorf("price entry not found with ID: %d", id)
		return 0, err
	}
	return revisions[0], nil
}

// FlagForUpdate marks the entry for update delivery without changing any field
func (r *PriceEntryRepositoryImpl) FlagForUpdate(ctx context.Context, id uint) (uint, error) {
	return r.ApplyUpdate(ctx, id, PriceEntryUpdate{})
}

// MarkCreateOutcome records a create delivery attempt.
// A success only writes when external_id is unset or already equal, so a second report converges
// and a conflicting id never overwrites the stored one. The create carried the entry as of revision,
// so a success also clears a pending update when no edit landed after it.
// A failure never clears an accepted create.
func (r *PriceEntryRepositoryImpl) MarkCreateOutcome(ctx context.Context, id uint, success bool, externalID *string, revision uint) (bool, error) {
	db := r.getDB(ctx)

	var result *gorm.DB
	if success {
		if externalID == nil || *externalID == "" {
			return false, errors.New("external id is required for a successful create")
		}
		result = db.Model(&models.PriceEntry{}).
			Where("id = ? AND (external_id IS NULL OR external_id = ?)", id, *externalID).
			UpdateColumns(map[string]any{
				"external_id":        *externalID,
				"sync_status":        true,
				"update_sync_status": gorm.Expr("CASE WHEN revision = ? THEN FALSE ELSE update_sync_status END", revision),
			})
	} else {
		result = db.Model(&models.PriceEntry{}).
			Where("id = ? AND external_id IS NULL", id).
			UpdateColumn("sync_status", false)
	}
	if result.Error != nil {
		return false, fmt.Errorf("failed to record create outcome for entry %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkCreateUnconfirmed holds an entry whose create was answered without an id
func (r *PriceEntryRepositoryImpl) MarkCreateUnconfirmed(ctx context.Context, id uint) (bool, error) {
	result := r.getDB(ctx).Model(&models.PriceEntry{}).
		Where("id = ? AND external_id IS NULL", id).
		UpdateColumn("create_unconfirmed", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to hold price entry %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ResolveUnconfirmedCreate releases a held entry.
// With an external id the create is settled and the latest state is queued as an update;
// without one the entry goes back to pending create.
func (r *PriceEntryRepositoryImpl) ResolveUnconfirmedCreate(ctx context.Context, id uint, externalID *string) (bool, error) {
	updates := map[string]any{"create_unconfirmed": false}
	if externalID != nil {
		updates["external_id"] = *externalID
		updates["sync_status"] = true
		updates["update_sync_status"] = true
	}
	result := r.getDB(ctx).Model(&models.PriceEntry{}).
		Where("id = ? AND external_id IS NULL AND create_unconfirmed = TRUE", id).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to resolve price entry %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkUpdateOutcome records an update delivery attempt.
// A success only clears the pending flag when revision is still current.
func (r *PriceEntryRepositoryImpl) MarkUpdateOutcome(ctx context.Context, id uint, success bool, revision uint) (bool, error) {
	db := r.getDB(ctx)

	var result *gorm.DB
	if success {
		result = db.Model(&models.PriceEntry{}).
			Where("id = ? AND revision = ? AND external_id IS NOT NULL", id, revision).
			UpdateColumn("update_sync_status", false)
	} else {
		result = db.Model(&models.PriceEntry{}).
			Where("id = ?", id).
			UpdateColumn("update_sync_status", true)
	}
	if result.Error != nil {
		return false, fmt.Errorf("failed to record update outcome for entry %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
