package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const exportRowLimit = 10000

// PriceEntryFlow handles price entry submission, updates and retrieval
type PriceEntryFlow interface {
	Submit(ctx context.Context, userID uint, input SubmitPriceEntryInput, images []ImageFile) (*dto.PriceEntryDTO, error)
	Update(ctx context.Context, userID, entryID uint, req dto.UpdatePriceEntryRequest, images []ImageFile) (*dto.PriceEntryDTO, error)
	Get(ctx context.Context, userID, entryID uint) (*dto.PriceEntryDTO, error)
	List(ctx context.Context, userID uint, req dto.ListPriceEntriesRequest) (*dto.ListPriceEntriesResponse, error)
	Export(ctx context.Context, userID uint, req dto.ListPriceEntriesRequest) (string, []byte, error)
	DeleteImage(ctx context.Context, userID, entryID, imageID uint) error
	PresignUploads(ctx context.Context, req dto.PresignedURLsRequest) (*dto.PresignedURLsResponse, error)
	SyncLogs(ctx context.Context, entryID uint) ([]dto.SyncLogDTO, error)
	ResolveUnconfirmedCreate(ctx context.Context, entryID uint, req dto.ResolveUnconfirmedCreateRequest) (*dto.PriceEntryDTO, error)
}

// PriceEntryFlowImpl implements PriceEntryFlow
type PriceEntryFlowImpl struct {
	entryRepo   repository.PriceEntryRepository
	imageRepo   repository.PriceEntryImageRepository
	stationRepo repository.StationRepository
	syncLogRepo repository.SyncLogRepository
	storage     services.ObjectStorage
	queue       DeliveryQueue
	storageCfg  config.StorageConfig
	db          *gorm.DB
	logger      *zap.Logger
}

// NewPriceEntryFlow creates a new price entry flow instance
func NewPriceEntryFlow(
	entryRepo repository.PriceEntryRepository,
	imageRepo repository.PriceEntryImageRepository,
	stationRepo repository.StationRepository,
	syncLogRepo repository.SyncLogRepository,
	storage services.ObjectStorage,
	queue DeliveryQueue,
	storageCfg config.StorageConfig,
	db *gorm.DB,
	logger *zap.Logger,
) PriceEntryFlow {
	return &PriceEntryFlowImpl{
		entryRepo:   entryRepo,
		imageRepo:   imageRepo,
		stationRepo: stationRepo,
		syncLogRepo: syncLogRepo,
		storage:     storage,
		queue:       queue,
		storageCfg:  storageCfg,
		db:          db,
		logger:      logger,
	}
}

// Submit uploads the images, stores the entry with its product price and images, then hands
// the entry to the delivery queue. The result never depends on the partner call.
func (f *PriceEntryFlowImpl) Submit(ctx context.Context, userID uint, input SubmitPriceEntryInput, images []ImageFile) (*dto.PriceEntryDTO, error) {
	seller, err := input.SellerType()
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_VALIDATION_FAILED", "Price entry validation failed", err)
	}
	if seller == models.SellerTypeOMC {
		if err := f.ensureStation(ctx, input.OMC.StationID); err != nil {
			return nil, NewBusinessError("PRICE_ENTRY_VALIDATION_FAILED", "Price entry validation failed", err)
		}
	}

	uploaded, err := f.uploadImages(ctx, images)
	if err != nil {
		return nil, err
	}

	entry, err := input.toEntry(userID, uploaded)
	if err != nil {
		f.discardImages(uploaded)
		return nil, NewBusinessError("PRICE_ENTRY_VALIDATION_FAILED", "Price entry validation failed", err)
	}
	if err := f.entryRepo.Save(ctx, entry); err != nil {
		f.discardImages(uploaded)
		return nil, NewBusinessError("PRICE_ENTRY_SAVE_FAILED", "Failed to save price entry", err)
	}

	f.handOff(ctx, entry.ID)

	return f.Get(ctx, userID, entry.ID)
}

// Update applies only the supplied fields, appends new images and flags the entry for update delivery
func (f *PriceEntryFlowImpl) Update(ctx context.Context, userID, entryID uint, req dto.UpdatePriceEntryRequest, images []ImageFile) (*dto.PriceEntryDTO, error) {
	entry, err := f.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	update, err := toEntryUpdate(entry, req)
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_VALIDATION_FAILED", "Price entry validation failed", err)
	}
	if isEmptyUpdate(update) && len(images) == 0 {
		return nil, NewBusinessError("PRICE_ENTRY_VALIDATION_FAILED", "Price entry validation failed", ErrNothingToUpdate)
	}
	if update.StationID != nil {
		if err := f.ensureStation(ctx, *update.StationID); err != nil {
			return nil, NewBusinessError("PRICE_ENTRY_VALIDATION_FAILED", "Price entry validation failed", err)
		}
	}

	uploaded, err := f.uploadImages(ctx, images)
	if err != nil {
		return nil, err
	}

	err = f.inTx(ctx, func(ctx context.Context) error {
		if _, err := f.entryRepo.ApplyUpdate(ctx, entry.ID, update); err != nil {
			return err
		}
		if len(uploaded) == 0 {
			return nil
		}
		rows := make([]*models.PriceEntryImage, len(uploaded))
		for i := range uploaded {
			uploaded[i].PriceEntryID = entry.ID
			rows[i] = &uploaded[i]
		}
		return f.imageRepo.SaveBatch(ctx, rows)
	})
	if err != nil {
		f.discardImages(uploaded)
		return nil, NewBusinessError("PRICE_ENTRY_UPDATE_FAILED", "Failed to update price entry", err)
	}

	f.handOff(ctx, entry.ID)

	return f.Get(ctx, userID, entry.ID)
}

// Get returns one of the user's own entries
func (f *PriceEntryFlowImpl) Get(ctx context.Context, userID, entryID uint) (*dto.PriceEntryDTO, error) {
	entry, err := f.entryRepo.ByIDWithDetails(ctx, entryID)
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_FETCH_FAILED", "Failed to fetch price entry", err)
	}
	if entry == nil || entry.UserID != userID {
		return nil, NewBusinessError("PRICE_ENTRY_NOT_FOUND", "Price entry not found", ErrPriceEntryNotFound)
	}
	out := ToPriceEntryDTO(*entry)
	return &out, nil
}

// List returns one page of the user's own entries
func (f *PriceEntryFlowImpl) List(ctx context.Context, userID uint, req dto.ListPriceEntriesRequest) (*dto.ListPriceEntriesResponse, error) {
	query, err := BuildEntryQuery(userID, req)
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_FILTER_INVALID", "Invalid price entry filter", err)
	}

	entries, total, err := f.entryRepo.Paginate(ctx, query.Filter, query.Sort, query.Size, query.Offset())
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_LIST_FAILED", "Failed to list price entries", err)
	}

	return &dto.ListPriceEntriesResponse{
		Items: lo.Map(entries, func(e *models.PriceEntry, _ int) dto.PriceEntryDTO {
			return ToPriceEntryDTO(*e)
		}),
		Pagination: dto.NewPaginationInfo(query.Page, query.Size, total),
	}, nil
}

// Export writes the user's entries matching the filters into a workbook.
// Without an explicit seller_type both kinds are exported, one sheet each.
func (f *PriceEntryFlowImpl) Export(ctx context.Context, userID uint, req dto.ListPriceEntriesRequest) (string, []byte, error) {
	sellers := []models.SellerType{models.SellerTypeOMC, models.SellerTypeBDC}
	if req.SellerType != "" {
		sellers = []models.SellerType{models.SellerType(req.SellerType)}
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	for i, seller := range sellers {
		req.SellerType = string(seller)
		req.Page, req.Size = 0, 0
		query, err := BuildEntryQuery(userID, req)
		if err != nil {
			return "", nil, NewBusinessError("PRICE_ENTRY_FILTER_INVALID", "Invalid price entry filter", err)
		}
		entries, _, err := f.entryRepo.Paginate(ctx, query.Filter, query.Sort, exportRowLimit, 0)
		if err != nil {
			return "", nil, NewBusinessError("PRICE_ENTRY_EXPORT_FAILED", "Failed to export price entries", err)
		}

		sheet := string(seller)
		if i == 0 {
			_ = xl.SetSheetName(xl.GetSheetName(0), sheet)
		} else if _, err := xl.NewSheet(sheet); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create sheet", err)
		}
		writeEntrySheet(xl, sheet, seller, entries)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("price_entries_%s.xlsx", utils.UTCNow().Format("20060102"))
	return filename, buf.Bytes(), nil
}

func writeEntrySheet(xl *excelize.File, sheet string, seller models.SellerType, entries []*models.PriceEntry) {
	header := []string{"id", "date", "window"}
	if seller == models.SellerTypeOMC {
		header = append(header, "station", "station_location")
	} else {
		header = append(header, "town_of_loading", "transaction_term")
	}
	header = append(header, "product_type", "price", "unit_of_measurement", "credit_price", "credit_days",
		"images", "external_id", "created_at", "updated_at")
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for ri, e := range entries {
		row := []any{e.ID, e.Date.UTC().Format(utils.DateLayout), string(e.Window)}
		if seller == models.SellerTypeOMC {
			name, location := "", ""
			if e.Station != nil {
				name, location = e.Station.Name, e.Station.Location
			}
			row = append(row, name, location)
		} else {
			term := ""
			if e.TransactionTerm != nil {
				term = string(*e.TransactionTerm)
			}
			row = append(row, utils.DerefString(e.TownOfLoading), term)
		}

		productType, unit, price, creditPrice, creditDays := "", "", "", "", ""
		if pp := e.ProductPrice; pp != nil {
			productType = string(pp.ProductType)
			unit = pp.UnitOfMeasurement
			price = strconv.FormatFloat(pp.Price, 'f', -1, 64)
			if pp.CreditPrice != nil {
				creditPrice = strconv.FormatFloat(*pp.CreditPrice, 'f', -1, 64)
			}
			if pp.CreditDays != nil {
				creditDays = strconv.Itoa(*pp.CreditDays)
			}
		}
		row = append(row, productType, price, unit, creditPrice, creditDays,
			len(e.Images), utils.DerefString(e.ExternalID),
			e.CreatedAt.UTC().Format(time.RFC3339), e.UpdatedAt.UTC().Format(time.RFC3339))

		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(sheet, cellRef, &row)
	}
}

// DeleteImage removes the stored object, soft-deletes the row and flags the entry for update delivery
func (f *PriceEntryFlowImpl) DeleteImage(ctx context.Context, userID, entryID, imageID uint) error {
	entry, err := f.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}

	image, err := f.imageRepo.ByID(ctx, imageID)
	if err != nil {
		return NewBusinessError("IMAGE_FETCH_FAILED", "Failed to fetch image", err)
	}
	if image == nil || image.PriceEntryID != entry.ID {
		return NewBusinessError("IMAGE_NOT_FOUND", "Image not found", ErrImageNotFound)
	}

	if image.ObjectKey != "" {
		if err := f.storage.Delete(ctx, image.ObjectKey); err != nil {
			return NewBusinessError("IMAGE_DELETE_FAILED", "Failed to delete image from storage", err)
		}
	}

	err = f.inTx(ctx, func(ctx context.Context) error {
		if err := f.imageRepo.SoftDelete(ctx, image.ID); err != nil {
			return err
		}
		_, err := f.entryRepo.FlagForUpdate(ctx, entry.ID)
		return err
	})
	if err != nil {
		return NewBusinessError("IMAGE_DELETE_FAILED", "Failed to delete image", err)
	}
	return nil
}

// PresignUploads returns one direct upload URL per requested name
func (f *PriceEntryFlowImpl) PresignUploads(ctx context.Context, req dto.PresignedURLsRequest) (*dto.PresignedURLsResponse, error) {
	names := lo.Filter(req.ImageNames, func(n string, _ int) bool { return n != "" })
	if len(names) == 0 {
		return nil, NewBusinessError("PRESIGN_VALIDATION_FAILED", "Presign validation failed", ErrImageNamesRequired)
	}

	ttl := f.storageCfg.PresignTTL
	if ttl <= 0 {
		ttl = utils.PresignDefaultTTLSeconds * time.Second
	}

	resp := &dto.PresignedURLsResponse{Uploads: make([]dto.PresignedURLDTO, 0, len(names))}
	for _, name := range names {
		presigned, err := f.storage.Presign(ctx, name, ttl)
		if err != nil {
			return nil, NewBusinessError("PRESIGN_FAILED", "Failed to presign upload", err)
		}
		resp.Uploads = append(resp.Uploads, dto.PresignedURLDTO{
			Name:      name,
			UploadURL: presigned.UploadURL,
			ImageURL:  presigned.PublicURL,
			ExpiresAt: presigned.ExpiresAt,
		})
	}
	return resp, nil
}

// SyncLogs lists the delivery attempts of an entry, newest first
func (f *PriceEntryFlowImpl) SyncLogs(ctx context.Context, entryID uint) ([]dto.SyncLogDTO, error) {
	entry, err := f.entryRepo.ByID(ctx, entryID)
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_FETCH_FAILED", "Failed to fetch price entry", err)
	}
	if entry == nil {
		return nil, NewBusinessError("PRICE_ENTRY_NOT_FOUND", "Price entry not found", ErrPriceEntryNotFound)
	}

	logs, err := f.syncLogRepo.ByFilter(ctx, models.SyncLogFilter{PriceEntryID: &entryID}, "id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("SYNC_LOG_FETCH_FAILED", "Failed to fetch sync logs", err)
	}
	return lo.Map(logs, func(l *models.SyncLog, _ int) dto.SyncLogDTO { return ToSyncLogDTO(*l) }), nil
}

// ResolveUnconfirmedCreate releases an entry held after the partner answered a create without an id.
// With the partner's id the entry is settled and its latest state is sent as an update;
// without it the create is sent again.
func (f *PriceEntryFlowImpl) ResolveUnconfirmedCreate(ctx context.Context, entryID uint, req dto.ResolveUnconfirmedCreateRequest) (*dto.PriceEntryDTO, error) {
	var externalID *string
	if req.ExternalID != nil && *req.ExternalID != "" {
		externalID = req.ExternalID
	}

	entry, err := f.entryRepo.ByID(ctx, entryID)
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_FETCH_FAILED", "Failed to fetch price entry", err)
	}
	if entry == nil {
		return nil, NewBusinessError("PRICE_ENTRY_NOT_FOUND", "Price entry not found", ErrPriceEntryNotFound)
	}

	resolved, err := f.entryRepo.ResolveUnconfirmedCreate(ctx, entryID, externalID)
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_RESOLVE_FAILED", "Failed to resolve price entry", err)
	}
	if !resolved {
		return nil, NewBusinessError("PRICE_ENTRY_NOT_HELD", "Price entry has no unconfirmed create", ErrCreateNotHeld)
	}

	log := &models.SyncLog{
		PriceEntryID: entryID,
		Operation:    models.SyncOperationCreate,
		Status:       models.SyncLogStatusResolved,
		Revision:     entry.Revision,
	}
	if externalID != nil {
		log.ErrorMessage = utils.ToPtr("settled with external id " + *externalID)
	}
	if err := f.syncLogRepo.Save(ctx, log); err != nil {
		f.logger.Error("failed to save sync log", zap.Uint("price_entry_id", entryID), zap.Error(err))
	}

	f.logger.Info("unconfirmed create resolved", zap.Uint("price_entry_id", entryID), zap.Stringp("external_id", externalID))
	f.handOff(ctx, entryID)

	updated, err := f.entryRepo.ByIDWithDetails(ctx, entryID)
	if err != nil || updated == nil {
		return nil, NewBusinessError("PRICE_ENTRY_FETCH_FAILED", "Failed to fetch price entry", err)
	}
	out := ToPriceEntryDTO(*updated)
	return &out, nil
}

func (f *PriceEntryFlowImpl) ownedEntry(ctx context.Context, userID, entryID uint) (*models.PriceEntry, error) {
	entry, err := f.entryRepo.ByID(ctx, entryID)
	if err != nil {
		return nil, NewBusinessError("PRICE_ENTRY_FETCH_FAILED", "Failed to fetch price entry", err)
	}
	if entry == nil || entry.UserID != userID {
		return nil, NewBusinessError("PRICE_ENTRY_NOT_FOUND", "Price entry not found", ErrPriceEntryNotFound)
	}
	return entry, nil
}

func (f *PriceEntryFlowImpl) ensureStation(ctx context.Context, stationID uint) error {
	station, err := f.stationRepo.ByID(ctx, stationID)
	if err != nil {
		return err
	}
	if station == nil {
		return ErrStationNotFound
	}
	return nil
}

// uploadImages validates every file before uploading any; on failure the uploaded objects are removed
func (f *PriceEntryFlowImpl) uploadImages(ctx context.Context, files []ImageFile) ([]models.PriceEntryImage, error) {
	if len(files) == 0 {
		return nil, nil
	}

	normalized := make([]ImageFile, 0, len(files))
	for _, file := range files {
		img, err := normalizeImage(file, f.storageCfg.MaxImageBytes, f.storageCfg.MaxImageDimension)
		if err != nil {
			return nil, NewBusinessErrorf("IMAGE_VALIDATION_FAILED", "Image %q rejected", err, file.Name)
		}
		normalized = append(normalized, img)
	}

	images := make([]models.PriceEntryImage, 0, len(normalized))
	for _, file := range normalized {
		stored, err := f.storage.Upload(ctx, file.Name, file.ContentType, file.Content)
		if err != nil {
			f.discardImages(images)
			return nil, NewBusinessError("IMAGE_UPLOAD_FAILED", "Image upload failed", fmt.Errorf("%w: %v", ErrImageUploadFailed, err))
		}
		images = append(images, models.PriceEntryImage{
			ImageURL:   stored.URL,
			ObjectKey:  stored.Key,
			UploadedAt: utils.UTCNow(),
		})
	}
	return images, nil
}

func (f *PriceEntryFlowImpl) discardImages(images []models.PriceEntryImage) {
	for _, img := range images {
		if err := f.storage.Delete(context.Background(), img.ObjectKey); err != nil {
			f.logger.Warn("failed to remove uploaded image", zap.String("key", img.ObjectKey), zap.Error(err))
		}
	}
}

// handOff queues the initial delivery; a failed handoff leaves the entry to the daily retry
func (f *PriceEntryFlowImpl) handOff(ctx context.Context, entryID uint) {
	if f.queue == nil {
		return
	}
	if err := f.queue.Enqueue(context.WithoutCancel(ctx), entryID); err != nil {
		f.logger.Warn("failed to queue price entry delivery", zap.Uint("price_entry_id", entryID), zap.Error(err))
	}
}

func (f *PriceEntryFlowImpl) inTx(ctx context.Context, fn func(context.Context) error) error {
	if f.db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, f.db, fn)
}
