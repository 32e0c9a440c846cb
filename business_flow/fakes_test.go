package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"gorm.io/gorm"
)

// memEntryRepo keeps price entries in memory and mirrors the conditional updates of the real repository
type memEntryRepo struct {
	repository.PriceEntryRepository

	mu         sync.Mutex
	nextID     uint
	entries    map[uint]*models.PriceEntry
	users      map[uint]*models.User
	stations   map[uint]*models.Station
	lastFilter models.PriceEntryFilter
	saveErr    error
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{
		entries:  make(map[uint]*models.PriceEntry),
		users:    make(map[uint]*models.User),
		stations: make(map[uint]*models.Station),
	}
}

func cloneEntry(e *models.PriceEntry) *models.PriceEntry {
	out := *e
	if e.ProductPrice != nil {
		pp := *e.ProductPrice
		out.ProductPrice = &pp
	}
	out.Images = append([]models.PriceEntryImage(nil), e.Images...)
	return &out
}

func (r *memEntryRepo) Save(_ context.Context, entry *models.PriceEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = utils.UTCNow()
	entry.UpdatedAt = entry.CreatedAt
	for i := range entry.Images {
		entry.Images[i].ID = uint(i + 1)
		entry.Images[i].PriceEntryID = entry.ID
	}
	r.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (r *memEntryRepo) put(entry *models.PriceEntry) *models.PriceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == 0 {
		r.nextID++
		entry.ID = r.nextID
	} else if entry.ID > r.nextID {
		r.nextID = entry.ID
	}
	r.entries[entry.ID] = cloneEntry(entry)
	return entry
}

func (r *memEntryRepo) get(id uint) *models.PriceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return cloneEntry(e)
	}
	return nil
}

func (r *memEntryRepo) ByID(_ context.Context, id uint) (*models.PriceEntry, error) {
	return r.get(id), nil
}

func (r *memEntryRepo) ByIDWithDetails(_ context.Context, id uint) (*models.PriceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	out := cloneEntry(e)
	out.User = r.users[e.UserID]
	if e.StationID != nil {
		out.Station = r.stations[*e.StationID]
	}
	return out, nil
}

func (r *memEntryRepo) Paginate(_ context.Context, filter models.PriceEntryFilter, _ models.PriceEntrySort, limit, offset int) ([]*models.PriceEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter

	var matched []*models.PriceEntry
	for _, e := range r.entries {
		if filter.UserID != nil && e.UserID != *filter.UserID {
			continue
		}
		if filter.SellerType != nil && e.SellerType != *filter.SellerType {
			continue
		}
		if filter.CreatedAfter != nil && e.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && !e.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		matched = append(matched, cloneEntry(e))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *memEntryRepo) listWhere(keep func(*models.PriceEntry) bool) []*models.PriceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PriceEntry
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memEntryRepo) ListPendingCreate(_ context.Context, seller models.SellerType) ([]*models.PriceEntry, error) {
	return r.listWhere(func(e *models.PriceEntry) bool {
		return e.SellerType == seller && e.ExternalID == nil && !e.CreateUnconfirmed
	}), nil
}

func (r *memEntryRepo) ListPendingUpdate(_ context.Context, seller models.SellerType) ([]*models.PriceEntry, error) {
	return r.listWhere(func(e *models.PriceEntry) bool {
		return e.SellerType == seller && e.ExternalID != nil && e.UpdateSyncStatus
	}), nil
}

func (r *memEntryRepo) ApplyUpdate(_ context.Context, id uint, u repository.PriceEntryUpdate) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, fmt.Errorf("price entry not found with ID: %d", id)
	}
	if u.Date != nil {
		e.Date = *u.Date
	}
	if u.Window != nil {
		e.Window = *u.Window
	}
	if u.StationID != nil {
		e.StationID = u.StationID
	}
	if u.TownOfLoading != nil {
		e.TownOfLoading = u.TownOfLoading
	}
	if u.TransactionTerm != nil {
		e.TransactionTerm = u.TransactionTerm
	}
	if e.ProductPrice != nil {
		if u.ProductType != nil {
			e.ProductPrice.ProductType = *u.ProductType
			e.ProductPrice.UnitOfMeasurement = models.UnitOfMeasureFor(*u.ProductType)
		}
		if u.Price != nil {
			e.ProductPrice.Price = *u.Price
		}
		if u.CreditPrice != nil {
			e.ProductPrice.CreditPrice = u.CreditPrice
		}
		if u.CreditDays != nil {
			e.ProductPrice.CreditDays = u.CreditDays
		}
		if u.TransactionTerm != nil && *u.TransactionTerm == models.TransactionTermCash {
			e.ProductPrice.CreditPrice = nil
			e.ProductPrice.CreditDays = nil
		}
	}
	e.UpdateSyncStatus = true
	e.Revision++
	e.UpdatedAt = utils.UTCNow()
	return e.Revision, nil
}

func (r *memEntryRepo) FlagForUpdate(ctx context.Context, id uint) (uint, error) {
	return r.ApplyUpdate(ctx, id, repository.PriceEntryUpdate{})
}

func (r *memEntryRepo) MarkCreateOutcome(_ context.Context, id uint, success bool, externalID *string, revision uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false, nil
	}
	if success {
		if externalID == nil || *externalID == "" {
			return false, errors.New("external id is required for a successful create")
		}
		if e.ExternalID != nil && *e.ExternalID != *externalID {
			return false, nil
		}
		e.ExternalID = utils.ToPtr(*externalID)
		e.SyncStatus = true
		if e.Revision == revision {
			e.UpdateSyncStatus = false
		}
		return true, nil
	}
	if e.ExternalID != nil {
		return false, nil
	}
	e.SyncStatus = false
	return true, nil
}

func (r *memEntryRepo) MarkCreateUnconfirmed(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.ExternalID != nil {
		return false, nil
	}
	e.CreateUnconfirmed = true
	return true, nil
}

func (r *memEntryRepo) ResolveUnconfirmedCreate(_ context.Context, id uint, externalID *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.ExternalID != nil || !e.CreateUnconfirmed {
		return false, nil
	}
	e.CreateUnconfirmed = false
	if externalID != nil {
		e.ExternalID = utils.ToPtr(*externalID)
		e.SyncStatus = true
		e.UpdateSyncStatus = true
	}
	return true, nil
}

func (r *memEntryRepo) MarkUpdateOutcome(_ context.Context, id uint, success bool, revision uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false, nil
	}
	if success {
		if e.Revision != revision || e.ExternalID == nil {
			return false, nil
		}
		e.UpdateSyncStatus = false
		return true, nil
	}
	e.UpdateSyncStatus = true
	return true, nil
}

type memImageRepo struct {
	repository.PriceEntryImageRepository
	entries *memEntryRepo
	nextID  uint
}

func (r *memImageRepo) ByID(_ context.Context, id uint) (*models.PriceEntryImage, error) {
	r.entries.mu.Lock()
	defer r.entries.mu.Unlock()
	for _, e := range r.entries.entries {
		for _, img := range e.Images {
			if img.ID == id && !img.DeletedAt.Valid {
				out := img
				return &out, nil
			}
		}
	}
	return nil, nil
}

func (r *memImageRepo) SaveBatch(_ context.Context, images []*models.PriceEntryImage) error {
	r.entries.mu.Lock()
	defer r.entries.mu.Unlock()
	for _, img := range images {
		e, ok := r.entries.entries[img.PriceEntryID]
		if !ok {
			return fmt.Errorf("price entry %d not found", img.PriceEntryID)
		}
		r.nextID++
		img.ID = 100 + r.nextID
		e.Images = append(e.Images, *img)
	}
	return nil
}

func (r *memImageRepo) SoftDelete(_ context.Context, id uint) error {
	r.entries.mu.Lock()
	defer r.entries.mu.Unlock()
	for _, e := range r.entries.entries {
		for i, img := range e.Images {
			if img.ID == id {
				e.Images = append(e.Images[:i], e.Images[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("image %d not found", id)
}

type memStationRepo struct {
	repository.StationRepository
	mu       sync.Mutex
	nextID   uint
	stations map[uint]*models.Station
}

func newMemStationRepo(stations ...models.Station) *memStationRepo {
	r := &memStationRepo{stations: make(map[uint]*models.Station)}
	for i := range stations {
		st := stations[i]
		if st.ID == 0 {
			r.nextID++
			st.ID = r.nextID
		} else if st.ID > r.nextID {
			r.nextID = st.ID
		}
		r.stations[st.ID] = &st
	}
	return r
}

func (r *memStationRepo) ByID(_ context.Context, id uint) (*models.Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stations[id]
	if !ok || st.DeletedAt.Valid {
		return nil, nil
	}
	out := *st
	return &out, nil
}

func (r *memStationRepo) ByFilter(_ context.Context, filter models.StationFilter, _ string, _, _ int) ([]*models.Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Station
	for _, st := range r.stations {
		if st.DeletedAt.Valid && !filter.IncludeDeleted {
			continue
		}
		cp := *st
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memStationRepo) SaveBatch(_ context.Context, stations []*models.Station) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range stations {
		r.nextID++
		st.ID = r.nextID
		cp := *st
		r.stations[st.ID] = &cp
	}
	return nil
}

func (r *memStationRepo) SoftDeleteByIDs(_ context.Context, ids []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.stations[id].DeletedAt = gorm.DeletedAt{Time: utils.UTCNow(), Valid: true}
	}
	return nil
}

func (r *memStationRepo) RestoreByIDs(_ context.Context, ids []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.stations[id].DeletedAt = gorm.DeletedAt{}
	}
	return nil
}

type memSyncLogRepo struct {
	repository.SyncLogRepository
	mu   sync.Mutex
	logs []models.SyncLog
}

func (r *memSyncLogRepo) Save(_ context.Context, log *models.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.ID = uint(len(r.logs) + 1)
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memSyncLogRepo) ByFilter(_ context.Context, filter models.SyncLogFilter, _ string, _, _ int) ([]*models.SyncLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if filter.PriceEntryID != nil && r.logs[i].PriceEntryID != *filter.PriceEntryID {
			continue
		}
		l := r.logs[i]
		out = append(out, &l)
	}
	return out, nil
}

func (r *memSyncLogRepo) all() []models.SyncLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SyncLog(nil), r.logs...)
}

type memUserRepo struct {
	repository.UserRepository
	mu        sync.Mutex
	users     map[uint]*models.User
	byIDCalls int
	lastLogin map[uint]time.Time
}

func newMemUserRepo(users ...models.User) *memUserRepo {
	r := &memUserRepo{users: make(map[uint]*models.User), lastLogin: make(map[uint]time.Time)}
	for i := range users {
		u := users[i]
		r.users[u.ID] = &u
	}
	return r
}

func (r *memUserRepo) ByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byIDCalls++
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *memUserRepo) ByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) UpdateLastLogin(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLogin[id] = at
	return nil
}

type memCompanyRepo struct {
	repository.CompanyRepository
	mu        sync.Mutex
	companies map[uint]*models.Company
	byIDCalls int
}

func newMemCompanyRepo(companies ...models.Company) *memCompanyRepo {
	r := &memCompanyRepo{companies: make(map[uint]*models.Company)}
	for i := range companies {
		c := companies[i]
		r.companies[c.ID] = &c
	}
	return r
}

func (r *memCompanyRepo) ByID(_ context.Context, id uint) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byIDCalls++
	c, ok := r.companies[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *memCompanyRepo) setEndpoint(id uint, endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[id].APIEndpoint = endpoint
}

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failOnNth int
	uploads   int
	deleted   []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Upload(_ context.Context, fileName, _ string, content []byte) (services.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.failOnNth > 0 && s.uploads == s.failOnNth {
		return services.StoredObject{}, errors.New("bucket unavailable")
	}
	key := fmt.Sprintf("docs/%d-%s", s.uploads, fileName)
	s.objects[key] = content
	return services.StoredObject{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStorage) Presign(_ context.Context, fileName string, ttl time.Duration) (services.PresignedUpload, error) {
	key := "docs/presigned-" + fileName
	return services.PresignedUpload{
		Name:      fileName,
		Key:       key,
		UploadURL: "https://upload.test/" + key,
		PublicURL: "https://cdn.test/" + key,
		ExpiresAt: utils.UTCNow().Add(ttl),
	}, nil
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, entryID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, entryID)
	return nil
}

func (q *recordingQueue) queued() []uint {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uint(nil), q.ids...)
}

type staticLookup struct {
	partner services.PartnerConfig
	err     error
}

func (l staticLookup) ConfigForUser(context.Context, uint) (services.PartnerConfig, error) {
	return l.partner, l.err
}
func (staticLookup) InvalidateCompany(uint) {}
func (staticLookup) InvalidateUser(uint)    {}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, uint) (func(), bool, error) {
	return nil, false, nil
}
