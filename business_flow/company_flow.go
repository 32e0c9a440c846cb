package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/amirphl/omc-bdc-price-service/models"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

// CompanyFlow manages companies, their delivery configuration and their users
type CompanyFlow interface {
	CreateCompany(ctx context.Context, req *dto.CreateCompanyRequest) (*dto.CompanyDTO, error)
	GetCompany(ctx context.Context, id uint) (*dto.CompanyDTO, error)
	ListCompanies(ctx context.Context) ([]dto.CompanyDTO, error)
	UpdateCompany(ctx context.Context, id uint, req *dto.UpdateCompanyRequest) (*dto.CompanyDTO, error)

	CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserDTO, error)
	GetUser(ctx context.Context, id uint) (*dto.UserDTO, error)
	ListUsers(ctx context.Context, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error)
	UpdateUser(ctx context.Context, id uint, req *dto.UpdateUserRequest) (*dto.UserDTO, error)
}

type CompanyFlowImpl struct {
	companyRepo repository.CompanyRepository
	userRepo    repository.UserRepository
	lookup      CompanyConfigLookup
	security    config.SecurityConfig
}

func NewCompanyFlow(
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	lookup CompanyConfigLookup,
	security config.SecurityConfig,
) CompanyFlow {
	return &CompanyFlowImpl{
		companyRepo: companyRepo,
		userRepo:    userRepo,
		lookup:      lookup,
		security:    security,
	}
}

func (f *CompanyFlowImpl) CreateCompany(ctx context.Context, req *dto.CreateCompanyRequest) (*dto.CompanyDTO, error) {
	name := strings.TrimSpace(req.Name)
	existing, err := f.companyRepo.ByName(ctx, name)
	if err != nil {
		return nil, NewBusinessError("COMPANY_FETCH_FAILED", "Failed to fetch company", err)
	}
	if existing != nil {
		return nil, NewBusinessError("COMPANY_EXISTS", "Company already exists", ErrCompanyNameTaken)
	}

	company := &models.Company{
		Name:        name,
		APIEndpoint: utils.TrimRightSlash(strings.TrimSpace(req.APIEndpoint)),
		APIUser:     req.APIUser,
		APIKey:      req.APIKey,
	}
	if err := f.companyRepo.Save(ctx, company); err != nil {
		return nil, NewBusinessError("COMPANY_SAVE_FAILED", "Failed to save company", err)
	}
	out := ToCompanyDTO(*company)
	return &out, nil
}

func (f *CompanyFlowImpl) GetCompany(ctx context.Context, id uint) (*dto.CompanyDTO, error) {
	company, err := f.companyRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("COMPANY_FETCH_FAILED", "Failed to fetch company", err)
	}
	if company == nil {
		return nil, NewBusinessError("COMPANY_NOT_FOUND", "Company not found", ErrCompanyNotFound)
	}
	out := ToCompanyDTO(*company)
	return &out, nil
}

func (f *CompanyFlowImpl) ListCompanies(ctx context.Context) ([]dto.CompanyDTO, error) {
	companies, err := f.companyRepo.ByFilter(ctx, models.CompanyFilter{}, "name ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("COMPANY_LIST_FAILED", "Failed to list companies", err)
	}
	return lo.Map(companies, func(c *models.Company, _ int) dto.CompanyDTO { return ToCompanyDTO(*c) }), nil
}

// UpdateCompany changes the supplied fields and drops the cached delivery configuration
func (f *CompanyFlowImpl) UpdateCompany(ctx context.Context, id uint, req *dto.UpdateCompanyRequest) (*dto.CompanyDTO, error) {
	if _, err := f.GetCompany(ctx, id); err != nil {
		return nil, err
	}

	update := &models.Company{ID: id}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		other, err := f.companyRepo.ByName(ctx, name)
		if err != nil {
			return nil, NewBusinessError("COMPANY_FETCH_FAILED", "Failed to fetch company", err)
		}
		if other != nil && other.ID != id {
			return nil, NewBusinessError("COMPANY_EXISTS", "Company already exists", ErrCompanyNameTaken)
		}
		update.Name = name
	}
	if req.APIEndpoint != nil {
		update.APIEndpoint = utils.TrimRightSlash(strings.TrimSpace(*req.APIEndpoint))
	}
	update.APIUser = utils.DerefString(req.APIUser)
	update.APIKey = utils.DerefString(req.APIKey)

	if err := f.companyRepo.Update(ctx, update); err != nil {
		return nil, NewBusinessError("COMPANY_UPDATE_FAILED", "Failed to update company", err)
	}
	f.lookup.InvalidateCompany(id)

	return f.GetCompany(ctx, id)
}

// CreateUser creates an active user; without a password the configured default is used
func (f *CompanyFlowImpl) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserDTO, error) {
	userType := models.UserType(req.UserType)
	if !userType.Valid() {
		return nil, NewBusinessError("USER_VALIDATION_FAILED", "User validation failed", ErrInvalidUserType)
	}
	if _, err := f.GetCompany(ctx, req.CompanyID); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := f.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("USER_FETCH_FAILED", "Failed to fetch user", err)
	}
	if existing != nil {
		return nil, NewBusinessError("USER_EXISTS", "User already exists", ErrEmailAlreadyExists)
	}

	password := req.Password
	if password == "" {
		password = f.security.DefaultPassword
	}
	if password == "" {
		return nil, NewBusinessError("USER_VALIDATION_FAILED", "User validation failed", ErrPasswordRequired)
	}
	hash, err := f.hashPassword(password)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	user := &models.User{
		CompanyID:    req.CompanyID,
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		UserType:     userType,
		IsActive:     utils.ToPtr(true),
	}
	if err := f.userRepo.Save(ctx, user); err != nil {
		return nil, NewBusinessError("USER_SAVE_FAILED", "Failed to save user", err)
	}
	return f.GetUser(ctx, user.ID)
}

func (f *CompanyFlowImpl) GetUser(ctx context.Context, id uint) (*dto.UserDTO, error) {
	user, err := f.userRepo.ByIDWithCompany(ctx, id)
	if err != nil {
		return nil, NewBusinessError("USER_FETCH_FAILED", "Failed to fetch user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	out := ToUserDTO(*user)
	return &out, nil
}

func (f *CompanyFlowImpl) ListUsers(ctx context.Context, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error) {
	page, size, err := normalizePage(req.Page, req.Size)
	if err != nil {
		return nil, NewBusinessError("USER_FILTER_INVALID", "Invalid user filter", err)
	}

	filter := models.UserFilter{CompanyID: req.CompanyID}
	total, err := f.userRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("USER_LIST_FAILED", "Failed to list users", err)
	}
	users, err := f.userRepo.ByFilter(ctx, filter, "id ASC", size, (page-1)*size)
	if err != nil {
		return nil, NewBusinessError("USER_LIST_FAILED", "Failed to list users", err)
	}

	return &dto.ListUsersResponse{
		Items:      lo.Map(users, func(u *models.User, _ int) dto.UserDTO { return ToUserDTO(*u) }),
		Pagination: dto.NewPaginationInfo(page, size, total),
	}, nil
}

func (f *CompanyFlowImpl) UpdateUser(ctx context.Context, id uint, req *dto.UpdateUserRequest) (*dto.UserDTO, error) {
	current, err := f.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	update := &models.User{ID: id, IsActive: req.IsActive}
	if req.FullName != nil {
		update.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.UserType != nil {
		userType := models.UserType(*req.UserType)
		if !userType.Valid() {
			return nil, NewBusinessError("USER_VALIDATION_FAILED", "User validation failed", ErrInvalidUserType)
		}
		update.UserType = userType
	}
	if req.CompanyID != nil && *req.CompanyID != current.CompanyID {
		if _, err := f.GetCompany(ctx, *req.CompanyID); err != nil {
			return nil, err
		}
		update.CompanyID = *req.CompanyID
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := f.hashPassword(*req.Password)
		if err != nil {
			return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
		}
		update.PasswordHash = hash
	}

	if err := f.userRepo.Update(ctx, update); err != nil {
		return nil, NewBusinessError("USER_UPDATE_FAILED", "Failed to update user", err)
	}
	if update.CompanyID != 0 {
		f.lookup.InvalidateUser(id)
	}
	return f.GetUser(ctx, id)
}

func (f *CompanyFlowImpl) hashPassword(password string) (string, error) {
	cost := f.security.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
