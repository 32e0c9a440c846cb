package businessflow

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/app/services"
	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/amirphl/omc-bdc-price-service/repository"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LoginFlow issues access tokens to users and the system administrator
type LoginFlow interface {
	Login(ctx context.Context, request *dto.LoginRequest) (*dto.LoginResponse, error)
	AdminLogin(ctx context.Context, request *dto.AdminLoginRequest) (*dto.LoginResponse, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	userRepo     repository.UserRepository
	tokenService services.TokenService
	adminConfig  config.AdminConfig
	logger       *zap.Logger
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	userRepo repository.UserRepository,
	tokenService services.TokenService,
	adminConfig config.AdminConfig,
	logger *zap.Logger,
) LoginFlow {
	return &LoginFlowImpl{
		userRepo:     userRepo,
		tokenService: tokenService,
		adminConfig:  adminConfig,
		logger:       logger,
	}
}

// Login authenticates a user with email and password
func (lf *LoginFlowImpl) Login(ctx context.Context, request *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := lf.userRepo.ByEmail(ctx, strings.TrimSpace(request.Email))
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}
	// unknown email and wrong password are indistinguishable to the caller
	if user == nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)); err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrInvalidCredentials)
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrAccountInactive)
	}

	token, expiresAt, err := lf.tokenService.GenerateToken(services.TokenSubject{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Email:     user.Email,
		Role:      services.RoleUser,
	})
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}

	now := utils.UTCNow()
	if err := lf.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		lf.logger.Warn("failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	userDTO := ToUserDTO(*user)
	return newLoginResponse(token, expiresAt, &userDTO), nil
}

// AdminLogin checks the configured administrator credentials
func (lf *LoginFlowImpl) AdminLogin(ctx context.Context, request *dto.AdminLoginRequest) (*dto.LoginResponse, error) {
	if lf.adminConfig.Username == "" || lf.adminConfig.Password == "" {
		return nil, NewBusinessError("ADMIN_LOGIN_FAILED", "Admin login failed", ErrInvalidCredentials)
	}

	userOK := subtle.ConstantTimeCompare([]byte(request.Username), []byte(lf.adminConfig.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(request.Password), []byte(lf.adminConfig.Password)) == 1
	if !userOK || !passOK {
		lf.logger.Warn("admin login rejected", zap.String("username", request.Username))
		return nil, NewBusinessError("ADMIN_LOGIN_FAILED", "Admin login failed", ErrInvalidCredentials)
	}

	token, expiresAt, err := lf.tokenService.GenerateToken(services.TokenSubject{
		Email: lf.adminConfig.Username,
		Role:  services.RoleAdmin,
	})
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate token", err)
	}
	return newLoginResponse(token, expiresAt, nil), nil
}

func newLoginResponse(token string, expiresAt time.Time, user *dto.UserDTO) *dto.LoginResponse {
	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
		ExpiresAt:   expiresAt,
		User:        user,
	}
}
