package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/wordmesh/wordmesh-backend/internal/data/repos/auth"
	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
)

const minPasswordLength = 8

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// UserProfile is the authenticated user's own account view.
type UserProfile struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuthService interface {
	Register(ctx context.Context, email, password, displayName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, userID int64) error
	Profile(ctx context.Context, userID int64) (*UserProfile, error)
	ParseAccessToken(tokenString string) (int64, error)
}

type authService struct {
	db         *gorm.DB
	log        *logger.Logger
	users      auth.UserRepo
	tokens     auth.UserTokenRepo
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo auth.UserRepo,
	tokenRepo auth.UserTokenRepo,
	jwtSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	return &authService{
		db:         db,
		log:        baseLog.With("service", "AuthService"),
		users:      userRepo,
		tokens:     tokenRepo,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *authService) Register(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation(fmt.Errorf("invalid email"))
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation(fmt.Errorf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:       email,
		Password:    string(hash),
		DisplayName: strings.TrimSpace(displayName),
	}
	if _, err := s.users.Create(dbctx.Context{Ctx: ctx}, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Newf(http.StatusConflict, apperr.KindAlreadyExists,
				"email already registered")
		}
		return nil, err
	}
	user.Password = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalidCredentials()
	}
	return s.issueTokens(ctx, user.ID)
}

// Refresh rotates the refresh token: the presented token is consumed and
// a new pair is issued in one transaction.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		existing, err := s.tokens.GetByRefreshToken(dbc, refreshToken)
		if err != nil {
			return err
		}
		if existing == nil || existing.ExpiresAt.Before(time.Now().UTC()) {
			return apperr.Newf(http.StatusUnauthorized, apperr.KindUnauthorized,
				"refresh token invalid or expired")
		}
		if err := s.tokens.DeleteByUserID(dbc, existing.UserID); err != nil {
			return err
		}
		pair, err = s.issueTokensTx(dbc, existing.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *authService) Logout(ctx context.Context, userID int64) error {
	return s.tokens.DeleteByUserID(dbctx.Context{Ctx: ctx}, userID)
}

func (s *authService) Profile(ctx context.Context, userID int64) (*UserProfile, error) {
	user, err := s.users.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Newf(http.StatusUnauthorized, apperr.KindUnauthorized,
			"account no longer exists")
	}
	return &UserProfile{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}, nil
}

func (s *authService) ParseAccessToken(tokenString string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return s.jwtSecret, nil
		})
	if err != nil || !parsed.Valid {
		return 0, apperr.Newf(http.StatusUnauthorized, apperr.KindUnauthorized,
			"invalid or expired access token")
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, apperr.Newf(http.StatusUnauthorized, apperr.KindUnauthorized,
			"invalid token claims")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperr.Newf(http.StatusUnauthorized, apperr.KindUnauthorized,
			"invalid subject in token")
	}
	return userID, nil
}

func (s *authService) issueTokens(ctx context.Context, userID int64) (*TokenPair, error) {
	var pair *TokenPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.tokens.DeleteByUserID(dbc, userID); err != nil {
			return err
		}
		var err error
		pair, err = s.issueTokensTx(dbc, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *authService) issueTokensTx(dbc dbctx.Context, userID int64) (*TokenPair, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.New().String()
	expiresAt := now.Add(s.refreshTTL)
	if _, err := s.tokens.Create(dbc, &domain.UserToken{
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func invalidCredentials() error {
	return apperr.Newf(http.StatusUnauthorized, apperr.KindUnauthorized, "invalid credentials")
}
