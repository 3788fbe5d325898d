package auth

import (
	"time"

	"gorm.io/gorm"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
)

type UserTokenRepo interface {
	Create(dbc dbctx.Context, token *domain.UserToken) (*domain.UserToken, error)
	GetByRefreshToken(dbc dbctx.Context, refreshToken string) (*domain.UserToken, error)
	DeleteByUserID(dbc dbctx.Context, userID int64) error
	DeleteExpired(dbc dbctx.Context) error
}

type userTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	return &userTokenRepo{db: db, log: baseLog.With("repo", "UserTokenRepo")}
}

func (r *userTokenRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *userTokenRepo) Create(dbc dbctx.Context, token *domain.UserToken) (*domain.UserToken, error) {
	if err := r.conn(dbc).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

func (r *userTokenRepo) GetByRefreshToken(dbc dbctx.Context, refreshToken string) (*domain.UserToken, error) {
	var results []*domain.UserToken
	if err := r.conn(dbc).
		Where("refresh_token = ?", refreshToken).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *userTokenRepo) DeleteByUserID(dbc dbctx.Context, userID int64) error {
	return r.conn(dbc).
		Where("user_id = ?", userID).
		Delete(&domain.UserToken{}).Error
}

func (r *userTokenRepo) DeleteExpired(dbc dbctx.Context) error {
	return r.conn(dbc).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&domain.UserToken{}).Error
}
