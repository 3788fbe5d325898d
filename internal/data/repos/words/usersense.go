package words

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
)

// UserSenseRepo owns senses. Primary exclusivity is resolved with a
// clear-then-set protocol inside one relational transaction; the partial
// unique index is the race arbiter of last resort.
type UserSenseRepo interface {
	Add(dbc dbctx.Context, userWordID int64, text string, isPrimary bool, sortOrder int, note *string) (*domain.UserSense, error)
	Update(dbc dbctx.Context, userID, senseID int64, upd domain.SenseUpdate) (*domain.UserSense, error)
	Remove(dbc dbctx.Context, userID, senseID int64) (*domain.RemovedSense, error)
	GetByID(dbc dbctx.Context, userID, senseID int64) (*domain.UserSense, error)
	ListByUserWordIDs(dbc dbctx.Context, userWordIDs []int64) ([]*domain.UserSense, error)
}

type userSenseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserSenseRepo(db *gorm.DB, baseLog *logger.Logger) UserSenseRepo {
	return &userSenseRepo{db: db, log: baseLog.With("repo", "UserSenseRepo")}
}

func (r *userSenseRepo) transact(dbc dbctx.Context, run func(tx *gorm.DB) error) error {
	if dbc.Tx != nil {
		return run(dbc.Tx.WithContext(dbc.Ctx))
	}
	return r.db.WithContext(dbc.Ctx).Transaction(run)
}

func (r *userSenseRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *userSenseRepo) Add(dbc dbctx.Context, userWordID int64, text string, isPrimary bool, sortOrder int, note *string) (*domain.UserSense, error) {
	sense := &domain.UserSense{
		UserWordID: userWordID,
		Text:       text,
		IsPrimary:  isPrimary,
		SortOrder:  sortOrder,
		Note:       note,
	}
	err := r.transact(dbc, func(tx *gorm.DB) error {
		if isPrimary {
			if err := tx.
				Model(&domain.UserSense{}).
				Where("user_word_id = ? AND is_primary", userWordID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(sense).Error
	})
	if err != nil {
		return nil, mapSenseWriteError(err)
	}
	return sense, nil
}

func (r *userSenseRepo) Update(dbc dbctx.Context, userID, senseID int64, upd domain.SenseUpdate) (*domain.UserSense, error) {
	var sense *domain.UserSense
	err := r.transact(dbc, func(tx *gorm.DB) error {
		var results []*domain.UserSense
		if err := tx.
			Joins("JOIN user_word ON user_word.id = user_sense.user_word_id").
			Where("user_sense.id = ? AND user_word.user_id = ?", senseID, userID).
			Find(&results).Error; err != nil {
			return err
		}
		if len(results) == 0 {
			return apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork, "sense %d not found", senseID)
		}
		sense = results[0]

		if upd.IsPrimary != nil && *upd.IsPrimary {
			if err := tx.
				Model(&domain.UserSense{}).
				Where("user_word_id = ? AND id <> ? AND is_primary", sense.UserWordID, senseID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		}

		if upd.Text != nil {
			sense.Text = *upd.Text
		}
		if upd.IsPrimary != nil {
			sense.IsPrimary = *upd.IsPrimary
		}
		if upd.SortOrder != nil {
			sense.SortOrder = *upd.SortOrder
		}
		if upd.Note != nil {
			sense.Note = *upd.Note
		}
		return tx.Save(sense).Error
	})
	if err != nil {
		return nil, mapSenseWriteError(err)
	}
	return sense, nil
}

// Remove is idempotent: deleting an absent sense returns nil without an
// error so saga retries are safe.
func (r *userSenseRepo) Remove(dbc dbctx.Context, userID, senseID int64) (*domain.RemovedSense, error) {
	sense, err := r.GetByID(dbc, userID, senseID)
	if err != nil {
		return nil, err
	}
	if sense == nil {
		return nil, nil
	}
	if err := r.conn(dbc).
		Where("id = ?", senseID).
		Delete(&domain.UserSense{}).Error; err != nil {
		return nil, err
	}
	return &domain.RemovedSense{SenseID: sense.ID, UserWordID: sense.UserWordID}, nil
}

func (r *userSenseRepo) GetByID(dbc dbctx.Context, userID, senseID int64) (*domain.UserSense, error) {
	var results []*domain.UserSense
	if err := r.conn(dbc).
		Joins("JOIN user_word ON user_word.id = user_sense.user_word_id").
		Where("user_sense.id = ? AND user_word.user_id = ?", senseID, userID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *userSenseRepo) ListByUserWordIDs(dbc dbctx.Context, userWordIDs []int64) ([]*domain.UserSense, error) {
	var results []*domain.UserSense
	if len(userWordIDs) == 0 {
		return results, nil
	}
	if err := r.conn(dbc).
		Where("user_word_id IN ?", userWordIDs).
		Order("user_word_id, sort_order ASC, created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

const pgUniqueViolation = "23505"

// mapSenseWriteError translates unique violations into the stable
// taxonomy by constraint name: the partial primary index means a primary
// conflict the clear-then-set protocol failed to resolve, any other
// unique index on the table is the (user_word_id, text) duplicate.
func mapSenseWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	if pgErr.ConstraintName == "uq_user_sense_primary" {
		return apperr.New(http.StatusConflict, apperr.KindPrimaryConflict, err)
	}
	return apperr.New(http.StatusConflict, apperr.KindSenseDuplicate, err)
}
