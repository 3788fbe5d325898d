package words

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
)

// UserWordRepo owns memberships. Upsert is idempotent on
// (user_id, word_id); Remove cascades to senses and reports their ids so
// the coordinator can clean up graph edges afterwards.
type UserWordRepo interface {
	Upsert(dbc dbctx.Context, userID, wordID int64, tags datatypes.JSON, note *string) (*domain.UserWord, bool, error)
	GetByID(dbc dbctx.Context, userID, userWordID int64) (*domain.UserWord, error)
	GetByUserAndWord(dbc dbctx.Context, userID, wordID int64) (*domain.UserWord, error)
	Remove(dbc dbctx.Context, userID, userWordID int64) ([]int64, error)
}

type userWordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserWordRepo(db *gorm.DB, baseLog *logger.Logger) UserWordRepo {
	return &userWordRepo{db: db, log: baseLog.With("repo", "UserWordRepo")}
}

func (r *userWordRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

// Upsert inserts the membership, tolerating a concurrent duplicate via
// the unique constraint. The second return value reports whether a new
// row was created; an existing row is refreshed with the caller's tags
// and note when provided.
func (r *userWordRepo) Upsert(dbc dbctx.Context, userID, wordID int64, tags datatypes.JSON, note *string) (*domain.UserWord, bool, error) {
	uw := &domain.UserWord{
		UserID: userID,
		WordID: wordID,
		Tags:   tags,
		Note:   note,
	}
	res := r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "word_id"}},
			DoNothing: true,
		}).
		Create(uw)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return uw, true, nil
	}

	existing, err := r.GetByUserAndWord(dbc, userID, wordID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Row vanished between the conflict and the read. Surfaced as
		// retryable so the coordinator replays the upsert.
		return nil, false, membershipVanished(userID, wordID)
	}

	updates := map[string]interface{}{}
	if tags != nil {
		updates["tags"] = tags
	}
	if note != nil {
		updates["note"] = note
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		if err := r.conn(dbc).
			Model(&domain.UserWord{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return nil, false, err
		}
		if tags != nil {
			existing.Tags = tags
		}
		if note != nil {
			existing.Note = note
		}
	}
	return existing, false, nil
}

func membershipVanished(userID, wordID int64) error {
	return apperr.Unavailable(fmt.Errorf(
		"membership for user %d word %d vanished during upsert", userID, wordID))
}

func (r *userWordRepo) GetByID(dbc dbctx.Context, userID, userWordID int64) (*domain.UserWord, error) {
	var results []*domain.UserWord
	if err := r.conn(dbc).
		Where("id = ? AND user_id = ?", userWordID, userID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *userWordRepo) GetByUserAndWord(dbc dbctx.Context, userID, wordID int64) (*domain.UserWord, error) {
	var results []*domain.UserWord
	if err := r.conn(dbc).
		Where("user_id = ? AND word_id = ?", userID, wordID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Remove deletes the membership's senses first, collecting their ids,
// then the membership row. Runs inside a single relational transaction;
// the returned sense ids drive graph cleanup in the coordinator.
func (r *userWordRepo) Remove(dbc dbctx.Context, userID, userWordID int64) ([]int64, error) {
	var senseIDs []int64
	run := func(tx *gorm.DB) error {
		if err := tx.
			Model(&domain.UserSense{}).
			Where("user_word_id = ?", userWordID).
			Pluck("id", &senseIDs).Error; err != nil {
			return err
		}
		if err := tx.
			Where("user_word_id = ?", userWordID).
			Delete(&domain.UserSense{}).Error; err != nil {
			return err
		}
		return tx.
			Where("id = ? AND user_id = ?", userWordID, userID).
			Delete(&domain.UserWord{}).Error
	}

	if dbc.Tx != nil {
		if err := run(dbc.Tx.WithContext(dbc.Ctx)); err != nil {
			return nil, err
		}
		return senseIDs, nil
	}
	if err := r.db.WithContext(dbc.Ctx).Transaction(run); err != nil {
		return nil, err
	}
	return senseIDs, nil
}
