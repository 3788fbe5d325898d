package words

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
)

// WordRepo owns the global word arena. Rows are created on the first
// normalization miss and never deleted.
type WordRepo interface {
	GetOrCreate(dbc dbctx.Context, text, canonicalKey string) (*domain.Word, error)
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*domain.Word, error)
	GetByCanonicalKey(dbc dbctx.Context, canonicalKey string) (*domain.Word, error)
}

type wordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWordRepo(db *gorm.DB, baseLog *logger.Logger) WordRepo {
	return &wordRepo{db: db, log: baseLog.With("repo", "WordRepo")}
}

func (r *wordRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

// GetOrCreate is race-safe: concurrent callers with the same canonical
// key resolve through the unique constraint instead of a pre-check.
func (r *wordRepo) GetOrCreate(dbc dbctx.Context, text, canonicalKey string) (*domain.Word, error) {
	w := &domain.Word{Text: text, CanonicalKey: canonicalKey}
	err := r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "canonical_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"text": text}),
		}).
		Create(w).Error
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *wordRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*domain.Word, error) {
	var results []*domain.Word
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.conn(dbc).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *wordRepo) GetByCanonicalKey(dbc dbctx.Context, canonicalKey string) (*domain.Word, error) {
	var results []*domain.Word
	if err := r.conn(dbc).
		Where("canonical_key = ?", canonicalKey).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}
