package words

import (
	"strings"

	"gorm.io/gorm"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/normalization"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
)

// SearchRepo is the thin read path over the entity store: substring
// match on canonical keys and sense text, stable ordering, offset
// pagination.
type SearchRepo interface {
	Search(dbc dbctx.Context, params domain.SearchParams) ([]*domain.UserWordAggregate, error)
	GetAggregate(dbc dbctx.Context, userID, userWordID int64) (*domain.UserWordAggregate, error)
}

type searchRepo struct {
	db     *gorm.DB
	log    *logger.Logger
	words  WordRepo
	senses UserSenseRepo
}

func NewSearchRepo(db *gorm.DB, baseLog *logger.Logger, words WordRepo, senses UserSenseRepo) SearchRepo {
	return &searchRepo{
		db:     db,
		log:    baseLog.With("repo", "SearchRepo"),
		words:  words,
		senses: senses,
	}
}

func (r *searchRepo) conn(dbc dbctx.Context) *gorm.DB {
	tx := dbc.Tx
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(dbc.Ctx)
}

func (r *searchRepo) Search(dbc dbctx.Context, params domain.SearchParams) ([]*domain.UserWordAggregate, error) {
	q := r.conn(dbc).
		Model(&domain.UserWord{}).
		Select("user_word.*").
		Joins("JOIN word ON word.id = user_word.word_id").
		Where("user_word.user_id = ?", params.UserID)

	query := strings.TrimSpace(params.Query)
	if query != "" {
		const senseMatch = `EXISTS (
			SELECT 1 FROM user_sense us
			WHERE us.user_word_id = user_word.id AND us.text ILIKE ?
		)`
		switch params.Scope {
		case domain.SearchScopeWord:
			q = q.Where("word.canonical_key ILIKE ?", wordPattern(query))
		case domain.SearchScopeSense:
			q = q.Where(senseMatch, "%"+query+"%")
		default:
			q = q.Where("word.canonical_key ILIKE ? OR "+senseMatch,
				wordPattern(query), "%"+query+"%")
		}
	}

	var memberships []*domain.UserWord
	if err := q.
		Order("word.canonical_key ASC, user_word.created_at ASC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&memberships).Error; err != nil {
		return nil, err
	}

	return r.assemble(dbc, memberships)
}

func (r *searchRepo) GetAggregate(dbc dbctx.Context, userID, userWordID int64) (*domain.UserWordAggregate, error) {
	var memberships []*domain.UserWord
	if err := r.conn(dbc).
		Where("id = ? AND user_id = ?", userWordID, userID).
		Limit(1).
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}
	aggs, err := r.assemble(dbc, memberships)
	if err != nil {
		return nil, err
	}
	return aggs[0], nil
}

func (r *searchRepo) assemble(dbc dbctx.Context, memberships []*domain.UserWord) ([]*domain.UserWordAggregate, error) {
	if len(memberships) == 0 {
		return []*domain.UserWordAggregate{}, nil
	}

	wordIDs := make([]int64, 0, len(memberships))
	uwIDs := make([]int64, 0, len(memberships))
	for _, uw := range memberships {
		wordIDs = append(wordIDs, uw.WordID)
		uwIDs = append(uwIDs, uw.ID)
	}

	wordRows, err := r.words.GetByIDs(dbc, wordIDs)
	if err != nil {
		return nil, err
	}
	wordsByID := make(map[int64]*domain.Word, len(wordRows))
	for _, w := range wordRows {
		wordsByID[w.ID] = w
	}

	senseRows, err := r.senses.ListByUserWordIDs(dbc, uwIDs)
	if err != nil {
		return nil, err
	}
	sensesByUW := make(map[int64][]*domain.UserSense, len(memberships))
	for _, s := range senseRows {
		sensesByUW[s.UserWordID] = append(sensesByUW[s.UserWordID], s)
	}

	aggs := make([]*domain.UserWordAggregate, 0, len(memberships))
	for _, uw := range memberships {
		aggs = append(aggs, &domain.UserWordAggregate{
			Word:     wordsByID[uw.WordID],
			UserWord: uw,
			Senses:   sensesByUW[uw.ID],
		})
	}
	return aggs, nil
}

// wordPattern matches the way canonical keys are stored: word-scope
// queries are normalized before the ILIKE so "Graph DB" finds
// "graph-db-design".
func wordPattern(query string) string {
	if key, ok := normalization.Canonicalize(query); ok {
		return "%" + key + "%"
	}
	return "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
}
