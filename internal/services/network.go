package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/wordmesh/wordmesh-backend/internal/data/graph"
	"github.com/wordmesh/wordmesh-backend/internal/data/repos/words"
	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/normalization"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
	"github.com/wordmesh/wordmesh-backend/internal/validation"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	maxSearchOffset    = 10000
)

// FirstSense optionally seeds a new membership with its primary sense.
type FirstSense struct {
	Text string
	Note *string
}

type AddWordInput struct {
	Text       string
	Tags       []string
	Note       *string
	FirstSense *FirstSense
}

// NetworkService is the coordinator for membership operations that span
// both stores. Each operation is a short saga: relational write first,
// graph write second, every step idempotent so a failed run is retried
// rather than compensated.
type NetworkService interface {
	AddToNetwork(ctx context.Context, userID int64, in AddWordInput) (*UserWordView, error)
	GetUserWord(ctx context.Context, userID, userWordID int64) (*UserWordView, error)
	RemoveFromNetwork(ctx context.Context, userID, userWordID int64) error
	Search(ctx context.Context, userID int64, query, scope string, limit, offset int) (*SearchPage, error)
}

type networkService struct {
	log       *logger.Logger
	words     words.WordRepo
	userWords words.UserWordRepo
	senses    words.UserSenseRepo
	search    words.SearchRepo
	links     graph.LinkStore
	cache     *SearchCache
}

func NewNetworkService(
	baseLog *logger.Logger,
	wordRepo words.WordRepo,
	userWordRepo words.UserWordRepo,
	senseRepo words.UserSenseRepo,
	searchRepo words.SearchRepo,
	links graph.LinkStore,
	cache *SearchCache,
) NetworkService {
	return &networkService{
		log:       baseLog.With("service", "NetworkService"),
		words:     wordRepo,
		userWords: userWordRepo,
		senses:    senseRepo,
		search:    searchRepo,
		links:     links,
		cache:     cache,
	}
}

// AddToNetwork runs get_or_create word, upsert membership and the
// optional first sense in one relational transaction, then merges the
// word node into the graph. A repeated call resolves to the existing
// membership and reports it through the view's AlreadyExists flag.
func (s *networkService) AddToNetwork(ctx context.Context, userID int64, in AddWordInput) (*UserWordView, error) {
	text, err := validation.NonEmptyText("word text", in.Text)
	if err != nil {
		return nil, apperr.Validation(err)
	}
	canonicalKey, ok := normalization.Canonicalize(text)
	if !ok {
		return nil, apperr.Validation(fmt.Errorf("word text %q has no canonical form", in.Text))
	}
	note, err := validation.Note("note", in.Note)
	if err != nil {
		return nil, apperr.Validation(err)
	}
	tagsJSON, err := encodeTags(in.Tags)
	if err != nil {
		return nil, apperr.Validation(err)
	}

	var firstSenseText string
	var firstSenseNote *string
	if in.FirstSense != nil {
		firstSenseText, err = validation.NonEmptyText("sense text", in.FirstSense.Text)
		if err != nil {
			return nil, apperr.Validation(err)
		}
		firstSenseNote, err = validation.Note("sense note", in.FirstSense.Note)
		if err != nil {
			return nil, apperr.Validation(err)
		}
	}

	// Saga: each step is independently idempotent, so the sequence is
	// retried as a whole instead of wrapped in a cross-step transaction.
	dbc := dbctx.Context{Ctx: ctx}
	word, err := s.words.GetOrCreate(dbc, text, canonicalKey)
	if err != nil {
		return nil, err
	}
	uw, created, err := s.userWords.Upsert(dbc, userID, word.ID, tagsJSON, note)
	if err != nil {
		return nil, err
	}
	if in.FirstSense != nil {
		if _, err := s.senses.Add(dbc, uw.ID, firstSenseText, true, 0, firstSenseNote); err != nil &&
			!apperr.IsKind(err, apperr.KindSenseDuplicate) {
			return nil, err
		}
	}

	if err := withRetry(ctx, s.log, "merge word node", func() error {
		return s.links.MergeWordNode(ctx, word.ID)
	}); err != nil {
		return nil, err
	}

	s.cache.Bump(ctx, userID)

	agg, err := s.search.GetAggregate(dbctx.Context{Ctx: ctx}, userID, uw.ID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, apperr.Newf(http.StatusInternalServerError, apperr.KindInternal,
			"membership %d vanished after upsert", uw.ID)
	}
	return newUserWordView(agg, !created), nil
}

func (s *networkService) GetUserWord(ctx context.Context, userID, userWordID int64) (*UserWordView, error) {
	agg, err := s.search.GetAggregate(dbctx.Context{Ctx: ctx}, userID, userWordID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork,
			"user word %d not found", userWordID)
	}
	return newUserWordView(agg, false), nil
}

// RemoveFromNetwork deletes relational state first, then clears the
// user's graph edges touching the word and every removed sense's edges
// in parallel. A dangling edge left by a failed cleanup is harmless; the
// read paths filter it out, so cleanup failure is logged, not surfaced.
func (s *networkService) RemoveFromNetwork(ctx context.Context, userID, userWordID int64) error {
	dbc := dbctx.Context{Ctx: ctx}
	uw, err := s.userWords.GetByID(dbc, userID, userWordID)
	if err != nil {
		return err
	}
	if uw == nil {
		return apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork,
			"user word %d not found", userWordID)
	}

	senseIDs, err := s.userWords.Remove(dbc, userID, userWordID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return withRetry(gctx, s.log, "delete word links for word", func() error {
			return s.links.DeleteWordLinksForWord(gctx, userID, uw.WordID)
		})
	})
	for _, senseID := range senseIDs {
		senseID := senseID
		g.Go(func() error {
			return withRetry(gctx, s.log, "delete all sense links", func() error {
				return s.links.DeleteAllSenseLinks(gctx, senseID)
			})
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn("graph cleanup incomplete after membership removal, orphans filtered at read time",
			"user_id", userID,
			"user_word_id", userWordID,
			"word_id", uw.WordID,
			"error", err,
		)
	}

	s.cache.Bump(ctx, userID)
	return nil
}

func (s *networkService) Search(ctx context.Context, userID int64, query, scope string, limit, offset int) (*SearchPage, error) {
	searchScope := domain.SearchScopeBoth
	if scope != "" {
		searchScope = domain.SearchScope(scope)
		if !searchScope.Valid() {
			return nil, apperr.Validation(fmt.Errorf("unknown search scope %q", scope))
		}
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return nil, apperr.Validation(fmt.Errorf("limit %d exceeds max %d", limit, maxSearchLimit))
	}
	if offset < 0 || offset > maxSearchOffset {
		return nil, apperr.Validation(fmt.Errorf("offset %d out of range", offset))
	}

	params := domain.SearchParams{
		UserID: userID,
		Query:  query,
		Scope:  searchScope,
		Limit:  limit,
		Offset: offset,
	}
	if page, hit := s.cache.Get(ctx, params); hit {
		return page, nil
	}

	aggs, err := s.search.Search(dbctx.Context{Ctx: ctx}, params)
	if err != nil {
		return nil, err
	}
	items := make([]*UserWordView, 0, len(aggs))
	for _, agg := range aggs {
		items = append(items, newUserWordView(agg, false))
	}
	page := &SearchPage{Items: items, Limit: limit, Offset: offset}
	s.cache.Set(ctx, params, page)
	return page, nil
}

func encodeTags(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		return nil, nil
	}
	normalized, err := validation.NormalizeTags(tags)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
