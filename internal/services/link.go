package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wordmesh/wordmesh-backend/internal/data/graph"
	"github.com/wordmesh/wordmesh-backend/internal/data/repos/words"
	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
	"github.com/wordmesh/wordmesh-backend/internal/validation"
)

// maxLinksPerEndpoint bounds a single word's or sense's adjacency so one
// endpoint cannot grow without limit.
const maxLinksPerEndpoint = 1000

type CreateWordLinkInput struct {
	WordAID int64
	WordBID int64
	Kind    string
	Note    *string
}

type CreateSenseLinkInput struct {
	SenseID      int64
	TargetWordID int64
	Kind         string
	Note         *string
}

// LinkService coordinates relationship writes. Word links touch only the
// graph store; sense links auto-join the target word into the user's
// network first, so a failed graph write leaves at worst an extra
// membership and the whole operation stays retryable.
type LinkService interface {
	CreateWordLink(ctx context.Context, userID int64, in CreateWordLinkInput) (*WordLinkView, error)
	DeleteWordLink(ctx context.Context, userID, wordAID, wordBID int64, kind string) error
	ListWordLinks(ctx context.Context, userID, userWordID int64, kind string, limit, offset int) (*WordLinkPage, error)

	CreateSenseWordLink(ctx context.Context, userID int64, in CreateSenseLinkInput) (*SenseLinkView, error)
	DeleteSenseLink(ctx context.Context, userID, senseID, targetWordID int64, kind string) error
	ListSenseLinks(ctx context.Context, userID, senseID int64, kind string, limit, offset int) (*SenseLinkPage, error)
}

type linkService struct {
	log       *logger.Logger
	words     words.WordRepo
	userWords words.UserWordRepo
	senses    words.UserSenseRepo
	links     graph.LinkStore
	cache     *SearchCache
}

func NewLinkService(
	baseLog *logger.Logger,
	wordRepo words.WordRepo,
	userWordRepo words.UserWordRepo,
	senseRepo words.UserSenseRepo,
	links graph.LinkStore,
	cache *SearchCache,
) LinkService {
	return &linkService{
		log:       baseLog.With("service", "LinkService"),
		words:     wordRepo,
		userWords: userWordRepo,
		senses:    senseRepo,
		links:     links,
		cache:     cache,
	}
}

func (s *linkService) CreateWordLink(ctx context.Context, userID int64, in CreateWordLinkInput) (*WordLinkView, error) {
	kind, err := parseWordLinkKind(in.Kind)
	if err != nil {
		return nil, err
	}
	note, err := validation.Note("link note", in.Note)
	if err != nil {
		return nil, apperr.Validation(err)
	}
	if in.WordAID == in.WordBID {
		return nil, apperr.Newf(http.StatusBadRequest, apperr.KindLinkSelfForbidden,
			"word %d cannot link to itself", in.WordAID)
	}

	wordsByID, err := s.loadWords(ctx, []int64{in.WordAID, in.WordBID})
	if err != nil {
		return nil, err
	}
	for _, id := range []int64{in.WordAID, in.WordBID} {
		if wordsByID[id] == nil {
			return nil, apperr.Newf(http.StatusNotFound, apperr.KindLinkTargetNotFound,
				"word %d does not exist", id)
		}
	}

	if err := s.checkWordLinkLimit(ctx, userID, in.WordAID); err != nil {
		return nil, err
	}

	var link *domain.WordLink
	if err := withRetry(ctx, s.log, "upsert word link", func() error {
		var upErr error
		link, upErr = s.links.UpsertWordLink(ctx, userID, in.WordAID, in.WordBID, kind, note)
		return upErr
	}); err != nil {
		return nil, err
	}

	return &WordLinkView{
		WordA:     wordRef(wordsByID[link.WordAID]),
		WordB:     wordRef(wordsByID[link.WordBID]),
		Kind:      string(link.Kind),
		Note:      link.Note,
		CreatedAt: link.CreatedAt,
	}, nil
}

func (s *linkService) DeleteWordLink(ctx context.Context, userID, wordAID, wordBID int64, kind string) error {
	parsed, err := parseWordLinkKind(kind)
	if err != nil {
		return err
	}
	if wordAID == wordBID {
		return apperr.Newf(http.StatusBadRequest, apperr.KindLinkSelfForbidden,
			"word %d cannot link to itself", wordAID)
	}
	return withRetry(ctx, s.log, "delete word link", func() error {
		return s.links.DeleteWordLink(ctx, userID, wordAID, wordBID, parsed)
	})
}

// ListWordLinks reads the adjacency of one of the user's memberships.
// Edges whose far endpoint no longer resolves in the entity store are
// dropped from the result and logged for offline reconciliation.
func (s *linkService) ListWordLinks(ctx context.Context, userID, userWordID int64, kind string, limit, offset int) (*WordLinkPage, error) {
	limit, offset, err := clampLinkPage(limit, offset)
	if err != nil {
		return nil, err
	}
	kindFilter, err := parseOptionalWordLinkKind(kind)
	if err != nil {
		return nil, err
	}

	uw, err := s.userWords.GetByID(dbctx.Context{Ctx: ctx}, userID, userWordID)
	if err != nil {
		return nil, err
	}
	if uw == nil {
		return nil, apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork,
			"user word %d not found", userWordID)
	}

	links, err := s.links.ListWordLinks(ctx, graph.WordLinkFilter{
		UserID: userID,
		WordID: uw.WordID,
		Kind:   kindFilter,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, 2*len(links))
	for _, l := range links {
		ids = append(ids, l.WordAID, l.WordBID)
	}
	wordsByID, err := s.loadWords(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*WordLinkView, 0, len(links))
	for _, l := range links {
		a, b := wordsByID[l.WordAID], wordsByID[l.WordBID]
		if a == nil || b == nil {
			s.log.Warn("word link references missing word, filtered",
				"kind", apperr.KindConsistencyDrift,
				"word_a_id", l.WordAID,
				"word_b_id", l.WordBID,
				"user_id", userID,
			)
			continue
		}
		items = append(items, &WordLinkView{
			WordA:     wordRef(a),
			WordB:     wordRef(b),
			Kind:      string(l.Kind),
			Note:      l.Note,
			CreatedAt: l.CreatedAt,
		})
	}
	return &WordLinkPage{Items: items, Limit: limit, Offset: offset}, nil
}

// CreateSenseWordLink resolves the sense's source word, auto-joins the
// target word into the user's network, then merges the edge. If the
// graph write fails after the auto-join, the membership stays; the
// caller retries and every step tolerates the replay.
func (s *linkService) CreateSenseWordLink(ctx context.Context, userID int64, in CreateSenseLinkInput) (*SenseLinkView, error) {
	kind, err := parseSenseLinkKind(in.Kind)
	if err != nil {
		return nil, err
	}
	note, err := validation.Note("link note", in.Note)
	if err != nil {
		return nil, apperr.Validation(err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	sense, err := s.senses.GetByID(dbc, userID, in.SenseID)
	if err != nil {
		return nil, err
	}
	if sense == nil {
		return nil, apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork,
			"sense %d not found", in.SenseID)
	}
	uw, err := s.userWords.GetByID(dbc, userID, sense.UserWordID)
	if err != nil {
		return nil, err
	}
	if uw == nil {
		return nil, apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork,
			"user word %d not found", sense.UserWordID)
	}
	if in.TargetWordID == uw.WordID {
		return nil, apperr.Newf(http.StatusBadRequest, apperr.KindLinkSelfForbidden,
			"sense %d cannot link to its own word %d", in.SenseID, in.TargetWordID)
	}

	wordsByID, err := s.loadWords(ctx, []int64{uw.WordID, in.TargetWordID})
	if err != nil {
		return nil, err
	}
	target := wordsByID[in.TargetWordID]
	if target == nil {
		return nil, apperr.Newf(http.StatusNotFound, apperr.KindLinkTargetNotFound,
			"word %d does not exist", in.TargetWordID)
	}

	if err := s.checkSenseLinkLimit(ctx, userID, in.SenseID); err != nil {
		return nil, err
	}

	// Auto-join: the target word joins the user's network if absent.
	_, created, err := s.userWords.Upsert(dbc, userID, in.TargetWordID, nil, nil)
	if err != nil {
		return nil, err
	}

	var link *domain.SenseWordLink
	if err := withRetry(ctx, s.log, "upsert sense link", func() error {
		if err := s.links.MergeWordNode(ctx, in.TargetWordID); err != nil {
			return err
		}
		var upErr error
		link, upErr = s.links.UpsertSenseLink(ctx, userID, in.SenseID, uw.WordID, in.TargetWordID, kind, note)
		return upErr
	}); err != nil {
		return nil, err
	}

	if created {
		s.cache.Bump(ctx, userID)
	}

	return &SenseLinkView{
		SenseID:    link.SenseID,
		SourceWord: wordRef(wordsByID[uw.WordID]),
		TargetWord: wordRef(target),
		Kind:       string(link.Kind),
		Note:       link.Note,
		CreatedAt:  link.CreatedAt,
	}, nil
}

func (s *linkService) DeleteSenseLink(ctx context.Context, userID, senseID, targetWordID int64, kind string) error {
	parsed, err := parseSenseLinkKind(kind)
	if err != nil {
		return err
	}
	return withRetry(ctx, s.log, "delete sense link", func() error {
		return s.links.DeleteSenseLink(ctx, userID, senseID, targetWordID, parsed)
	})
}

func (s *linkService) ListSenseLinks(ctx context.Context, userID, senseID int64, kind string, limit, offset int) (*SenseLinkPage, error) {
	limit, offset, err := clampLinkPage(limit, offset)
	if err != nil {
		return nil, err
	}
	kindFilter, err := parseOptionalSenseLinkKind(kind)
	if err != nil {
		return nil, err
	}

	sense, err := s.senses.GetByID(dbctx.Context{Ctx: ctx}, userID, senseID)
	if err != nil {
		return nil, err
	}
	if sense == nil {
		return nil, apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork,
			"sense %d not found", senseID)
	}

	links, err := s.links.ListSenseLinks(ctx, graph.SenseLinkFilter{
		UserID:  userID,
		SenseID: senseID,
		Kind:    kindFilter,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, 2*len(links))
	for _, l := range links {
		ids = append(ids, l.SourceWordID, l.TargetWordID)
	}
	wordsByID, err := s.loadWords(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]*SenseLinkView, 0, len(links))
	for _, l := range links {
		src, dst := wordsByID[l.SourceWordID], wordsByID[l.TargetWordID]
		if src == nil || dst == nil {
			s.log.Warn("sense link references missing word, filtered",
				"kind", apperr.KindConsistencyDrift,
				"sense_id", l.SenseID,
				"target_word_id", l.TargetWordID,
				"user_id", userID,
			)
			continue
		}
		items = append(items, &SenseLinkView{
			SenseID:    l.SenseID,
			SourceWord: wordRef(src),
			TargetWord: wordRef(dst),
			Kind:       string(l.Kind),
			Note:       l.Note,
			CreatedAt:  l.CreatedAt,
		})
	}
	return &SenseLinkPage{Items: items, Limit: limit, Offset: offset}, nil
}

func (s *linkService) loadWords(ctx context.Context, ids []int64) (map[int64]*domain.Word, error) {
	rows, err := s.words.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*domain.Word, len(rows))
	for _, w := range rows {
		byID[w.ID] = w
	}
	return byID, nil
}

func (s *linkService) checkWordLinkLimit(ctx context.Context, userID, wordID int64) error {
	n, err := s.links.CountWordLinks(ctx, userID, wordID)
	if err != nil {
		return err
	}
	if n >= maxLinksPerEndpoint {
		return apperr.Newf(http.StatusConflict, apperr.KindLinkLimitExceeded,
			"word %d has %d links (max %d)", wordID, n, maxLinksPerEndpoint)
	}
	return nil
}

func (s *linkService) checkSenseLinkLimit(ctx context.Context, userID, senseID int64) error {
	n, err := s.links.CountSenseLinks(ctx, userID, senseID)
	if err != nil {
		return err
	}
	if n >= maxLinksPerEndpoint {
		return apperr.Newf(http.StatusConflict, apperr.KindLinkLimitExceeded,
			"sense %d has %d links (max %d)", senseID, n, maxLinksPerEndpoint)
	}
	return nil
}

func clampLinkPage(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return 0, 0, apperr.Validation(fmt.Errorf("limit %d exceeds max %d", limit, maxSearchLimit))
	}
	if offset < 0 || offset > maxSearchOffset {
		return 0, 0, apperr.Validation(fmt.Errorf("offset %d out of range", offset))
	}
	return limit, offset, nil
}

func parseWordLinkKind(kind string) (domain.WordLinkKind, error) {
	k := domain.WordLinkKind(kind)
	if !k.Valid() {
		return "", apperr.Newf(http.StatusBadRequest, apperr.KindLinkTypeInvalid,
			"unknown word link kind %q", kind)
	}
	return k, nil
}

func parseOptionalWordLinkKind(kind string) (*domain.WordLinkKind, error) {
	if kind == "" {
		return nil, nil
	}
	k, err := parseWordLinkKind(kind)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func parseSenseLinkKind(kind string) (domain.SenseLinkKind, error) {
	k := domain.SenseLinkKind(kind)
	if !k.Valid() {
		return "", apperr.Newf(http.StatusBadRequest, apperr.KindLinkTypeInvalid,
			"unknown sense link kind %q", kind)
	}
	return k, nil
}

func parseOptionalSenseLinkKind(kind string) (*domain.SenseLinkKind, error) {
	if kind == "" {
		return nil, nil
	}
	k, err := parseSenseLinkKind(kind)
	if err != nil {
		return nil, err
	}
	return &k, nil
}
