package services

import (
	"context"
	"net/http"

	"github.com/wordmesh/wordmesh-backend/internal/data/graph"
	"github.com/wordmesh/wordmesh-backend/internal/data/repos/words"
	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
	"github.com/wordmesh/wordmesh-backend/internal/validation"
)

type AddSenseInput struct {
	UserWordID int64
	Text       string
	IsPrimary  bool
	SortOrder  int
	Note       *string
}

// UpdateSenseInput is a partial update; nil fields stay unchanged. Note
// distinguishes "leave as is" (nil) from "clear" (pointer to nil).
type UpdateSenseInput struct {
	Text      *string
	IsPrimary *bool
	SortOrder *int
	Note      **string
}

type SenseService interface {
	AddSense(ctx context.Context, userID int64, in AddSenseInput) (*SenseView, error)
	UpdateSense(ctx context.Context, userID, senseID int64, in UpdateSenseInput) (*SenseView, error)
	RemoveSense(ctx context.Context, userID, senseID int64) error
}

type senseService struct {
	log       *logger.Logger
	userWords words.UserWordRepo
	senses    words.UserSenseRepo
	links     graph.LinkStore
	cache     *SearchCache
}

func NewSenseService(
	baseLog *logger.Logger,
	userWordRepo words.UserWordRepo,
	senseRepo words.UserSenseRepo,
	links graph.LinkStore,
	cache *SearchCache,
) SenseService {
	return &senseService{
		log:       baseLog.With("service", "SenseService"),
		userWords: userWordRepo,
		senses:    senseRepo,
		links:     links,
		cache:     cache,
	}
}

func (s *senseService) AddSense(ctx context.Context, userID int64, in AddSenseInput) (*SenseView, error) {
	text, err := validation.NonEmptyText("sense text", in.Text)
	if err != nil {
		return nil, apperr.Validation(err)
	}
	note, err := validation.Note("sense note", in.Note)
	if err != nil {
		return nil, apperr.Validation(err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	uw, err := s.userWords.GetByID(dbc, userID, in.UserWordID)
	if err != nil {
		return nil, err
	}
	if uw == nil {
		return nil, apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork,
			"user word %d not found", in.UserWordID)
	}

	sense, err := s.senses.Add(dbc, uw.ID, text, in.IsPrimary, in.SortOrder, note)
	if err != nil {
		return nil, err
	}

	// Best effort: the sense node is also merged lazily by the first
	// link write, so a failure here never fails the add.
	if err := withRetry(ctx, s.log, "merge sense node", func() error {
		return s.links.MergeSenseNode(ctx, sense.ID, userID, uw.WordID)
	}); err != nil {
		s.log.Warn("sense node merge deferred to first link write",
			"sense_id", sense.ID, "error", err)
	}

	s.cache.Bump(ctx, userID)
	view := newSenseView(sense)
	return &view, nil
}

func (s *senseService) UpdateSense(ctx context.Context, userID, senseID int64, in UpdateSenseInput) (*SenseView, error) {
	upd := domain.SenseUpdate{
		IsPrimary: in.IsPrimary,
		SortOrder: in.SortOrder,
	}
	if in.Text != nil {
		text, err := validation.NonEmptyText("sense text", *in.Text)
		if err != nil {
			return nil, apperr.Validation(err)
		}
		upd.Text = &text
	}
	if in.Note != nil {
		note, err := validation.Note("sense note", *in.Note)
		if err != nil {
			return nil, apperr.Validation(err)
		}
		upd.Note = &note
	}

	sense, err := s.senses.Update(dbctx.Context{Ctx: ctx}, userID, senseID, upd)
	if err != nil {
		return nil, err
	}

	s.cache.Bump(ctx, userID)
	view := newSenseView(sense)
	return &view, nil
}

// RemoveSense deletes the relational row first, then the sense's graph
// edges. Removing an absent sense is a no-op so retries of a partially
// completed run are safe.
func (s *senseService) RemoveSense(ctx context.Context, userID, senseID int64) error {
	removed, err := s.senses.Remove(dbctx.Context{Ctx: ctx}, userID, senseID)
	if err != nil {
		return err
	}
	if removed == nil {
		return nil
	}

	if err := withRetry(ctx, s.log, "delete all sense links", func() error {
		return s.links.DeleteAllSenseLinks(ctx, removed.SenseID)
	}); err != nil {
		s.log.Warn("graph cleanup incomplete after sense removal, orphans filtered at read time",
			"sense_id", removed.SenseID, "error", err)
	}

	s.cache.Bump(ctx, userID)
	return nil
}
