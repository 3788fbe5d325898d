package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/wordmesh/wordmesh-backend/internal/data/graph"
	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
)

// memStore is a single in-memory entity store shared by the stub repos,
// mirroring the relational constraints the real store enforces.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	words     map[int64]*domain.Word
	byKey     map[string]int64
	userWords map[int64]*domain.UserWord
	senses    map[int64]*domain.UserSense
}

func newMemStore() *memStore {
	return &memStore{
		words:     map[int64]*domain.Word{},
		byKey:     map[string]int64{},
		userWords: map[int64]*domain.UserWord{},
		senses:    map[int64]*domain.UserSense{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

type stubWordRepo struct{ st *memStore }

func (r *stubWordRepo) GetOrCreate(_ dbctx.Context, text, canonicalKey string) (*domain.Word, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if id, ok := r.st.byKey[canonicalKey]; ok {
		return r.st.words[id], nil
	}
	w := &domain.Word{ID: r.st.id(), Text: text, CanonicalKey: canonicalKey, CreatedAt: time.Now()}
	r.st.words[w.ID] = w
	r.st.byKey[canonicalKey] = w.ID
	return w, nil
}

func (r *stubWordRepo) GetByIDs(_ dbctx.Context, ids []int64) ([]*domain.Word, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*domain.Word
	for _, id := range ids {
		if w, ok := r.st.words[id]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *stubWordRepo) GetByCanonicalKey(_ dbctx.Context, canonicalKey string) (*domain.Word, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if id, ok := r.st.byKey[canonicalKey]; ok {
		return r.st.words[id], nil
	}
	return nil, nil
}

type stubUserWordRepo struct{ st *memStore }

func (r *stubUserWordRepo) Upsert(_ dbctx.Context, userID, wordID int64, tags datatypes.JSON, note *string) (*domain.UserWord, bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, uw := range r.st.userWords {
		if uw.UserID == userID && uw.WordID == wordID {
			if tags != nil {
				uw.Tags = tags
			}
			if note != nil {
				uw.Note = note
			}
			return uw, false, nil
		}
	}
	now := time.Now()
	uw := &domain.UserWord{
		ID: r.st.id(), UserID: userID, WordID: wordID,
		Tags: tags, Note: note, CreatedAt: now, UpdatedAt: now,
	}
	r.st.userWords[uw.ID] = uw
	return uw, true, nil
}

func (r *stubUserWordRepo) GetByID(_ dbctx.Context, userID, userWordID int64) (*domain.UserWord, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	uw, ok := r.st.userWords[userWordID]
	if !ok || uw.UserID != userID {
		return nil, nil
	}
	return uw, nil
}

func (r *stubUserWordRepo) GetByUserAndWord(_ dbctx.Context, userID, wordID int64) (*domain.UserWord, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, uw := range r.st.userWords {
		if uw.UserID == userID && uw.WordID == wordID {
			return uw, nil
		}
	}
	return nil, nil
}

func (r *stubUserWordRepo) Remove(_ dbctx.Context, userID, userWordID int64) ([]int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	uw, ok := r.st.userWords[userWordID]
	if !ok || uw.UserID != userID {
		return nil, nil
	}
	var senseIDs []int64
	for id, s := range r.st.senses {
		if s.UserWordID == userWordID {
			senseIDs = append(senseIDs, id)
			delete(r.st.senses, id)
		}
	}
	delete(r.st.userWords, userWordID)
	return senseIDs, nil
}

type stubUserSenseRepo struct{ st *memStore }

func (r *stubUserSenseRepo) Add(_ dbctx.Context, userWordID int64, text string, isPrimary bool, sortOrder int, note *string) (*domain.UserSense, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, s := range r.st.senses {
		if s.UserWordID == userWordID && s.Text == text {
			return nil, apperr.Newf(http.StatusConflict, apperr.KindSenseDuplicate,
				"sense %q already exists", text)
		}
	}
	if isPrimary {
		for _, s := range r.st.senses {
			if s.UserWordID == userWordID {
				s.IsPrimary = false
			}
		}
	}
	sense := &domain.UserSense{
		ID: r.st.id(), UserWordID: userWordID, Text: text,
		IsPrimary: isPrimary, SortOrder: sortOrder, Note: note, CreatedAt: time.Now(),
	}
	r.st.senses[sense.ID] = sense
	return sense, nil
}

func (r *stubUserSenseRepo) Update(_ dbctx.Context, userID, senseID int64, upd domain.SenseUpdate) (*domain.UserSense, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	sense := r.ownedLocked(userID, senseID)
	if sense == nil {
		return nil, apperr.Newf(http.StatusNotFound, apperr.KindNotInNetwork, "sense %d not found", senseID)
	}
	if upd.Text != nil {
		for _, s := range r.st.senses {
			if s.ID != senseID && s.UserWordID == sense.UserWordID && s.Text == *upd.Text {
				return nil, apperr.Newf(http.StatusConflict, apperr.KindSenseDuplicate,
					"sense %q already exists", *upd.Text)
			}
		}
		sense.Text = *upd.Text
	}
	if upd.IsPrimary != nil {
		if *upd.IsPrimary {
			for _, s := range r.st.senses {
				if s.UserWordID == sense.UserWordID && s.ID != senseID {
					s.IsPrimary = false
				}
			}
		}
		sense.IsPrimary = *upd.IsPrimary
	}
	if upd.SortOrder != nil {
		sense.SortOrder = *upd.SortOrder
	}
	if upd.Note != nil {
		sense.Note = *upd.Note
	}
	return sense, nil
}

func (r *stubUserSenseRepo) Remove(_ dbctx.Context, userID, senseID int64) (*domain.RemovedSense, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	sense := r.ownedLocked(userID, senseID)
	if sense == nil {
		return nil, nil
	}
	delete(r.st.senses, senseID)
	return &domain.RemovedSense{SenseID: sense.ID, UserWordID: sense.UserWordID}, nil
}

func (r *stubUserSenseRepo) GetByID(_ dbctx.Context, userID, senseID int64) (*domain.UserSense, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.ownedLocked(userID, senseID), nil
}

func (r *stubUserSenseRepo) ListByUserWordIDs(_ dbctx.Context, userWordIDs []int64) ([]*domain.UserSense, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*domain.UserSense
	for _, id := range userWordIDs {
		for _, s := range r.st.senses {
			if s.UserWordID == id {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubUserSenseRepo) ownedLocked(userID, senseID int64) *domain.UserSense {
	sense, ok := r.st.senses[senseID]
	if !ok {
		return nil
	}
	uw, ok := r.st.userWords[sense.UserWordID]
	if !ok || uw.UserID != userID {
		return nil
	}
	return sense
}

type stubSearchRepo struct {
	st     *memStore
	words  *stubWordRepo
	senses *stubUserSenseRepo
}

func (r *stubSearchRepo) Search(dbc dbctx.Context, params domain.SearchParams) ([]*domain.UserWordAggregate, error) {
	r.st.mu.Lock()
	var memberships []*domain.UserWord
	for _, uw := range r.st.userWords {
		if uw.UserID == params.UserID {
			memberships = append(memberships, uw)
		}
	}
	r.st.mu.Unlock()
	sort.Slice(memberships, func(i, j int) bool { return memberships[i].ID < memberships[j].ID })

	var aggs []*domain.UserWordAggregate
	for _, uw := range memberships {
		agg, err := r.aggregate(dbc, uw)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
	}
	return aggs, nil
}

func (r *stubSearchRepo) GetAggregate(dbc dbctx.Context, userID, userWordID int64) (*domain.UserWordAggregate, error) {
	r.st.mu.Lock()
	uw, ok := r.st.userWords[userWordID]
	r.st.mu.Unlock()
	if !ok || uw.UserID != userID {
		return nil, nil
	}
	return r.aggregate(dbc, uw)
}

func (r *stubSearchRepo) aggregate(dbc dbctx.Context, uw *domain.UserWord) (*domain.UserWordAggregate, error) {
	ws, err := r.words.GetByIDs(dbc, []int64{uw.WordID})
	if err != nil || len(ws) == 0 {
		return nil, fmt.Errorf("word %d missing", uw.WordID)
	}
	senses, err := r.senses.ListByUserWordIDs(dbc, []int64{uw.ID})
	if err != nil {
		return nil, err
	}
	return &domain.UserWordAggregate{Word: ws[0], UserWord: uw, Senses: senses}, nil
}

type memWordEdge struct {
	a, b, user int64
	kind       domain.WordLinkKind
	note       *string
	created    time.Time
}

type memSenseEdge struct {
	sense, source, target, user int64
	kind                        domain.SenseLinkKind
	note                        *string
	created                     time.Time
}

// stubLinkStore is an in-memory graph with the same merge semantics as
// the real store. failures injects N transient errors per operation name.
type stubLinkStore struct {
	mu         sync.Mutex
	wordEdges  []*memWordEdge
	senseEdges []*memSenseEdge
	wordNodes  map[int64]bool
	failures   map[string]int
}

func newStubLinkStore() *stubLinkStore {
	return &stubLinkStore{
		wordNodes: map[int64]bool{},
		failures:  map[string]int{},
	}
}

func (s *stubLinkStore) fail(op string) error {
	if s.failures[op] > 0 {
		s.failures[op]--
		return apperr.Unavailable(fmt.Errorf("injected %s failure", op))
	}
	return nil
}

func (s *stubLinkStore) MergeWordNode(_ context.Context, wordID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("MergeWordNode"); err != nil {
		return err
	}
	s.wordNodes[wordID] = true
	return nil
}

func (s *stubLinkStore) MergeSenseNode(_ context.Context, senseID, userID, sourceWordID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail("MergeSenseNode")
}

func (s *stubLinkStore) UpsertWordLink(_ context.Context, userID, wordAID, wordBID int64, kind domain.WordLinkKind, note *string) (*domain.WordLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertWordLink"); err != nil {
		return nil, err
	}
	if wordAID == wordBID {
		return nil, apperr.Newf(http.StatusBadRequest, apperr.KindLinkSelfForbidden,
			"word %d cannot link to itself", wordAID)
	}
	minID, maxID := wordAID, wordBID
	if minID > maxID {
		minID, maxID = maxID, minID
	}
	for _, e := range s.wordEdges {
		if e.a == minID && e.b == maxID && e.user == userID && e.kind == kind {
			if note != nil {
				e.note = note
			}
			return wordEdgeToLink(e), nil
		}
	}
	e := &memWordEdge{a: minID, b: maxID, user: userID, kind: kind, note: note, created: time.Now()}
	s.wordEdges = append(s.wordEdges, e)
	return wordEdgeToLink(e), nil
}

func (s *stubLinkStore) DeleteWordLink(_ context.Context, userID, wordAID, wordBID int64, kind domain.WordLinkKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteWordLink"); err != nil {
		return err
	}
	minID, maxID := wordAID, wordBID
	if minID > maxID {
		minID, maxID = maxID, minID
	}
	kept := s.wordEdges[:0]
	for _, e := range s.wordEdges {
		if e.a == minID && e.b == maxID && e.user == userID && e.kind == kind {
			continue
		}
		kept = append(kept, e)
	}
	s.wordEdges = kept
	return nil
}

func (s *stubLinkStore) DeleteWordLinksForWord(_ context.Context, userID, wordID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteWordLinksForWord"); err != nil {
		return err
	}
	kept := s.wordEdges[:0]
	for _, e := range s.wordEdges {
		if e.user == userID && (e.a == wordID || e.b == wordID) {
			continue
		}
		kept = append(kept, e)
	}
	s.wordEdges = kept
	return nil
}

func (s *stubLinkStore) ListWordLinks(_ context.Context, filter graph.WordLinkFilter) ([]*domain.WordLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.WordLink
	for _, e := range s.wordEdges {
		if e.user != filter.UserID || (e.a != filter.WordID && e.b != filter.WordID) {
			continue
		}
		if filter.Kind != nil && e.kind != *filter.Kind {
			continue
		}
		out = append(out, wordEdgeToLink(e))
	}
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *stubLinkStore) CountWordLinks(_ context.Context, userID, wordID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.wordEdges {
		if e.user == userID && (e.a == wordID || e.b == wordID) {
			n++
		}
	}
	return n, nil
}

func (s *stubLinkStore) UpsertSenseLink(_ context.Context, userID, senseID, sourceWordID, targetWordID int64, kind domain.SenseLinkKind, note *string) (*domain.SenseWordLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertSenseLink"); err != nil {
		return nil, err
	}
	if sourceWordID == targetWordID {
		return nil, apperr.Newf(http.StatusBadRequest, apperr.KindLinkSelfForbidden,
			"sense %d cannot link to its own word %d", senseID, targetWordID)
	}
	for _, e := range s.senseEdges {
		if e.sense == senseID && e.target == targetWordID && e.user == userID && e.kind == kind {
			if note != nil {
				e.note = note
			}
			return senseEdgeToLink(e), nil
		}
	}
	e := &memSenseEdge{
		sense: senseID, source: sourceWordID, target: targetWordID,
		user: userID, kind: kind, note: note, created: time.Now(),
	}
	s.senseEdges = append(s.senseEdges, e)
	return senseEdgeToLink(e), nil
}

func (s *stubLinkStore) DeleteSenseLink(_ context.Context, userID, senseID, targetWordID int64, kind domain.SenseLinkKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.senseEdges[:0]
	for _, e := range s.senseEdges {
		if e.sense == senseID && e.target == targetWordID && e.user == userID && e.kind == kind {
			continue
		}
		kept = append(kept, e)
	}
	s.senseEdges = kept
	return nil
}

func (s *stubLinkStore) ListSenseLinks(_ context.Context, filter graph.SenseLinkFilter) ([]*domain.SenseWordLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.SenseWordLink
	for _, e := range s.senseEdges {
		if e.sense != filter.SenseID || e.user != filter.UserID {
			continue
		}
		if filter.Kind != nil && e.kind != *filter.Kind {
			continue
		}
		out = append(out, senseEdgeToLink(e))
	}
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *stubLinkStore) CountSenseLinks(_ context.Context, userID, senseID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.senseEdges {
		if e.user == userID && e.sense == senseID {
			n++
		}
	}
	return n, nil
}

func (s *stubLinkStore) DeleteAllSenseLinks(_ context.Context, senseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteAllSenseLinks"); err != nil {
		return err
	}
	kept := s.senseEdges[:0]
	for _, e := range s.senseEdges {
		if e.sense == senseID {
			continue
		}
		kept = append(kept, e)
	}
	s.senseEdges = kept
	return nil
}

func wordEdgeToLink(e *memWordEdge) *domain.WordLink {
	return &domain.WordLink{
		WordAID: e.a, WordBID: e.b, Kind: e.kind,
		UserID: e.user, Note: e.note, CreatedAt: e.created,
	}
}

func senseEdgeToLink(e *memSenseEdge) *domain.SenseWordLink {
	return &domain.SenseWordLink{
		SenseID: e.sense, SourceWordID: e.source, TargetWordID: e.target,
		Kind: e.kind, UserID: e.user, Note: e.note, CreatedAt: e.created,
	}
}

func paginate[T any](in []*T, offset, limit int) []*T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
