package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
	"github.com/wordmesh/wordmesh-backend/internal/platform/neo4jdb"
)

// WordLinkFilter selects a word's adjacency for one user, optionally
// narrowed to a single kind.
type WordLinkFilter struct {
	UserID int64
	WordID int64
	Kind   *domain.WordLinkKind
	Limit  int
	Offset int
}

type SenseLinkFilter struct {
	UserID  int64
	SenseID int64
	Kind    *domain.SenseLinkKind
	Limit   int
	Offset  int
}

// LinkStore owns the relationship store. Every write is an idempotent
// Cypher MERGE keyed by the edge's natural identity (endpoints, kind,
// user); deletes are pattern matches that succeed when nothing matches.
// Entity ids are referenced by value only; the coordinator, not the
// database, keeps the two stores consistent.
type LinkStore interface {
	MergeWordNode(ctx context.Context, wordID int64) error
	MergeSenseNode(ctx context.Context, senseID, userID, sourceWordID int64) error

	UpsertWordLink(ctx context.Context, userID, wordAID, wordBID int64, kind domain.WordLinkKind, note *string) (*domain.WordLink, error)
	DeleteWordLink(ctx context.Context, userID, wordAID, wordBID int64, kind domain.WordLinkKind) error
	DeleteWordLinksForWord(ctx context.Context, userID, wordID int64) error
	ListWordLinks(ctx context.Context, filter WordLinkFilter) ([]*domain.WordLink, error)
	CountWordLinks(ctx context.Context, userID, wordID int64) (int64, error)

	UpsertSenseLink(ctx context.Context, userID, senseID, sourceWordID, targetWordID int64, kind domain.SenseLinkKind, note *string) (*domain.SenseWordLink, error)
	DeleteSenseLink(ctx context.Context, userID, senseID, targetWordID int64, kind domain.SenseLinkKind) error
	ListSenseLinks(ctx context.Context, filter SenseLinkFilter) ([]*domain.SenseWordLink, error)
	CountSenseLinks(ctx context.Context, userID, senseID int64) (int64, error)

	DeleteAllSenseLinks(ctx context.Context, senseID int64) error
}

type neo4jLinkStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewLinkStore(client *neo4jdb.Client, baseLog *logger.Logger) LinkStore {
	return &neo4jLinkStore{
		client: client,
		log:    baseLog.With("store", "LinkStore"),
	}
}

func (s *neo4jLinkStore) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
}

func (s *neo4jLinkStore) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.client.Database,
	})
}

func (s *neo4jLinkStore) MergeWordNode(ctx context.Context, wordID int64) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MERGE (:Word {word_id: $word_id})`,
			map[string]any{"word_id": wordID})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return s.mapDriverError("merge word node", err)
}

// MergeSenseNode keeps the sense's source word id on the node so sense
// link reads can report it without a relational round trip.
func (s *neo4jLinkStore) MergeSenseNode(ctx context.Context, senseID, userID, sourceWordID int64) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (s:UserSense {sense_id: $sense_id, user_id: $user_id})
SET s.word_id = $word_id
`, map[string]any{
			"sense_id": senseID,
			"user_id":  userID,
			"word_id":  sourceWordID,
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return s.mapDriverError("merge sense node", err)
}

// UpsertWordLink reorders endpoints to (min, max) before the MERGE so
// (a,b,kind) and (b,a,kind) collapse to the same stored edge. note
// overwrites only with the latest non-null value.
func (s *neo4jLinkStore) UpsertWordLink(ctx context.Context, userID, wordAID, wordBID int64, kind domain.WordLinkKind, note *string) (*domain.WordLink, error) {
	minID, maxID, err := orderWordIDs(wordAID, wordBID)
	if err != nil {
		return nil, err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	record, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (a:Word {word_id: $min_id})
MERGE (b:Word {word_id: $max_id})
MERGE (a)-[r:WORD_TO_WORD {user_id: $user_id, kind: $kind}]->(b)
ON CREATE SET r.created_at = $now
SET r.note = coalesce($note, r.note)
RETURN a.word_id AS word_a_id,
       b.word_id AS word_b_id,
       r.kind AS kind,
       r.user_id AS user_id,
       r.note AS note,
       r.created_at AS created_at
`, map[string]any{
			"min_id":  minID,
			"max_id":  maxID,
			"user_id": userID,
			"kind":    string(kind),
			"note":    noteParam(note),
			"now":     time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, s.mapDriverError("upsert word link", err)
	}

	return parseWordLink(record.(*neo4j.Record))
}

func (s *neo4jLinkStore) DeleteWordLink(ctx context.Context, userID, wordAID, wordBID int64, kind domain.WordLinkKind) error {
	minID, maxID, err := orderWordIDs(wordAID, wordBID)
	if err != nil {
		return err
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:Word {word_id: $min_id})-[r:WORD_TO_WORD {user_id: $user_id, kind: $kind}]->(:Word {word_id: $max_id})
DELETE r
`, map[string]any{
			"min_id":  minID,
			"max_id":  maxID,
			"user_id": userID,
			"kind":    string(kind),
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return s.mapDriverError("delete word link", err)
}

// DeleteWordLinksForWord removes every edge of one user touching the
// word, in either direction. Used only by cascade cleanup.
func (s *neo4jLinkStore) DeleteWordLinksForWord(ctx context.Context, userID, wordID int64) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:Word {word_id: $word_id})-[r:WORD_TO_WORD {user_id: $user_id}]-()
DELETE r
`, map[string]any{
			"word_id": wordID,
			"user_id": userID,
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return s.mapDriverError("delete word links for word", err)
}

// ListWordLinks matches both directions of the canonical edge so a word
// stored as the max endpoint still sees its links.
func (s *neo4jLinkStore) ListWordLinks(ctx context.Context, filter WordLinkFilter) ([]*domain.WordLink, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (a:Word {word_id: $word_id})-[r:WORD_TO_WORD {user_id: $user_id}]-(:Word)
WHERE r.kind IN $kinds
RETURN startNode(r).word_id AS word_a_id,
       endNode(r).word_id AS word_b_id,
       r.kind AS kind,
       r.user_id AS user_id,
       r.note AS note,
       r.created_at AS created_at
ORDER BY r.created_at DESC
SKIP $offset LIMIT $limit
`, map[string]any{
			"word_id": filter.WordID,
			"user_id": filter.UserID,
			"kinds":   wordKindsParam(filter.Kind),
			"offset":  filter.Offset,
			"limit":   filter.Limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, s.mapDriverError("list word links", err)
	}

	recs := records.([]*neo4j.Record)
	links := make([]*domain.WordLink, 0, len(recs))
	for _, rec := range recs {
		link, err := parseWordLink(rec)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

func (s *neo4jLinkStore) CountWordLinks(ctx context.Context, userID, wordID int64) (int64, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	n, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:Word {word_id: $word_id})-[r:WORD_TO_WORD {user_id: $user_id}]-()
RETURN count(r) AS n
`, map[string]any{"word_id": wordID, "user_id": userID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return rec.Values[0], nil
	})
	if err != nil {
		return 0, s.mapDriverError("count word links", err)
	}
	return n.(int64), nil
}

func (s *neo4jLinkStore) UpsertSenseLink(ctx context.Context, userID, senseID, sourceWordID, targetWordID int64, kind domain.SenseLinkKind, note *string) (*domain.SenseWordLink, error) {
	if sourceWordID == targetWordID {
		return nil, apperr.Newf(http.StatusBadRequest, apperr.KindLinkSelfForbidden,
			"sense %d cannot link to its own word %d", senseID, targetWordID)
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	record, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (s:UserSense {sense_id: $sense_id, user_id: $user_id})
SET s.word_id = $source_word_id
MERGE (t:Word {word_id: $target_word_id})
MERGE (s)-[r:SENSE_TO_WORD {user_id: $user_id, kind: $kind}]->(t)
ON CREATE SET r.created_at = $now
SET r.note = coalesce($note, r.note)
RETURN s.sense_id AS sense_id,
       s.word_id AS source_word_id,
       t.word_id AS target_word_id,
       r.kind AS kind,
       r.user_id AS user_id,
       r.note AS note,
       r.created_at AS created_at
`, map[string]any{
			"sense_id":       senseID,
			"user_id":        userID,
			"source_word_id": sourceWordID,
			"target_word_id": targetWordID,
			"kind":           string(kind),
			"note":           noteParam(note),
			"now":            time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, s.mapDriverError("upsert sense link", err)
	}

	return parseSenseLink(record.(*neo4j.Record))
}

func (s *neo4jLinkStore) DeleteSenseLink(ctx context.Context, userID, senseID, targetWordID int64, kind domain.SenseLinkKind) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:UserSense {sense_id: $sense_id, user_id: $user_id})-[r:SENSE_TO_WORD {kind: $kind}]->(:Word {word_id: $target_word_id})
DELETE r
`, map[string]any{
			"sense_id":       senseID,
			"user_id":        userID,
			"target_word_id": targetWordID,
			"kind":           string(kind),
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return s.mapDriverError("delete sense link", err)
}

func (s *neo4jLinkStore) ListSenseLinks(ctx context.Context, filter SenseLinkFilter) ([]*domain.SenseWordLink, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (s:UserSense {sense_id: $sense_id, user_id: $user_id})-[r:SENSE_TO_WORD]->(t:Word)
WHERE r.kind IN $kinds
RETURN s.sense_id AS sense_id,
       s.word_id AS source_word_id,
       t.word_id AS target_word_id,
       r.kind AS kind,
       r.user_id AS user_id,
       r.note AS note,
       r.created_at AS created_at
ORDER BY r.created_at DESC
SKIP $offset LIMIT $limit
`, map[string]any{
			"sense_id": filter.SenseID,
			"user_id":  filter.UserID,
			"kinds":    senseKindsParam(filter.Kind),
			"offset":   filter.Offset,
			"limit":    filter.Limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, s.mapDriverError("list sense links", err)
	}

	recs := records.([]*neo4j.Record)
	links := make([]*domain.SenseWordLink, 0, len(recs))
	for _, rec := range recs {
		link, err := parseSenseLink(rec)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

func (s *neo4jLinkStore) CountSenseLinks(ctx context.Context, userID, senseID int64) (int64, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	n, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:UserSense {sense_id: $sense_id, user_id: $user_id})-[r:SENSE_TO_WORD]->()
RETURN count(r) AS n
`, map[string]any{"sense_id": senseID, "user_id": userID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		return rec.Values[0], nil
	})
	if err != nil {
		return 0, s.mapDriverError("count sense links", err)
	}
	return n.(int64), nil
}

// DeleteAllSenseLinks bulk-removes every edge whose source is the sense,
// then the orphaned sense node. Used only by cascade cleanup; repeated
// calls are no-ops.
func (s *neo4jLinkStore) DeleteAllSenseLinks(ctx context.Context, senseID int64) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (s:UserSense {sense_id: $sense_id})
OPTIONAL MATCH (s)-[r:SENSE_TO_WORD]->()
DELETE r
WITH DISTINCT s
DELETE s
`, map[string]any{"sense_id": senseID})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return s.mapDriverError("delete all sense links", err)
}

// mapDriverError classifies driver failures as transient and retryable;
// validation and invariant errors never reach this path.
func (s *neo4jLinkStore) mapDriverError(op string, err error) error {
	if err == nil {
		return nil
	}
	s.log.Warn("graph store operation failed", "op", op, "error", err)
	return apperr.Unavailable(fmt.Errorf("%s: %w", op, err))
}

func orderWordIDs(wordAID, wordBID int64) (int64, int64, error) {
	if wordAID == wordBID {
		return 0, 0, apperr.Newf(http.StatusBadRequest, apperr.KindLinkSelfForbidden,
			"word %d cannot link to itself", wordAID)
	}
	if wordAID < wordBID {
		return wordAID, wordBID, nil
	}
	return wordBID, wordAID, nil
}

func noteParam(note *string) any {
	if note == nil {
		return nil
	}
	return *note
}

func wordKindsParam(kind *domain.WordLinkKind) []string {
	if kind != nil {
		return []string{string(*kind)}
	}
	kinds := domain.WordLinkKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func senseKindsParam(kind *domain.SenseLinkKind) []string {
	if kind != nil {
		return []string{string(*kind)}
	}
	kinds := domain.SenseLinkKinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func parseWordLink(rec *neo4j.Record) (*domain.WordLink, error) {
	link := &domain.WordLink{}
	var err error
	if link.WordAID, err = int64Field(rec, "word_a_id"); err != nil {
		return nil, err
	}
	if link.WordBID, err = int64Field(rec, "word_b_id"); err != nil {
		return nil, err
	}
	if link.UserID, err = int64Field(rec, "user_id"); err != nil {
		return nil, err
	}
	kind, err := stringField(rec, "kind")
	if err != nil {
		return nil, err
	}
	link.Kind = domain.WordLinkKind(kind)
	if !link.Kind.Valid() {
		return nil, apperr.Newf(http.StatusInternalServerError, apperr.KindLinkTypeInvalid,
			"stored word link kind %q is invalid", kind)
	}
	link.Note = optionalStringField(rec, "note")
	if link.CreatedAt, err = timeField(rec, "created_at"); err != nil {
		return nil, err
	}
	return link, nil
}

func parseSenseLink(rec *neo4j.Record) (*domain.SenseWordLink, error) {
	link := &domain.SenseWordLink{}
	var err error
	if link.SenseID, err = int64Field(rec, "sense_id"); err != nil {
		return nil, err
	}
	if link.SourceWordID, err = int64Field(rec, "source_word_id"); err != nil {
		return nil, err
	}
	if link.TargetWordID, err = int64Field(rec, "target_word_id"); err != nil {
		return nil, err
	}
	if link.UserID, err = int64Field(rec, "user_id"); err != nil {
		return nil, err
	}
	kind, err := stringField(rec, "kind")
	if err != nil {
		return nil, err
	}
	link.Kind = domain.SenseLinkKind(kind)
	if !link.Kind.Valid() {
		return nil, apperr.Newf(http.StatusInternalServerError, apperr.KindLinkTypeInvalid,
			"stored sense link kind %q is invalid", kind)
	}
	link.Note = optionalStringField(rec, "note")
	if link.CreatedAt, err = timeField(rec, "created_at"); err != nil {
		return nil, err
	}
	return link, nil
}

func int64Field(rec *neo4j.Record, key string) (int64, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0, fmt.Errorf("graph record missing %s", key)
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("graph record field %s is %T, want int64", key, v)
	}
	return n, nil
}

func stringField(rec *neo4j.Record, key string) (string, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", fmt.Errorf("graph record missing %s", key)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("graph record field %s is %T, want string", key, v)
	}
	return str, nil
}

func optionalStringField(rec *neo4j.Record, key string) *string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	if str, ok := v.(string); ok {
		return &str
	}
	return nil
}

func timeField(rec *neo4j.Record, key string) (time.Time, error) {
	raw, err := stringField(rec, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("graph record field %s: %w", key, err)
	}
	return ts, nil
}
