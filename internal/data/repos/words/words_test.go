package words

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/wordmesh/wordmesh-backend/internal/data/repos/testutil"
	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/pkg/dbctx"
	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
)

func TestWordGetOrCreateIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewWordRepo(db, testutil.Logger(t))

	first, err := repo.GetOrCreate(dbc, "Run", "run")
	if err != nil {
		t.Fatalf("first get-or-create: %v", err)
	}
	second, err := repo.GetOrCreate(dbc, "run", "run")
	if err != nil {
		t.Fatalf("second get-or-create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %d vs %d", first.ID, second.ID)
	}

	var count int64
	if err := tx.Model(&domain.Word{}).Where("canonical_key = ?", "run").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("word rows = %d, want 1", count)
	}
}

func TestUserWordUpsertIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserWordRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, testutil.UniqueEmail("upsert"))
	word := testutil.SeedWord(t, ctx, tx, "run", "run")

	first, created, err := repo.Upsert(dbc, user.ID, word.ID, nil, nil)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Fatal("first upsert did not create")
	}

	note := "training vocabulary"
	second, created, err := repo.Upsert(dbc, user.ID, word.ID, nil, &note)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatal("second upsert reported created")
	}
	if second.ID != first.ID {
		t.Fatalf("ids differ: %d vs %d", second.ID, first.ID)
	}
	if second.Note == nil || *second.Note != note {
		t.Fatalf("note = %v, want %q", second.Note, note)
	}
}

func TestUserSensePrimaryExclusivity(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserSenseRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, testutil.UniqueEmail("primary"))
	word := testutil.SeedWord(t, ctx, tx, "run", "run")
	uw := testutil.SeedUserWord(t, ctx, tx, user.ID, word.ID)

	first, err := repo.Add(dbc, uw.ID, "to move fast", true, 0, nil)
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	second, err := repo.Add(dbc, uw.ID, "to operate", true, 1, nil)
	if err != nil {
		t.Fatalf("add second: %v", err)
	}

	assertPrimary(t, tx, uw.ID, second.ID)

	makePrimary := true
	if _, err := repo.Update(dbc, user.ID, first.ID, domain.SenseUpdate{IsPrimary: &makePrimary}); err != nil {
		t.Fatalf("promote first: %v", err)
	}
	assertPrimary(t, tx, uw.ID, first.ID)
}

func assertPrimary(t *testing.T, tx *gorm.DB, userWordID, wantID int64) {
	t.Helper()
	var primaryIDs []int64
	if err := tx.
		Model(&domain.UserSense{}).
		Where("user_word_id = ? AND is_primary", userWordID).
		Pluck("id", &primaryIDs).Error; err != nil {
		t.Fatalf("load primaries: %v", err)
	}
	if len(primaryIDs) != 1 || primaryIDs[0] != wantID {
		t.Fatalf("primary senses = %v, want exactly [%d]", primaryIDs, wantID)
	}
}

func TestUserSenseDuplicateText(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserSenseRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, testutil.UniqueEmail("dup"))
	word := testutil.SeedWord(t, ctx, tx, "run", "run")
	uw := testutil.SeedUserWord(t, ctx, tx, user.ID, word.ID)

	if _, err := repo.Add(dbc, uw.ID, "to move fast", false, 0, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := repo.Add(dbc, uw.ID, "to move fast", false, 1, nil)
	if !apperr.IsKind(err, apperr.KindSenseDuplicate) {
		t.Fatalf("err = %v, want kind %s", err, apperr.KindSenseDuplicate)
	}
}

func TestUserSenseRemoveIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserSenseRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, testutil.UniqueEmail("remove"))
	word := testutil.SeedWord(t, ctx, tx, "run", "run")
	uw := testutil.SeedUserWord(t, ctx, tx, user.ID, word.ID)
	sense := testutil.SeedUserSense(t, ctx, tx, uw.ID, "to move fast", false)

	removed, err := repo.Remove(dbc, user.ID, sense.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed == nil || removed.SenseID != sense.ID {
		t.Fatalf("removed = %+v, want sense %d", removed, sense.ID)
	}

	again, err := repo.Remove(dbc, user.ID, sense.ID)
	if err != nil {
		t.Fatalf("repeated remove: %v", err)
	}
	if again != nil {
		t.Fatalf("repeated remove = %+v, want nil", again)
	}
}

func TestUserWordRemoveCascadesSenses(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserWordRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, testutil.UniqueEmail("cascade"))
	word := testutil.SeedWord(t, ctx, tx, "memory", "memory")
	uw := testutil.SeedUserWord(t, ctx, tx, user.ID, word.ID)
	s1 := testutil.SeedUserSense(t, ctx, tx, uw.ID, "recall ability", true)
	s2 := testutil.SeedUserSense(t, ctx, tx, uw.ID, "stored experience", false)

	senseIDs, err := repo.Remove(dbc, user.ID, uw.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(senseIDs) != 2 {
		t.Fatalf("removed sense ids = %v, want both of [%d %d]", senseIDs, s1.ID, s2.ID)
	}

	var senseCount int64
	if err := tx.Model(&domain.UserSense{}).Where("user_word_id = ?", uw.ID).Count(&senseCount).Error; err != nil {
		t.Fatalf("count senses: %v", err)
	}
	if senseCount != 0 {
		t.Fatalf("senses left = %d, want 0", senseCount)
	}

	// The global word row survives membership removal.
	var wordCount int64
	if err := tx.Model(&domain.Word{}).Where("id = ?", word.ID).Count(&wordCount).Error; err != nil {
		t.Fatalf("count words: %v", err)
	}
	if wordCount != 1 {
		t.Fatalf("global word rows = %d, want 1", wordCount)
	}
}

func TestSearchScopes(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	wordRepo := NewWordRepo(db, log)
	senseRepo := NewUserSenseRepo(db, log)
	searchRepo := NewSearchRepo(db, log, wordRepo, senseRepo)

	user := testutil.SeedUser(t, ctx, tx, testutil.UniqueEmail("search"))
	memory := testutil.SeedWord(t, ctx, tx, "memory", "memory")
	storage := testutil.SeedWord(t, ctx, tx, "storage", "storage")
	uwMemory := testutil.SeedUserWord(t, ctx, tx, user.ID, memory.ID)
	testutil.SeedUserWord(t, ctx, tx, user.ID, storage.ID)
	testutil.SeedUserSense(t, ctx, tx, uwMemory.ID, "recall ability", true)

	wordHits, err := searchRepo.Search(dbc, domain.SearchParams{
		UserID: user.ID, Query: "stor", Scope: domain.SearchScopeWord, Limit: 10,
	})
	if err != nil {
		t.Fatalf("word scope: %v", err)
	}
	if len(wordHits) != 1 || wordHits[0].Word.CanonicalKey != "storage" {
		t.Fatalf("word scope hits = %d, want storage only", len(wordHits))
	}

	senseHits, err := searchRepo.Search(dbc, domain.SearchParams{
		UserID: user.ID, Query: "recall", Scope: domain.SearchScopeSense, Limit: 10,
	})
	if err != nil {
		t.Fatalf("sense scope: %v", err)
	}
	if len(senseHits) != 1 || senseHits[0].Word.CanonicalKey != "memory" {
		t.Fatalf("sense scope hits = %d, want memory only", len(senseHits))
	}

	bothHits, err := searchRepo.Search(dbc, domain.SearchParams{
		UserID: user.ID, Query: "recall", Scope: domain.SearchScopeBoth, Limit: 10,
	})
	if err != nil {
		t.Fatalf("both scope: %v", err)
	}
	if len(bothHits) != 1 {
		t.Fatalf("both scope hits = %d, want 1", len(bothHits))
	}
	if len(bothHits[0].Senses) != 1 {
		t.Fatalf("aggregate senses = %d, want 1", len(bothHits[0].Senses))
	}
}

func TestSearchPagination(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	wordRepo := NewWordRepo(db, log)
	senseRepo := NewUserSenseRepo(db, log)
	searchRepo := NewSearchRepo(db, log, wordRepo, senseRepo)

	user := testutil.SeedUser(t, ctx, tx, testutil.UniqueEmail("page"))
	for _, key := range []string{"alpha", "beta", "gamma"} {
		w := testutil.SeedWord(t, ctx, tx, key, key)
		testutil.SeedUserWord(t, ctx, tx, user.ID, w.ID)
	}

	page1, err := searchRepo.Search(dbc, domain.SearchParams{
		UserID: user.ID, Scope: domain.SearchScopeBoth, Limit: 2,
	})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	page2, err := searchRepo.Search(dbc, domain.SearchParams{
		UserID: user.ID, Scope: domain.SearchScopeBoth, Limit: 2, Offset: 2,
	})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page1) != 2 || len(page2) != 1 {
		t.Fatalf("page sizes = %d, %d; want 2, 1", len(page1), len(page2))
	}
	// Ordering is stable by canonical key.
	if page1[0].Word.CanonicalKey != "alpha" || page2[0].Word.CanonicalKey != "gamma" {
		t.Fatalf("unexpected ordering: %q ... %q", page1[0].Word.CanonicalKey, page2[0].Word.CanonicalKey)
	}
}
