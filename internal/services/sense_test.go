package services

import (
	"context"
	"testing"

	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
)

func TestAddSensePrimaryExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	word, err := f.network.AddToNetwork(ctx, 1, AddWordInput{Text: "run"})
	if err != nil {
		t.Fatalf("add word: %v", err)
	}

	first, err := f.sense.AddSense(ctx, 1, AddSenseInput{
		UserWordID: word.UserWordID, Text: "to move fast", IsPrimary: true,
	})
	if err != nil {
		t.Fatalf("add first sense: %v", err)
	}
	second, err := f.sense.AddSense(ctx, 1, AddSenseInput{
		UserWordID: word.UserWordID, Text: "to operate", IsPrimary: true,
	})
	if err != nil {
		t.Fatalf("add second sense: %v", err)
	}

	assertSinglePrimary(t, f, word.UserWordID, second.ID)

	// Promoting the first back demotes the second.
	makePrimary := true
	if _, err := f.sense.UpdateSense(ctx, 1, first.ID, UpdateSenseInput{IsPrimary: &makePrimary}); err != nil {
		t.Fatalf("update sense: %v", err)
	}
	assertSinglePrimary(t, f, word.UserWordID, first.ID)
}

func assertSinglePrimary(t *testing.T, f *fixture, userWordID, wantPrimaryID int64) {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var primaries []int64
	for _, s := range f.store.senses {
		if s.UserWordID == userWordID && s.IsPrimary {
			primaries = append(primaries, s.ID)
		}
	}
	if len(primaries) != 1 || primaries[0] != wantPrimaryID {
		t.Fatalf("primary senses = %v, want exactly [%d]", primaries, wantPrimaryID)
	}
}

func TestAddSenseDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	word, err := f.network.AddToNetwork(ctx, 1, AddWordInput{Text: "run"})
	if err != nil {
		t.Fatalf("add word: %v", err)
	}
	if _, err := f.sense.AddSense(ctx, 1, AddSenseInput{UserWordID: word.UserWordID, Text: "to move fast"}); err != nil {
		t.Fatalf("add sense: %v", err)
	}
	_, err = f.sense.AddSense(ctx, 1, AddSenseInput{UserWordID: word.UserWordID, Text: "to move fast"})
	if !apperr.IsKind(err, apperr.KindSenseDuplicate) {
		t.Fatalf("err = %v, want kind %s", err, apperr.KindSenseDuplicate)
	}
}

func TestAddSenseUnknownMembership(t *testing.T) {
	f := newFixture(t)

	_, err := f.sense.AddSense(context.Background(), 1, AddSenseInput{UserWordID: 42, Text: "orphan"})
	if !apperr.IsKind(err, apperr.KindNotInNetwork) {
		t.Fatalf("err = %v, want kind %s", err, apperr.KindNotInNetwork)
	}
}

func TestAddSenseToleratesGraphOutage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	word, err := f.network.AddToNetwork(ctx, 1, AddWordInput{Text: "run"})
	if err != nil {
		t.Fatalf("add word: %v", err)
	}

	// The sense node merge is best effort; the add still succeeds and
	// the node is merged by the first link write.
	f.links.failures["MergeSenseNode"] = retryAttempts
	if _, err := f.sense.AddSense(ctx, 1, AddSenseInput{UserWordID: word.UserWordID, Text: "to move fast"}); err != nil {
		t.Fatalf("add sense during graph outage: %v", err)
	}
}

func TestRemoveSenseIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	memory, err := f.network.AddToNetwork(ctx, 1, AddWordInput{Text: "memory"})
	if err != nil {
		t.Fatalf("add memory: %v", err)
	}
	storage, err := f.network.AddToNetwork(ctx, 1, AddWordInput{Text: "storage"})
	if err != nil {
		t.Fatalf("add storage: %v", err)
	}
	cache, err := f.network.AddToNetwork(ctx, 1, AddWordInput{Text: "cache"})
	if err != nil {
		t.Fatalf("add cache: %v", err)
	}

	sense, err := f.sense.AddSense(ctx, 1, AddSenseInput{UserWordID: memory.UserWordID, Text: "recall ability"})
	if err != nil {
		t.Fatalf("add sense: %v", err)
	}
	for _, target := range []int64{storage.Word.ID, cache.Word.ID} {
		if _, err := f.link.CreateSenseWordLink(ctx, 1, CreateSenseLinkInput{
			SenseID: sense.ID, TargetWordID: target, Kind: "related",
		}); err != nil {
			t.Fatalf("create sense link: %v", err)
		}
	}
	if n := len(f.links.senseEdges); n != 2 {
		t.Fatalf("sense edge count = %d, want 2", n)
	}

	if err := f.sense.RemoveSense(ctx, 1, sense.ID); err != nil {
		t.Fatalf("remove sense: %v", err)
	}
	if n := len(f.links.senseEdges); n != 0 {
		t.Fatalf("sense edge count after removal = %d, want 0", n)
	}

	// Repeated deletion is a no-op.
	if err := f.sense.RemoveSense(ctx, 1, sense.ID); err != nil {
		t.Fatalf("repeated remove: %v", err)
	}
}
