package repo

import (
	"context"
	"testing"
	"time"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

func TestSessionsStats_EmptyAndPopulated(t *testing.T) {
	db := newRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()

	count, maxAt, err := SessionsStats(ctx, db, 1)
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("empty: count=%d maxAt=%v err=%v", count, maxAt, err)
	}

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	latest := base.Add(10 * time.Minute)
	mustTurn(t, db, 1, "s1", "a", false, base)
	mustTurn(t, db, 1, "s2", "b", true, latest)
	mustTurn(t, db, 2, "s1", "other", false, latest.Add(time.Hour)) // other user

	count, maxAt, err = SessionsStats(ctx, db, 1)
	if err != nil {
		t.Fatalf("SessionsStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if maxAt == nil || !maxAt.Equal(latest) {
		t.Fatalf("maxAt = %v, want %v", maxAt, latest)
	}
}

func TestSessionsStats_ErrorWithoutTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if _, _, err := SessionsStats(context.Background(), db, 1); err == nil {
		t.Fatalf("expected error without table")
	}
}

func TestCharactersStats(t *testing.T) {
	db := newRepoDB(t, &domain.Character{})
	ctx := context.Background()

	count, maxAt, err := CharactersStats(ctx, db)
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("empty: count=%d maxAt=%v err=%v", count, maxAt, err)
	}

	if err := CreateCharacter(ctx, db, newCharacter("Neo", "The Matrix")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := CreateCharacter(ctx, db, newCharacter("Morpheus", "The Matrix")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, maxAt, err = CharactersStats(ctx, db)
	if err != nil || count != 2 || maxAt == nil {
		t.Fatalf("populated: count=%d maxAt=%v err=%v", count, maxAt, err)
	}
}
