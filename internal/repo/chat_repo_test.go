package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func mustTurn(t *testing.T, db *gorm.DB, userID uint, session, msg string, isBot bool, at time.Time) *domain.ChatMessage {
	t.Helper()
	turn := &domain.ChatMessage{UserID: userID, ChatSession: session, Message: msg, IsBot: isBot, Timestamp: at}
	if err := CreateTurn(context.Background(), db, turn); err != nil {
		t.Fatalf("CreateTurn(%q): %v", msg, err)
	}
	return turn
}

func TestCreateTurn_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	err := CreateTurn(context.Background(), db, &domain.ChatMessage{UserID: 1, ChatSession: "s", Message: "m"})
	if err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestCreateTurn_SetsTimestampAndID(t *testing.T) {
	db := newRepoDB(t, &domain.ChatMessage{})

	start := time.Now().UTC().Add(-time.Minute)
	turn := &domain.ChatMessage{UserID: 1, ChatSession: "s1", Message: "hello"}
	if err := CreateTurn(context.Background(), db, turn); err != nil {
		t.Fatalf("CreateTurn: %v", err)
	}
	if turn.ID == 0 {
		t.Fatalf("expected generated ID")
	}
	if turn.Timestamp.Before(start) {
		t.Fatalf("expected Timestamp defaulted to now, got %v", turn.Timestamp)
	}
}

func TestSessionHasTurns_And_ListSessionTurns_Order(t *testing.T) {
	db := newRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	ok, err := SessionHasTurns(ctx, db, 1, "s1")
	if err != nil || ok {
		t.Fatalf("empty session: ok=%v err=%v", ok, err)
	}

	mustTurn(t, db, 1, "s1", "second", true, base.Add(2*time.Second))
	mustTurn(t, db, 1, "s1", "first", false, base.Add(time.Second))
	mustTurn(t, db, 2, "s1", "other user", false, base) // must not leak across users

	ok, err = SessionHasTurns(ctx, db, 1, "s1")
	if err != nil || !ok {
		t.Fatalf("populated session: ok=%v err=%v", ok, err)
	}

	turns, err := ListSessionTurns(ctx, db, 1, "s1")
	if err != nil {
		t.Fatalf("ListSessionTurns: %v", err)
	}
	if len(turns) != 2 || turns[0].Message != "first" || turns[1].Message != "second" {
		t.Fatalf("expected chronological order for own turns, got %+v", turns)
	}
}

func TestListSessionTurns_TieBreakByID(t *testing.T) {
	db := newRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Second)

	a := mustTurn(t, db, 1, "s1", "a", false, at)
	b := mustTurn(t, db, 1, "s1", "b", true, at) // same timestamp

	turns, err := ListSessionTurns(ctx, db, 1, "s1")
	if err != nil || len(turns) != 2 {
		t.Fatalf("ListSessionTurns: %v (%d)", err, len(turns))
	}
	if turns[0].ID != a.ID || turns[1].ID != b.ID {
		t.Fatalf("expected insertion order on equal timestamps, got ids %d,%d", turns[0].ID, turns[1].ID)
	}
}

func TestListUserTurns_SpansSessions(t *testing.T) {
	db := newRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	mustTurn(t, db, 1, "s1", "one", false, base)
	mustTurn(t, db, 1, "s2", "two", false, base.Add(time.Second))
	mustTurn(t, db, 9, "s3", "not mine", false, base)

	turns, err := ListUserTurns(ctx, db, 1)
	if err != nil {
		t.Fatalf("ListUserTurns: %v", err)
	}
	if len(turns) != 2 || turns[0].ChatSession != "s1" || turns[1].ChatSession != "s2" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestListTurnsPage_NewestFirst_WithCharacterFilter(t *testing.T) {
	db := newRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	char := uint(7)

	mustTurn(t, db, 1, "s1", "oldest", false, base)
	withChar := &domain.ChatMessage{UserID: 1, ChatSession: "s1", CharacterID: &char, Message: "char turn", Timestamp: base.Add(time.Second)}
	if err := CreateTurn(ctx, db, withChar); err != nil {
		t.Fatalf("CreateTurn: %v", err)
	}
	mustTurn(t, db, 1, "s2", "newest", true, base.Add(2*time.Second))

	all, err := ListTurnsPage(ctx, db, 1, nil, 0, 10)
	if err != nil {
		t.Fatalf("ListTurnsPage: %v", err)
	}
	if len(all) != 3 || all[0].Message != "newest" || all[2].Message != "oldest" {
		t.Fatalf("expected newest-first, got %+v", all)
	}

	only, err := ListTurnsPage(ctx, db, 1, &char, 0, 10)
	if err != nil || len(only) != 1 || only[0].Message != "char turn" {
		t.Fatalf("character filter: err=%v turns=%+v", err, only)
	}

	page, err := ListTurnsPage(ctx, db, 1, nil, 1, 1)
	if err != nil || len(page) != 1 || page[0].Message != "char turn" {
		t.Fatalf("offset/limit page: err=%v turns=%+v", err, page)
	}

	n, err := CountTurns(ctx, db, 1, nil)
	if err != nil || n != 3 {
		t.Fatalf("CountTurns: n=%d err=%v", n, err)
	}
	n, err = CountTurns(ctx, db, 1, &char)
	if err != nil || n != 1 {
		t.Fatalf("CountTurns(char): n=%d err=%v", n, err)
	}
}

func TestGetTurn_OwnershipScoped(t *testing.T) {
	db := newRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()

	turn := mustTurn(t, db, 1, "s1", "mine", false, time.Now().UTC())

	got, err := GetTurn(ctx, db, turn.ID, 1)
	if err != nil || got.Message != "mine" {
		t.Fatalf("GetTurn: %v %+v", err, got)
	}
	if _, err := GetTurn(ctx, db, turn.ID, 2); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for foreign turn, got %v", err)
	}
}

func TestDeleteSessionTurns(t *testing.T) {
	db := newRepoDB(t, &domain.ChatMessage{})
	ctx := context.Background()
	base := time.Now().UTC()

	mustTurn(t, db, 1, "s1", "a", false, base)
	mustTurn(t, db, 1, "s1", "b", true, base.Add(time.Second))
	mustTurn(t, db, 1, "s2", "keep", false, base)
	mustTurn(t, db, 2, "s1", "keep other user", false, base)

	n, err := DeleteSessionTurns(ctx, db, 1, "s1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteSessionTurns: n=%d err=%v", n, err)
	}

	// Other sessions and users untouched
	left, err := ListUserTurns(ctx, db, 1)
	if err != nil || len(left) != 1 || left[0].ChatSession != "s2" {
		t.Fatalf("unexpected remainder: err=%v turns=%+v", err, left)
	}
	other, _ := ListUserTurns(ctx, db, 2)
	if len(other) != 1 {
		t.Fatalf("other user's turns should survive")
	}

	// Deleting again reports zero rows, not an error
	n, err = DeleteSessionTurns(ctx, db, 1, "s1")
	if err != nil || n != 0 {
		t.Fatalf("second delete: n=%d err=%v", n, err)
	}
}
