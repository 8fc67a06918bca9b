package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newIdemDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIdempotency_Migration_Indexes_AndInsert(t *testing.T) {
	db := newIdemDB(t)

	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&Idempotency{}) {
		t.Fatalf("expected table %q to exist", Idempotency{}.TableName())
	}
	if !m.HasIndex(&Idempotency{}, "ux_user_session_key") {
		t.Fatalf("expected composite index ux_user_session_key to exist")
	}

	now := time.Now().UTC()
	rec := &Idempotency{
		ID:        "id-1",
		UserID:    7,
		SessionID: "s1",
		Key:       "k1",
		MessageID: 42,
		Status:    200,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.UserID != 7 || got.SessionID != "s1" || got.Key != "k1" || got.MessageID != 42 || got.Status != 200 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.ExpiresAt.Before(now) {
		t.Fatalf("ExpiresAt should be after CreatedAt: %v vs %v", got.ExpiresAt, now)
	}

	// (user_id, session_id, key) must be unique
	err := db.Create(&Idempotency{
		ID: "id-2", UserID: 7, SessionID: "s1", Key: "k1",
		MessageID: 43, Status: 200, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}).Error
	if err == nil {
		t.Fatalf("expected UNIQUE constraint violation on (user_id, session_id, key)")
	}

	// Same key under a different session is allowed
	if err := db.Create(&Idempotency{
		ID: "id-3", UserID: 7, SessionID: "s2", Key: "k1",
		MessageID: 44, Status: 200, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}).Error; err != nil {
		t.Fatalf("same key in another session should insert: %v", err)
	}
}
