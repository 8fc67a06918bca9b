package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/persona-chat/go-persona-backend/internal/domain"
	"github.com/persona-chat/go-persona-backend/internal/llm"
	"github.com/persona-chat/go-persona-backend/internal/oauth"
	"github.com/persona-chat/go-persona-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:        email,
		Username:     email,
		AuthProvider: domain.ProviderEmail,
		IsActive:     true,
	}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user %q: %v", email, err)
	}
	return u
}

func seedCharacter(t *testing.T, db *gorm.DB, name, movie string) *domain.Character {
	t.Helper()
	c := &domain.Character{
		Name:      name,
		Movie:     movie,
		ChatStyle: "witty and sarcastic",
		Source:    domain.SourceLocal,
	}
	if err := repo.CreateCharacter(context.Background(), db, c); err != nil {
		t.Fatalf("seed character %q: %v", name, err)
	}
	return c
}

// fakeLLM scripts replies and records the messages it was called with.
type fakeLLM struct {
	reply  string
	chunks []string
	err    error

	calls [][]llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) StreamChat(ctx context.Context, messages []llm.Message) (<-chan string, <-chan error) {
	f.calls = append(f.calls, messages)
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, c := range f.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
		if f.err != nil {
			errs <- f.err
		}
	}()
	return out, errs
}

// fakeGoogle scripts the OAuth exchange and profile fetch.
type fakeGoogle struct {
	configured  bool
	authURL     string
	accessToken string
	profile     *oauth.Profile
	exchangeErr error
	profileErr  error
}

func (f *fakeGoogle) Configured() bool { return f.configured }

func (f *fakeGoogle) AuthorizationURL(state string) (string, error) {
	if !f.configured {
		return "", oauth.ErrNotConfigured
	}
	return f.authURL + "?state=" + state, nil
}

func (f *fakeGoogle) Exchange(ctx context.Context, code string) (string, error) {
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return f.accessToken, nil
}

func (f *fakeGoogle) FetchProfile(ctx context.Context, accessToken string) (*oauth.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.profile == nil {
		return nil, errors.New("no profile scripted")
	}
	return f.profile, nil
}
