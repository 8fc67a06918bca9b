package auth

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret!" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("unexpected hash: %q", hash)
	}
	if !CheckPassword("s3cret!", hash) {
		t.Fatalf("correct password should verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("wrong password should not verify")
	}
}

func TestHashPassword_LongInputRoundTrips(t *testing.T) {
	long := strings.Repeat("p", 200) // beyond bcrypt's 72-byte limit
	hash, err := HashPassword(long)
	if err != nil {
		t.Fatalf("HashPassword(long): %v", err)
	}
	if !CheckPassword(long, hash) {
		t.Fatalf("long password should round-trip")
	}
	if CheckPassword(strings.Repeat("p", 199)+"q", hash) {
		t.Fatalf("different long password should not verify")
	}
}

func TestCheckPassword_GarbageHash(t *testing.T) {
	if CheckPassword("x", "not-a-bcrypt-hash") {
		t.Fatalf("garbage hash should not verify")
	}
}
