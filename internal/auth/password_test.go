package auth

import (
	"strings"
	"testing"
)

// Cost 4 is the bcrypt minimum — keeps these tests fast.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(4)
}

func TestHashAndVerify(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "s3cret-password" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := ps.Verify(hash, "s3cret-password"); err != nil {
		t.Errorf("Verify() with correct password error = %v", err)
	}
	if err := ps.Verify(hash, "wrong-password"); err == nil {
		t.Error("Verify() with wrong password should fail")
	}
}

func TestHash_SamePasswordDifferentHashes(t *testing.T) {
	// bcrypt salts every hash, so two users with the same password must not
	// end up with the same stored value.
	ps := newTestPasswordService()

	h1, err := ps.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := ps.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical")
	}
}

func TestHash_RejectsOverlongPassword(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("x", 73)); err == nil {
		t.Error("Hash() should reject passwords longer than 72 bytes")
	}
}

func TestVerify_CaseSensitive(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("Password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if err := ps.Verify(hash, "password"); err == nil {
		t.Error("Verify() should be case-sensitive")
	}
}
