package auth

import (
	"testing"
	"time"

	"github.com/ikus060/udb/internal/model"
)

func testUser() *model.User {
	u := &model.User{Username: "testuser", Role: model.RoleAdmin}
	u.ID = 1
	return u
}

func TestGenerateAndParseToken(t *testing.T) {
	InitJWT("test-secret-key")

	user := testUser()
	expireAt := time.Now().Add(24 * time.Hour)

	token, err := GenerateToken(user, expireAt, "udb")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	if token == "" {
		t.Error("Expected non-empty token")
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() failed: %v", err)
	}

	if claims.UID != user.ID {
		t.Errorf("Expected UID %d, got %d", user.ID, claims.UID)
	}

	if claims.Subject != user.Username {
		t.Errorf("Expected subject %s, got %s", user.Username, claims.Subject)
	}

	if claims.Role != user.Role {
		t.Errorf("Expected role %s, got %s", user.Role, claims.Role)
	}

	if claims.Issuer != "udb" {
		t.Errorf("Expected issuer udb, got %s", claims.Issuer)
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	InitJWT("test-secret-key")

	_, err := ParseToken("invalid.token.string")
	if err == nil {
		t.Error("ParseToken() should fail for invalid token")
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	InitJWT("test-secret-key")

	token, err := GenerateToken(testUser(), time.Now().Add(-1*time.Hour), "udb")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	_, err = ParseToken(token)
	if err == nil {
		t.Error("ParseToken() should fail for expired token")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	InitJWT("secret-1")

	token, err := GenerateToken(testUser(), time.Now().Add(24*time.Hour), "udb")
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	InitJWT("secret-2")

	_, err = ParseToken(token)
	if err == nil {
		t.Error("ParseToken() should fail when secret is different")
	}
}

func TestGenerateToken_UninitializedSecret(t *testing.T) {
	jwtSecret = nil

	_, err := GenerateToken(testUser(), time.Now().Add(24*time.Hour), "udb")
	if err == nil {
		t.Error("GenerateToken() should fail when secret is not initialized")
	}

	InitJWT("test-secret-key")
}
