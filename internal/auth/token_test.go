package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waconsole/waconsole/internal/apperr"
	"github.com/waconsole/waconsole/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		GroupID:  uuid.New(),
		Email:    "ops@example.com",
	}
}

func TestIssuePairAndParse(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	u := testUser()

	pair, err := m.IssuePair(u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", pair.TokenType)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("expires_in = %d", pair.ExpiresIn)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens must differ")
	}

	claims, err := m.Parse(pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Parse access: %v", err)
	}
	if claims.Subject != u.ID.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, u.ID)
	}
	if claims.TenantID != u.TenantID.String() {
		t.Errorf("tenant_id = %q, want %q", claims.TenantID, u.TenantID)
	}
	if claims.GroupID != u.GroupID.String() {
		t.Errorf("group_id = %q, want %q", claims.GroupID, u.GroupID)
	}
	if claims.ID == "" {
		t.Error("jti must be set")
	}

	if _, err := m.Parse(pair.RefreshToken, TokenRefresh); err != nil {
		t.Fatalf("Parse refresh: %v", err)
	}
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	pair, err := m.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.Parse(pair.RefreshToken, TokenAccess); err == nil {
		t.Error("refresh token accepted as access token")
	}
	_, err = m.Parse(pair.AccessToken, TokenRefresh)
	if err == nil {
		t.Fatal("access token accepted as refresh token")
	}
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("kind = %v, want KindUnauthorized", apperr.KindOf(err))
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	pair, err := m.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	if _, err := m.Parse(pair.AccessToken, TokenAccess); err == nil {
		t.Error("expired access token accepted")
	}
	// Refresh still inside its longer window.
	if _, err := m.Parse(pair.RefreshToken, TokenRefresh); err != nil {
		t.Errorf("refresh token rejected before expiry: %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	pair, err := m.IssuePair(testUser())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	other := NewTokenManager("other-secret", 15*time.Minute, 7*24*time.Hour)
	if _, err := other.Parse(pair.AccessToken, TokenAccess); err == nil {
		t.Error("token signed with different secret accepted")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := m.Parse(tok, TokenAccess); err == nil {
			t.Errorf("Parse(%q) accepted", tok)
		}
	}
}
