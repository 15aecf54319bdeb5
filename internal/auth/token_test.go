package auth_test

import (
	"testing"
	"time"

	"github.com/jheath/partsbin/internal/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := auth.NewTokenService([]byte("test-secret"), time.Hour)

	u := &auth.User{ID: "u1", Username: "alice", Role: auth.RoleAdmin}
	token, err := svc.IssueAccessToken(u)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.Username != "alice" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	svc := auth.NewTokenService([]byte("test-secret"), -time.Minute)

	token, err := svc.IssueAccessToken(&auth.User{ID: "u1", Username: "alice", Role: auth.RoleMember})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Error("expired token validated")
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	issuer := auth.NewTokenService([]byte("secret-a"), time.Hour)
	verifier := auth.NewTokenService([]byte("secret-b"), time.Hour)

	token, err := issuer.IssueAccessToken(&auth.User{ID: "u1", Username: "alice", Role: auth.RoleMember})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := verifier.ValidateAccessToken(token); err == nil {
		t.Error("token verified with wrong secret")
	}
}

func TestRequireAdmin(t *testing.T) {
	svc := auth.NewTokenService([]byte("test-secret"), time.Hour)
	guard := auth.RequireAdmin(svc)

	adminToken, _ := svc.IssueAccessToken(&auth.User{ID: "u1", Username: "root", Role: auth.RoleAdmin})
	memberToken, _ := svc.IssueAccessToken(&auth.User{ID: "u2", Username: "alice", Role: auth.RoleMember})

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"admin", "Bearer " + adminToken, false},
		{"member", "Bearer " + memberToken, true},
		{"missing", "", true},
		{"garbage", "Bearer not.a.token", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRequest(t, tt.header)
			if err := guard(r); (err != nil) != tt.wantErr {
				t.Errorf("guard err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
