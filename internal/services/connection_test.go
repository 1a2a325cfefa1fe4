package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/flowdeck/flowdeck/internal/config"
	"github.com/flowdeck/flowdeck/internal/crypto"
	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

func newConnectionService(t *testing.T, apps map[string]config.OAuthProvider) *ConnectionService {
	t.Helper()
	enc, err := crypto.NewEncryptor(bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	return NewConnectionService(repository.NewMemoryConnections(), enc, apps)
}

func TestConnectionService_CreateEncryptsAtRest(t *testing.T) {
	s := newConnectionService(t, nil)
	ctx := context.Background()

	conn := &flow.Connection{
		Type:        "stripe",
		Name:        "Stripe",
		Credentials: map[string]string{"api_key": "sk_test_123"},
	}
	if err := s.Create(ctx, conn); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if conn.AuthType != flow.AuthAPIKey {
		t.Fatalf("auth type = %q, want api_key inference", conn.AuthType)
	}

	stored, err := s.Get(ctx, conn.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Credentials["api_key"] == "sk_test_123" {
		t.Fatalf("credential stored in plaintext")
	}

	resolved, err := s.Resolve(ctx, conn.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Credentials["api_key"] != "sk_test_123" {
		t.Fatalf("decrypted credential = %q", resolved.Credentials["api_key"])
	}
}

func TestConnectionService_ListMasksCredentials(t *testing.T) {
	s := newConnectionService(t, nil)
	ctx := context.Background()
	if err := s.Create(ctx, &flow.Connection{
		Type:        "stripe",
		Credentials: map[string]string{"api_key": "sk_test_123"},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	safe, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(safe) != 1 {
		t.Fatalf("len(safe) = %d", len(safe))
	}
	if safe[0].Type != "stripe" || safe[0].ID == "" {
		t.Fatalf("safe = %+v", safe[0])
	}
}

func TestConnectionService_AuthorizeAPIKeyService(t *testing.T) {
	s := newConnectionService(t, nil)
	res, err := s.Authorize(context.Background(), "stripe")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !res.APIKey || res.DemoMode || res.URL != "" {
		t.Fatalf("result = %+v, want api_key marker only", res)
	}
}

func TestConnectionService_AuthorizeDemoMode(t *testing.T) {
	s := newConnectionService(t, nil)
	ctx := context.Background()

	res, err := s.Authorize(ctx, "slack")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !res.DemoMode {
		t.Fatalf("result = %+v, want demo mode", res)
	}

	// Demo mode records the connection immediately.
	conns, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(conns) != 1 || conns[0].Type != "slack" {
		t.Fatalf("conns = %+v", conns)
	}
}

func TestConnectionService_AuthorizeOAuthRedirect(t *testing.T) {
	s := newConnectionService(t, map[string]config.OAuthProvider{
		"google": {
			ClientID:    "client-1",
			AuthURL:     "https://accounts.google.com/o/oauth2/auth",
			TokenURL:    "https://oauth2.googleapis.com/token",
			RedirectURL: "http://localhost:8080/callback",
			Scopes:      []string{"email"},
		},
	})

	res, err := s.Authorize(context.Background(), "google")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if res.DemoMode || res.APIKey {
		t.Fatalf("result = %+v, want redirect", res)
	}
	if !strings.HasPrefix(res.URL, "https://accounts.google.com/o/oauth2/auth") {
		t.Fatalf("url = %q", res.URL)
	}
	if !strings.Contains(res.URL, "client_id=client-1") || !strings.Contains(res.URL, "state=") {
		t.Fatalf("url missing params: %q", res.URL)
	}

	if _, err := s.Authorize(context.Background(), ""); err == nil {
		t.Fatalf("empty service should error")
	}
}

func TestConnectionService_RefreshDemoConnection(t *testing.T) {
	s := newConnectionService(t, nil)
	ctx := context.Background()
	if _, err := s.Authorize(ctx, "slack"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	conns, _ := s.List(ctx)

	safe, err := s.Refresh(ctx, conns[0].ID)
	if err != nil {
		t.Fatalf("Refresh demo connection: %v", err)
	}
	if safe.ID != conns[0].ID {
		t.Fatalf("safe = %+v", safe)
	}
}
