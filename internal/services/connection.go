package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/flowdeck/flowdeck/internal/config"
	"github.com/flowdeck/flowdeck/internal/crypto"
	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// ConnectionService manages third-party service connections: credential
// encryption at rest, OAuth authorization URLs, and token refresh.
// Services without a configured OAuth app authorize in demo mode.
type ConnectionService struct {
	repo repository.ConnectionRepository
	enc  *crypto.Encryptor
	apps map[string]config.OAuthProvider
}

// apiKeyServices are connected by collecting a key from the user rather
// than an OAuth redirect.
var apiKeyServices = map[string]bool{
	"stripe":   true,
	"twilio":   true,
	"sendgrid": true,
	"openai":   true,
}

func NewConnectionService(repo repository.ConnectionRepository, enc *crypto.Encryptor, apps map[string]config.OAuthProvider) *ConnectionService {
	if apps == nil {
		apps = map[string]config.OAuthProvider{}
	}
	return &ConnectionService{repo: repo, enc: enc, apps: apps}
}

// Create encrypts credentials and stores a new connection.
func (s *ConnectionService) Create(ctx context.Context, conn *flow.Connection) error {
	if conn.ID == "" {
		conn.ID = flow.GenerateID("conn")
	}
	if conn.AuthType == "" {
		conn.AuthType = flow.AuthOAuth
		if apiKeyServices[conn.Type] {
			conn.AuthType = flow.AuthAPIKey
		}
	}
	conn.CreatedAt = time.Now()
	if err := s.encryptCredentials(conn); err != nil {
		return err
	}
	return s.repo.Create(ctx, conn)
}

// Get retrieves a connection by ID with credentials still encrypted.
func (s *ConnectionService) Get(ctx context.Context, id string) (*flow.Connection, error) {
	return s.repo.Get(ctx, id)
}

// Resolve retrieves a connection and decrypts its credentials for
// runtime use. Never expose the result over the API.
func (s *ConnectionService) Resolve(ctx context.Context, id string) (*flow.Connection, error) {
	conn, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decryptCredentials(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// List returns all connections in safe (masked) form.
func (s *ConnectionService) List(ctx context.Context) ([]flow.ConnectionSafe, error) {
	conns, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	safe := make([]flow.ConnectionSafe, len(conns))
	for i, c := range conns {
		safe[i] = c.Safe()
	}
	return safe, nil
}

// Delete removes a connection.
func (s *ConnectionService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Authorize decides how a connection to the named service starts:
// api-key services ask the client to collect a key, services with a
// configured OAuth app get a provider redirect URL, and everything else
// connects immediately in demo mode.
func (s *ConnectionService) Authorize(ctx context.Context, service string) (*flow.AuthorizeResult, error) {
	if service == "" {
		return nil, fmt.Errorf("service is required")
	}
	if apiKeyServices[service] {
		return &flow.AuthorizeResult{APIKey: true}, nil
	}

	app, ok := s.apps[service]
	if !ok || app.ClientID == "" {
		// No OAuth app configured: record a demo connection right away.
		conn := &flow.Connection{
			Type:     service,
			AuthType: flow.AuthOAuth,
			Credentials: map[string]string{
				"demo": "true",
			},
		}
		if err := s.Create(ctx, conn); err != nil {
			return nil, err
		}
		return &flow.AuthorizeResult{DemoMode: true}, nil
	}

	cfg := s.oauthConfig(service, app)
	url := cfg.AuthCodeURL(flow.GenerateID("state"), oauth2.AccessTypeOffline)
	return &flow.AuthorizeResult{URL: url}, nil
}

// Refresh exchanges the connection's stored refresh token for a fresh
// access token and re-encrypts the result.
func (s *ConnectionService) Refresh(ctx context.Context, id string) (*flow.ConnectionSafe, error) {
	conn, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.Credentials["demo"] == "true" {
		safe := conn.Safe()
		return &safe, nil
	}

	app, ok := s.apps[conn.Type]
	if !ok {
		return nil, fmt.Errorf("no oauth app configured for service %q", conn.Type)
	}
	refresh := conn.Credentials["refresh_token"]
	if refresh == "" {
		return nil, fmt.Errorf("connection %q has no refresh token", id)
	}

	cfg := s.oauthConfig(conn.Type, app)
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token for %q: %w", conn.Type, err)
	}

	conn.Credentials["access_token"] = tok.AccessToken
	if tok.RefreshToken != "" {
		conn.Credentials["refresh_token"] = tok.RefreshToken
	}
	if err := s.encryptCredentials(conn); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, conn); err != nil {
		return nil, err
	}
	safe := conn.Safe()
	return &safe, nil
}

func (s *ConnectionService) oauthConfig(service string, app config.OAuthProvider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		RedirectURL:  app.RedirectURL,
		Scopes:       app.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  app.AuthURL,
			TokenURL: app.TokenURL,
		},
	}
}

func (s *ConnectionService) encryptCredentials(conn *flow.Connection) error {
	if s.enc == nil {
		return nil
	}
	for k, v := range conn.Credentials {
		if v == "" {
			continue
		}
		enc, err := s.enc.Encrypt(v)
		if err != nil {
			return fmt.Errorf("encrypt credential %q: %w", k, err)
		}
		conn.Credentials[k] = enc
	}
	return nil
}

func (s *ConnectionService) decryptCredentials(conn *flow.Connection) error {
	if s.enc == nil {
		return nil
	}
	for k, v := range conn.Credentials {
		if v == "" {
			continue
		}
		dec, err := s.enc.Decrypt(v)
		if err != nil {
			return fmt.Errorf("decrypt credential %q: %w", k, err)
		}
		conn.Credentials[k] = dec
	}
	return nil
}
