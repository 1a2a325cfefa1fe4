package flow

import "time"

// AuthType describes how a service connection is authorized.
type AuthType string

const (
	AuthOAuth  AuthType = "oauth"
	AuthAPIKey AuthType = "api_key"
)

// Connection is a stored authorization link to a third-party service.
// Credential values are encrypted at rest and never read back by clients.
type Connection struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"` // service identifier, e.g. "google", "stripe", "slack"
	Name        string            `json:"name,omitempty"`
	AuthType    AuthType          `json:"auth_type"`
	Credentials map[string]string `json:"credentials,omitempty"` // encrypted at rest
	CreatedAt   time.Time         `json:"created_at"`
}

// ConnectionSafe is the API view of a Connection with credentials masked.
type ConnectionSafe struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name,omitempty"`
	AuthType  AuthType  `json:"auth_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Safe returns a ConnectionSafe view with secrets removed.
func (c *Connection) Safe() ConnectionSafe {
	return ConnectionSafe{
		ID:        c.ID,
		Type:      c.Type,
		Name:      c.Name,
		AuthType:  c.AuthType,
		CreatedAt: c.CreatedAt,
	}
}

// AuthorizeResult is the response of the connection authorize operation:
// either a provider redirect URL or a demo-mode flag when the provider
// has no OAuth app configured. API-key services carry neither; the
// client collects the key itself.
type AuthorizeResult struct {
	URL      string `json:"url,omitempty"`
	DemoMode bool   `json:"demo_mode,omitempty"`
	APIKey   bool   `json:"api_key,omitempty"`
}
