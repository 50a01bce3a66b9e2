package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gamelog-labs/gamelog-go/internal/platform/env"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

const (
	ModeDev  = "dev"
	ModeOIDC = "oidc"
)

type Config struct {
	Mode string

	OIDCIssuerURL string
	OIDCClientID  string
	EmailClaim    string
	RolesClaim    string

	DevSubject string
	DevEmail   string
	DevRoles   []string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Mode:          strings.ToLower(strings.TrimSpace(env.String("GAMELOG_AUTH_MODE", ModeDev))),
		OIDCIssuerURL: strings.TrimSpace(env.String("GAMELOG_OIDC_ISSUER_URL", "")),
		OIDCClientID:  strings.TrimSpace(env.String("GAMELOG_OIDC_CLIENT_ID", "")),
		EmailClaim:    strings.TrimSpace(env.String("GAMELOG_OIDC_EMAIL_CLAIM", "email")),
		RolesClaim:    strings.TrimSpace(env.String("GAMELOG_OIDC_ROLES_CLAIM", "roles")),
		DevSubject:    env.String("GAMELOG_DEV_SUBJECT", "dev-user"),
		DevEmail:      env.String("GAMELOG_DEV_EMAIL", "dev@localhost"),
		DevRoles:      splitRoles(env.String("GAMELOG_DEV_ROLES", "admin")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeDev:
		return nil
	case ModeOIDC:
		if c.OIDCIssuerURL == "" {
			return errors.New("GAMELOG_OIDC_ISSUER_URL is required in oidc mode")
		}
		if c.OIDCClientID == "" {
			return errors.New("GAMELOG_OIDC_CLIENT_ID is required in oidc mode")
		}
		return nil
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Mode)
	}
}

// NewAuthenticator selects the authenticator for the configured mode.
func NewAuthenticator(ctx context.Context, cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == ModeOIDC {
		return NewOIDCAuthenticator(ctx, cfg)
	}
	return NewDevAuthenticator(cfg), nil
}

func splitRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		roles = append(roles, part)
	}
	return roles
}

func tokenFromHeader(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
