package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/oakleydye/oakley-metrics/internal/config"
)

// IdentityProvider is the external OAuth2/OIDC provider.
type IdentityProvider interface {
	// AuthCodeURL returns the authorize URL for an authorization code flow.
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// UserInfo returns the raw claims of the userinfo endpoint.
	UserInfo(ctx context.Context, token *oauth2.Token) (map[string]any, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	// LogoutURL returns the provider logout URL that redirects back to returnTo.
	LogoutURL(returnTo string) string
}

type auth0Provider struct {
	oidc     *oidc.Provider
	oauth    oauth2.Config
	issuer   string
	clientID string
}

// NewAuth0Provider configures an Auth0 tenant. Endpoints follow the Auth0
// layout so no discovery round trip is needed at startup.
func NewAuth0Provider(ctx context.Context, cfg config.AuthConfig) IdentityProvider {
	issuer := strings.TrimRight(cfg.IssuerBaseURL, "/")

	pc := &oidc.ProviderConfig{
		IssuerURL:   issuer + "/",
		AuthURL:     issuer + "/authorize",
		TokenURL:    issuer + "/oauth/token",
		UserInfoURL: issuer + "/userinfo",
		JWKSURL:     issuer + "/.well-known/jwks.json",
	}
	provider := pc.NewProvider(ctx)

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &auth0Provider{
		oidc: provider,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL(),
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		issuer:   issuer,
		clientID: cfg.ClientID,
	}
}

func (p *auth0Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *auth0Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth.Exchange(ctx, code)
}

func (p *auth0Provider) UserInfo(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	info, err := p.oidc.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, err
	}
	var claims map[string]any
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return claims, nil
}

func (p *auth0Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

func (p *auth0Provider) LogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("client_id", p.clientID)
	q.Set("returnTo", returnTo)
	return p.issuer + "/v2/logout?" + q.Encode()
}

var _ IdentityProvider = (*auth0Provider)(nil)
