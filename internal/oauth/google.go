// Package oauth wraps the Google authorization-code flow.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	ggoogle "golang.org/x/oauth2/google"

	"github.com/tazhibayda/syncora/internal/auth"
	"github.com/tazhibayda/syncora/internal/security"
)

const (
	defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	stateTTL           = 10 * time.Minute
)

var ErrBadState = errors.New("oauth state mismatch")

type GoogleOAuth struct {
	cfg         *oauth2.Config
	stateSecret string
	// UserInfoURL is overridable for tests.
	UserInfoURL string
}

func NewGoogle(clientID, clientSecret, redirectURI, stateSecret string) *GoogleOAuth {
	return &GoogleOAuth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     ggoogle.Endpoint,
		},
		stateSecret: stateSecret,
		UserInfoURL: defaultUserInfoURL,
	}
}

// WithEndpoint points the token exchange somewhere else (tests).
func (g *GoogleOAuth) WithEndpoint(ep oauth2.Endpoint) *GoogleOAuth {
	g.cfg.Endpoint = ep
	return g
}

// Begin returns the consent URL and the browser nonce the callback must echo
// back through a cookie.
func (g *GoogleOAuth) Begin() (url, browserNonce string, err error) {
	browserNonce, err = security.NewNonce()
	if err != nil {
		return "", "", err
	}
	state, err := security.MakeState(g.stateSecret, browserNonce, stateTTL)
	if err != nil {
		return "", "", err
	}
	return g.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account")), browserNonce, nil
}

// CheckState verifies the signed state and that it belongs to this browser.
func (g *GoogleOAuth) CheckState(state, browserNonce string) error {
	n, err := security.ParseState(g.stateSecret, state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadState, err)
	}
	if browserNonce == "" || n != browserNonce {
		return ErrBadState
	}
	return nil
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange trades the code for a token and reads the OpenID userinfo.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (auth.ExternalIdentity, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return auth.ExternalIdentity{}, fmt.Errorf("exchange: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return auth.ExternalIdentity{}, err
	}
	resp, err := g.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return auth.ExternalIdentity{}, fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return auth.ExternalIdentity{}, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}
	var ui userInfo
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return auth.ExternalIdentity{}, fmt.Errorf("userinfo decode: %w", err)
	}
	if ui.Sub == "" {
		return auth.ExternalIdentity{}, errors.New("userinfo: missing sub")
	}
	return auth.ExternalIdentity{
		ExternalID:    ui.Sub,
		Email:         ui.Email,
		EmailVerified: ui.EmailVerified,
		DisplayName:   ui.Name,
		AvatarURL:     ui.Picture,
	}, nil
}
