package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestBeginAndCheckState(t *testing.T) {
	g := NewGoogle("cid", "csec", "http://localhost/cb", "state-secret")
	u, nonce, err := g.Begin()
	require.NoError(t, err)

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	assert.Equal(t, "cid", parsed.Query().Get("client_id"))

	assert.NoError(t, g.CheckState(state, nonce))
	assert.ErrorIs(t, g.CheckState(state, "other-browser"), ErrBadState)
	assert.ErrorIs(t, g.CheckState(state, ""), ErrBadState)
	assert.ErrorIs(t, g.CheckState("garbage", nonce), ErrBadState)

	other := NewGoogle("cid", "csec", "http://localhost/cb", "different")
	assert.ErrorIs(t, other.CheckState(state, nonce), ErrBadState)
}

func TestExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"sub":"123","email":"g@x.com","email_verified":true,"name":"G","picture":"https://img/g.png"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGoogle("cid", "csec", "http://localhost/cb", "s").
		WithEndpoint(oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthURL: srv.URL + "/auth"})
	g.UserInfoURL = srv.URL + "/userinfo"

	id, err := g.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "123", id.ExternalID)
	assert.Equal(t, "g@x.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "https://img/g.png", id.AvatarURL)
}
