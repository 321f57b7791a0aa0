package oauthsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	"github.com/trezcool/quizroom/core"
)

func newGoogleTestServer(verified bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if verified {
			_, _ = w.Write([]byte(`{"email":"ada@example.com","verified_email":true,"given_name":"Ada","family_name":"Lovelace"}`))
		} else {
			_, _ = w.Write([]byte(`{"email":"ada@example.com","verified_email":false}`))
		}
	})
	return httptest.NewServer(mux)
}

func TestGoogleProvider_Profile(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Google.ClientID = "client-id"
	conf.Google.ClientSecret = "secret"
	conf.Google.RedirectURL = "http://localhost/callback"

	tests := []struct {
		name     string
		verified bool
		code     string
		wantErr  bool
	}{
		{name: "valid code", verified: true, code: "good-code"},
		{name: "invalid code", verified: true, code: "bad-code", wantErr: true},
		{name: "unverified email", verified: false, code: "good-code", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newGoogleTestServer(tc.verified)
			defer srv.Close()

			p := newGoogleProvider(
				conf,
				oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
				srv.URL+"/userinfo",
			)
			profile, err := p.Profile(context.Background(), tc.code)
			if tc.wantErr {
				assert.NotNil(t, err)
				assert.True(t, core.IsRequestError(err))
				return
			}
			if assert.Nil(t, err) {
				assert.Equal(t, "google", profile.Provider)
				assert.Equal(t, "ada@example.com", profile.Email)
				assert.Equal(t, "Ada", profile.FirstName)
				assert.Equal(t, "Lovelace", profile.LastName)
			}
		})
	}
}

func TestGoogleProvider_AuthURL(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Google.ClientID = "client-id"
	p := NewGoogleProvider(conf)
	url := p.AuthURL("xyz")
	assert.Contains(t, url, "state=xyz")
	assert.Contains(t, url, "client_id=client-id")
}
