package oauthsvc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/user"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var ErrEmailNotVerified = core.NewRequestError("your google email address is not verified")

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

type googleProvider struct {
	config      *oauth2.Config
	userinfoURL string
}

var _ user.OAuthProvider = (*googleProvider)(nil)

func NewGoogleProvider(conf *core.Config) user.OAuthProvider {
	return newGoogleProvider(conf, google.Endpoint, googleUserinfoURL)
}

func newGoogleProvider(conf *core.Config, endpoint oauth2.Endpoint, userinfoURL string) *googleProvider {
	return &googleProvider{
		config: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userinfoURL: userinfoURL,
	}
}

func (p *googleProvider) Name() string { return "google" }

func (p *googleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *googleProvider) Profile(ctx context.Context, code string) (user.OAuthProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return user.OAuthProfile{}, core.NewRequestError("invalid authorization code")
	}

	resp, err := p.config.Client(ctx, token).Get(p.userinfoURL)
	if err != nil {
		return user.OAuthProfile{}, errors.Wrap(err, "getting user info")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return user.OAuthProfile{}, errors.Errorf("userinfo request failed with status: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err = json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return user.OAuthProfile{}, errors.Wrap(err, "decoding user info")
	}
	if !info.VerifiedEmail {
		return user.OAuthProfile{}, ErrEmailNotVerified
	}
	return user.OAuthProfile{
		Provider:  p.Name(),
		Email:     info.Email,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
	}, nil
}
