package uit

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/odpf/hpcjob/config"
	"github.com/odpf/hpcjob/internal/errors"
)

// TokenStore keeps the UIT+ tokens of every job owner.
type TokenStore interface {
	Get(ctx context.Context, owner string) (*oauth2.Token, error)
	Save(ctx context.Context, owner string, token *oauth2.Token) error
}

// TokenProvider returns a valid access token for a job owner, refreshing and storing
// it when the stored one expired.
type TokenProvider struct {
	conf  *oauth2.Config
	store TokenStore
}

func NewTokenProvider(conf config.OAuthConfig, store TokenStore) *TokenProvider {
	return &TokenProvider{
		conf: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  conf.AuthURL,
				TokenURL: conf.TokenURL,
			},
			Scopes: conf.Scopes,
		},
		store: store,
	}
}

func (p *TokenProvider) Token(ctx context.Context, owner string) (string, error) {
	stored, err := p.store.Get(ctx, owner)
	if err != nil {
		return "", errors.RemoteUnavailable(EntityUIT, "no token stored for "+owner, err)
	}
	if stored == nil || (stored.AccessToken == "" && stored.RefreshToken == "") {
		return "", errors.RemoteUnavailable(EntityUIT, "no token stored for "+owner, nil)
	}

	fresh, err := p.conf.TokenSource(ctx, stored).Token()
	if err != nil {
		return "", errors.RemoteUnavailable(EntityUIT, fmt.Sprintf("unable to refresh token of %s", owner), err)
	}
	if fresh.AccessToken != stored.AccessToken {
		if err := p.store.Save(ctx, owner, fresh); err != nil {
			return "", errors.Wrap(EntityUIT, "unable to store refreshed token of "+owner, err)
		}
	}
	return fresh.AccessToken, nil
}
