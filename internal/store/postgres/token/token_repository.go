package token

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/odpf/hpcjob/internal/errors"
)

const EntityToken = "token"

type Token struct {
	Owner        string `gorm:"primary_key"`
	AccessToken  string `gorm:"not null"`
	RefreshToken string
	TokenType    string
	Expiry       *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r TokenRepository) Get(ctx context.Context, owner string) (*oauth2.Token, error) {
	var stored Token
	getTokenQuery := `SELECT owner, access_token, refresh_token, token_type, expiry, created_at, updated_at FROM oauth_token WHERE owner = ?`
	if err := r.db.WithContext(ctx).Raw(getTokenQuery, owner).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound(EntityToken, "no token for "+owner)
		}
		return nil, errors.Wrap(EntityToken, "error while getting token of "+owner, err)
	}

	token := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
	}
	if stored.Expiry != nil {
		token.Expiry = *stored.Expiry
	}
	return token, nil
}

func (r TokenRepository) Save(ctx context.Context, owner string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.InvalidArgument(EntityToken, "access token is empty")
	}
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		expiry = &token.Expiry
	}

	upsertTokenQuery := `
INSERT INTO oauth_token (owner, access_token, refresh_token, token_type, expiry, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, NOW(), NOW())
ON CONFLICT (owner) DO UPDATE SET
	access_token = EXCLUDED.access_token,
	refresh_token = EXCLUDED.refresh_token,
	token_type = EXCLUDED.token_type,
	expiry = EXCLUDED.expiry,
	updated_at = NOW();
`
	result := r.db.WithContext(ctx).Exec(upsertTokenQuery, owner, token.AccessToken, token.RefreshToken, token.TokenType, expiry)
	if result.Error != nil {
		return errors.Wrap(EntityToken, "unable to save token of "+owner, result.Error)
	}
	return nil
}
