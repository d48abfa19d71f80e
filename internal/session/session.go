// Package session carries the signed-in user's identity explicitly. The
// store and the remote client receive a Session instead of reading shared
// global state.
package session

import (
	"context"
	"fmt"
	"strings"

	"marketplace-chat/internal/domain/user"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type Session struct {
	UserID      string
	AccessToken string
	DisplayName string
	AvatarURL   string
}

// Token satisfies remote.TokenSource.
func (s Session) Token() string {
	return s.AccessToken
}

func (s Session) Valid() bool {
	return s.UserID != "" && s.AccessToken != ""
}

func (s Session) Profile() user.Profile {
	return user.Profile{UserID: s.UserID, DisplayName: s.DisplayName, AvatarURL: s.AvatarURL}
}

// ProfileStore looks up cached display data; a miss is nil, nil.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
}

// FromToken reads the user id from the token claims. The signature is not
// checked here; the backend verifies every request.
func FromToken(token string) (Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Session{}, chat_errors.ErrUnauthorized
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", chat_errors.ErrUnauthorized, err)
	}
	userID := claimString(claims, "sub", "user_id", "userId", "id", "uid")
	if userID == "" {
		return Session{}, fmt.Errorf("%w: token has no user id claim", chat_errors.ErrUnauthorized)
	}
	return Session{
		UserID:      userID,
		AccessToken: token,
		DisplayName: claimString(claims, "name", "username"),
	}, nil
}

// Load builds a session from token and fills display data from profiles.
// A cache failure only loses the display data.
func Load(ctx context.Context, token string, profiles ProfileStore, l *logger.Logger) (Session, error) {
	s, err := FromToken(token)
	if err != nil {
		return Session{}, err
	}
	if profiles == nil {
		return s, nil
	}
	p, err := profiles.GetProfile(ctx, s.UserID)
	if err != nil {
		if l != nil {
			l.Warn(logger.WithUserID(ctx, s.UserID), "profile cache lookup failed", zap.Error(err))
		}
		return s, nil
	}
	if p != nil {
		if p.DisplayName != "" {
			s.DisplayName = p.DisplayName
		}
		s.AvatarURL = p.AvatarURL
	}
	return s, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
