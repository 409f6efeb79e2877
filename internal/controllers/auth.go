package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adamanr/unit_service/internal/entity"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// AuthController checks bearer tokens issued by the remote API. Sessions are
// owned by that API; this service only reads the claims.
type AuthController struct {
	deps *Dependens
	now  func() time.Time
}

func NewAuthController(deps *Dependens) *AuthController {
	return &AuthController{
		deps: deps,
		now:  time.Now,
	}
}

// BearerFromRequest returns the raw token from the Authorization header, the
// token cookie or the auth cookie, in that order.
func BearerFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token
		}
	}

	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if cookie, err := r.Cookie("auth"); err == nil && cookie.Value != "" {
		raw := cookie.Value
		if decoded, err := url.QueryUnescape(raw); err == nil {
			raw = decoded
		}

		var payload struct {
			Token string `json:"token"`
		}
		if json.Unmarshal([]byte(raw), &payload) == nil && payload.Token != "" {
			return payload.Token
		}
	}

	return ""
}

// CheckUserToken parses token. With a configured secret the HS256 signature
// is verified; without one only the expiry is checked.
func (c *AuthController) CheckUserToken(token string) (*entity.Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &entity.Claims{}
	secret := c.deps.Config.Server.JWTSecret

	if secret != "" {
		parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.deps.Logger.Warn("Token expired", slog.String("subject", claims.Principal()))
				return nil, ErrTokenExpired
			}

			c.deps.Logger.Warn("Error parsing token", slog.String("error", err.Error()))
			return nil, ErrInvalidToken
		}

		if !parsed.Valid {
			return nil, ErrInvalidToken
		}

		return claims, nil
	}

	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		c.deps.Logger.Warn("Error decoding token", slog.String("error", err.Error()))
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt != nil && !c.now().Before(claims.ExpiresAt.Time) {
		c.deps.Logger.Warn("Token expired", slog.String("subject", claims.Principal()))
		return nil, ErrTokenExpired
	}

	return claims, nil
}
