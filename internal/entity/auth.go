package entity

import "github.com/golang-jwt/jwt/v5"

// Claims is the payload of the bearer tokens issued by the remote API.
type Claims struct {
	jwt.RegisteredClaims

	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Principal identifies the caller for per-session state such as the
// selected unit.
func (c *Claims) Principal() string {
	if c.Username != "" {
		return c.Username
	}

	return c.Subject
}
