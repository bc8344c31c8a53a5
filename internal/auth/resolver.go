package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrNoCredential means the request carried no token at all.
var ErrNoCredential = errors.New("no credential")

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID    int64
	SessionID string
}

// Resolver turns request credentials into an Identity.
// Lookup order: cookie, Authorization bearer header, "token" query parameter.
type Resolver struct {
	cfg    *JWTConfig
	cookie string
}

func NewResolver(cfg *JWTConfig, cookieName string) *Resolver {
	return &Resolver{cfg: cfg, cookie: cookieName}
}

// Resolve validates the first credential found on r.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	token := r.tokenFrom(req)
	if token == "" {
		return Identity{}, ErrNoCredential
	}
	claims, err := ValidateToken(r.cfg, token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, SessionID: claims.SessionID}, nil
}

// Issue signs a token for a stored session.
func (r *Resolver) Issue(id Identity) (string, error) {
	return GenerateToken(r.cfg, id.UserID, id.SessionID)
}

func (r *Resolver) tokenFrom(req *http.Request) string {
	if r.cookie != "" {
		if c, err := req.Cookie(r.cookie); err == nil && c.Value != "" {
			return c.Value
		}
	}
	if h := req.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	return req.URL.Query().Get("token")
}
