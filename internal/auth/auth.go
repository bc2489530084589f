// Package auth decides whether a request may reach the dashboard.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"findash/internal/log"
)

// Realm is announced in Basic challenges.
const Realm = "findash"

var ErrInvalidUsers = errors.New("invalid user list")

// Gate reports whether a request is authorized and, if so, for whom.
type Gate interface {
	Allow(r *http.Request) (user string, ok bool)
}

// Open admits everyone.
type Open struct{}

func (Open) Allow(*http.Request) (string, bool) { return "", true }

// Basic checks HTTP Basic credentials against bcrypt hashes.
type Basic struct {
	users map[string][]byte
	dummy []byte
}

// NewBasic builds a Basic gate from user to bcrypt hash.
func NewBasic(users map[string]string) *Basic {
	b := &Basic{users: make(map[string][]byte, len(users))}
	for u, h := range users {
		b.users[u] = []byte(h)
	}
	// compared against for unknown users so lookups cost the same
	b.dummy, _ = bcrypt.GenerateFromPassword([]byte("findash"), bcrypt.MinCost)
	return b
}

func (b *Basic) Allow(r *http.Request) (string, bool) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return "", false
	}
	hash, known := b.users[user]
	if !known {
		_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(pass))
		return "", false
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(pass)) != nil {
		return "", false
	}
	return user, true
}

// ParseUsers parses "user:hash,user2:hash2". Every hash must be a bcrypt
// hash.
func ParseUsers(s string) (map[string]string, error) {
	users := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, hash, ok := strings.Cut(entry, ":")
		if !ok || user == "" || hash == "" {
			return nil, fmt.Errorf("%w: entry %q is not user:hash", ErrInvalidUsers, entry)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("%w: user %q: %v", ErrInvalidUsers, user, err)
		}
		if _, dup := users[user]; dup {
			return nil, fmt.Errorf("%w: user %q listed twice", ErrInvalidUsers, user)
		}
		users[user] = hash
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: no users", ErrInvalidUsers)
	}
	return users, nil
}

// HashPassword returns a bcrypt hash suitable for AUTH_USERS.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

type userKey struct{}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

// Require rejects requests the gate refuses with 401 and a Basic challenge.
// Paths listed in exempt pass through unchecked.
func Require(gate Gate, logger *log.Logger, exempt ...string) func(http.Handler) http.Handler {
	logger = logger.WithComponent(log.ComponentAuth)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(exempt, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			user, ok := gate.Allow(r)
			if !ok {
				logger.WarnContext(r.Context(), "Unauthorized request",
					log.FieldPath, r.URL.Path,
					log.FieldMethod, r.Method)
				w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if user != "" {
				r = r.WithContext(context.WithValue(r.Context(), userKey{}, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
