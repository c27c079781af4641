// Package session binds browser clients to a chat session id and, after
// login, to a user id. State lives in a signed cookie; the server keeps none.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const CookieName = "sweety_session"

var ErrInvalidToken = errors.New("invalid session token")

// Identity is what a client's cookie resolves to. UserID is empty for
// anonymous visitors.
type Identity struct {
	SessionID string
	UserID    string
	Username  string
}

// LoggedIn reports whether a user is bound to the session.
func (i Identity) LoggedIn() bool { return i.UserID != "" }

// Claims carries the session id and the optional user binding.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	UserID    string `json:"uid,omitempty"`
	Username  string `json:"usr,omitempty"`
}

// Manager issues and verifies session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secure}
}

// FromRequest resolves the cookie without minting anything.
func (m *Manager) FromRequest(r *http.Request) (Identity, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Identity{}, false
	}
	id, err := m.Parse(c.Value)
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

// Ensure returns the session bound to the client, minting and setting a new
// one when the cookie is absent or invalid.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (Identity, error) {
	if id, ok := m.FromRequest(r); ok {
		return id, nil
	}
	id := Identity{SessionID: uuid.NewString()}
	if err := m.write(w, id); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// BindUser attaches a user to the session after a successful login.
func (m *Manager) BindUser(w http.ResponseWriter, id Identity, userID, username string) (Identity, error) {
	if id.SessionID == "" {
		id.SessionID = uuid.NewString()
	}
	id.UserID = userID
	id.Username = username
	return id, m.write(w, id)
}

// Reset mints a fresh session id and keeps the user binding.
func (m *Manager) Reset(w http.ResponseWriter, prev Identity) (Identity, error) {
	id := Identity{SessionID: uuid.NewString(), UserID: prev.UserID, Username: prev.Username}
	return id, m.write(w, id)
}

// Logout expires the cookie.
func (m *Manager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Sign issues a token for id.
func (m *Manager) Sign(id Identity) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		SessionID: id.SessionID,
		UserID:    id.UserID,
		Username:  id.Username,
	})
	return token.SignedString(m.secret)
}

// Parse verifies a token and returns its identity.
func (m *Manager) Parse(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid || claims.SessionID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{SessionID: claims.SessionID, UserID: claims.UserID, Username: claims.Username}, nil
}

func (m *Manager) write(w http.ResponseWriter, id Identity) error {
	v, err := m.Sign(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    v,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
