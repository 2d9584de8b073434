package auth

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const AdminSessionCookie = "admin_session"

const (
	sessionAdminKey  = "admin"
	sessionIssuedKey = "issued_at"
)

// NewAdminSessionStore returns a cookie store whose values are HMAC-signed
// with secret. Nothing is kept server-side.
func NewAdminSessionStore(secret []byte, ttl time.Duration, secure bool) sessions.Store {
	store := cookie.NewStore(secret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	return store
}

// AdminSessions installs the admin session middleware under AdminSessionCookie.
func AdminSessions(store sessions.Store) gin.HandlerFunc {
	return sessions.Sessions(AdminSessionCookie, store)
}

// Gate decides, per request and from the cookie alone, whether the caller
// is the configured admin.
type Gate struct {
	identity AdminIdentity
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

func NewGate(identity AdminIdentity, ttl time.Duration, secure bool) *Gate {
	return &Gate{
		identity: identity,
		ttl:      ttl,
		secure:   secure,
		now:      time.Now,
	}
}

// Login writes the admin session when the credentials match.
func (g *Gate) Login(c *gin.Context, username, password string) error {
	if !g.identity.Matches(username, password) {
		return ErrUnauthorized
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionAdminKey, g.identity.Username)
	session.Set(sessionIssuedKey, g.now().Unix())
	return session.Save()
}

// Logout replaces the cookie with an empty value that expires at once.
// The store is not saved, so the response carries no signed payload.
func (g *Gate) Logout(c *gin.Context) error {
	sessions.Default(c).Clear()

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AdminSessionCookie, "", -1, "/", "", g.secure, true)
	return nil
}

func (g *Gate) IsAdmin(c *gin.Context) bool {
	session := sessions.Default(c)

	username, ok := session.Get(sessionAdminKey).(string)
	if !ok || username != g.identity.Username {
		return false
	}
	issuedAt, ok := session.Get(sessionIssuedKey).(int64)
	if !ok {
		return false
	}

	age := g.now().Sub(time.Unix(issuedAt, 0))
	return age >= 0 && age < g.ttl
}

// RequireAdmin refuses every request without a valid admin session the
// same way, whatever resource was asked for.
func (g *Gate) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
