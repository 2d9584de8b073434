package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie holds the signed subscriber token; scripts cannot read it.
	SessionCookie = "session"
	// UserEmailCookie is display-only and readable by page scripts.
	UserEmailCookie = "user_email"
)

type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

func (cc CookieConfig) maxAge() int {
	return int(cc.TTL.Seconds())
}

func SetSubscriberCookies(c *gin.Context, cc CookieConfig, token, email string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, token, cc.maxAge(), "/", "", cc.Secure, true)
	c.SetCookie(UserEmailCookie, email, cc.maxAge(), "/", "", cc.Secure, false)
}

func ClearSubscriberCookies(c *gin.Context, cc CookieConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", cc.Secure, true)
	c.SetCookie(UserEmailCookie, "", -1, "/", "", cc.Secure, false)
}

// SubscriberFromRequest verifies the session cookie of the request.
func SubscriberFromRequest(c *gin.Context, maker *TokenMaker) (*SubscriberClaims, error) {
	raw, err := c.Cookie(SessionCookie)
	if err != nil || raw == "" {
		return nil, fmt.Errorf("auth.SubscriberFromRequest: %w", ErrUnauthorized)
	}
	claims, err := maker.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}
