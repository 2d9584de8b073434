package site

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agentsite/auth"
	"agentsite/logging"
	"agentsite/metrics"
	"agentsite/newsletter"
	"agentsite/subscribers"
)

// SiteModule serves the public JSON endpoints used by the landing page
// and the paywalled agent pages.
type SiteModule struct {
	service *subscribers.Service
	signups *newsletter.Store
	tokens  *auth.TokenMaker
	cookies auth.CookieConfig
	logger  *logging.ContextLogger
	metrics *metrics.Metrics
}

func NewSiteModule(
	service *subscribers.Service,
	signups *newsletter.Store,
	tokens *auth.TokenMaker,
	cookies auth.CookieConfig,
	logger *logging.ContextLogger,
	m *metrics.Metrics,
) *SiteModule {
	return &SiteModule{
		service: service,
		signups: signups,
		tokens:  tokens,
		cookies: cookies,
		logger:  logger,
		metrics: m,
	}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/subscribe", s.subscribe)
		api.POST("/login", s.login)
		api.POST("/logout", s.logout)
		api.GET("/me", s.me)
		api.POST("/newsletter", s.newsletterSignup)
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *SiteModule) subscribe(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.SignupsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	result, err := s.service.Signup(ctx, req.Email, req.Password)
	if err != nil {
		var ve *subscribers.ValidationError
		if errors.As(err, &ve) {
			s.metrics.SignupsTotal.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason})
			return
		}

		s.metrics.SignupsTotal.WithLabelValues("error").Inc()
		s.logger.WithTracing(ctx).WithFields(logrus.Fields{
			"op":    "site.subscribe",
			"email": req.Email,
		}).WithError(err).Error("signup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process subscription"})
		return
	}

	s.metrics.SignupsTotal.WithLabelValues(result.Outcome.String()).Inc()

	if result.Outcome == subscribers.SignupAlreadyRegistered {
		c.JSON(http.StatusOK, gin.H{
			"message":           "Email already registered",
			"alreadyRegistered": true,
		})
		return
	}

	s.logger.WithTracing(ctx).WithField("subscriber_id", result.ID).Info("new subscriber")
	c.JSON(http.StatusOK, gin.H{
		"message":           "Successfully subscribed!",
		"id":                result.ID,
		"alreadyRegistered": false,
	})
}

func (s *SiteModule) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.countLogin("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	sub, err := s.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		var ve *subscribers.ValidationError
		switch {
		case errors.As(err, &ve):
			s.countLogin("invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason})
		case errors.Is(err, subscribers.ErrInvalidCredentials):
			s.countLogin("rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		default:
			s.countLogin("error")
			s.logger.WithTracing(ctx).WithFields(logrus.Fields{
				"op":    "site.login",
				"email": req.Email,
			}).WithError(err).Error("login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		}
		return
	}

	token, err := s.tokens.Generate(sub.ID, sub.Email)
	if err != nil {
		s.countLogin("error")
		s.logger.WithTracing(ctx).WithError(err).Error("issuing session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	s.countLogin("success")
	auth.SetSubscriberCookies(c, s.cookies, token, sub.Email)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *SiteModule) countLogin(outcome string) {
	s.metrics.LoginsTotal.WithLabelValues("subscriber", outcome).Inc()
}

func (s *SiteModule) logout(c *gin.Context) {
	auth.ClearSubscriberCookies(c, s.cookies)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// me backs the paywall check of the agent pages.
func (s *SiteModule) me(c *gin.Context) {
	claims, err := auth.SubscriberFromRequest(c, s.tokens)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx := c.Request.Context()
	sub, err := s.service.Lookup(ctx, claims.Subject)
	if errors.Is(err, subscribers.ErrNotFound) || (err == nil && sub.ID != claims.UID) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if err != nil {
		s.logger.WithTracing(ctx).WithField("op", "site.me").WithError(err).Error("subscriber lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriber"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    sub.ID,
		"email": sub.Email,
		"paid":  sub.Paid,
	})
}

type newsletterRequest struct {
	Email string `json:"email"`
}

func (s *SiteModule) newsletterSignup(c *gin.Context) {
	var req newsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.NewsletterSignupsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	id, err := s.signups.AddEmailSignup(ctx, req.Email)
	if err != nil {
		var ve *subscribers.ValidationError
		switch {
		case errors.As(err, &ve):
			s.metrics.NewsletterSignupsTotal.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason})
		case errors.Is(err, newsletter.ErrAlreadySignedUp):
			s.metrics.NewsletterSignupsTotal.WithLabelValues("already_signed_up").Inc()
			c.JSON(http.StatusOK, gin.H{
				"message":         "Email already signed up",
				"alreadySignedUp": true,
			})
		default:
			s.metrics.NewsletterSignupsTotal.WithLabelValues("error").Inc()
			s.logger.WithTracing(ctx).WithFields(logrus.Fields{
				"op":    "site.newsletter",
				"email": req.Email,
			}).WithError(err).Error("newsletter signup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process signup"})
		}
		return
	}

	s.metrics.NewsletterSignupsTotal.WithLabelValues("created").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message":         "Successfully signed up!",
		"id":              id,
		"alreadySignedUp": false,
	})
}
