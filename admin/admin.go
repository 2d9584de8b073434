package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agentsite/auth"
	"agentsite/cache"
	"agentsite/logging"
	"agentsite/metrics"
	"agentsite/models"
	"agentsite/subscribers"
)

// SubscriberStore is the part of the subscriber store the console uses.
type SubscriberStore interface {
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
	SetPaidStatus(ctx context.Context, email string, paid bool) error
}

type SignupLister interface {
	ListEmailSignups(ctx context.Context) ([]models.EmailSignup, error)
}

type AdminModule struct {
	subscribers SubscriberStore
	signups     SignupLister
	gate        *auth.Gate
	logger      *logging.ContextLogger
	metrics     *metrics.Metrics
}

func NewAdminModule(
	subs SubscriberStore,
	signups SignupLister,
	gate *auth.Gate,
	logger *logging.ContextLogger,
	m *metrics.Metrics,
) *AdminModule {
	return &AdminModule{
		subscribers: subs,
		signups:     signups,
		gate:        gate,
		logger:      logger,
		metrics:     m,
	}
}

// RegisterRoutes expects the admin session middleware to be installed on
// router already.
func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/admin/login", a.login)
	router.POST("/api/admin/logout", a.logout)

	adminGroup := router.Group("/api/admin")
	adminGroup.Use(a.gate.RequireAdmin())
	{
		adminGroup.GET("/subscribers", cache.ETag(), a.listSubscribers)
		adminGroup.PATCH("/subscribers", a.setPaid)
		adminGroup.GET("/signups", cache.ETag(), a.listSignups)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AdminModule) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.countLogin("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := a.gate.Login(c, req.Username, req.Password)
	if errors.Is(err, auth.ErrUnauthorized) {
		a.countLogin("rejected")
		a.logger.WithTracing(c.Request.Context()).
			WithField("client_ip", c.ClientIP()).
			Warn("admin login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		a.countLogin("error")
		a.logger.WithTracing(c.Request.Context()).WithError(err).Error("saving admin session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	a.countLogin("success")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AdminModule) countLogin(outcome string) {
	a.metrics.LoginsTotal.WithLabelValues("admin", outcome).Inc()
}

func (a *AdminModule) logout(c *gin.Context) {
	if err := a.gate.Logout(c); err != nil {
		a.logger.WithTracing(c.Request.Context()).WithError(err).Error("clearing admin session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AdminModule) listSubscribers(c *gin.Context) {
	ctx := c.Request.Context()
	subs, err := a.subscribers.ListSubscribers(ctx)
	if err != nil {
		a.logger.WithTracing(ctx).WithField("op", "admin.listSubscribers").WithError(err).Error("listing subscribers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscribers"})
		return
	}
	c.JSON(http.StatusOK, subs)
}

type setPaidRequest struct {
	Email string          `json:"email"`
	Paid  json.RawMessage `json:"paid"`
}

func (a *AdminModule) setPaid(c *gin.Context) {
	var req setPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	paid, ok := parsePaidFlag(req.Paid)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	err := a.subscribers.SetPaidStatus(ctx, req.Email, paid)
	if errors.Is(err, subscribers.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
		return
	}
	if err != nil {
		a.logger.WithTracing(ctx).WithFields(logrus.Fields{
			"op":    "admin.setPaid",
			"email": req.Email,
		}).WithError(err).Error("updating paid status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update paid status"})
		return
	}

	a.metrics.PaidUpdatesTotal.Inc()
	a.logger.WithTracing(ctx).WithFields(logrus.Fields{
		"email": req.Email,
		"paid":  paid,
	}).Info("paid status updated")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// parsePaidFlag accepts 0, 1, true and false.
func parsePaidFlag(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "1", "true":
		return true, true
	case "0", "false":
		return false, true
	default:
		return false, false
	}
}

func (a *AdminModule) listSignups(c *gin.Context) {
	ctx := c.Request.Context()
	signups, err := a.signups.ListEmailSignups(ctx)
	if err != nil {
		a.logger.WithTracing(ctx).WithField("op", "admin.listSignups").WithError(err).Error("listing newsletter signups")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch signups"})
		return
	}
	c.JSON(http.StatusOK, signups)
}
