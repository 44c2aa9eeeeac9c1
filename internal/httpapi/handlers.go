package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"salesops-console/internal/auth"
	"salesops-console/internal/calls"
	"salesops-console/internal/users"
	"salesops-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Users      *users.Service
	Trigger    *calls.TriggerService
	Reconciler *calls.Reconciler
	Callback   *calls.CallbackApplier
	Store      calls.Store

	// CallbackSecret, when non-empty, must match the x-callback-secret
	// header on platform callbacks.
	CallbackSecret string

	// RecentLimit is the page size of the status endpoint.
	RecentLimit int
}

const defaultRecentLimit = 20

// --- Auth ---

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, err := h.Users.Register(c.Request.Context(), users.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	switch {
	case errors.Is(err, users.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email, name and a password of at least 8 characters are required"})
		return
	case errors.Is(err, users.ErrEmailTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "user already exists"})
		return
	case err != nil:
		logger.FromGin(c).Error("register failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u.Public()})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, pair, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidArgument), errors.Is(err, users.ErrBadCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case err != nil:
		logger.FromGin(c).Error("login failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          u.Public(),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// ListUsers is admin-only (enforced by rbac middleware on the route).
func (h Handlers) ListUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("list users failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	out := make([]users.Public, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// --- Calls ---

type triggerCallRequest struct {
	SubjectName string `json:"subjectName"`
	PhoneNumber string `json:"phoneNumber"`
}

func (h Handlers) TriggerCall(c *gin.Context) {
	var req triggerCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	userID, _ := auth.UserID(c.Request.Context())

	rec, err := h.Trigger.Trigger(c.Request.Context(), calls.TriggerRequest{
		SubjectName: req.SubjectName,
		PhoneNumber: req.PhoneNumber,
		UserID:      userID,
	})

	var verr *calls.ValidationError
	var uerr *calls.UpstreamError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": verr.Fields,
			"call":    h.callView(c, rec),
		})
		return
	case errors.As(err, &uerr):
		logger.FromGin(c).Error("trigger upstream failure", "call_id", rec.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error": "failed to trigger call",
			"call":  h.callView(c, rec),
		})
		return
	case err != nil:
		logger.FromGin(c).Error("trigger failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"call": h.callView(c, rec)})
}

// CallStatus returns the most recent calls, reconciling non-terminal ones
// against the platform as a side effect first.
func (h Handlers) CallStatus(c *gin.Context) {
	limit := h.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	recent, err := h.Store.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.FromGin(c).Error("recent calls lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	reconciled := h.Reconciler.ReconcileAll(c.Request.Context(), recent)
	c.JSON(http.StatusOK, gin.H{"calls": h.callViews(c, reconciled)})
}

func (h Handlers) ListCalls(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	filter := calls.Filter{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := c.Query("status"); raw != "" {
		status := calls.CallStatus(raw)
		if !status.IsValid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		filter.Status = status
	}

	recs, total, err := h.Store.List(c.Request.Context(), filter)
	if err != nil {
		logger.FromGin(c).Error("list calls failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	c.JSON(http.StatusOK, gin.H{
		"calls":      h.callViews(c, recs),
		"total":      total,
		"page":       page,
		"pageSize":   pageSize,
		"totalPages": totalPages,
	})
}

// PlatformCallback accepts asynchronous push notifications from the
// calling platform. Public by design; optionally protected by a shared
// secret header.
func (h Handlers) PlatformCallback(c *gin.Context) {
	if h.CallbackSecret != "" {
		provided := c.GetHeader("x-callback-secret")
		if provided == "" {
			provided = c.GetHeader("x-happyrobot-callback-secret")
		}
		if provided != h.CallbackSecret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json payload"})
		return
	}

	_, err := h.Callback.Apply(c.Request.Context(), payload)
	switch {
	case errors.Is(err, calls.ErrNoCorrelation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "missing correlation id",
			"hint":  "send context.source.call_id (recommended) or run_id",
		})
		return
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	case err != nil:
		logger.FromGin(c).Error("callback apply failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// --- views ---

type callView struct {
	calls.CallRecord
	User *users.Public `json:"user,omitempty"`
}

func (h Handlers) callView(c *gin.Context, rec calls.CallRecord) callView {
	v := callView{CallRecord: rec}
	if rec.UserID != nil && h.Users != nil {
		if u, err := h.Users.Get(c.Request.Context(), *rec.UserID); err == nil {
			pub := u.Public()
			v.User = &pub
		}
	}
	return v
}

func (h Handlers) callViews(c *gin.Context, recs []calls.CallRecord) []callView {
	out := make([]callView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, h.callView(c, rec))
	}
	return out
}
