package httpapi

import (
	"errors"
	"net/http"
	"time"

	"careline/internal/auth"
	"careline/internal/calls"
	"careline/internal/escalation"
	"careline/internal/mood"
	"careline/internal/users"
	"careline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the auxiliary JSON endpoints for dependency injection.
// Keep these thin: parse/validate input, call internal services, return
// JSON with conventional 400/404/500 mapping. The voice flow never goes
// through here.
type Handlers struct {
	Auth     *auth.Manager
	Calls    *calls.Service
	Users    *users.Repo
	Assigner *escalation.Assigner
	Mood     *mood.Service
}

/* ===================== AUTH ===================== */

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues an access token.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	tok, err := h.Auth.IssueAccess(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

/* ===================== CALLS ===================== */

type endCallRequest struct {
	CallSid string `json:"call_sid"`
}

// EndCall terminates a call by its provider identifier, with the
// permissive most-recent-active fallback.
func (h Handlers) EndCall(c *gin.Context) {
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_sid required"})
		return
	}

	call, err := h.Calls.TerminateBySid(c.Request.Context(), req.CallSid)
	if err != nil {
		respondCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

type endCallByIDRequest struct {
	CallID string `json:"call_id"`
}

func (h Handlers) EndCallByID(c *gin.Context) {
	var req endCallByIDRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}

	call, err := h.Calls.Terminate(c.Request.Context(), req.CallID)
	if err != nil {
		respondCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

func (h Handlers) CallStatus(c *gin.Context) {
	callSid := c.Query("call_sid")
	if callSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_sid required"})
		return
	}

	call, err := h.Calls.GetBySid(c.Request.Context(), callSid)
	if err != nil {
		respondCallError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": call.Status})
}

func (h Handlers) ActiveCall(c *gin.Context) {
	call, ok, err := h.Calls.ActiveCall(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("active call check failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "active call check failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"has_active_call": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"has_active_call": true,
		"call_id":         call.ID,
		"call_sid":        call.ProviderCallSid,
		"call_status":     call.Status,
	})
}

/* ===================== COUNSELOR ===================== */

type availabilityRequest struct {
	Available bool `json:"available"`
}

// SetAvailability toggles the authenticated counselor between
// available and offline. Busy is owned by assignment, not by hand.
func (h Handlers) SetAvailability(c *gin.Context) {
	counselorID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	status := users.StatusOffline
	if req.Available {
		status = users.StatusAvailable
	}
	if err := h.Users.SetStatus(c.Request.Context(), counselorID, status); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "counselor not found"})
			return
		}
		logger.FromGin(c).Error("availability update failed", "counselor_id", counselorID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "availability update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type takeoverRequest struct {
	CallID string `json:"call_id"`
}

// Takeover assigns a call to the authenticated counselor. The same
// atomic select+busy transition as webhook escalation applies, so a
// takeover cannot double-book a counselor either.
func (h Handlers) Takeover(c *gin.Context) {
	counselorID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	var req takeoverRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}

	asg, err := h.Assigner.AssignTo(c.Request.Context(), req.CallID, counselorID, escalation.ReasonTakeover)
	if err != nil {
		switch {
		case errors.Is(err, escalation.ErrCallNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		case errors.Is(err, escalation.ErrCallCompleted),
			errors.Is(err, escalation.ErrNoCounselorAvailable),
			errors.Is(err, escalation.ErrCounselorBusy):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.FromGin(c).Error("takeover failed", "call_id", req.CallID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "takeover failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "escalation": asg.Escalation})
}

type registerCounselorRequest struct {
	Phone         string `json:"phone"`
	Name          string `json:"name"`
	Specialties   string `json:"specialties"`
	LicenseNumber string `json:"license_number"`
	Bio           string `json:"bio"`
}

func (h Handlers) RegisterCounselor(c *gin.Context) {
	var req registerCounselorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == "" || req.Name == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone and name required"})
		return
	}

	u, err := h.Users.RegisterCounselor(c.Request.Context(), req.Phone, req.Name, req.Specialties, req.LicenseNumber, req.Bio)
	if err != nil {
		logger.FromGin(c).Error("counselor registration failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counselor": u})
}

/* ===================== MOOD ===================== */

type createMoodRequest struct {
	Mood int    `json:"mood"`
	Note string `json:"note"`
}

func (h Handlers) CreateMood(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	var req createMoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	entry, err := h.Mood.Create(c.Request.Context(), userID, req.Mood, req.Note)
	if err != nil {
		if errors.Is(err, mood.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "mood must be between 1 and 10"})
			return
		}
		logger.FromGin(c).Error("mood create failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "mood create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func (h Handlers) ListMood(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	entries, err := h.Mood.ListForUser(c.Request.Context(), userID)
	if err != nil {
		logger.FromGin(c).Error("mood list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "mood list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func respondCallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid argument"})
	default:
		logger.FromGin(c).Error("call operation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call operation failed"})
	}
}
