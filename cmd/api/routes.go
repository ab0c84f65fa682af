package main

import (
	"database/sql"
	"net/http"
	"time"

	"careline/internal/assistant"
	"careline/internal/auth"
	"careline/internal/calls"
	"careline/internal/config"
	"careline/internal/conversations"
	"careline/internal/escalation"
	"careline/internal/httpapi"
	"careline/internal/mood"
	"careline/internal/telephony"
	"careline/internal/users"
	"careline/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"
)

type registerDeps struct {
	cfg  config.Config
	db   *sql.DB
	rdb  *redis.Client
	auth *auth.Manager
	chat *openai.Client
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, deps registerDeps) {
	convRepo := conversations.NewRepo(deps.db, utils.NewRedisMutex(deps.rdb))
	userRepo := users.NewRepo(deps.db)
	callControl := telephony.NewCallControlClient(deps.cfg.Twilio)
	callSvc := calls.NewService(deps.db, callControl)
	assigner := escalation.NewAssigner(deps.db)
	responder := assistant.NewResponder(deps.chat, convRepo, deps.cfg.Assistant)
	moodSvc := mood.NewService(deps.db)

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.PingDB(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: This endpoint should be protected by Twilio signature validation in production.
	webhook := telephony.VoiceWebhookHandler{
		Calls:      callSvc,
		Responder:  responder,
		Assigner:   assigner,
		ActionPath: deps.cfg.Twilio.WebhookPath,
	}
	r.POST(deps.cfg.Twilio.WebhookPath, webhook.HandleVoice)

	h := httpapi.Handlers{
		Auth:     deps.auth,
		Calls:    callSvc,
		Users:    userRepo,
		Assigner: assigner,
		Mood:     moodSvc,
	}

	// Token issuance is the only unauthenticated JSON route.
	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
		})

		callsGroup := v1.Group("/calls")
		{
			callsGroup.POST("/end", h.EndCall)
			callsGroup.POST("/end-by-id", h.EndCallByID)
			callsGroup.GET("/status", h.CallStatus)
			callsGroup.GET("/active", h.ActiveCall)
		}

		v1.POST("/counselors", h.RegisterCounselor)

		counselor := v1.Group("/counselor")
		counselor.Use(auth.RequireRole(auth.RoleCounselor))
		{
			counselor.POST("/availability", h.SetAvailability)
			counselor.POST("/takeover", h.Takeover)
		}

		moodGroup := v1.Group("/mood")
		{
			moodGroup.POST("", h.CreateMood)
			moodGroup.GET("", h.ListMood)
		}
	}
}
