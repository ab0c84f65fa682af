package telephony

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"careline/internal/assistant"
	"careline/internal/calls"
	"careline/internal/escalation"
	"careline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallStore is the slice of the call service the webhook drives.
type CallStore interface {
	FindOrCreateForInbound(ctx context.Context, callSid, callerPhone string) (calls.Call, error)
	CompleteBySid(ctx context.Context, callSid string) error
}

// Responder produces one assistant turn per utterance.
type Responder interface {
	Reply(ctx context.Context, conversationID, utterance string) (assistant.Reply, error)
}

// CounselorAssigner routes an escalating call to a counselor.
type CounselorAssigner interface {
	Assign(ctx context.Context, callID string, reason escalation.Reason) (escalation.Assignment, error)
}

// VoiceWebhookHandler is the call state machine entry point. Each
// provider callback drives one transition:
//
//	NEW -> ai_handling           first utterance creates user/conversation/call
//	ai_handling -> counselor_assigned   escalating utterance with a counselor free
//	any -> completed             terminal status callback (idempotent)
//
// Every branch answers with a well-formed voice document; callers never
// see a transport-level error.
type VoiceWebhookHandler struct {
	Calls     CallStore
	Responder Responder
	Assigner  CounselorAssigner

	// ActionPath is where Gather posts the next utterance; normally the
	// webhook's own route.
	ActionPath string
}

func (h VoiceWebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	// Last-resort guard: a panic anywhere below must still yield a
	// spoken response, not a 500.
	defer func() {
		if p := recover(); p != nil {
			log.Error("voice webhook panic", "panic", p)
			if !c.Writer.Written() {
				writeTwiML(c, TechnicalDifficultiesMenu())
			}
		}
	}()

	form, err := ParseVoiceWebhook(c.Request)
	if err != nil {
		log.Warn("voice webhook parse failed", "err", err)
		writeTwiML(c, TechnicalDifficultiesMenu())
		return
	}

	// Terminal status callback: update state, acknowledge with an
	// empty body (no voice menu for a call that already ended).
	if IsTerminalCallStatus(form.CallStatus) {
		h.handleTerminalStatus(c, form)
		return
	}

	// First contact: greet without touching storage so the first ring
	// can never hang on the datastore.
	if !form.SpeechPresent {
		writeTwiML(c, GreetingMenu(h.ActionPath))
		return
	}

	speech := strings.TrimSpace(form.SpeechResult)
	if speech == "" {
		writeTwiML(c, RepromptMenu(h.ActionPath))
		return
	}

	h.handleSpeech(c, form, speech)
}

func (h VoiceWebhookHandler) handleTerminalStatus(c *gin.Context, form VoiceWebhookForm) {
	log := logger.FromGin(c)

	if form.CallSid != "" {
		err := h.Calls.CompleteBySid(c.Request.Context(), form.CallSid)
		switch {
		case err == nil:
			log.Info("call completed", "call_sid", form.CallSid, "call_status", form.CallStatus)
		case errors.Is(err, calls.ErrNotFound):
			// Status callback for a call we never recorded; nothing to do.
		default:
			log.Error("terminal status update failed", "call_sid", form.CallSid, "err", err)
		}
	}
	c.String(http.StatusOK, "")
}

func (h VoiceWebhookHandler) handleSpeech(c *gin.Context, form VoiceWebhookForm, speech string) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	call, err := h.Calls.FindOrCreateForInbound(ctx, form.CallSid, form.From)
	if err != nil {
		log.Error("call lookup failed", "call_sid", form.CallSid, "err", err)
		writeTwiML(c, ApologyMenu(h.ActionPath))
		return
	}

	reply, err := h.Responder.Reply(ctx, call.ConversationID, speech)
	if err != nil {
		log.Error("assistant reply failed", "call_id", call.ID, "err", err)
		writeTwiML(c, ApologyMenu(h.ActionPath))
		return
	}

	if reply.Escalate {
		h.handleEscalation(c, call, reply.Reason)
		return
	}

	text := SanitizeSpeech(reply.Text)
	if text == "" {
		text = "I'm here to listen. How are you feeling?"
	}
	writeTwiML(c, ReplyMenu(h.ActionPath, text))
}

func (h VoiceWebhookHandler) handleEscalation(c *gin.Context, call calls.Call, reason escalation.Reason) {
	log := logger.FromGin(c)

	asg, err := h.Assigner.Assign(c.Request.Context(), call.ID, reason)
	switch {
	case err == nil && asg.CounselorPhone != "":
		log.Info("call escalated", "call_id", call.ID, "counselor_id", asg.CounselorID, "reason", string(reason))
		writeTwiML(c, ConnectCounselorMenu(asg.CounselorPhone))
	case errors.Is(err, escalation.ErrNoCounselorAvailable):
		log.Warn("escalation with no counselor available", "call_id", call.ID, "reason", string(reason))
		writeTwiML(c, HotlineMenu())
	default:
		// Assignment failed midway; the caller still gets resource
		// information rather than silence.
		log.Error("escalation failed", "call_id", call.ID, "err", err)
		writeTwiML(c, HotlineMenu())
	}
}

func writeTwiML(c *gin.Context, doc string) {
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, doc)
}
