package telephony

import (
	"net/http"
	"strings"
)

// VoiceWebhookForm captures the subset of Twilio voice webhook fields
// the call state machine consumes. Twilio sends
// application/x-www-form-urlencoded by default.
//
// Keep it minimal and provider-adapter-only; state transitions are
// decided by the handler, not here.
type VoiceWebhookForm struct {
	CallSid string
	From    string
	To      string

	// SpeechResult is the transcription of the caller's speech.
	// SpeechPresent distinguishes first contact (field absent) from a
	// gathered-but-blank result, which reprompts instead of greeting.
	SpeechResult  string
	SpeechPresent bool

	// CallStatus carries terminal status codes on status callbacks.
	CallStatus string
}

// Terminal status codes Twilio reports when a call ends.
var terminalCallStatuses = map[string]struct{}{
	"completed": {},
	"busy":      {},
	"no-answer": {},
	"failed":    {},
	"canceled":  {},
}

func IsTerminalCallStatus(s string) bool {
	_, ok := terminalCallStatuses[s]
	return ok
}

func ParseVoiceWebhook(r *http.Request) (VoiceWebhookForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceWebhookForm{}, err
	}
	_, speechPresent := r.PostForm["SpeechResult"]
	f := VoiceWebhookForm{
		CallSid:       r.PostFormValue("CallSid"),
		From:          normalizePhone(r.PostFormValue("From")),
		To:            normalizePhone(r.PostFormValue("To")),
		SpeechResult:  r.PostFormValue("SpeechResult"),
		SpeechPresent: speechPresent,
		CallStatus:    r.PostFormValue("CallStatus"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}
