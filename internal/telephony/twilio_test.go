package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postForm(t *testing.T, body string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/voice", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseVoiceWebhook_FirstContact(t *testing.T) {
	form, err := ParseVoiceWebhook(postForm(t, "CallSid=CA123&From=%2B15551234567&To=%2B15557654321"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid, got %q", form.CallSid)
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
	if form.SpeechPresent {
		t.Fatalf("first contact must not report speech")
	}
}

func TestParseVoiceWebhook_BlankSpeechIsPresent(t *testing.T) {
	form, err := ParseVoiceWebhook(postForm(t, "CallSid=CA123&From=%2B15551234567&SpeechResult="))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !form.SpeechPresent {
		t.Fatalf("empty SpeechResult field must still count as present")
	}
	if form.SpeechResult != "" {
		t.Fatalf("expected blank speech, got %q", form.SpeechResult)
	}
}

func TestParseVoiceWebhook_Speech(t *testing.T) {
	form, err := ParseVoiceWebhook(postForm(t, "CallSid=CA123&From=%2B15551234567&SpeechResult=I+feel+okay+today"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !form.SpeechPresent || form.SpeechResult != "I feel okay today" {
		t.Fatalf("unexpected speech: %+v", form)
	}
}

func TestIsTerminalCallStatus(t *testing.T) {
	for _, s := range []string{"completed", "busy", "no-answer", "failed", "canceled"} {
		if !IsTerminalCallStatus(s) {
			t.Fatalf("%q must be terminal", s)
		}
	}
	for _, s := range []string{"", "ringing", "in-progress", "queued", "COMPLETED"} {
		if IsTerminalCallStatus(s) {
			t.Fatalf("%q must not be terminal", s)
		}
	}
}
