package telephony

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Minimal TwiML (Twilio Markup Language) response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only the verbs the voice flow needs are modeled. Every webhook
// branch must terminate in one of these documents; the provider
// expects markup on every callback, never a transport error.

const (
	sayVoice = "alice"

	// Gather attributes: listen for speech, post back to the same
	// webhook, give the caller a bounded window to start talking.
	gatherInput         = "speech"
	gatherMethod        = "POST"
	gatherSpeechTimeout = "3"
	gatherTimeout       = "10"
)

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Timeout       string   `xml:"timeout,attr"`
	Verbs         []any    `xml:",any"`
}

type twimlDial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:",chardata"`
}

func say(text string) twimlSay {
	return twimlSay{Voice: sayVoice, Text: text}
}

func gather(action string, verbs ...any) twimlGather {
	return twimlGather{
		Input:         gatherInput,
		Action:        action,
		Method:        gatherMethod,
		SpeechTimeout: gatherSpeechTimeout,
		Timeout:       gatherTimeout,
		Verbs:         verbs,
	}
}

// GreetingMenu opens a new call: welcome plus mood prompt, listen for
// speech, then a closing line if nothing is heard. This menu must not
// require any storage access so first ring can never hang.
func GreetingMenu(action string) string {
	return render(twimlResponse{Verbs: []any{
		say("Hello! I'm your mental health support assistant. How are you feeling today?"),
		gather(action, say("Please speak after the beep, and I'll listen.")),
		say("I didn't hear anything. Please try calling again."),
	}})
}

// RepromptMenu handles gathered-but-blank speech.
func RepromptMenu(action string) string {
	return render(twimlResponse{Verbs: []any{
		say("I didn't catch that. Could you please repeat?"),
		gather(action, say("Please speak clearly after the beep.")),
		say("Thank you for calling. Take care."),
	}})
}

// ReplyMenu speaks one assistant turn and prompts for further speech.
// reply must already be sanitized.
func ReplyMenu(action, reply string) string {
	return render(twimlResponse{Verbs: []any{
		gather(action,
			say(reply),
			say("What would you like to talk about next?"),
		),
		say("Thank you for calling. Take care of yourself."),
	}})
}

// ApologyMenu keeps the caller in the loop after an internal failure.
// It still gathers so the call continues rather than dropping.
func ApologyMenu(action string) string {
	return render(twimlResponse{Verbs: []any{
		say("I'm sorry, I'm having trouble responding right now. Please try again."),
		gather(action, say("What would you like to talk about next?")),
		say("Thank you for calling. Take care of yourself."),
	}})
}

// ConnectCounselorMenu announces the transfer, dials the counselor,
// and falls back to emergency guidance if the dial goes unanswered.
func ConnectCounselorMenu(counselorPhone string) string {
	return render(twimlResponse{Verbs: []any{
		say("I understand you need professional help. I'm connecting you with a licensed counselor. Please hold while I transfer your call."),
		twimlDial{Number: counselorPhone},
		say("The counselor is unavailable right now. Please call back later or contact emergency services if you're in immediate danger."),
	}})
}

// HotlineMenu is the escalation path when no counselor is available:
// resource information instead of a transfer, and no further Gather.
func HotlineMenu() string {
	return render(twimlResponse{Verbs: []any{
		say("I understand you need professional help. Our counselors are currently unavailable. Please contact the National Suicide Prevention Lifeline at 988, or visit an emergency room if you're in immediate danger."),
	}})
}

// TechnicalDifficultiesMenu is the last-resort document for uncaught
// failures anywhere in the webhook handler.
func TechnicalDifficultiesMenu() string {
	return render(twimlResponse{Verbs: []any{
		say("I'm sorry, I'm experiencing technical difficulties. Please try calling again later."),
	}})
}

// SanitizeSpeech strips characters that would break the voice-markup
// serialization out of model-generated text.
func SanitizeSpeech(s string) string {
	replacer := strings.NewReplacer("<", "", ">", "", "&", "", "'", "", `"`, "")
	return strings.TrimSpace(replacer.Replace(s))
}

func render(r twimlResponse) string {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		// Static verb structs cannot realistically fail to encode, but
		// the provider always needs a document.
		return xml.Header + "<Response><Say>I'm sorry, I'm experiencing technical difficulties. Please try calling again later.</Say></Response>"
	}
	_ = enc.Flush()
	return buf.String()
}
