package escalation

import "strings"

// Reason classifies why a call is handed from the assistant to a human.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonCrisis       Reason = "crisis"
	ReasonProfessional Reason = "requested_professional"
	ReasonTakeover     Reason = "counselor_takeover"
)

// Trigger phrases are matched case-insensitively as substrings of the
// caller's utterance, never of the assistant's reply.
var (
	crisisPhrases = []string{
		"suicide",
		"kill myself",
		"self-harm",
	}
	professionalPhrases = []string{
		"professional",
		"therapist",
		"counselor",
		"help me professionally",
	}
)

// Classify is a total, side-effect-free classification of one caller
// utterance. Crisis phrases take precedence when both classes match.
func Classify(utterance string) Reason {
	lowered := strings.ToLower(utterance)
	for _, p := range crisisPhrases {
		if strings.Contains(lowered, p) {
			return ReasonCrisis
		}
	}
	for _, p := range professionalPhrases {
		if strings.Contains(lowered, p) {
			return ReasonProfessional
		}
	}
	return ReasonNone
}
