package escalation

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		utterance string
		want      Reason
	}{
		{"empty", "", ReasonNone},
		{"neutral", "I had an okay day at work", ReasonNone},
		{"crisis word", "I have been thinking about suicide", ReasonCrisis},
		{"crisis phrase", "sometimes I want to kill myself", ReasonCrisis},
		{"self harm hyphenated", "I struggle with self-harm", ReasonCrisis},
		{"professional keyword", "I think I need a professional", ReasonProfessional},
		{"therapist keyword", "can you find me a therapist", ReasonProfessional},
		{"counselor keyword", "please connect me with a counselor", ReasonProfessional},
		{"professional phrase", "can someone help me professionally", ReasonProfessional},
		{"case insensitive", "I NEED A THERAPIST", ReasonProfessional},
		{"substring inside word", "unprofessional behavior upset me", ReasonProfessional},
		{"crisis wins over professional", "my therapist says I talk about suicide", ReasonCrisis},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.utterance); got != tc.want {
				t.Fatalf("Classify(%q) = %q, want %q", tc.utterance, got, tc.want)
			}
		})
	}
}
