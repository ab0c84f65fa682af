package config

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "careline"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Twilio: TwilioConfig{
			AccountSID: "AC123",
			AuthToken:  "token",
		},
		Assistant: AssistantConfig{OpenAIAPIKey: "sk-test"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validTestConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "careline"
	c.Auth.JWTAudience = "careline-api"
	c.DB.SSLMode = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validTestConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Twilio.WebhookPath != "/webhooks/twilio/voice" {
		t.Fatalf("expected default webhook path, got %q", c.Twilio.WebhookPath)
	}
	if c.Assistant.ReplyTimeout != 10*time.Second {
		t.Fatalf("expected 10s reply timeout default, got %v", c.Assistant.ReplyTimeout)
	}
	if c.Assistant.MaxTokens != 150 {
		t.Fatalf("expected 150 max tokens default, got %d", c.Assistant.MaxTokens)
	}
}

func TestValidate_RejectsMissingTwilioCredentials(t *testing.T) {
	c := validTestConfig()
	c.Twilio.AccountSID = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing TWILIO_ACCOUNT_SID")
	}
}
