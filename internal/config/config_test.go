package config

import (
	"strings"
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "salesops", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeAndEndpoint(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
	if !strings.Contains(err.Error(), "DB_SSLMODE") {
		t.Fatalf("expected DB_SSLMODE error, got %v", err)
	}
	if !strings.Contains(err.Error(), "HAPPYROBOT_ENDPOINT") {
		t.Fatalf("expected HAPPYROBOT_ENDPOINT error, got %v", err)
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.HappyRobot.APIBase != defaultHappyRobotAPIBase {
		t.Fatalf("expected default api base, got %q", c.HappyRobot.APIBase)
	}
	if c.Reconcile.GraceWindow != 60*time.Second {
		t.Fatalf("expected 60s grace window default, got %v", c.Reconcile.GraceWindow)
	}
	if c.Reconcile.CacheTTL != 10*time.Second {
		t.Fatalf("expected 10s cache ttl default, got %v", c.Reconcile.CacheTTL)
	}
	if c.Reconcile.Lookback != 5*time.Minute {
		t.Fatalf("expected 5m lookback default, got %v", c.Reconcile.Lookback)
	}
}

func TestValidate_RejectsHalfConfiguredCredentialPairs(t *testing.T) {
	c := validBase()
	c.HappyRobot.PollingSecret = "s"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for polling secret without org id")
	}

	c = validBase()
	c.HappyRobot.UseCaseID = "uc"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for use case id without reconcile token")
	}

	c = validBase()
	c.HappyRobot.PollingSecret = "s"
	c.HappyRobot.OrgID = "org"
	c.HappyRobot.ReconcileToken = "t"
	c.HappyRobot.UseCaseID = "uc"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error for complete pairs, got %v", err)
	}
}

func TestCallbackURL(t *testing.T) {
	c := validBase()
	if got := c.CallbackURL(); got != "" {
		t.Fatalf("expected empty callback url, got %q", got)
	}
	c.App.PublicBaseURL = "https://sales.example.com"
	want := "https://sales.example.com/webhooks/happyrobot/callback"
	if got := c.CallbackURL(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
