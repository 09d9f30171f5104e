package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Firebase validation
	if cfg.Firebase.DatabaseURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "firebase.databaseUrl",
			Message: "database URL is required",
		})
	} else if !strings.HasPrefix(cfg.Firebase.DatabaseURL, "http://") &&
		!strings.HasPrefix(cfg.Firebase.DatabaseURL, "https://") {
		issues = append(issues, ValidationIssue{
			Path:    "firebase.databaseUrl",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.Firebase.DatabaseURL),
		})
	}
	if cfg.Firebase.AccessToken == "" && cfg.Firebase.ServiceAccountFile == "" {
		issues = append(issues, ValidationIssue{
			Path:    "firebase",
			Message: "either accessToken or serviceAccountFile is required",
		})
	}

	// Store validation
	validDrivers := []string{"sqlite", "memory"}
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		issues = append(issues, ValidationIssue{
			Path:    "store.driver",
			Message: fmt.Sprintf("must be one of %v, got %q", validDrivers, cfg.Store.Driver),
		})
	}

	// Kommo validation
	if cfg.Kommo.Subdomain == "" {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.subdomain",
			Message: "subdomain is required",
		})
	}
	if cfg.Kommo.AccessToken == "" {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.accessToken",
			Message: "access token is required",
		})
	}
	if cfg.Kommo.TimeoutSeconds < 1 || cfg.Kommo.TimeoutSeconds > 300 {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.timeoutSeconds",
			Message: fmt.Sprintf("must be 1-300, got %d", cfg.Kommo.TimeoutSeconds),
		})
	}
	if cfg.Kommo.MaxRetries < 0 || cfg.Kommo.MaxRetries > 10 {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.maxRetries",
			Message: fmt.Sprintf("must be 0-10, got %d", cfg.Kommo.MaxRetries),
		})
	}
	if cfg.Kommo.MessageFieldID <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.messageFieldId",
			Message: "message custom field id is required",
		})
	}
	if cfg.Kommo.Bots.LangSelect <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.bots.langSelect",
			Message: "language-select bot id is required",
		})
	}
	if cfg.Kommo.Bots.Reply <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.bots.reply",
			Message: "reply bot id is required",
		})
	}
	if cfg.Kommo.Bots.MainMenuEN <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.bots.mainMenuEn",
			Message: "English main-menu bot id is required",
		})
	}
	if cfg.Kommo.Bots.MainMenuID <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "kommo.bots.mainMenuId",
			Message: "Indonesian main-menu bot id is required",
		})
	}

	// Love Bali validation
	if cfg.LoveBali.BaseURL != "" &&
		!strings.HasPrefix(cfg.LoveBali.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.LoveBali.BaseURL, "https://") {
		issues = append(issues, ValidationIssue{
			Path:    "lovebali.baseUrl",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.LoveBali.BaseURL),
		})
	}
	if cfg.LoveBali.TimeoutSeconds < 1 || cfg.LoveBali.TimeoutSeconds > 300 {
		issues = append(issues, ValidationIssue{
			Path:    "lovebali.timeoutSeconds",
			Message: fmt.Sprintf("must be 1-300, got %d", cfg.LoveBali.TimeoutSeconds),
		})
	}

	// Session validation
	if cfg.Session.TTLHours < 1 || cfg.Session.TTLHours > 8760 {
		issues = append(issues, ValidationIssue{
			Path:    "session.ttlHours",
			Message: fmt.Sprintf("must be 1-8760, got %d", cfg.Session.TTLHours),
		})
	}
	if sched := cfg.Session.CleanupSchedule; sched != "" && sched != "off" {
		if _, err := cron.ParseStandard(sched); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "session.cleanupSchedule",
				Message: fmt.Sprintf("invalid cron spec %q: %v", sched, err),
			})
		}
	}

	// Bridge validation
	if cfg.Bridge.QueueSize < 1 || cfg.Bridge.QueueSize > 10000 {
		issues = append(issues, ValidationIssue{
			Path:    "bridge.queueSize",
			Message: fmt.Sprintf("must be 1-10000, got %d", cfg.Bridge.QueueSize),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
