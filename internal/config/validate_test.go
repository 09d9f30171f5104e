package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a fully wired config that passes validation.
func validConfig() Config {
	cfg := Defaults()
	cfg.Firebase.DatabaseURL = "https://demo-rtdb.firebaseio.com"
	cfg.Firebase.AccessToken = "fb-token"
	cfg.Kommo.Subdomain = "wirasena"
	cfg.Kommo.AccessToken = "kommo-token"
	cfg.Kommo.Bots.Reply = 66700
	cfg.Kommo.Bots.MainMenuEN = 66701
	cfg.Kommo.Bots.MainMenuID = 66702
	return cfg
}

func pathsOf(issues []ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Path)
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_DefaultsMissingCredentials(t *testing.T) {
	cfg := Defaults()
	paths := pathsOf(Validate(&cfg))

	assert.Contains(t, paths, "firebase.databaseUrl")
	assert.Contains(t, paths, "firebase")
	assert.Contains(t, paths, "kommo.subdomain")
	assert.Contains(t, paths, "kommo.accessToken")
	assert.Contains(t, paths, "kommo.bots.reply")
	assert.Contains(t, paths, "kommo.bots.mainMenuEn")
	assert.Contains(t, paths, "kommo.bots.mainMenuId")
}

func TestValidate_DatabaseURLScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Firebase.DatabaseURL = "ftp://example.com"
	issues := Validate(&cfg)
	require.NotEmpty(t, issues)
	assert.Equal(t, "firebase.databaseUrl", issues[0].Path)
}

func TestValidate_FirebaseAuthAlternatives(t *testing.T) {
	cfg := validConfig()
	cfg.Firebase.AccessToken = ""
	assert.Contains(t, pathsOf(Validate(&cfg)), "firebase")

	cfg.Firebase.ServiceAccountFile = "/etc/sa.json"
	assert.Empty(t, Validate(&cfg), "service account file alone is enough")
}

func TestValidate_StoreDriver(t *testing.T) {
	for _, driver := range []string{"sqlite", "memory", ""} {
		cfg := validConfig()
		cfg.Store.Driver = driver
		assert.Empty(t, Validate(&cfg), "driver %q should be valid", driver)
	}

	cfg := validConfig()
	cfg.Store.Driver = "postgres"
	assert.Contains(t, pathsOf(Validate(&cfg)), "store.driver")
}

func TestValidate_KommoTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Kommo.TimeoutSeconds = 0
	assert.Contains(t, pathsOf(Validate(&cfg)), "kommo.timeoutSeconds")

	cfg.Kommo.TimeoutSeconds = 301
	assert.Contains(t, pathsOf(Validate(&cfg)), "kommo.timeoutSeconds")

	cfg.Kommo.TimeoutSeconds = 300
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_KommoRetries(t *testing.T) {
	cfg := validConfig()
	cfg.Kommo.MaxRetries = -1
	assert.Contains(t, pathsOf(Validate(&cfg)), "kommo.maxRetries")

	cfg.Kommo.MaxRetries = 11
	assert.Contains(t, pathsOf(Validate(&cfg)), "kommo.maxRetries")

	cfg.Kommo.MaxRetries = 0
	assert.Empty(t, Validate(&cfg), "zero retries disables retrying")
}

func TestValidate_BotIDs(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		path string
	}{
		{"lang select", func(c *Config) { c.Kommo.Bots.LangSelect = 0 }, "kommo.bots.langSelect"},
		{"reply", func(c *Config) { c.Kommo.Bots.Reply = -5 }, "kommo.bots.reply"},
		{"main menu en", func(c *Config) { c.Kommo.Bots.MainMenuEN = 0 }, "kommo.bots.mainMenuEn"},
		{"main menu id", func(c *Config) { c.Kommo.Bots.MainMenuID = 0 }, "kommo.bots.mainMenuId"},
		{"message field", func(c *Config) { c.Kommo.MessageFieldID = 0 }, "kommo.messageFieldId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mut(&cfg)
			assert.Contains(t, pathsOf(Validate(&cfg)), tt.path)
		})
	}
}

func TestValidate_LoveBaliURL(t *testing.T) {
	cfg := validConfig()
	cfg.LoveBali.BaseURL = "not-a-url"
	assert.Contains(t, pathsOf(Validate(&cfg)), "lovebali.baseUrl")
}

func TestValidate_SessionTTL(t *testing.T) {
	cfg := validConfig()
	cfg.Session.TTLHours = 0
	assert.Contains(t, pathsOf(Validate(&cfg)), "session.ttlHours")

	cfg.Session.TTLHours = 8761
	assert.Contains(t, pathsOf(Validate(&cfg)), "session.ttlHours")

	cfg.Session.TTLHours = 8760
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_CleanupSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.Session.CleanupSchedule = "off"
	assert.Empty(t, Validate(&cfg))

	cfg.Session.CleanupSchedule = "@hourly"
	assert.Empty(t, Validate(&cfg))

	cfg.Session.CleanupSchedule = "not a cron"
	assert.Contains(t, pathsOf(Validate(&cfg)), "session.cleanupSchedule")

	cfg.Session.CleanupSchedule = "61 * * * *"
	assert.Contains(t, pathsOf(Validate(&cfg)), "session.cleanupSchedule")
}

func TestValidate_QueueSize(t *testing.T) {
	cfg := validConfig()
	cfg.Bridge.QueueSize = 0
	assert.Contains(t, pathsOf(Validate(&cfg)), "bridge.queueSize")

	cfg.Bridge.QueueSize = 10001
	assert.Contains(t, pathsOf(Validate(&cfg)), "bridge.queueSize")
}

func TestValidate_LogLevel(t *testing.T) {
	for _, level := range []string{"silent", "fatal", "error", "warn", "info", "debug", "trace", ""} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.Empty(t, Validate(&cfg), "level %q should be valid", level)
	}

	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	assert.Contains(t, pathsOf(Validate(&cfg)), "logging.level")
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "kommo.subdomain", Message: "subdomain is required"}
	assert.Equal(t, "kommo.subdomain: subdomain is required", issue.String())
}
