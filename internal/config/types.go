package config

// Config is the root configuration for kommobridge.
type Config struct {
	Firebase FirebaseConfig `yaml:"firebase,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Kommo    KommoConfig    `yaml:"kommo,omitempty"`
	LoveBali LoveBaliConfig `yaml:"lovebali,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Bridge   BridgeConfig   `yaml:"bridge,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// FirebaseConfig points the bridge at the realtime database it listens to.
// Auth is either a long-lived access token or a Google service account file
// exchanged for OAuth2 tokens; the token wins when both are set.
type FirebaseConfig struct {
	DatabaseURL        string `yaml:"databaseUrl"`
	Path               string `yaml:"path,omitempty"` // subscription root within the database
	ProjectID          string `yaml:"projectId,omitempty"`
	ServiceAccountFile string `yaml:"serviceAccountFile,omitempty"`
	AccessToken        string `yaml:"accessToken,omitempty"`
}

// StoreConfig selects the session/lead store backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`   // sqlite file; defaults under the data dir
}

// KommoConfig holds CRM credentials and the salesbot/field wiring.
type KommoConfig struct {
	Subdomain      string     `yaml:"subdomain"`
	AccessToken    string     `yaml:"accessToken"`
	ClientID       string     `yaml:"clientId,omitempty"`     // kept for OAuth re-issue tooling; unused at runtime
	ClientSecret   string     `yaml:"clientSecret,omitempty"` // kept for OAuth re-issue tooling; unused at runtime
	TimeoutSeconds int        `yaml:"timeoutSeconds,omitempty"`
	MaxRetries     int        `yaml:"maxRetries,omitempty"`
	MessageFieldID int64      `yaml:"messageFieldId,omitempty"` // textarea custom field outbound texts are written to
	Bots           BotsConfig `yaml:"bots,omitempty"`
}

// BotsConfig maps conversation stages to salesbot ids.
type BotsConfig struct {
	LangSelect int64 `yaml:"langSelect,omitempty"` // first-contact language picker
	Reply      int64 `yaml:"reply,omitempty"`      // delivers the message custom field to the chat
	MainMenuEN int64 `yaml:"mainMenuEn,omitempty"` // main menu, English sessions
	MainMenuID int64 `yaml:"mainMenuId,omitempty"` // main menu, every other language
}

// LoveBaliConfig holds the passport registry API settings.
type LoveBaliConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	APIToken       string `yaml:"apiToken,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// SessionConfig defines session lifetime behavior.
type SessionConfig struct {
	TTLHours        int    `yaml:"ttlHours,omitempty"`
	CleanupSchedule string `yaml:"cleanupSchedule,omitempty"` // cron spec for the expiry sweep; "off" disables
}

// BridgeConfig tunes the event pipeline.
type BridgeConfig struct {
	QueueSize int `yaml:"queueSize,omitempty"` // bounded hand-off between listener and dispatch loop
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	JSON  bool   `yaml:"json,omitempty"`  // raw JSON lines instead of pretty console output
}
