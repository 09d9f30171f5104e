package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Firebase.AccessToken = expandEnvVars(cfg.Firebase.AccessToken)
	cfg.Kommo.AccessToken = expandEnvVars(cfg.Kommo.AccessToken)
	cfg.Kommo.ClientID = expandEnvVars(cfg.Kommo.ClientID)
	cfg.Kommo.ClientSecret = expandEnvVars(cfg.Kommo.ClientSecret)
	cfg.LoveBali.APIToken = expandEnvVars(cfg.LoveBali.APIToken)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			normalize(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	normalize(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Firebase.Path == "" {
		cfg.Firebase.Path = "/"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Kommo.TimeoutSeconds == 0 {
		cfg.Kommo.TimeoutSeconds = 30
	}
	if cfg.Kommo.MaxRetries == 0 {
		cfg.Kommo.MaxRetries = 3
	}
	if cfg.Kommo.MessageFieldID == 0 {
		cfg.Kommo.MessageFieldID = DefaultMessageFieldID
	}
	if cfg.Kommo.Bots.LangSelect == 0 {
		cfg.Kommo.Bots.LangSelect = DefaultLangSelectBotID
	}
	if cfg.LoveBali.BaseURL == "" {
		cfg.LoveBali.BaseURL = DefaultLoveBaliBaseURL
	}
	if cfg.LoveBali.TimeoutSeconds == 0 {
		cfg.LoveBali.TimeoutSeconds = 30
	}
	if cfg.Session.TTLHours == 0 {
		cfg.Session.TTLHours = 24
	}
	if cfg.Session.CleanupSchedule == "" {
		cfg.Session.CleanupSchedule = "*/10 * * * *"
	}
	if cfg.Bridge.QueueSize == 0 {
		cfg.Bridge.QueueSize = 64
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// The credential variables keep the names the upstream deployment exports;
// app-level knobs use the KOMMOBRIDGE_ prefix.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIREBASE_DATABASE_URL"); v != "" {
		cfg.Firebase.DatabaseURL = v
	}
	if v := os.Getenv("FIREBASE_PATH"); v != "" {
		cfg.Firebase.Path = v
	}
	if v := os.Getenv("FIREBASE_PROJECT_ID"); v != "" {
		cfg.Firebase.ProjectID = v
	}
	if v := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"); v != "" {
		cfg.Firebase.ServiceAccountFile = v
	}
	if v := os.Getenv("FIREBASE_ACCESS_TOKEN"); v != "" {
		cfg.Firebase.AccessToken = v
	}
	if v := os.Getenv("KOMMO_SUBDOMAIN"); v != "" {
		cfg.Kommo.Subdomain = v
	}
	if v := os.Getenv("KOMMO_ACCESS_TOKEN"); v != "" {
		cfg.Kommo.AccessToken = v
	}
	if v := os.Getenv("KOMMO_CLIENT_ID"); v != "" {
		cfg.Kommo.ClientID = v
	}
	if v := os.Getenv("KOMMO_CLIENT_SECRET"); v != "" {
		cfg.Kommo.ClientSecret = v
	}
	if v := os.Getenv("LOVE_BALI_BASE_URL"); v != "" {
		cfg.LoveBali.BaseURL = v
	}
	if v := os.Getenv("LOVE_BALI_API_TOKEN"); v != "" {
		cfg.LoveBali.APIToken = v
	}
	if v := os.Getenv("KOMMOBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("KOMMOBRIDGE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("KOMMOBRIDGE_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.QueueSize = n
		}
	}
}

// normalize trims the shapes callers depend on: no trailing slash on the
// database URL, a leading slash on the subscription path.
func normalize(cfg *Config) {
	cfg.Firebase.DatabaseURL = strings.TrimRight(cfg.Firebase.DatabaseURL, "/")
	if cfg.Firebase.Path != "" && !strings.HasPrefix(cfg.Firebase.Path, "/") {
		cfg.Firebase.Path = "/" + cfg.Firebase.Path
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
}
