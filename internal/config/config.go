package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// DefaultLoveBaliBaseURL is the production passport registry endpoint.
const DefaultLoveBaliBaseURL = "https://lovebali.baliprov.go.id/api/v2/"

// Production wiring carried over from the deployed integration. Everything
// else bot/field related is tenant-specific and must be configured.
const (
	DefaultLangSelectBotID = 66624
	DefaultMessageFieldID  = 1069656
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Firebase: FirebaseConfig{
			Path: "/",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Kommo: KommoConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
			MessageFieldID: DefaultMessageFieldID,
			Bots: BotsConfig{
				LangSelect: DefaultLangSelectBotID,
			},
		},
		LoveBali: LoveBaliConfig{
			BaseURL:        DefaultLoveBaliBaseURL,
			TimeoutSeconds: 30,
		},
		Session: SessionConfig{
			TTLHours:        24,
			CleanupSchedule: "*/10 * * * *",
		},
		Bridge: BridgeConfig{
			QueueSize: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
