package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirasena/kommobridge/internal/config"
	"github.com/wirasena/kommobridge/internal/store"
	"github.com/wirasena/kommobridge/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show kommobridge status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("kommobridge %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:   %s\n", paths.Config)
			fmt.Printf("Data:     %s\n", paths.Data)
			fmt.Printf("Logs:     %s\n", paths.Logs)
			fmt.Println()

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Println("Config file not found; showing defaults and environment overrides.")
				fmt.Println()
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:   error loading: %v\n", err)
				return nil
			}

			// Firebase
			auth := "none"
			switch {
			case cfg.Firebase.AccessToken != "":
				auth = "token"
			case cfg.Firebase.ServiceAccountFile != "":
				auth = "service-account"
			}
			fmt.Printf("Firebase: url=%s path=%s auth=%s\n",
				cfg.Firebase.DatabaseURL, cfg.Firebase.Path, auth)

			// Kommo
			fmt.Printf("Kommo:    subdomain=%s token=%s field=%d retries=%d\n",
				cfg.Kommo.Subdomain, setOrMissing(cfg.Kommo.AccessToken),
				cfg.Kommo.MessageFieldID, cfg.Kommo.MaxRetries)
			fmt.Printf("Bots:     lang-select=%d reply=%d menu-en=%d menu-id=%d\n",
				cfg.Kommo.Bots.LangSelect, cfg.Kommo.Bots.Reply,
				cfg.Kommo.Bots.MainMenuEN, cfg.Kommo.Bots.MainMenuID)

			// Love Bali
			fmt.Printf("LoveBali: url=%s token=%s\n",
				cfg.LoveBali.BaseURL, setOrMissing(cfg.LoveBali.APIToken))

			// Store and session lifecycle
			if cfg.Store.Driver == "memory" {
				fmt.Println("Store:    driver=memory")
			} else {
				fmt.Printf("Store:    driver=%s path=%s\n", cfg.Store.Driver, paths.StorePath(&cfg))
			}
			fmt.Printf("Session:  ttl=%dh cleanup=%q queue=%d\n",
				cfg.Session.TTLHours, cfg.Session.CleanupSchedule, cfg.Bridge.QueueSize)

			// Store contents, when a database file exists
			if cfg.Store.Driver != "memory" {
				printStoreCounts(paths.StorePath(&cfg))
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func setOrMissing(s string) string {
	if s == "" {
		return "missing"
	}
	return "set"
}

func printStoreCounts(dbPath string) {
	if _, err := os.Stat(dbPath); err != nil {
		return
	}
	db, err := store.Open(dbPath, log)
	if err != nil {
		fmt.Printf("Store:    error opening: %v\n", err)
		return
	}
	defer db.Close()

	if active, total, err := store.NewSessionStore(db).Counts(); err == nil {
		fmt.Printf("Sessions: %d active / %d total\n", active, total)
	}
	if stats, err := store.NewLeadStore(db).Stats(); err == nil {
		fmt.Printf("Leads:    %d recorded (%d processed, %d pending)\n",
			stats.Total, stats.Processed, stats.Unprocessed)
	}
}
