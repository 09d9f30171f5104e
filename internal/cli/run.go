package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirasena/kommobridge/internal/bridge"
	"github.com/wirasena/kommobridge/internal/config"
	"github.com/wirasena/kommobridge/internal/handler"
	"github.com/wirasena/kommobridge/internal/kommo"
	"github.com/wirasena/kommobridge/internal/logging"
	"github.com/wirasena/kommobridge/internal/lovebali"
	"github.com/wirasena/kommobridge/internal/realtime"
	"github.com/wirasena/kommobridge/internal/store"
	"github.com/wirasena/kommobridge/internal/version"
)

func newRunCmd() *cobra.Command {
	var (
		watchPath string
		queueSize int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if watchPath != "" {
				cfg.Firebase.Path = watchPath
			}
			if queueSize != 0 {
				cfg.Bridge.QueueSize = queueSize
			}

			// Config supplies log settings the flags left unset.
			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			log = logging.New(nil, level, jsonLogs || cfg.Logging.JSON)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return &ExitError{
					Code: 2,
					Err:  fmt.Errorf("config validation failed with %d issue(s)", len(issues)),
				}
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("preparing data directories: %w", err)
			}

			// Session/lead store (SQLite or in-memory)
			var (
				sessions handler.SessionStore
				leads    handler.LeadStore
				sweeper  bridge.SessionSweeper
			)
			if cfg.Store.Driver == "memory" {
				mem := store.NewMemorySessionStore()
				sessions, sweeper = mem, mem
				leads = store.NewMemoryLeadStore()
				log.Info().Msg("using in-memory store")
			} else {
				dbPath := paths.StorePath(&cfg)
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening store: %w", err)
				}
				defer db.Close()
				ss := store.NewSessionStore(db)
				sessions, sweeper = ss, ss
				leads = store.NewLeadStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite store")
			}

			crm := kommo.New(kommo.Options{
				Subdomain:   cfg.Kommo.Subdomain,
				AccessToken: cfg.Kommo.AccessToken,
				Timeout:     time.Duration(cfg.Kommo.TimeoutSeconds) * time.Second,
				MaxRetries:  cfg.Kommo.MaxRetries,
			}, log)

			registry := lovebali.New(lovebali.Options{
				BaseURL:  cfg.LoveBali.BaseURL,
				APIToken: cfg.LoveBali.APIToken,
				Timeout:  time.Duration(cfg.LoveBali.TimeoutSeconds) * time.Second,
			}, log)

			var token realtime.TokenSource
			switch {
			case cfg.Firebase.AccessToken != "":
				token = realtime.StaticToken(cfg.Firebase.AccessToken)
			case cfg.Firebase.ServiceAccountFile != "":
				token, err = realtime.ServiceAccount(cfg.Firebase.ServiceAccountFile)
				if err != nil {
					return fmt.Errorf("loading service account: %w", err)
				}
			}

			// The stream subscribes relative to the client root, so event
			// paths line up with the paths handlers delete.
			rtdb, err := realtime.New(realtime.Options{
				DatabaseURL: cfg.Firebase.DatabaseURL,
				Root:        cfg.Firebase.Path,
				Token:       token,
			}, log)
			if err != nil {
				return err
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Connection tests are advisory; only the change stream is
			// load-bearing.
			testCtx, done := context.WithTimeout(ctx, 15*time.Second)
			if err := crm.TestConnection(testCtx); err != nil {
				log.Warn().Err(err).Msg("kommo connection test failed")
			}
			if err := rtdb.TestConnection(testCtx); err != nil {
				log.Warn().Err(err).Msg("realtime database connection test failed")
			}
			done()

			manager := handler.NewManager(log)
			manager.Register(handler.NewMessageHandler(handler.MessageHandlerConfig{
				ReplyBotID:         cfg.Kommo.Bots.Reply,
				MainMenuENBotID:    cfg.Kommo.Bots.MainMenuEN,
				MainMenuOtherBotID: cfg.Kommo.Bots.MainMenuID,
				MessageFieldID:     cfg.Kommo.MessageFieldID,
			}, sessions, crm, registry, rtdb, log))
			manager.Register(handler.NewLeadHandler(handler.LeadHandlerConfig{
				LangSelectBotID: cfg.Kommo.Bots.LangSelect,
				ReplyBotID:      cfg.Kommo.Bots.Reply,
				MessageFieldID:  cfg.Kommo.MessageFieldID,
				SessionTTLHours: cfg.Session.TTLHours,
			}, sessions, leads, crm, rtdb, log))
			manager.RegisterDefault(handler.NewEventLogger(log))

			b := bridge.New(bridge.Config{
				QueueSize:       cfg.Bridge.QueueSize,
				CleanupSchedule: cfg.Session.CleanupSchedule,
			}, rtdb, manager, sweeper, log)

			log.Info().
				Str("version", version.Version).
				Str("database", cfg.Firebase.DatabaseURL).
				Str("path", cfg.Firebase.Path).
				Msg("kommobridge starting")

			return b.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&watchPath, "path", "", "override the database path to watch")
	cmd.Flags().IntVar(&queueSize, "queue-size", 0, "override the event queue size")

	return cmd
}
