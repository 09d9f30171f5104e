package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirasena/kommobridge/internal/config"
	"github.com/wirasena/kommobridge/internal/domain"
	"github.com/wirasena/kommobridge/internal/store"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and maintain conversation sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsCleanupCmd())
	return cmd
}

// openSessionStore opens the SQLite store for offline maintenance commands.
func openSessionStore() (*store.SessionStore, func(), error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Driver == "memory" {
		return nil, nil, fmt.Errorf("store driver is %q: the memory store holds no data outside a running bridge", cfg.Store.Driver)
	}

	db, err := store.Open(paths.StorePath(&cfg), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return store.NewSessionStore(db), func() { db.Close() }, nil
}

func newSessionsListCmd() *cobra.Command {
	var (
		entityID int64
		all      bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ss, closeStore, err := openSessionStore()
			if err != nil {
				return err
			}
			defer closeStore()

			var sessions []*domain.Session
			if entityID != 0 {
				sessions, err = ss.ByEntity(entityID, !all)
			} else {
				sessions, err = ss.Recent(limit)
			}
			if err != nil {
				return err
			}
			if entityID == 0 && !all {
				active := sessions[:0]
				for _, sess := range sessions {
					if sess.Active {
						active = append(active, sess)
					}
				}
				sessions = active
			}

			if len(sessions) == 0 {
				fmt.Println("No sessions.")
				return nil
			}

			fmt.Printf("%-36s  %-10s  %-4s  %-13s  %-6s  %s\n",
				"ID", "ENTITY", "LANG", "COMMAND", "ACTIVE", "EXPIRES")
			for _, sess := range sessions {
				lang := string(sess.Language)
				if lang == "" {
					lang = "-"
				}
				fmt.Printf("%-36s  %-10d  %-4s  %-13s  %-6v  %s\n",
					sess.ID, sess.EntityID, lang, sess.Command, sess.Active,
					humanExpiry(sess.ExpiresAt))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&entityID, "entity", 0, "only sessions for this entity id")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive sessions")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list")

	return cmd
}

func newSessionsCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Deactivate expired sessions now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ss, closeStore, err := openSessionStore()
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := ss.CleanupExpired()
			if err != nil {
				return err
			}
			fmt.Printf("Deactivated %d expired session(s)\n", n)
			return nil
		},
	}
}

func humanExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Until(t)
	if d <= 0 {
		return "expired"
	}
	return "in " + d.Round(time.Minute).String()
}
