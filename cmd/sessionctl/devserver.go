package main

import (
	"net/http"

	"github.com/jrsteele09/go-session-client/devserver"
	"github.com/jrsteele09/go-session-client/sessions"
	refreshrepofake "github.com/jrsteele09/go-session-client/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-session-client/users/repofake"
	"github.com/spf13/cobra"
)

func newDevServerCmd() *cobra.Command {
	var (
		seedEmail    string
		seedPassword string
		seedRole     string
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local auth backend that issues cookie sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := devserver.New(cfg, fakeuserrepo.NewFakeUserRepo(), refreshrepofake.NewFakeRefreshTokenRepo(),
				devserver.WithLogger(logger))
			if err != nil {
				return err
			}
			user, err := srv.Seed(seedEmail, "Dev User", seedPassword, sessions.ParseRole(seedRole))
			if err != nil {
				return err
			}
			logger.Info().Str("email", user.Email).Str("role", string(user.Role)).Msg("seeded user")

			server := &http.Server{Addr: cfg.GetPort(), Handler: srv}
			go listenAndServe(server)
			waitForStopSignal()
			return shutdown(server)
		},
	}

	cmd.Flags().StringVar(&seedEmail, "seed-email", "dev@example.com", "Email of the seeded user")
	cmd.Flags().StringVar(&seedPassword, "seed-password", "Passw0rd!", "Password of the seeded user")
	cmd.Flags().StringVar(&seedRole, "seed-role", string(sessions.RoleUser), "Role of the seeded user (USER, SELLER, ADMIN)")
	return cmd
}
