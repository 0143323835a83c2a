package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jrsteele09/go-session-client/credentials"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/invalidator"
	"github.com/jrsteele09/go-session-client/sessionmanager"
	"github.com/jrsteele09/go-session-client/sessions"
	"github.com/jrsteele09/go-session-client/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		email        string
		password     string
		metricsAddr  string
		keepOnExit   bool
		inMemoryOnly bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sign in and keep the session refreshed until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = config.GetEnv("SESSIONCTL_PASSWORD", "")
			}

			opts := []sessionmanager.Option{
				sessionmanager.WithLogger(logger),
				sessionmanager.WithRedirector(invalidator.RedirectorFunc(func(route string) {
					logger.Warn().Str("route", route).Msg("signed out, sign in again to continue")
				})),
			}

			if !inMemoryOnly {
				db, err := openStorage(cmd.Context(), cfg.GetDataFolder())
				if err != nil {
					return err
				}
				defer db.Close()
				jar, err := credentials.NewPersistentJar(db.Area("cookies"), cfg.GetBaseURL())
				if err != nil {
					return err
				}
				opts = append(opts,
					sessionmanager.WithLocalStorage(db.Area("local")),
					sessionmanager.WithCookieJar(jar),
				)
			}

			var metricsServer *http.Server
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				opts = append(opts, sessionmanager.WithMetrics(reg))
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				metricsServer = &http.Server{Addr: metricsAddr, Handler: mux}
				go listenAndServe(metricsServer)
			}

			m, err := sessionmanager.New(cfg, opts...)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			m.Start(ctx)

			if email != "" {
				state, err := m.Login(ctx, email, password)
				if err != nil {
					m.Stop()
					return err
				}
				if state.User != nil {
					if err := m.LocalStorage().Set("authUser", state.User.Email); err != nil {
						logger.Warn().Err(err).Msg("remember signed in user")
					}
				}
			}

			go logStateChanges(ctx, m.Reader())

			waitForStopSignal()

			if !keepOnExit && m.State().IsAuthenticated {
				logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := m.Logout(logoutCtx); err != nil {
					logger.Error().Err(err).Msg("logout")
				}
				logoutCancel()
			}
			m.Stop()

			if metricsServer != nil {
				return shutdown(metricsServer)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Sign in with this email (omit to resume the session saved by a previous run)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or SESSIONCTL_PASSWORD env)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", cfg.GetMetricsAddr(), "Serve prometheus metrics on this address")
	cmd.Flags().BoolVar(&keepOnExit, "keep-session", false, "Do not sign out on exit")
	cmd.Flags().BoolVar(&inMemoryOnly, "in-memory", false, "Do not persist cookies or local storage to disk")
	return cmd
}

func openStorage(ctx context.Context, folder string) (*storage.SQLiteDB, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fmt.Errorf("create data folder: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return storage.OpenSQLite(ctx, filepath.Join(folder, "storage.db"), logger)
}

func logStateChanges(ctx context.Context, reader sessions.Reader) {
	updates, unsubscribe := reader.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if state.IsAuthenticated {
				logger.Info().
					Str("user_id", state.User.UserID).
					Str("role", string(state.User.Role)).
					Time("expires_at", state.User.ExpiresAt).
					Msg("session active")
			} else {
				logger.Info().Msg("no session")
			}
		}
	}
}

func listenAndServe(server *http.Server) {
	logger.Info().Str("addr", server.Addr).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("addr", server.Addr).Msg("server.ListenAndServe")
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
