package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/guildchat-server/internal/app"
	"github.com/vovakirdan/guildchat-server/internal/auth"
	"github.com/vovakirdan/guildchat-server/internal/config"
	applog "github.com/vovakirdan/guildchat-server/internal/log"
	"github.com/vovakirdan/guildchat-server/internal/store"
)

type rootOptions struct {
	configPath string
	addr       string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "guildchat",
		Short:         "Real-time guild chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides config)")

	root.AddCommand(newServeCmd(opts), newDevUserCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newDevUserCmd(opts *rootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "dev-user <username>",
		Short: "Create a user with a session and print its identity token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := app.OpenStore(ctx, &cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if email == "" {
				email = args[0] + "@localhost"
			}
			user, err := st.CreateUser(ctx, store.NewUser{Username: args[0], Email: email})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			sess, err := st.CreateSession(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			token, err := auth.GenerateToken(app.JWTConfig(&cfg), user.ID, sess.ID)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			logger.Info().Int64("user_id", user.ID).Str("session_id", sess.ID).Msg("dev user created")
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (defaults to <username>@localhost)")
	return cmd
}

func loadConfig(opts *rootOptions) (config.Config, *zerolog.Logger, error) {
	bootLogger := applog.New("info", "console")
	cfg, path, err := config.Load(bootLogger, opts.configPath)
	if err != nil {
		return cfg, bootLogger, err
	}
	cfg.UpdateFrom(config.Config{Addr: opts.addr})

	logger := applog.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("path", path).Msg("config loaded")
	return cfg, logger, nil
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting guildchat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
