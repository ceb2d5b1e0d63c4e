package main

import (
	"fmt"
	"io"
	"os"

	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/logging"
	"rentalhub/internal/security"
	"rentalhub/internal/service"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// env is what every command needs: config, logger and an open database.
type env struct {
	cfg    *config.Config
	logger *zerolog.Logger
	db     *database.DB
	closer io.Closer
}

func openEnv(cctx *cli.Context) (*env, error) {
	cfg, err := config.Load(cctx.String(configFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// CLI output goes to stdout, logs stay out of the way
	cfg.Logging.Output = "stderr"
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: db, closer: closer}, nil
}

func (e *env) Close() {
	_ = e.db.Close()
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

var tokenCmd = &cli.Command{
	Name:  "token",
	Usage: "issue a bearer token for a user",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "user", Required: true, Usage: "user id"},
	},
	Action: func(cctx *cli.Context) error {
		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		userID := cctx.Int64("user")
		if _, err := e.db.GetUser(cctx.Context, userID); err != nil {
			return fmt.Errorf("user %d: %w", userID, err)
		}

		auth := e.cfg.API.Auth
		token, err := security.NewTokenManager(auth.JWTSecret, auth.Issuer, auth.TokenTTL).Generate(userID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cctx.App.Writer, token)
		return err
	},
}

var userCmd = &cli.Command{
	Name:  "user",
	Usage: "manage users",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "register a user and print its id",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "email", Required: true},
				&cli.StringFlag{Name: "phone"},
				&cli.Int64Flag{Name: "telegram-chat-id"},
			},
			Action: func(cctx *cli.Context) error {
				e, err := openEnv(cctx)
				if err != nil {
					return err
				}
				defer e.Close()

				req := service.CreateUserRequest{
					Name:  cctx.String("name"),
					Email: cctx.String("email"),
					Phone: cctx.String("phone"),
				}
				if cctx.IsSet("telegram-chat-id") {
					chatID := cctx.Int64("telegram-chat-id")
					req.TelegramChatID = &chatID
				}

				users := service.NewUserService(e.db, e.db, e.logger)
				user, err := users.Create(cctx.Context, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cctx.App.Writer, "%d\t%s\n", user.ID, user.Email)
				return err
			},
		},
	},
}

var backupCmd = &cli.Command{
	Name:  "backup",
	Usage: "snapshot the database and prune old snapshots",
	Action: func(cctx *cli.Context) error {
		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if e.cfg.Backup.StoragePath == "" {
			return fmt.Errorf("backup.storage_path is not configured")
		}
		backup := database.NewBackupService(e.db, e.cfg.Database.Path, e.cfg.Backup, e.logger)
		path, err := backup.PerformBackup(cctx.Context)
		if err != nil {
			return err
		}
		backup.CleanupOldBackups()
		_, err = fmt.Fprintln(cctx.App.Writer, path)
		return err
	},
}

var exportCmd = &cli.Command{
	Name:  "export",
	Usage: "write a user's rentals to an xlsx file",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "user", Required: true, Usage: "user id"},
		&cli.StringFlag{Name: "out", Value: "rentals.xlsx", TakesFile: true},
	},
	Action: func(cctx *cli.Context) error {
		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		f, err := os.Create(cctx.String("out"))
		if err != nil {
			return err
		}

		export := service.NewExportService(e.db, e.db, e.logger)
		n, err := export.WriteRentals(cctx.Context, cctx.Int64("user"), f)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cctx.App.Writer, "%d rentals written to %s\n", n, cctx.String("out"))
		return err
	},
}
