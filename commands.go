package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bensuskins/gymthon/internal/completion"
	"github.com/bensuskins/gymthon/internal/config"
	"github.com/bensuskins/gymthon/internal/database"
	"github.com/bensuskins/gymthon/internal/handlers"
	"github.com/bensuskins/gymthon/internal/logging"
	"github.com/bensuskins/gymthon/internal/models"
	"github.com/bensuskins/gymthon/internal/nutrition"
	"github.com/bensuskins/gymthon/internal/repository"
	"github.com/bensuskins/gymthon/internal/server"
	"github.com/bensuskins/gymthon/internal/services"
)

// environment is what every database-backed command starts from.
type environment struct {
	config config.Config
	db     *database.DB
	logs   io.Closer
}

func setup() (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logs, err := logging.Setup(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		logs.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &environment{config: cfg, db: db, logs: logs}, nil
}

func (env *environment) Close() {
	env.db.Close()
	env.logs.Close()
}

func (env *environment) newServer() (*server.Server, error) {
	if env.config.LLMAPIKey == "" {
		slog.Warn("no LLM API key configured, generation requests will fail", "hint", "set LLM_API_KEY or run 'gymthon keyring set'")
	}
	completer := completion.NewClient(env.config.LLMBaseURL, env.config.LLMAPIKey, env.config.LLMModel, env.config.LLMTimeout)
	return server.New(env.db, env.config, completer)
}

type ServeCmd struct{}

func (cmd *ServeCmd) Run() error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	srv, err := env.newServer()
	if err != nil {
		return err
	}

	if env.config.SchedulerEnabled {
		if err := srv.Scheduler().Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
	} else {
		slog.Info("scheduler disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run() error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	fmt.Printf("Migrations applied to %s database\n", env.db.Driver)
	return nil
}

type SweepCmd struct {
	Job string `arg:"" enum:"subscription-sweep,daily-diet,workout-renewal" help:"Job to run: subscription-sweep, daily-diet or workout-renewal."`
}

func (cmd *SweepCmd) Run() error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	srv, err := env.newServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := srv.Scheduler().Run(ctx, services.JobName(cmd.Job))
	if err != nil {
		return err
	}
	return printJSON(result)
}

type EstimateCmd struct {
	Food    string `arg:"" help:"Food name, for example 'chicken breast'."`
	Portion string `arg:"" optional:"" help:"Portion such as 200g, 1 cup or 2 tbsp. Defaults to 100g."`
}

func (cmd *EstimateCmd) Run() error {
	return printJSON(nutrition.Estimate(cmd.Food, cmd.Portion))
}

type UserAddCmd struct {
	Email string `required:"" help:"Email address."`
	Name  string `required:"" help:"Display name."`
	Admin bool   `help:"Grant the admin role."`
}

func (cmd *UserAddCmd) Run() error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	role := models.RoleMember
	if cmd.Admin {
		role = models.RoleAdmin
	}
	user, err := repository.NewUserRepository(env.db).Create(context.Background(), models.User{
		Email: strings.TrimSpace(cmd.Email),
		Name:  cmd.Name,
		Role:  role,
	})
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("a user with email %s already exists", cmd.Email)
	}
	if err != nil {
		return err
	}
	return printJSON(user)
}

type TokenCreateCmd struct {
	Email       string `required:"" help:"Email of the user the token authenticates."`
	Name        string `default:"cli" help:"Label for the token."`
	ExpiresDays int    `help:"Days until the token expires. Zero never expires."`
}

func (cmd *TokenCreateCmd) Run() error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	user, err := repository.NewUserRepository(env.db).FindByEmail(ctx, cmd.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("no user with email %s", cmd.Email)
	}
	if err != nil {
		return err
	}

	rawToken := handlers.GenerateToken()
	token := models.APIToken{
		Name:      cmd.Name,
		TokenHash: repository.HashToken(rawToken),
		UserID:    user.ID,
	}
	if cmd.ExpiresDays > 0 {
		expiresAt := time.Now().UTC().AddDate(0, 0, cmd.ExpiresDays)
		token.ExpiresAt = &expiresAt
	}
	if _, err := repository.NewAPITokenRepository(env.db).Create(ctx, token); err != nil {
		return err
	}

	fmt.Println(rawToken)
	fmt.Fprintln(os.Stderr, "Store this token now, it cannot be shown again.")
	return nil
}

type KeyringSetCmd struct {
	Key string `arg:"" help:"LLM API key to store."`
}

func (cmd *KeyringSetCmd) Run() error {
	if err := config.SetLLMKey(strings.TrimSpace(cmd.Key)); err != nil {
		return err
	}
	fmt.Println("LLM API key stored in OS keyring")
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run() error {
	if err := config.DeleteLLMKey(); err != nil {
		if errors.Is(err, config.ErrKeyNotFound) {
			return errors.New("no LLM API key stored in keyring")
		}
		return err
	}
	fmt.Println("LLM API key deleted from OS keyring")
	return nil
}

type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run() error {
	_, err := config.GetLLMKey()
	switch {
	case err == nil:
		fmt.Println("LLM API key is stored in OS keyring")
	case errors.Is(err, config.ErrKeyNotFound):
		fmt.Println("No LLM API key stored in OS keyring")
	default:
		return err
	}
	return nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
