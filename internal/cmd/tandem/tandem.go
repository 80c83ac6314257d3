// Package tandem parses configuration for the bot service command.
package tandem

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/tandembot/tandem/internal/app"
	platformcmd "github.com/tandembot/tandem/internal/platform/cmd"
)

// Config holds the bot service settings.
type Config struct {
	BotToken     string        `env:"TANDEM_BOT_TOKEN"`
	DBPath       string        `env:"TANDEM_DB_PATH" envDefault:"data/tandem.db"`
	InviteTTL    time.Duration `env:"TANDEM_INVITE_TTL" envDefault:"10m"`
	ReminderTick time.Duration `env:"TANDEM_REMINDER_TICK" envDefault:"60s"`
}

// ParseConfig loads environment defaults and applies flag overrides.
func ParseConfig(args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet(platformcmd.ServiceTandem, flag.ContinueOnError)
	fs.StringVar(&cfg.BotToken, "token", cfg.BotToken, "bot API token")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database")
	fs.DurationVar(&cfg.InviteTTL, "invite-ttl", cfg.InviteTTL, "invite code lifetime")
	fs.DurationVar(&cfg.ReminderTick, "reminder-tick", cfg.ReminderTick, "reminder sweep interval")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("bot token is required (TANDEM_BOT_TOKEN or -token)")
	}
	return cfg, nil
}

// Run parses configuration and executes the bot service.
func Run(ctx context.Context, args []string) error {
	cfg, err := ParseConfig(args)
	if err != nil {
		return err
	}
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceTandem, func(ctx context.Context) error {
		return app.Run(ctx, app.Config{
			BotToken:     cfg.BotToken,
			DBPath:       cfg.DBPath,
			InviteTTL:    cfg.InviteTTL,
			ReminderTick: cfg.ReminderTick,
		})
	})
}
