// Package config defines the server's command-line/environment
// configuration surface, following the cobra/pflag/viper layering the
// rest of this pack's command-line tools use.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved set of server options.
type Config struct {
	Bind                string
	Port                int
	DatabaseURL         string
	RoomIdleTimeout     time.Duration
	CrosswordEvictDelay time.Duration
	ShutdownGrace       time.Duration
	Verbose             bool
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	return nil
}

// New builds the root cobra.Command that parses flags, binds them to
// PUZZLEHALL_-prefixed environment variables via viper, and calls run with
// the resolved Config once validated.
func New(run func(cmd *cobra.Command, cfg *Config) error) *cobra.Command {
	_ = godotenv.Load()

	cfg := &Config{}

	v := viper.New()
	v.SetEnvPrefix("PUZZLEHALL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "puzzlehall",
		Short:         "Realtime crossword and trivia room server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: PUZZLEHALL_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: PUZZLEHALL_PORT)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres connection string; empty runs with the in-memory store (env: PUZZLEHALL_DATABASE_URL)")
	fs.DurationVar(&cfg.RoomIdleTimeout, "room-idle-timeout", 5*time.Minute, "time an empty trivia room whose game is over lingers before eviction (env: PUZZLEHALL_ROOM_IDLE_TIMEOUT)")
	fs.DurationVar(&cfg.CrosswordEvictDelay, "crossword-evict-delay", 0, "time an empty crossword room lingers before eviction (env: PUZZLEHALL_CROSSWORD_EVICT_DELAY)")
	fs.DurationVar(&cfg.ShutdownGrace, "shutdown-grace", 10*time.Second, "time allowed for in-flight broadcasts to drain on shutdown (env: PUZZLEHALL_SHUTDOWN_GRACE)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: PUZZLEHALL_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}
