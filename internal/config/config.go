// Package config builds the command line of both binaries. Every flag can
// also be set through a FLASHPVP_* environment variable or a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/flashcountry-pvp/internal/rounds"
)

const EnvPrefix = "FLASHPVP"

type Server struct {
	Bind         string
	Port         int
	DatabaseURL  string
	PublicURL    string
	Origins      []string
	ReapInterval time.Duration
	MaxRoomAge   time.Duration
	RateLimit    float64
	RateBurst    int
	LogLevel     string
	Dev          bool
}

func (c *Server) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.MaxRoomAge <= 0 || c.ReapInterval <= 0 {
		return errors.New("--max-room-age and --reap-interval must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("--rate-limit and --rate-burst must be positive")
	}
	if c.PublicURL != "" {
		if _, err := url.Parse(c.PublicURL); err != nil {
			return fmt.Errorf("invalid --public-url: %w", err)
		}
	}
	return nil
}

func (c *Server) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

func (c *Server) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: FLASHPVP_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: FLASHPVP_PORT)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "postgres dsn; rooms live in memory when empty (env: FLASHPVP_DATABASE_URL)")
	fs.StringVar(&c.PublicURL, "public-url", "", "base url encoded in room QR codes (env: FLASHPVP_PUBLIC_URL)")
	fs.StringSliceVar(&c.Origins, "origins", nil, "extra websocket origin patterns (env: FLASHPVP_ORIGINS)")
	fs.DurationVar(&c.ReapInterval, "reap-interval", 5*time.Minute, "how often abandoned rooms are swept (env: FLASHPVP_REAP_INTERVAL)")
	fs.DurationVar(&c.MaxRoomAge, "max-room-age", time.Hour, "rooms older than this are deleted (env: FLASHPVP_MAX_ROOM_AGE)")
	fs.Float64Var(&c.RateLimit, "rate-limit", 20, "requests per second per connection (env: FLASHPVP_RATE_LIMIT)")
	fs.IntVar(&c.RateBurst, "rate-burst", 40, "request burst per connection (env: FLASHPVP_RATE_BURST)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error (env: FLASHPVP_LOG_LEVEL)")
	fs.BoolVar(&c.Dev, "dev", false, "human readable logs (env: FLASHPVP_DEV)")
}

type Bot struct {
	ServerURL  string
	Name       string
	Room       string
	Private    bool
	Difficulty string
	AssetURL   string
	Accuracy   float64
	MinDelay   time.Duration
	MaxDelay   time.Duration
	LogLevel   string
	Dev        bool
}

func (c *Bot) Validate() error {
	if c.ServerURL == "" {
		return errors.New("--server is required")
	}
	if _, err := rounds.ParseTier(c.Difficulty); err != nil {
		return err
	}
	if c.Accuracy < 0 || c.Accuracy > 1 {
		return fmt.Errorf("--accuracy must be within [0,1]: %v", c.Accuracy)
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return errors.New("--min-delay must be non-negative and not above --max-delay")
	}
	return nil
}

func (c *Bot) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ServerURL, "server", "s", "ws://localhost:8080/ws", "websocket endpoint of the server (env: FLASHPVP_SERVER)")
	fs.StringVarP(&c.Name, "name", "n", "bot", "pseudo shown to the opponent (env: FLASHPVP_NAME)")
	fs.StringVarP(&c.Room, "room", "r", "", "room code to join; quick match when empty (env: FLASHPVP_ROOM)")
	fs.BoolVar(&c.Private, "private", false, "create a private room instead of matching (env: FLASHPVP_PRIVATE)")
	fs.StringVar(&c.Difficulty, "difficulty", string(rounds.Easy), "easy, medium or hard (env: FLASHPVP_DIFFICULTY)")
	fs.StringVar(&c.AssetURL, "asset-url", "", "base url of the image bucket (env: FLASHPVP_ASSET_URL)")
	fs.Float64Var(&c.Accuracy, "accuracy", 0.7, "probability of a correct answer (env: FLASHPVP_ACCURACY)")
	fs.DurationVar(&c.MinDelay, "min-delay", 3*time.Second, "shortest answer delay (env: FLASHPVP_MIN_DELAY)")
	fs.DurationVar(&c.MaxDelay, "max-delay", 12*time.Second, "longest answer delay (env: FLASHPVP_MAX_DELAY)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error (env: FLASHPVP_LOG_LEVEL)")
	fs.BoolVar(&c.Dev, "dev", false, "human readable logs (env: FLASHPVP_DEV)")
}

// Bind lets FLASHPVP_* variables fill every flag the user did not pass.
func Bind(cmd *cobra.Command) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
}

// LoadDotEnv reads .env style files into the environment without
// overriding what is already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
