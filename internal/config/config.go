// Package config loads server settings.
//
// LAYERING (later wins):
//
//  1. Default()                    built-in values
//  2. YAML file                    -config flag, else CONFIG_FILE
//  3. Environment variables        PORT, DATA_DIR, STORE_BACKEND, ...
//
// Load returns a validated *Config; callers never see a half-merged value.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/ziphub/internal/auth"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Creator describes the distinguished account seeded at startup.
type Creator struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DisplayName string `yaml:"display_name"`
	Bio         string `yaml:"bio"`
	Boost       int    `yaml:"boost"`
}

// Config holds runtime settings for the ZIPHUB server and ziphubctl.
type Config struct {
	Port         int    `yaml:"port"`
	DataDir      string `yaml:"data_dir"`
	StoreBackend string `yaml:"store_backend"`
	PublicDir    string `yaml:"public_dir"`
	LogLevel     string `yaml:"log_level"`

	// JWTSecret, when set, makes the session cookie a signed envelope.
	JWTSecret     string `yaml:"jwt_secret"`
	SecureCookies bool   `yaml:"secure_cookies"`
	BcryptCost    int    `yaml:"bcrypt_cost"`

	Creator   Creator `yaml:"creator"`
	SeedLikes bool    `yaml:"seed_likes"`

	AuthRatePerMinute int `yaml:"auth_rate_per_minute"`
	AuthBurst         int `yaml:"auth_burst"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:         3000,
		DataDir:      "data",
		StoreBackend: BackendFile,
		PublicDir:    "public",
		LogLevel:     "info",
		BcryptCost:   auth.DefaultCost,
		Creator: Creator{
			Username:    "james",
			Password:    "6033",
			DisplayName: "James (Creator)",
			Bio:         "ZIPHUB creator",
			Boost:       3000,
		},
		SeedLikes:         true,
		AuthRatePerMinute: 30,
		AuthBurst:         10,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Load builds the configuration from args (without the program name) and
// the environment looked up through getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("ziphub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}
	if *path == "" {
		*path = getenv("CONFIG_FILE")
	}

	cfg := Default()
	if *path != "" {
		if err := cfg.loadFile(*path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not a number", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}

	num("PORT", &c.Port)
	str("DATA_DIR", &c.DataDir)
	str("STORE_BACKEND", &c.StoreBackend)
	str("PUBLIC_DIR", &c.PublicDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("JWT_SECRET", &c.JWTSecret)
	boolean("SECURE_COOKIES", &c.SecureCookies)
	num("BCRYPT_COST", &c.BcryptCost)
	str("CREATOR_USERNAME", &c.Creator.Username)
	str("CREATOR_PASSWORD", &c.Creator.Password)
	num("CREATOR_BOOST", &c.Creator.Boost)
	boolean("SEED_LIKES", &c.SeedLikes)
	num("AUTH_RATE_PER_MINUTE", &c.AuthRatePerMinute)

	return errors.Join(errs...)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: port %d out of range", c.Port))
	}
	switch c.StoreBackend {
	case BackendFile, BackendSQLite, BackendBadger:
		if c.DataDir == "" {
			errs = append(errs, fmt.Errorf("config: store backend %q needs a data_dir", c.StoreBackend))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("config: unknown store backend %q", c.StoreBackend))
	}
	if _, err := auth.NewPasswordService(c.BcryptCost); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.JWTSecret != "" {
		if _, err := auth.NewTokenService(c.JWTSecret); err != nil {
			errs = append(errs, fmt.Errorf("config: %w", err))
		}
	}
	if strings.TrimSpace(c.Creator.Username) == "" {
		errs = append(errs, errors.New("config: creator username must not be empty"))
	}
	return errors.Join(errs...)
}
