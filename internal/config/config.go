// Package config loads the server configuration.
//
// LOAD ORDER (later wins):
//  1. defaults set in setDefaults
//  2. config.yaml in "." or "./config", if present
//  3. .env.local, then .env (never overriding variables already exported)
//  4. the process environment
//
// Environment keys are the config keys upper-cased with "." replaced by "_":
// http.port → HTTP_PORT, database.sqlite_path → DATABASE_SQLITE_PATH.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted by database.driver.
const (
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
)

type HTTPCfg struct {
	Port           int
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogCfg struct {
	Level  string
	Format string
}

type DatabaseCfg struct {
	Driver     string
	SQLitePath string `mapstructure:"sqlite_path"`
}

type FirestoreCfg struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AuthCfg struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CodeTTL      time.Duration `mapstructure:"code_ttl"`
	CodeCooldown time.Duration `mapstructure:"code_cooldown"`
}

// RedisCfg is optional. With an empty Addr the send-code cooldown is kept
// in process memory.
type RedisCfg struct {
	Addr     string
	Password string
	DB       int
}

type SpaceCfg struct {
	UnbindCoolingOff time.Duration `mapstructure:"unbind_cooling_off"`
}

type ReminderCfg struct {
	Enabled  bool
	Interval time.Duration
}

type Config struct {
	Env       string
	HTTP      HTTPCfg
	Log       LogCfg
	Database  DatabaseCfg
	Firestore FirestoreCfg
	Auth      AuthCfg
	Redis     RedisCfg
	Space     SpaceCfg
	Reminder  ReminderCfg
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads the configuration from dotenv files, an optional config file
// and the environment, then validates it.
func Load() (*Config, error) {
	LoadDotEnv()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files with priority .env.local > .env.
// godotenv.Load does not overwrite variables that are already set, so the
// real environment always wins. Returns the files that were loaded.
func LoadDotEnv() []string {
	var loaded []string
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("http.port", 3005)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.sqlite_path", "data/sanctuary.db")
	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.credentials_file", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.code_ttl", 5*time.Minute)
	v.SetDefault("auth.code_cooldown", time.Minute)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("space.unbind_cooling_off", 7*24*time.Hour)
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.interval", time.Hour)
}

// Validate checks the values Load cannot default its way out of.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("config: database.sqlite_path is required for the sqlite driver")
		}
	case DriverFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("config: firestore.project_id is required for the firestore driver")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: auth.jwt_secret must be at least 16 characters")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: invalid http.port %d", c.HTTP.Port)
	}
	return nil
}
