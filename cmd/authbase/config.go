package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authbase/internal/deploy"
	"github.com/nkiryanov/authbase/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = "production"
	defaultAppURL       = "http://localhost:3000"
	defaultSMTPPort     = 587
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	// Users and tokens are kept in memory if not set (not allowed in production)
	DatabaseDSN string

	// Redis to keep rate limit counters in
	// Counters are kept in memory if not set
	RedisAddr string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment: production, development or test
	Environment string

	// Token lifetimes, defaults of token manager are used if not set
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ResetPasswordTTL time.Duration
	VerifyEmailTTL   time.Duration

	// Failed auth attempts allowed per client in the window
	// Defaults of rate limiter are used if not set
	RateLimitWindow time.Duration
	RateLimitMax    int

	// How often expired tokens are deleted
	TokenCleanupInterval time.Duration

	// Base of links put into emails
	AppURL string

	// Emails are written to log if SMTP host is not set
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		AppURL:      defaultAppURL,
		SMTPPort:    defaultSMTPPort,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":                   setString(&c.ListenAddr),
		"DATABASE_URI":                  setString(&c.DatabaseDSN),
		"REDIS_ADDRESS":                 setString(&c.RedisAddr),
		"SECRET_KEY":                    setString(&c.SecretKey),
		"LOG_LEVEL":                     setString(&c.LogLevel),
		"ENVIRONMENT":                   setString(&c.Environment),
		"JWT_ACCESS_EXPIRATION":         setDuration(&c.AccessTTL),
		"JWT_REFRESH_EXPIRATION":        setDuration(&c.RefreshTTL),
		"JWT_RESET_PASSWORD_EXPIRATION": setDuration(&c.ResetPasswordTTL),
		"JWT_VERIFY_EMAIL_EXPIRATION":   setDuration(&c.VerifyEmailTTL),
		"RATE_LIMIT_WINDOW":             setDuration(&c.RateLimitWindow),
		"RATE_LIMIT_MAX":                setInt(&c.RateLimitMax),
		"TOKEN_CLEANUP_INTERVAL":        setDuration(&c.TokenCleanupInterval),
		"APP_URL":                       setString(&c.AppURL),
		"SMTP_HOST":                     setString(&c.SMTPHost),
		"SMTP_PORT":                     setInt(&c.SMTPPort),
		"SMTP_USERNAME":                 setString(&c.SMTPUsername),
		"SMTP_PASSWORD":                 setString(&c.SMTPPassword),
		"EMAIL_FROM":                    setString(&c.EmailFrom),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s. Err: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authbase", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for rate limit counters")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (production, development, test)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.DurationVar(&c.ResetPasswordTTL, "reset-password-ttl", c.ResetPasswordTTL, "Reset password token lifetime")
	fs.DurationVar(&c.VerifyEmailTTL, "verify-email-ttl", c.VerifyEmailTTL, "Verify email token lifetime")
	fs.DurationVar(&c.RateLimitWindow, "rate-limit-window", c.RateLimitWindow, "Window of failed auth attempts")
	fs.IntVar(&c.RateLimitMax, "rate-limit-max", c.RateLimitMax, "Failed auth attempts allowed in the window")
	fs.DurationVar(&c.TokenCleanupInterval, "token-cleanup-interval", c.TokenCleanupInterval, "How often expired tokens are deleted")
	fs.StringVar(&c.AppURL, "app-url", c.AppURL, "Base of links put into emails")

	return fs.Parse(args)
}

// Mode validates config and returns deployment mode
func (c *Config) Mode() (deploy.Mode, error) {
	mode, err := deploy.ParseMode(c.Environment)
	if err != nil {
		return mode, err
	}

	if c.SecretKey == "" {
		return mode, errors.New("secret key is required")
	}
	if mode == deploy.Production && c.DatabaseDSN == "" {
		return mode, errors.New("database is required in production")
	}

	return mode, nil
}
