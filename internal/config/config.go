// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、以降は変更しない。envタグは検証エラーの報告に使う。
type Config struct {
	DatabaseURL string `env:"DATABASE_URL" validate:"required"`

	// APIBase が空でも起動は継続し、届出APIの呼び出し時にConfigurationErrorとなる。
	APIBase    string        `env:"IDFINDER_API_BASE" validate:"omitempty,url"`
	APITimeout time.Duration `env:"API_TIMEOUT" validate:"gt=0"`
	ListLimit  int           `env:"LIST_LIMIT" validate:"gt=0"`
	CacheTTL   time.Duration `env:"QUERY_CACHE_TTL"`

	CognitoDomain          string   `env:"COGNITO_DOMAIN" validate:"required,url"`
	CognitoClientID        string   `env:"COGNITO_CLIENT_ID" validate:"required"`
	CognitoClientSecret    string   `env:"COGNITO_CLIENT_SECRET"`
	CognitoRedirectSignIn  string   `env:"COGNITO_REDIRECT_SIGN_IN" validate:"url"`
	CognitoRedirectSignOut string   `env:"COGNITO_REDIRECT_SIGN_OUT" validate:"url"`
	CognitoScopes          []string `env:"COGNITO_SCOPES" validate:"min=1"`

	// SessionMaxAge はセッションCookieの有効秒数。
	SessionMaxAge int `env:"SESSION_MAX_AGE" validate:"gt=0"`

	// レート制限（req/min）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" validate:"gt=0"`
	RateLimitReport  int `env:"RATE_LIMIT_REPORT" validate:"gt=0"`

	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" validate:"gt=0"`

	ServerPort string `env:"SERVER_PORT" validate:"required,numeric"`
	BaseURL    string `env:"BASE_URL" validate:"required,url"`

	// CookieSecure はBASE_URLがhttpsの場合にtrueとなる。
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

// Load は環境変数からConfigを読み込む。
// 必須の環境変数が欠けている場合は欠けている全ての名前を含むエラーを返す。
func Load() (*Config, error) {
	baseURL := os.Getenv("BASE_URL")
	redirectBase := strings.TrimRight(baseURL, "/")

	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		APIBase:                strings.TrimSpace(os.Getenv("IDFINDER_API_BASE")),
		APITimeout:             envDuration("API_TIMEOUT", 10*time.Second),
		ListLimit:              envInt("LIST_LIMIT", 50),
		CacheTTL:               envDuration("QUERY_CACHE_TTL", 30*time.Second),
		CognitoDomain:          os.Getenv("COGNITO_DOMAIN"),
		CognitoClientID:        os.Getenv("COGNITO_CLIENT_ID"),
		CognitoClientSecret:    os.Getenv("COGNITO_CLIENT_SECRET"),
		CognitoRedirectSignIn:  envString("COGNITO_REDIRECT_SIGN_IN", redirectBase+"/auth/callback"),
		CognitoRedirectSignOut: envString("COGNITO_REDIRECT_SIGN_OUT", redirectBase+"/"),
		CognitoScopes:          envList("COGNITO_SCOPES", []string{"openid", "email"}),
		SessionMaxAge:          envInt("SESSION_MAX_AGE", 86400),
		RateLimitGeneral:       envInt("RATE_LIMIT_GENERAL", 120),
		RateLimitReport:        envInt("RATE_LIMIT_REPORT", 10),
		CleanupInterval:        envDuration("CLEANUP_INTERVAL", 24*time.Hour),
		ServerPort:             envString("SERVER_PORT", "8080"),
		BaseURL:                baseURL,
		CookieSecure:           strings.HasPrefix(baseURL, "https://"),
		CookieDomain:           os.Getenv("COOKIE_DOMAIN"),
		CORSAllowedOrigin:      envString("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値を検証する。
// 未設定の必須項目はまとめて報告し、それ以外の不正値は環境変数名とルールを報告する。
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt は整数として解釈できない値をfallbackとして扱う。
func envInt(key string, fallback int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

// envList はスペースまたはカンマ区切りの値を分割する。
func envList(key string, fallback []string) []string {
	fields := strings.FieldsFunc(os.Getenv(key), func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return fallback
	}
	return fields
}
