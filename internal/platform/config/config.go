package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config/config.yaml"

	ModeDev     = "dev"
	ModeRelease = "release"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"

	// リリース時はこの値のままだと起動させない
	DevJWTSecret = "libris-dev-secret"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	// sqlite3 のときだけ使う
	Path string `yaml:"path"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	Certificate Certs    `yaml:"certificate"`
	CORSOrigins []string `yaml:"cors_origins"`
}

func (s ServerConfig) TLSEnabled() bool {
	return s.Certificate.Cert != "" && s.Certificate.Key != ""
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LendingConfig struct {
	DefaultOverdueDays int    `yaml:"default_overdue_days"`
	PenaltyPerDay      string `yaml:"penalty_per_day"`
	DueSoonDays        int    `yaml:"due_soon_days"`
	PopularWindowDays  int    `yaml:"popular_window_days"`
}

// PenaltyRate は Validate 済みの前提
func (l LendingConfig) PenaltyRate() decimal.Decimal {
	d, err := decimal.NewFromString(l.PenaltyPerDay)
	if err != nil {
		return decimal.NewFromInt(10)
	}
	return d
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type Config struct {
	Version string         `yaml:"version"`
	Mode    string         `yaml:"mode"`
	Server  ServerConfig   `yaml:"server"`
	DB      DatabaseConfig `yaml:"database"`
	Auth    AuthConfig     `yaml:"auth"`
	Lending LendingConfig  `yaml:"lending"`
	Log     LogConfig      `yaml:"log"`
}

func Default() Config {
	return Config{
		Mode: ModeDev,
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		DB: DatabaseConfig{
			Driver: DriverMySQL,
			Host:   "127.0.0.1",
			Port:   3306,
			DBName: "libris",
		},
		Auth: AuthConfig{
			JWTSecret: DevJWTSecret,
			TokenTTL:  24 * time.Hour,
		},
		Lending: LendingConfig{
			DefaultOverdueDays: 14,
			PenaltyPerDay:      "10",
			DueSoonDays:        3,
			PopularWindowDays:  30,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load は .env → YAML → 環境変数 の順で読み込む。
// .env が無いのはエラーにしない。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	return Parse(buf)
}

func Parse(buf []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LIBRIS_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("LIBRIS_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("LIBRIS_DB_PATH"); v != "" {
		c.DB.Path = v
	}
	if v := os.Getenv("LIBRIS_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

func (c *Config) Validate() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode != ModeDev && c.Mode != ModeRelease {
		return fmt.Errorf("invalid mode %q (dev|release)", c.Mode)
	}
	switch c.DB.Driver {
	case DriverMySQL:
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("database.path is required for sqlite3")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.DB.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Mode == ModeRelease && c.Auth.JWTSecret == DevJWTSecret {
		return errors.New("auth.jwt_secret must be changed in release mode")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be > 0")
	}
	if c.Lending.DefaultOverdueDays <= 0 {
		return errors.New("lending.default_overdue_days must be > 0")
	}
	rate, err := decimal.NewFromString(c.Lending.PenaltyPerDay)
	if err != nil {
		return fmt.Errorf("lending.penalty_per_day: %w", err)
	}
	if rate.IsNegative() {
		return errors.New("lending.penalty_per_day must be >= 0")
	}
	if c.Lending.DueSoonDays < 0 || c.Lending.PopularWindowDays <= 0 {
		return errors.New("lending windows must be positive")
	}
	return nil
}
