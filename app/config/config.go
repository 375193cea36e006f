package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log    Log    `yaml:"log"`
	DB     DB     `yaml:"db"`
	Redis  Redis  `yaml:"redis"`
	Kapso  Kapso  `yaml:"kapso"`
	Stripe Stripe `yaml:"stripe"`
	OpenAI OpenAI `yaml:"openai"`
}

type OpenAI struct {
	Intent   ModelConfig `yaml:"intent" validate:"required"`
	Resolver ModelConfig `yaml:"resolver" validate:"required"`
	Removal  ModelConfig `yaml:"removal" validate:"required"`
	Multi    ModelConfig `yaml:"multi" validate:"required"`
	Query    ModelConfig `yaml:"query" validate:"required"`
	Reply    ModelConfig `yaml:"reply" validate:"required"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
}

type Kapso struct {
	// Kapso API base url
	BaseURL string `yaml:"base_url" example:"https://app.kapso.ai/api/v1" validate:"required"`
	// Kapso API key
	APIKey string `yaml:"api_key" validate:"required"`
	// Webhook listen address
	ListenAddr string `yaml:"listen_addr" example:":8080"`
}

type Stripe struct {
	// Stripe secret key
	SecretKey string `yaml:"secret_key" example:"sk_test_abc123"`
	// Redirect after a successful payment
	SuccessURL string `yaml:"success_url" example:"https://cedamoney.mx/pago/exito"`
	// Redirect after a cancelled payment
	CancelURL string `yaml:"cancel_url" example:"https://cedamoney.mx/pago/cancelado"`
}

type Log struct {
	// Minimum console log level: debug, info, warn or error
	Level string `yaml:"level" example:"debug"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type DB struct {
	// Postgres username
	User string `yaml:"user" example:"postgres" validate:"required"`
	// Postgres password
	Pass string `yaml:"pass" validate:"required"`
	// Postgres host
	Host string `yaml:"host"  example:"localhost:5432" validate:"required"`
	// Postgres database name
	Database string `yaml:"database" example:"cedabot" validate:"required"`
}

type Redis struct {
	// Redis address
	Addr string `yaml:"addr" example:"localhost:6379" validate:"required"`
	// Redis password
	Pass string `yaml:"pass"`
	// Redis database number
	DB int `yaml:"db_num"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.DB.User == "" {
		result.DB.User = "postgres"
	}
	if result.DB.Pass == "" {
		result.DB.Pass = "postgres"
	}
	if result.DB.Host == "" {
		result.DB.Host = "localhost:5432"
	}
	if result.DB.Database == "" {
		result.DB.Database = "cedabot"
	}
	if result.Redis.Addr == "" {
		result.Redis.Addr = "localhost:6379"
	}
	if result.Kapso.ListenAddr == "" {
		result.Kapso.ListenAddr = ":8080"
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
