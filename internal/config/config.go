package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Loan     LoanConfig     `mapstructure:"loan"`
	Fine     FineConfig     `mapstructure:"fine"`
	VNPay    VNPayConfig    `mapstructure:"vnpay"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	// URL, when set, wins over the individual fields below.
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	// URL, when set, wins over the individual fields below.
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	PrivateKey  string `mapstructure:"private_key"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// LoanConfig holds the circulation policy knobs.
type LoanConfig struct {
	BorrowDays  int `mapstructure:"borrow_days"`
	RenewDays   int `mapstructure:"renew_days"`
	MaxRenewals int `mapstructure:"max_renewals"`
}

// FineConfig holds the late-fee policy. PerDiem and MaxFine are decimal
// strings so amounts never pass through float64.
type FineConfig struct {
	GraceMinutes int    `mapstructure:"grace_minutes"`
	PerDiem      string `mapstructure:"per_diem"`
	MaxFine      string `mapstructure:"max_fine"`
}

func (f FineConfig) GraceWindow() time.Duration {
	return time.Duration(f.GraceMinutes) * time.Minute
}

// VNPayConfig holds the payment gateway credentials and endpoints.
// ResultURL is the client-facing page the callback redirects to.
type VNPayConfig struct {
	TmnCode    string `mapstructure:"tmn_code"`
	HashSecret string `mapstructure:"hash_secret"`
	PayURL     string `mapstructure:"pay_url"`
	ReturnURL  string `mapstructure:"return_url"`
	ResultURL  string `mapstructure:"result_url"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.circulib")
	viper.AddConfigPath("/etc/circulib")

	viper.SetEnvPrefix("CIRC")
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("loan.borrow_days", 7)
	viper.SetDefault("loan.renew_days", 7)
	viper.SetDefault("loan.max_renewals", 2)
	viper.SetDefault("fine.grace_minutes", 120)
	viper.SetDefault("fine.per_diem", "2000")
	viper.SetDefault("fine.max_fine", "50000")
	viper.SetDefault("vnpay.pay_url", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, use defaults and environment variables
			fmt.Printf("Config file not found, using defaults and environment variables\n")
		}
	}

	// Override with environment variables
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		viper.Set("redis.url", redisURL)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}
