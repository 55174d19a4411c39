package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Midtrans struct {
		ServerKey  string `mapstructure:"serverKey"`
		ClientKey  string `mapstructure:"clientKey"`
		Production bool   `mapstructure:"production"`
	} `mapstructure:"midtrans"`
	Frontend struct {
		BaseURL string `mapstructure:"baseUrl"`
	} `mapstructure:"frontend"`
	Sweep struct {
		// Schedule is a standard cron expression; the default runs at
		// midnight every day
		Schedule string `mapstructure:"schedule"`
		// StaleAfterHours is how old an orphaned pending payment must be
		// before reconciliation fails it
		StaleAfterHours int `mapstructure:"staleAfterHours"`
	} `mapstructure:"sweep"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		err := godotenv.Load(path)
		if err != nil {
			return nil, err
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("sweep.schedule", "0 0 * * *")
	viper.SetDefault("sweep.staleAfterHours", 24)

	// app.port matches APP_PORT, database.dsn matches DATABASE_DSN
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The replacer cannot split camelCase keys, bind those explicitly
	viper.BindEnv("midtrans.serverKey", "MIDTRANS_SERVER_KEY")
	viper.BindEnv("midtrans.clientKey", "MIDTRANS_CLIENT_KEY")
	viper.BindEnv("frontend.baseUrl", "FRONTEND_BASE_URL")
	viper.BindEnv("sweep.staleAfterHours", "SWEEP_STALE_AFTER_HOURS")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
