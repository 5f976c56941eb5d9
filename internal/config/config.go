/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the work-order service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort              string `mapstructure:"SERVER_PORT"`
	DatabaseURL             string `mapstructure:"DATABASE_URL"`
	RedisURL                string `mapstructure:"REDIS_URL"`
	RabbitMQURL             string `mapstructure:"RABBITMQ_URL"`
	OrderServiceURL         string `mapstructure:"ORDER_SERVICE_URL"`
	WorkOrderEventExchange  string `mapstructure:"WORKORDER_EVENT_EXCHANGE"`
	OrderEventExchange      string `mapstructure:"ORDER_EVENT_EXCHANGE"`
	OrderEventQueue         string `mapstructure:"ORDER_EVENT_QUEUE"`
	MaxAllowedOverdraft     int64  `mapstructure:"MAX_ALLOWED_OVERDRAFT_CENTAVOS"`
	LedgerFetchTimeoutSecs  int    `mapstructure:"LEDGER_FETCH_TIMEOUT_SECONDS"`
	LedgerFetchRetries      int    `mapstructure:"LEDGER_FETCH_RETRIES"`
	LedgerCacheTTLSecs      int    `mapstructure:"LEDGER_CACHE_TTL_SECONDS"`
	LedgerCachePrefix       string `mapstructure:"LEDGER_CACHE_PREFIX"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("WORKORDER_EVENT_EXCHANGE", "workorder.events")
	viper.SetDefault("ORDER_EVENT_EXCHANGE", "pedido.events")
	viper.SetDefault("ORDER_EVENT_QUEUE", "workorder-service.order-events")
	viper.SetDefault("MAX_ALLOWED_OVERDRAFT_CENTAVOS", 0)
	viper.SetDefault("LEDGER_FETCH_TIMEOUT_SECONDS", 5)
	viper.SetDefault("LEDGER_FETCH_RETRIES", 2)
	viper.SetDefault("LEDGER_CACHE_TTL_SECONDS", 15)
	viper.SetDefault("LEDGER_CACHE_PREFIX", "workorder:ledger_total")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("ORDER_SERVICE_URL", "ORDER_SERVICE_URL", "PEDIDO_SERVICE_URL")
	_ = viper.BindEnv("WORKORDER_EVENT_EXCHANGE")
	_ = viper.BindEnv("ORDER_EVENT_EXCHANGE")
	_ = viper.BindEnv("ORDER_EVENT_QUEUE")
	_ = viper.BindEnv("MAX_ALLOWED_OVERDRAFT_CENTAVOS")
	_ = viper.BindEnv("MAX_ALLOWED_OVERDRAFT")
	_ = viper.BindEnv("LEDGER_FETCH_TIMEOUT_SECONDS")
	_ = viper.BindEnv("LEDGER_FETCH_RETRIES")
	_ = viper.BindEnv("LEDGER_CACHE_TTL_SECONDS")
	_ = viper.BindEnv("LEDGER_CACHE_PREFIX")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.OrderServiceURL = strings.TrimSpace(config.OrderServiceURL)
	config.LedgerCachePrefix = strings.TrimSpace(config.LedgerCachePrefix)
	if config.LedgerCachePrefix == "" {
		config.LedgerCachePrefix = "workorder:ledger_total"
	}

	// Allow specifying the overdraft floor in whole currency units via
	// MAX_ALLOWED_OVERDRAFT.
	if viper.IsSet("MAX_ALLOWED_OVERDRAFT") {
		rawValue := strings.TrimSpace(viper.GetString("MAX_ALLOWED_OVERDRAFT"))
		if rawValue != "" {
			parsedValue, parseErr := strconv.ParseFloat(rawValue, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid MAX_ALLOWED_OVERDRAFT\" value=%q err=%v", rawValue, parseErr)
			} else {
				config.MaxAllowedOverdraft = int64(math.Round(parsedValue * 100))
			}
		}
	}

	if config.LedgerFetchTimeoutSecs <= 0 {
		config.LedgerFetchTimeoutSecs = 5
	}
	if config.LedgerFetchRetries < 0 {
		config.LedgerFetchRetries = 0
	}
	if config.LedgerCacheTTLSecs <= 0 {
		config.LedgerCacheTTLSecs = 15
	}

	return
}
