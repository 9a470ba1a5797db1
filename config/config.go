// Package config - runtime configuration of the keyvault CLI
package config

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"
)

// Environment variables read by LoadConfig
const (
	EnvDatabase    = "KEYVAULT_DATABASE"
	EnvLogLevel    = "KEYVAULT_LOG_LEVEL"
	EnvSQLLogLevel = "KEYVAULT_SQL_LOG_LEVEL"
	EnvFactory     = "KEYVAULT_FACTORY"
)

// Config keyvault CLI configuration
type Config struct {
	// Database SQLite database file backing the ledger
	Database string `validate:"required"`
	// LogLevel application log level
	LogLevel string `validate:"required,oneof=debug info warn error"`
	// SQLLogLevel GORM log level
	SQLLogLevel string `validate:"required,oneof=silent error warn info"`
	// Factory default factory proxy address
	Factory string `validate:"omitempty,eth_addr"`
}

/*
LoadConfig read the configuration from the environment. Variables in the env file, if it
exists, do not override ones already set.

	@param envFile string - optional env file; empty to read ".env"
	@returns the validated configuration
*/
func LoadConfig(envFile string) (Config, error) {
	if envFile == "" {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return Config{}, fmt.Errorf("failed to read env file '%s' [%w]", envFile, err)
	}

	cfg := Config{
		Database:    getEnv(EnvDatabase, "keyvault.db"),
		LogLevel:    getEnv(EnvLogLevel, "info"),
		SQLLogLevel: getEnv(EnvSQLLogLevel, "error"),
		Factory:     getEnv(EnvFactory, ""),
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("configuration is not valid [%w]", err)
	}
	return cfg, nil
}

// AppLogLevel the application log level
func (c Config) AppLogLevel() log.Level {
	return log.MustParseLevel(c.LogLevel)
}

// GORMLogLevel the SQL log level
func (c Config) GORMLogLevel() logger.LogLevel {
	switch c.SQLLogLevel {
	case "silent":
		return logger.Silent
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Error
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
