package config_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/alwitt/keyvault/config"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestLoadConfig(t *testing.T) {
	assert := assert.New(t)

	// Defaults
	for _, envVar := range []string{
		config.EnvDatabase, config.EnvLogLevel, config.EnvSQLLogLevel, config.EnvFactory,
	} {
		t.Setenv(envVar, "")
		assert.Nil(os.Unsetenv(envVar))
	}
	cfg, err := config.LoadConfig("")
	assert.Nil(err)
	assert.Equal("keyvault.db", cfg.Database)
	assert.Equal(log.InfoLevel, cfg.AppLogLevel())
	assert.Equal(logger.Error, cfg.GORMLogLevel())
	assert.Empty(cfg.Factory)

	// From the environment
	t.Setenv(config.EnvDatabase, "/tmp/custody.db")
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvSQLLogLevel, "silent")
	t.Setenv(config.EnvFactory, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	cfg, err = config.LoadConfig("")
	assert.Nil(err)
	assert.Equal("/tmp/custody.db", cfg.Database)
	assert.Equal(log.DebugLevel, cfg.AppLogLevel())
	assert.Equal(logger.Silent, cfg.GORMLogLevel())
	assert.Equal("0x5FbDB2315678afecb367f032d93F642f64180aa3", cfg.Factory)

	// Invalid values
	t.Setenv(config.EnvFactory, "not-an-address")
	_, err = config.LoadConfig("")
	assert.NotNil(err)
	t.Setenv(config.EnvFactory, "")
	t.Setenv(config.EnvLogLevel, "loud")
	_, err = config.LoadConfig("")
	assert.NotNil(err)
}

func TestLoadConfigFromFile(t *testing.T) {
	assert := assert.New(t)

	envFile := fmt.Sprintf("/tmp/keyvault_ut_%s.env", ulid.Make().String())
	assert.Nil(os.WriteFile(
		envFile, []byte("KEYVAULT_DATABASE=/tmp/from-file.db\nKEYVAULT_SQL_LOG_LEVEL=warn\n"), 0600,
	))
	defer func() { _ = os.Remove(envFile) }()

	t.Setenv(config.EnvLogLevel, "warn")
	// Already set variables win over the file
	t.Setenv(config.EnvSQLLogLevel, "info")
	t.Setenv(config.EnvDatabase, "")
	assert.Nil(os.Unsetenv(config.EnvDatabase))

	cfg, err := config.LoadConfig(envFile)
	assert.Nil(err)
	assert.Equal("/tmp/from-file.db", cfg.Database)
	assert.Equal(logger.Info, cfg.GORMLogLevel())
	assert.Equal(log.WarnLevel, cfg.AppLogLevel())

	_, err = config.LoadConfig("/tmp/does-not-exist.env")
	assert.NotNil(err)
}
