package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alwitt/keyvault/config"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

// runCLI execute one CLI invocation, returning its stdout
func runCLI(t *testing.T, args ...string) (string, error) {
	app := &cliApp{}
	cmd := app.rootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	log.WithField("args", args).Debugf("CLI output: %s", output.String())
	return output.String(), err
}

func runCLIForJSON(t *testing.T, args ...string) map[string]string {
	output, err := runCLI(t, args...)
	assert.Nil(t, err)
	result := map[string]string{}
	assert.Nil(t, json.Unmarshal([]byte(output), &result))
	return result
}

func unlockTimeOf(t *testing.T, vaultAddr string) int64 {
	output, err := runCLI(t, "vault", "unlock-time", vaultAddr)
	assert.Nil(t, err)
	result := map[string]int64{}
	assert.Nil(t, json.Unmarshal([]byte(output), &result))
	return result["unlock_timestamp"]
}

func TestCLIWorkflow(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	t.Setenv(config.EnvDatabase, fmt.Sprintf("/tmp/keyvault_ut_%s.db", ulid.Make().String()))
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvSQLLogLevel, "error")
	t.Setenv(config.EnvFactory, "")

	_, err := runCLI(t, "migrate")
	assert.Nil(err)

	deployer := runCLIForJSON(t, "account", "new", "--label", "deployer")["address"]
	user := runCLIForJSON(t, "account", "new", "--label", "user")["address"]

	registry := runCLIForJSON(t, "key-registry", "deploy", "--deployer", deployer)["registry"]
	minted := runCLIForJSON(t, "key-registry", "mint", registry, "--minter", deployer, "--to", user)
	assert.Equal("1", minted["key_id"])

	deployed := runCLIForJSON(t, "deploy", "--deployer", deployer, "--key-registry", registry)
	factory := deployed["factory"]
	assert.NotEmpty(factory)

	// Without a factory
	_, err = runCLI(t, "vault-of", "1")
	assert.NotNil(err)

	// Only the key holder
	_, err = runCLI(t, "create-vault", "--factory", factory, "--caller", deployer, "--key-id", "1")
	assert.ErrorIs(err, models.ErrNotKeyHolder)

	created := runCLIForJSON(t, "create-vault", "--factory", factory, "--caller", user, "--key-id", "1")

	// Default factory from the environment
	t.Setenv(config.EnvFactory, factory)
	stored := runCLIForJSON(t, "vault-of", "1")
	assert.Equal(created["vault"], stored["vault"])

	output, err := runCLI(t, "events", "--emitter", factory, "--type", string(models.LedgerEventTypeCreateVault))
	assert.Nil(err)
	var events []models.LedgerEvent
	assert.Nil(json.Unmarshal([]byte(output), &events))
	assert.Len(events, 1)

	output, err = runCLI(t, "account", "show", created["vault"])
	assert.Nil(err)
	var account models.Account
	assert.Nil(json.Unmarshal([]byte(output), &account))
	assert.Equal(models.AccountKindVault, account.Kind)
	assert.Equal(deployed["vault_implementation"], *account.Implementation)

	vaultAddr := created["vault"]
	keyOwner := runCLIForJSON(t, "vault", "key-owner", vaultAddr)
	assert.Equal(user, keyOwner["owner"])
	assert.Equal(registry, keyOwner["key_registry"])
	assert.Equal("1", keyOwner["key_id"])

	// Withdraw native value
	_, err = runCLI(t, "account", "fund", vaultAddr, "--amount", "500")
	assert.Nil(err)
	_, err = runCLI(
		t, "vault", "withdraw", "eth", vaultAddr, "--caller", deployer, "--to", deployer, "--amount", "1",
	)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	_, err = runCLI(t, "vault", "withdraw", "eth", vaultAddr, "--caller", user, "--to", user)
	assert.ErrorIs(err, models.ErrInvalidRequest)
	withdrawn := runCLIForJSON(
		t, "vault", "withdraw", "eth", vaultAddr, "--caller", user, "--to", user, "--amount", "200",
	)
	assert.Equal(user, withdrawn["to"])
	output, err = runCLI(t, "account", "show", user)
	assert.Nil(err)
	assert.Nil(json.Unmarshal([]byte(output), &account))
	assert.Equal("200", account.Balance)

	// Non-fungible withdrawal of a token the vault does not hold
	_, err = runCLI(
		t, "vault", "withdraw", "non-fungible", vaultAddr,
		"--caller", user, "--to", user, "--token", registry, "--token-id", "9",
	)
	assert.ErrorIs(err, models.ErrTransferFailed)

	// Timelock
	assert.Equal(int64(0), unlockTimeOf(t, vaultAddr))
	_, err = runCLI(t, "vault", "timelock", vaultAddr, "--caller", deployer, "--unlock-at", "4102444800")
	assert.ErrorIs(err, models.ErrNotAuthorized)
	_, err = runCLI(
		t, "vault", "timelock", vaultAddr, "--caller", user, "--unlock-at", "4102444800", "--note", "later",
	)
	assert.Nil(err)
	assert.Equal(int64(4102444800), unlockTimeOf(t, vaultAddr))
	_, err = runCLI(
		t, "vault", "withdraw", "eth", vaultAddr, "--caller", user, "--to", user, "--amount", "1",
	)
	assert.ErrorIs(err, models.ErrVaultLocked)

	// The vault does not hold its own key
	_, err = runCLI(t, "vault", "recover-key", vaultAddr, "--caller", deployer)
	assert.ErrorIs(err, models.ErrNotRecoverable)
}
