// Package main - keyvault custody ledger CLI
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alwitt/keyvault"
	"github.com/alwitt/keyvault/config"
	"github.com/alwitt/keyvault/db"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// cliApp state shared by the CLI commands
type cliApp struct {
	envFile string
	cfg     config.Config
	system  *keyvault.CustodySystem
}

func main() {
	app := &cliApp{}
	if err := app.rootCmd().ExecuteContext(context.Background()); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func (a *cliApp) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "keyvault",
		Short:         "Key token gated custody vaults",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "env file holding KEYVAULT_* settings")

	cmd.AddCommand(
		a.migrateCmd(),
		a.accountCmd(),
		a.registryCmd(),
		a.deployCmd(),
		a.createVaultCmd(),
		a.vaultOfCmd(),
		a.vaultCmd(),
		a.eventsCmd(),
	)
	return cmd
}

// setup load the configuration and attach to the ledger
func (a *cliApp) setup(ctx context.Context, migrate bool) error {
	cfg, err := config.LoadConfig(a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	log.SetLevel(cfg.AppLogLevel())

	a.system, err = keyvault.NewCustodySystem(
		ctx,
		db.GetSqliteDialector(cfg.Database),
		cfg.GORMLogLevel(),
		keyvault.SystemParams{SkipMigration: !migrate},
	)
	return err
}

// factoryAddress the factory named by flag, else the configured default
func (a *cliApp) factoryAddress(flagValue string) (common.Address, error) {
	if flagValue == "" {
		flagValue = a.cfg.Factory
	}
	return parseAddress("factory", flagValue)
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s '%s' is not an address", name, value)
	}
	return common.HexToAddress(value), nil
}

// printJSON write a result to stdout
func printJSON(cmd *cobra.Command, result interface{}) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result [%w]", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return err
}
