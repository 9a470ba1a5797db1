package main

import (
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/spf13/cobra"
)

func (a *cliApp) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), true)
		},
	}
}

func (a *cliApp) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Ledger accounts",
	}

	var label string
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Define a new external account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			address, err := a.system.Ledger.NewExternalAccount(cmd.Context(), label, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"address": address.Hex(), "label": label})
		},
	}
	newCmd.Flags().StringVar(&label, "label", "", "account label")

	var amount string
	fundCmd := &cobra.Command{
		Use:   "fund [address]",
		Short: "Credit new native value to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			address, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			value, err := models.ParseAmount(amount)
			if err != nil {
				return err
			}
			return a.system.Ledger.Mint(cmd.Context(), address, value, nil)
		},
	}
	fundCmd.Flags().StringVar(&amount, "amount", "0", "value to credit")

	showCmd := &cobra.Command{
		Use:   "show [address]",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			address, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			account, err := a.system.Ledger.GetAccount(cmd.Context(), address, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, account)
		},
	}

	cmd.AddCommand(newCmd, fundCmd, showCmd)
	return cmd
}

func (a *cliApp) registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key-registry",
		Short: "Key token registries",
	}

	var deployer, name, symbol string
	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a key token registry; the deployer mints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			deployerAddr, err := parseAddress("deployer", deployer)
			if err != nil {
				return err
			}
			registry, err := a.system.Registries.NonFungible.Deploy(
				cmd.Context(), deployerAddr, name, symbol, nil,
			)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"registry": registry.Hex()})
		},
	}
	deployCmd.Flags().StringVar(&deployer, "deployer", "", "deploying account")
	deployCmd.Flags().StringVar(&name, "name", "Vault Key", "token name")
	deployCmd.Flags().StringVar(&symbol, "symbol", "VKEY", "token symbol")

	var minter, to string
	mintCmd := &cobra.Command{
		Use:   "mint [registry]",
		Short: "Mint the next key token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			registry, err := parseAddress("registry", args[0])
			if err != nil {
				return err
			}
			minterAddr, err := parseAddress("minter", minter)
			if err != nil {
				return err
			}
			toAddr, err := parseAddress("to", to)
			if err != nil {
				return err
			}
			keyID, err := a.system.Registries.NonFungible.Mint(
				cmd.Context(), registry, minterAddr, toAddr, nil,
			)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"key_id": keyID.String(), "owner": toAddr.Hex()})
		},
	}
	mintCmd.Flags().StringVar(&minter, "minter", "", "registry minter")
	mintCmd.Flags().StringVar(&to, "to", "", "receiving account")

	cmd.AddCommand(deployCmd, mintCmd)
	return cmd
}

func (a *cliApp) deployCmd() *cobra.Command {
	var deployer, keyRegistry string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the vault implementation and an initialized factory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			deployerAddr, err := parseAddress("deployer", deployer)
			if err != nil {
				return err
			}
			registryAddr, err := parseAddress("key registry", keyRegistry)
			if err != nil {
				return err
			}
			deployed, err := a.system.Deploy(cmd.Context(), deployerAddr, registryAddr)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"factory":              deployed.Factory.Hex(),
				"vault_implementation": deployed.VaultImplementation.Hex(),
			})
		},
	}
	cmd.Flags().StringVar(&deployer, "deployer", "", "deploying account; becomes the administrator")
	cmd.Flags().StringVar(&keyRegistry, "key-registry", "", "key token registry")
	return cmd
}

func (a *cliApp) createVaultCmd() *cobra.Command {
	var factoryFlag, caller, keyID string
	cmd := &cobra.Command{
		Use:   "create-vault",
		Short: "Create the vault of a key token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			factoryAddr, err := a.factoryAddress(factoryFlag)
			if err != nil {
				return err
			}
			callerAddr, err := parseAddress("caller", caller)
			if err != nil {
				return err
			}
			key, err := models.ParseAmount(keyID)
			if err != nil {
				return err
			}
			vaultFactory, err := a.system.Factories.Load(cmd.Context(), factoryAddr, nil)
			if err != nil {
				return err
			}
			vaultAddr, err := vaultFactory.CreateVault(cmd.Context(), callerAddr, key, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"key_id": key.String(), "vault": vaultAddr.Hex()})
		},
	}
	cmd.Flags().StringVar(&factoryFlag, "factory", "", "factory proxy; defaults to KEYVAULT_FACTORY")
	cmd.Flags().StringVar(&caller, "caller", "", "the key holder")
	cmd.Flags().StringVar(&keyID, "key-id", "", "key token ID")
	return cmd
}

func (a *cliApp) vaultOfCmd() *cobra.Command {
	var factoryFlag string
	cmd := &cobra.Command{
		Use:   "vault-of [key-id]",
		Short: "Show the vault of a key token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			factoryAddr, err := a.factoryAddress(factoryFlag)
			if err != nil {
				return err
			}
			key, ok := new(big.Int).SetString(args[0], 10)
			if !ok {
				return fmt.Errorf("key ID '%s' is not a number", args[0])
			}
			vaultFactory, err := a.system.Factories.Load(cmd.Context(), factoryAddr, nil)
			if err != nil {
				return err
			}
			vaultAddr, err := vaultFactory.VaultOf(cmd.Context(), key, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"key_id": key.String(), "vault": vaultAddr.Hex()})
		},
	}
	cmd.Flags().StringVar(&factoryFlag, "factory", "", "factory proxy; defaults to KEYVAULT_FACTORY")
	return cmd
}

func (a *cliApp) eventsCmd() *cobra.Command {
	var emitter string
	var eventTypes []string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded ledger events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			filters := db.LedgerEventQueryFilter{
				CommonListEntryQueryFilter: db.CommonListEntryQueryFilter{Limit: &limit, Offset: &offset},
			}
			if emitter != "" {
				emitterAddr, err := parseAddress("emitter", emitter)
				if err != nil {
					return err
				}
				normalized := models.NormalizeAddress(emitterAddr)
				filters.Emitter = &normalized
			}
			for _, eventType := range eventTypes {
				filters.EventTypes = append(filters.EventTypes, models.LedgerEventTypeENUMType(eventType))
			}
			events, err := a.system.Ledger.ListEvents(cmd.Context(), filters)
			if err != nil {
				return err
			}
			return printJSON(cmd, events)
		},
	}
	cmd.Flags().StringVar(&emitter, "emitter", "", "only events of this account")
	cmd.Flags().StringSliceVar(&eventTypes, "type", nil, "only events of these types")
	cmd.Flags().IntVar(&limit, "limit", 100, "max events to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "events to skip")
	return cmd
}
