package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/models"
	"github.com/alwitt/keyvault/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func (a *cliApp) vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Operate a custody vault",
	}
	cmd.AddCommand(
		a.keyOwnerCmd(),
		a.unlockTimeCmd(),
		a.timelockCmd(),
		a.withdrawCmd(),
		a.recoverKeyCmd(),
	)
	return cmd
}

// vaultAt attach to the ledger, and fetch the vault named by the first argument
func (a *cliApp) vaultAt(ctx context.Context, args []string) (vault.Vault, error) {
	if err := a.setup(ctx, false); err != nil {
		return nil, err
	}
	vaultAddr, err := parseAddress("vault", args[0])
	if err != nil {
		return nil, err
	}
	return a.system.Vaults.At(vaultAddr), nil
}

func (a *cliApp) keyOwnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key-owner [vault]",
		Short: "Show the holder of the vault key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theVault, err := a.vaultAt(cmd.Context(), args)
			if err != nil {
				return err
			}
			keyRef, err := theVault.KeyReference(cmd.Context(), nil)
			if err != nil {
				return err
			}
			holder, err := theVault.KeyOwner(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"key_registry": keyRef.KeyRegistry.Hex(),
				"key_id":       keyRef.KeyID.String(),
				"owner":        holder.Hex(),
			})
		},
	}
}

func (a *cliApp) unlockTimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock-time [vault]",
		Short: "Show the vault timelock; zero if never locked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theVault, err := a.vaultAt(cmd.Context(), args)
			if err != nil {
				return err
			}
			unlockTime, err := theVault.UnlockTime(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int64{"unlock_timestamp": unlockTime})
		},
	}
}

func (a *cliApp) timelockCmd() *cobra.Command {
	var caller, note string
	var unlockAt int64
	cmd := &cobra.Command{
		Use:   "timelock [vault]",
		Short: "Block withdrawals until a unix timestamp; a vault can be locked once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theVault, err := a.vaultAt(cmd.Context(), args)
			if err != nil {
				return err
			}
			callerAddr, err := parseAddress("caller", caller)
			if err != nil {
				return err
			}
			return theVault.Timelock(cmd.Context(), callerAddr, unlockAt, note, nil)
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "the key holder")
	cmd.Flags().Int64Var(&unlockAt, "unlock-at", 0, "unix timestamp when withdrawals resume")
	cmd.Flags().StringVar(&note, "note", "", "note recorded with the lock")
	return cmd
}

// withdrawFlags the flags shared by the withdraw subcommands
type withdrawFlags struct {
	caller  string
	to      string
	token   string
	tokenID string
	amount  string
}

func (a *cliApp) withdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Move assets out of a vault",
	}
	cmd.AddCommand(
		a.withdrawAssetCmd("eth", "native value", models.TokenTypeETH),
		a.withdrawAssetCmd("fungible", "fungible tokens", models.TokenTypeFungible),
		a.withdrawAssetCmd("non-fungible", "a non-fungible token", models.TokenTypeNonFungible),
		a.withdrawAssetCmd("multi-token", "multi-token units", models.TokenTypeMultiToken),
		a.withdrawAssetCmd("legacy-market", "a legacy market token", models.TokenTypeLegacyMarket),
	)
	return cmd
}

func (a *cliApp) withdrawAssetCmd(
	use, asset string, tokenType models.TokenTypeENUMType,
) *cobra.Command {
	flags := withdrawFlags{}
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [vault]", use),
		Short: fmt.Sprintf("Withdraw %s", asset),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theVault, err := a.vaultAt(cmd.Context(), args)
			if err != nil {
				return err
			}
			request, caller, to, err := flags.parse(tokenType)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch tokenType {
			case models.TokenTypeETH:
				err = theVault.WithdrawETH(ctx, caller, to, request.Amount, nil)
			case models.TokenTypeFungible:
				err = theVault.WithdrawFungible(ctx, caller, request.Token, to, request.Amount, nil)
			case models.TokenTypeNonFungible:
				err = theVault.WithdrawNonFungible(ctx, caller, request.Token, request.TokenID, to, nil)
			case models.TokenTypeMultiToken:
				err = theVault.WithdrawMultiToken(
					ctx, caller, request.Token, request.TokenID, to, request.Amount, nil,
				)
			case models.TokenTypeLegacyMarket:
				err = theVault.WithdrawLegacyMarketToken(
					ctx, caller, request.Token, request.TokenID, to, nil,
				)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"withdrawn": request.String(), "to": to.Hex()})
		},
	}
	cmd.Flags().StringVar(&flags.caller, "caller", "", "the key holder")
	cmd.Flags().StringVar(&flags.to, "to", "", "receiving account")
	if tokenType != models.TokenTypeETH {
		cmd.Flags().StringVar(&flags.token, "token", "", "token registry")
	}
	switch tokenType {
	case models.TokenTypeNonFungible, models.TokenTypeMultiToken, models.TokenTypeLegacyMarket:
		cmd.Flags().StringVar(&flags.tokenID, "token-id", "", "token ID")
	}
	switch tokenType {
	case models.TokenTypeETH, models.TokenTypeFungible, models.TokenTypeMultiToken:
		cmd.Flags().StringVar(&flags.amount, "amount", "", "amount to withdraw")
	}
	return cmd
}

// parse convert the flags into a withdrawal request
func (f withdrawFlags) parse(
	tokenType models.TokenTypeENUMType,
) (models.WithdrawalRequest, common.Address, common.Address, error) {
	request := models.WithdrawalRequest{TokenType: tokenType}
	caller, err := parseAddress("caller", f.caller)
	if err != nil {
		return request, caller, common.Address{}, err
	}
	to, err := parseAddress("to", f.to)
	if err != nil {
		return request, caller, to, err
	}
	if tokenType != models.TokenTypeETH {
		if request.Token, err = parseAddress("token", f.token); err != nil {
			return request, caller, to, err
		}
	}
	if f.tokenID != "" {
		if request.TokenID, err = parseNumber("token ID", f.tokenID); err != nil {
			return request, caller, to, err
		}
	}
	if f.amount != "" {
		if request.Amount, err = parseNumber("amount", f.amount); err != nil {
			return request, caller, to, err
		}
	}
	return request, caller, to, nil
}

func (a *cliApp) recoverKeyCmd() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "recover-key [vault]",
		Short: "Return a key stranded in its own vault to the factory administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theVault, err := a.vaultAt(cmd.Context(), args)
			if err != nil {
				return err
			}
			callerAddr, err := parseAddress("caller", caller)
			if err != nil {
				return err
			}
			return theVault.RecoverKey(cmd.Context(), callerAddr, nil)
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "the factory administrator")
	return cmd
}

func parseNumber(name, value string) (*big.Int, error) {
	parsed, err := models.ParseAmount(value)
	if err != nil {
		return nil, fmt.Errorf("%s '%s' is not valid [%w]", name, value, err)
	}
	return parsed, nil
}
