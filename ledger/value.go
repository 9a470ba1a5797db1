package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/ethereum/go-ethereum/common"
)

func (l *ledgerImpl) Mint(
	ctx context.Context, to common.Address, amount *big.Int, activeDBClient db.Database,
) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("mint amount %s is not valid [%w]", amount, models.ErrInvalidRequest)
	}
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, l, func(ctx context.Context, dbClient db.Database) error {
			if err := l.credit(ctx, to, amount, dbClient); err != nil {
				return err
			}
			return l.Emit(ctx, to, models.LedgerEventTypeValueTransfer, &models.ValueTransferEvent{
				To:     models.NormalizeAddress(to),
				Amount: amount.String(),
			}, dbClient)
		},
	)
}

func (l *ledgerImpl) SendValue(
	ctx context.Context,
	from, to common.Address,
	amount *big.Int,
	activeDBClient db.Database,
) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount %s is not valid [%w]", amount, models.ErrInvalidRequest)
	}
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, l, func(ctx context.Context, dbClient db.Database) error {
			fromAddr := models.NormalizeAddress(from)
			fromAccount, err := dbClient.GetOrDefineExternalAccount(ctx, fromAddr)
			if err != nil {
				return err
			}
			fromBalance, err := models.ParseAmount(fromAccount.Balance)
			if err != nil {
				return err
			}
			if fromBalance.Cmp(amount) < 0 {
				return fmt.Errorf(
					"%s holds %s, can not send %s [%w]",
					fromAddr,
					fromBalance,
					amount,
					models.ErrTransferFailed,
				)
			}
			if err := dbClient.SetAccountBalance(
				ctx, fromAddr, new(big.Int).Sub(fromBalance, amount),
			); err != nil {
				return err
			}

			if err := l.credit(ctx, to, amount, dbClient); err != nil {
				return err
			}

			if err := l.Emit(
				ctx, from, models.LedgerEventTypeValueTransfer, &models.ValueTransferEvent{
					From:   fromAddr,
					To:     models.NormalizeAddress(to),
					Amount: amount.String(),
				}, dbClient,
			); err != nil {
				return err
			}

			code, account, err := l.CodeAt(ctx, to, dbClient)
			if err != nil {
				return err
			}
			if !account.IsContract() {
				return nil
			}
			receiver, ok := code.(ValueReceiver)
			if !ok {
				return fmt.Errorf(
					"'%s' contract %s does not accept value [%w]",
					account.Kind,
					to.Hex(),
					models.ErrTransferFailed,
				)
			}
			if err := receiver.ReceiveValue(ctx, to, from, amount, dbClient); err != nil {
				return fmt.Errorf("%s rejected value [%w] [%w]", to.Hex(), models.ErrTransferFailed, err)
			}
			return nil
		},
	)
}

// credit add value to an account balance
func (l *ledgerImpl) credit(
	ctx context.Context, to common.Address, amount *big.Int, dbClient db.Database,
) error {
	toAddr := models.NormalizeAddress(to)
	toAccount, err := dbClient.GetOrDefineExternalAccount(ctx, toAddr)
	if err != nil {
		return err
	}
	toBalance, err := models.ParseAmount(toAccount.Balance)
	if err != nil {
		return err
	}
	newBalance := new(big.Int).Add(toBalance, amount)
	if !models.IsUint256(newBalance) {
		return fmt.Errorf("balance of %s would overflow [%w]", toAddr, models.ErrInvalidRequest)
	}
	return dbClient.SetAccountBalance(ctx, toAddr, newBalance)
}
