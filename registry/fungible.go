package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/ethereum/go-ethereum/common"
)

// Fungible fungible token registry code
type Fungible struct {
	base
}

/*
Mint create new tokens

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - must be the registry minter
	@param to common.Address - receiving account
	@param amount *big.Int - amount to create
	@param activeDBClient db.Database - existing ledger step
*/
func (r *Fungible) Mint(
	ctx context.Context,
	token, caller, to common.Address,
	amount *big.Int,
	activeDBClient db.Database,
) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			if _, err := r.checkMinter(ctx, token, caller, dbClient); err != nil {
				return err
			}
			if err := r.adjust(ctx, token, to, amount, true, dbClient); err != nil {
				return err
			}
			return r.emitTransfer(ctx, token, caller, nil, to, nil, amount, dbClient)
		},
	)
}

/*
BalanceOf fetch the balance of a holder

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param holder common.Address - the holder
	@param activeDBClient db.Database - existing ledger step
	@returns the balance
*/
func (r *Fungible) BalanceOf(
	ctx context.Context, token, holder common.Address, activeDBClient db.Database,
) (*big.Int, error) {
	var balance *big.Int
	err := r.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		if _, err := r.loadParams(ctx, token, dbClient); err != nil {
			return err
		}
		var err error
		balance, err = dbClient.GetFungibleBalance(
			ctx, models.NormalizeAddress(token), models.NormalizeAddress(holder),
		)
		return err
	})
	return balance, err
}

/*
Transfer move tokens from the caller to another account

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - the sending holder
	@param to common.Address - receiving account
	@param amount *big.Int - amount to move
	@param activeDBClient db.Database - existing ledger step
*/
func (r *Fungible) Transfer(
	ctx context.Context,
	token, caller, to common.Address,
	amount *big.Int,
	activeDBClient db.Database,
) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			if _, err := r.loadParams(ctx, token, dbClient); err != nil {
				return err
			}
			if err := r.adjust(ctx, token, caller, amount, false, dbClient); err != nil {
				return err
			}
			if err := r.adjust(ctx, token, to, amount, true, dbClient); err != nil {
				return err
			}
			return r.emitTransfer(ctx, token, caller, &caller, to, nil, amount, dbClient)
		},
	)
}

// adjust credit or debit the balance of one holder
func (r *Fungible) adjust(
	ctx context.Context,
	token, holder common.Address,
	amount *big.Int,
	credit bool,
	dbClient db.Database,
) error {
	tokenAddr := models.NormalizeAddress(token)
	holderAddr := models.NormalizeAddress(holder)
	current, err := dbClient.GetFungibleBalance(ctx, tokenAddr, holderAddr)
	if err != nil {
		return err
	}
	var updated *big.Int
	if credit {
		updated = new(big.Int).Add(current, amount)
		if !models.IsUint256(updated) {
			return fmt.Errorf("%s balance of %s would overflow [%w]", tokenAddr, holderAddr, models.ErrInvalidRequest)
		}
	} else {
		if current.Cmp(amount) < 0 {
			return fmt.Errorf(
				"%s holds %s of %s, can not send %s [%w]",
				holderAddr,
				current,
				tokenAddr,
				amount,
				models.ErrTransferFailed,
			)
		}
		updated = new(big.Int).Sub(current, amount)
	}
	return dbClient.SetFungibleBalance(ctx, tokenAddr, holderAddr, updated)
}
