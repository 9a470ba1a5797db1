package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/ethereum/go-ethereum/common"
)

// MultiToken multi-token registry code
//
// Operator approvals are not modelled: only the holder may move its balance.
type MultiToken struct {
	base
}

/*
Mint create new tokens of one ID

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - must be the registry minter
	@param to common.Address - receiving account
	@param tokenID *big.Int - the token ID
	@param amount *big.Int - amount to create
	@param activeDBClient db.Database - existing ledger step
*/
func (r *MultiToken) Mint(
	ctx context.Context,
	token, caller, to common.Address,
	tokenID, amount *big.Int,
	activeDBClient db.Database,
) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := validAmount(tokenID); err != nil {
		return err
	}
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			if _, err := r.checkMinter(ctx, token, caller, dbClient); err != nil {
				return err
			}
			if err := r.adjust(ctx, token, to, tokenID, amount, true, dbClient); err != nil {
				return err
			}
			return r.emitTransfer(ctx, token, caller, nil, to, tokenID, amount, dbClient)
		},
	)
}

/*
BalanceOf fetch the balance of a holder for one ID

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param holder common.Address - the holder
	@param tokenID *big.Int - the token ID
	@param activeDBClient db.Database - existing ledger step
	@returns the balance
*/
func (r *MultiToken) BalanceOf(
	ctx context.Context,
	token, holder common.Address,
	tokenID *big.Int,
	activeDBClient db.Database,
) (*big.Int, error) {
	var balance *big.Int
	err := r.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		if _, err := r.loadParams(ctx, token, dbClient); err != nil {
			return err
		}
		var err error
		balance, err = dbClient.GetMultiTokenBalance(
			ctx, models.NormalizeAddress(token), tokenID, models.NormalizeAddress(holder),
		)
		return err
	})
	return balance, err
}

/*
SafeTransferFrom move tokens of one ID; a contract recipient must accept them

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - the account starting the transfer
	@param from common.Address - the current holder
	@param to common.Address - receiving account
	@param tokenID *big.Int - the token ID
	@param amount *big.Int - amount to move
	@param data []byte - payload passed to the recipient
	@param activeDBClient db.Database - existing ledger step
*/
func (r *MultiToken) SafeTransferFrom(
	ctx context.Context,
	token, caller, from, to common.Address,
	tokenID, amount *big.Int,
	data []byte,
	activeDBClient db.Database,
) error {
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			if err := r.move(ctx, token, caller, from, to, tokenID, amount, dbClient); err != nil {
				return err
			}
			receiver, err := r.receiverAt(ctx, to, dbClient)
			if err != nil || receiver == nil {
				return err
			}
			if err := receiver.OnMultiTokenReceived(
				ctx, to, token, caller, from, tokenID, amount, data, dbClient,
			); err != nil {
				return fmt.Errorf(
					"%s rejected %s #%s [%w] [%w]", to.Hex(), token.Hex(), tokenID, models.ErrTransferFailed, err,
				)
			}
			return nil
		},
	)
}

/*
SafeBatchTransferFrom move tokens of several IDs; a contract recipient must accept them

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - the account starting the transfer
	@param from common.Address - the current holder
	@param to common.Address - receiving account
	@param tokenIDs []*big.Int - the token IDs
	@param amounts []*big.Int - amount to move per ID
	@param data []byte - payload passed to the recipient
	@param activeDBClient db.Database - existing ledger step
*/
func (r *MultiToken) SafeBatchTransferFrom(
	ctx context.Context,
	token, caller, from, to common.Address,
	tokenIDs, amounts []*big.Int,
	data []byte,
	activeDBClient db.Database,
) error {
	if len(tokenIDs) != len(amounts) {
		return fmt.Errorf(
			"%d token IDs but %d amounts [%w]", len(tokenIDs), len(amounts), models.ErrInvalidRequest,
		)
	}
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			for idx, tokenID := range tokenIDs {
				if err := r.move(
					ctx, token, caller, from, to, tokenID, amounts[idx], dbClient,
				); err != nil {
					return err
				}
			}
			receiver, err := r.receiverAt(ctx, to, dbClient)
			if err != nil || receiver == nil {
				return err
			}
			if err := receiver.OnMultiTokenBatchReceived(
				ctx, to, token, caller, from, tokenIDs, amounts, data, dbClient,
			); err != nil {
				return fmt.Errorf(
					"%s rejected %s batch [%w] [%w]", to.Hex(), token.Hex(), models.ErrTransferFailed, err,
				)
			}
			return nil
		},
	)
}

// receiverAt fetch the receiver hooks of a contract recipient; nil for external accounts
func (r *MultiToken) receiverAt(
	ctx context.Context, to common.Address, dbClient db.Database,
) (MultiTokenReceiver, error) {
	code, account, err := r.ledger.CodeAt(ctx, to, dbClient)
	if err != nil {
		return nil, err
	}
	if !account.IsContract() {
		return nil, nil
	}
	receiver, ok := code.(MultiTokenReceiver)
	if !ok {
		return nil, fmt.Errorf(
			"'%s' contract %s does not accept multi-tokens [%w]",
			account.Kind,
			to.Hex(),
			models.ErrTransferFailed,
		)
	}
	return receiver, nil
}

// move move the balance of one ID between holders
func (r *MultiToken) move(
	ctx context.Context,
	token, caller, from, to common.Address,
	tokenID, amount *big.Int,
	dbClient db.Database,
) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := validAmount(tokenID); err != nil {
		return err
	}
	if _, err := r.loadParams(ctx, token, dbClient); err != nil {
		return err
	}
	if caller != from {
		return fmt.Errorf(
			"%s can not move %s #%s of %s [%w]",
			caller.Hex(),
			token.Hex(),
			tokenID,
			from.Hex(),
			models.ErrTransferFailed,
		)
	}
	if err := r.adjust(ctx, token, from, tokenID, amount, false, dbClient); err != nil {
		return err
	}
	if err := r.adjust(ctx, token, to, tokenID, amount, true, dbClient); err != nil {
		return err
	}
	return r.emitTransfer(ctx, token, caller, &from, to, tokenID, amount, dbClient)
}

// adjust credit or debit the balance of one holder for one ID
func (r *MultiToken) adjust(
	ctx context.Context,
	token, holder common.Address,
	tokenID, amount *big.Int,
	credit bool,
	dbClient db.Database,
) error {
	tokenAddr := models.NormalizeAddress(token)
	holderAddr := models.NormalizeAddress(holder)
	current, err := dbClient.GetMultiTokenBalance(ctx, tokenAddr, tokenID, holderAddr)
	if err != nil {
		return err
	}
	var updated *big.Int
	if credit {
		updated = new(big.Int).Add(current, amount)
		if !models.IsUint256(updated) {
			return fmt.Errorf(
				"%s #%s balance of %s would overflow [%w]", tokenAddr, tokenID, holderAddr, models.ErrInvalidRequest,
			)
		}
	} else {
		if current.Cmp(amount) < 0 {
			return fmt.Errorf(
				"%s holds %s of %s #%s, can not send %s [%w]",
				holderAddr,
				current,
				tokenAddr,
				tokenID,
				amount,
				models.ErrTransferFailed,
			)
		}
		updated = new(big.Int).Sub(current, amount)
	}
	return dbClient.SetMultiTokenBalance(ctx, tokenAddr, tokenID, holderAddr, updated)
}
