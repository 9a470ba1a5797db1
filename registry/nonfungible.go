package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/ethereum/go-ethereum/common"
)

// NonFungible non-fungible token registry code
//
// Operator approvals are not modelled: only the current owner may move a token.
type NonFungible struct {
	base
}

/*
Mint create the next sequential token. IDs start at 1.

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - must be the registry minter
	@param to common.Address - receiving account
	@param activeDBClient db.Database - existing ledger step
	@returns the new token ID
*/
func (r *NonFungible) Mint(
	ctx context.Context, token, caller, to common.Address, activeDBClient db.Database,
) (*big.Int, error) {
	var tokenID *big.Int
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			if _, err := r.checkMinter(ctx, token, caller, dbClient); err != nil {
				return err
			}
			var err error
			tokenID, err = dbClient.AdvanceRegistryTokenID(ctx, models.NormalizeAddress(token))
			if err != nil {
				return err
			}
			if err := dbClient.SetNonFungibleOwner(
				ctx, models.NormalizeAddress(token), tokenID, models.NormalizeAddress(to),
			); err != nil {
				return err
			}
			return r.emitTransfer(ctx, token, caller, nil, to, tokenID, nil, dbClient)
		},
	)
	return tokenID, err
}

/*
OwnerOf fetch the owner of a token

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param tokenID *big.Int - the token
	@param activeDBClient db.Database - existing ledger step
	@returns the owner
*/
func (r *NonFungible) OwnerOf(
	ctx context.Context, token common.Address, tokenID *big.Int, activeDBClient db.Database,
) (common.Address, error) {
	var owner common.Address
	err := r.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		if _, err := r.loadParams(ctx, token, dbClient); err != nil {
			return err
		}
		ownerAddr, err := dbClient.GetNonFungibleOwner(ctx, models.NormalizeAddress(token), tokenID)
		if err != nil {
			return err
		}
		owner = common.HexToAddress(ownerAddr)
		return nil
	})
	return owner, err
}

/*
BalanceOf count the tokens held by an owner

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param owner common.Address - the owner
	@param activeDBClient db.Database - existing ledger step
	@returns the number of tokens
*/
func (r *NonFungible) BalanceOf(
	ctx context.Context, token, owner common.Address, activeDBClient db.Database,
) (*big.Int, error) {
	var count int64
	err := r.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		if _, err := r.loadParams(ctx, token, dbClient); err != nil {
			return err
		}
		var err error
		count, err = dbClient.CountNonFungibleOwned(
			ctx, models.NormalizeAddress(token), models.NormalizeAddress(owner),
		)
		return err
	})
	return big.NewInt(count), err
}

/*
TransferFrom move a token without notifying a contract recipient

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - the account starting the transfer
	@param from common.Address - the current owner
	@param to common.Address - receiving account
	@param tokenID *big.Int - the token
	@param activeDBClient db.Database - existing ledger step
*/
func (r *NonFungible) TransferFrom(
	ctx context.Context,
	token, caller, from, to common.Address,
	tokenID *big.Int,
	activeDBClient db.Database,
) error {
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			return r.move(ctx, token, caller, from, to, tokenID, dbClient)
		},
	)
}

/*
SafeTransferFrom move a token; a contract recipient must accept it

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - the account starting the transfer
	@param from common.Address - the current owner
	@param to common.Address - receiving account
	@param tokenID *big.Int - the token
	@param data []byte - payload passed to the recipient
	@param activeDBClient db.Database - existing ledger step
*/
func (r *NonFungible) SafeTransferFrom(
	ctx context.Context,
	token, caller, from, to common.Address,
	tokenID *big.Int,
	data []byte,
	activeDBClient db.Database,
) error {
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			if err := r.move(ctx, token, caller, from, to, tokenID, dbClient); err != nil {
				return err
			}

			code, account, err := r.ledger.CodeAt(ctx, to, dbClient)
			if err != nil {
				return err
			}
			if !account.IsContract() {
				return nil
			}
			receiver, ok := code.(NonFungibleReceiver)
			if !ok {
				return fmt.Errorf(
					"'%s' contract %s does not accept non-fungible tokens [%w]",
					account.Kind,
					to.Hex(),
					models.ErrTransferFailed,
				)
			}
			if err := receiver.OnNonFungibleReceived(
				ctx, to, token, caller, from, tokenID, data, dbClient,
			); err != nil {
				return fmt.Errorf(
					"%s rejected %s #%s [%w] [%w]", to.Hex(), token.Hex(), tokenID, models.ErrTransferFailed, err,
				)
			}
			return nil
		},
	)
}

// move change the owner of a token
func (r *NonFungible) move(
	ctx context.Context,
	token, caller, from, to common.Address,
	tokenID *big.Int,
	dbClient db.Database,
) error {
	if _, err := r.loadParams(ctx, token, dbClient); err != nil {
		return err
	}
	tokenAddr := models.NormalizeAddress(token)
	owner, err := dbClient.GetNonFungibleOwner(ctx, tokenAddr, tokenID)
	if err != nil {
		return fmt.Errorf("%s #%s [%w] [%w]", tokenAddr, tokenID, models.ErrTransferFailed, err)
	}
	if owner != models.NormalizeAddress(from) {
		return fmt.Errorf(
			"%s #%s is not owned by %s [%w]", tokenAddr, tokenID, from.Hex(), models.ErrTransferFailed,
		)
	}
	if caller != from {
		return fmt.Errorf(
			"%s can not move %s #%s of %s [%w]",
			caller.Hex(),
			tokenAddr,
			tokenID,
			from.Hex(),
			models.ErrTransferFailed,
		)
	}
	if err := dbClient.SetNonFungibleOwner(
		ctx, tokenAddr, tokenID, models.NormalizeAddress(to),
	); err != nil {
		return err
	}
	return r.emitTransfer(ctx, token, caller, &from, to, tokenID, nil, dbClient)
}
