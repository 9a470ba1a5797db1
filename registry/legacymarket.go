package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/ethereum/go-ethereum/common"
)

// LegacyMarket legacy market-style token registry code
//
// Items are indexed from 0. The minter assigns initial owners, then seals the registry.
// Only a sealed registry allows transfers, and transfers never notify the recipient.
type LegacyMarket struct {
	base
}

/*
SetInitialOwner assign the initial owner of an item

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - must be the registry minter
	@param to common.Address - the initial owner
	@param index *big.Int - the item index
	@param activeDBClient db.Database - existing ledger step
*/
func (r *LegacyMarket) SetInitialOwner(
	ctx context.Context,
	token, caller, to common.Address,
	index *big.Int,
	activeDBClient db.Database,
) error {
	if err := validAmount(index); err != nil {
		return err
	}
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			params, err := r.checkMinter(ctx, token, caller, dbClient)
			if err != nil {
				return err
			}
			if params.Sealed {
				return fmt.Errorf(
					"initial owners of %s are already assigned [%w]", token.Hex(), models.ErrNotAuthorized,
				)
			}
			if err := dbClient.SetLegacyMarketOwner(
				ctx, params.Address, index, models.NormalizeAddress(to),
			); err != nil {
				return err
			}
			return r.emitTransfer(ctx, token, caller, nil, to, index, nil, dbClient)
		},
	)
}

/*
AllInitialOwnersAssigned seal the registry, enabling transfers

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - must be the registry minter
	@param activeDBClient db.Database - existing ledger step
*/
func (r *LegacyMarket) AllInitialOwnersAssigned(
	ctx context.Context, token, caller common.Address, activeDBClient db.Database,
) error {
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			params, err := r.checkMinter(ctx, token, caller, dbClient)
			if err != nil {
				return err
			}
			return dbClient.SealRegistry(ctx, params.Address)
		},
	)
}

/*
OwnerOf fetch the owner of an item

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param index *big.Int - the item index
	@param activeDBClient db.Database - existing ledger step
	@returns the owner
*/
func (r *LegacyMarket) OwnerOf(
	ctx context.Context, token common.Address, index *big.Int, activeDBClient db.Database,
) (common.Address, error) {
	var owner common.Address
	err := r.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		if _, err := r.loadParams(ctx, token, dbClient); err != nil {
			return err
		}
		ownerAddr, err := dbClient.GetLegacyMarketOwner(ctx, models.NormalizeAddress(token), index)
		if err != nil {
			return err
		}
		owner = common.HexToAddress(ownerAddr)
		return nil
	})
	return owner, err
}

/*
Transfer move an item from the caller to another account

	@param ctx context.Context - execution context
	@param token common.Address - the registry
	@param caller common.Address - the current owner
	@param to common.Address - receiving account
	@param index *big.Int - the item index
	@param activeDBClient db.Database - existing ledger step
*/
func (r *LegacyMarket) Transfer(
	ctx context.Context,
	token, caller, to common.Address,
	index *big.Int,
	activeDBClient db.Database,
) error {
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, r.ledger, func(ctx context.Context, dbClient db.Database) error {
			params, err := r.loadParams(ctx, token, dbClient)
			if err != nil {
				return err
			}
			if !params.Sealed {
				return fmt.Errorf(
					"%s transfers are not open yet [%w]", token.Hex(), models.ErrTransferFailed,
				)
			}
			owner, err := dbClient.GetLegacyMarketOwner(ctx, params.Address, index)
			if err != nil {
				return fmt.Errorf("%s item %s [%w] [%w]", token.Hex(), index, models.ErrTransferFailed, err)
			}
			if owner != models.NormalizeAddress(caller) {
				return fmt.Errorf(
					"%s item %s is not owned by %s [%w]",
					token.Hex(),
					index,
					caller.Hex(),
					models.ErrTransferFailed,
				)
			}
			if err := dbClient.SetLegacyMarketOwner(
				ctx, params.Address, index, models.NormalizeAddress(to),
			); err != nil {
				return err
			}
			return r.emitTransfer(ctx, token, caller, &caller, to, index, nil, dbClient)
		},
	)
}
