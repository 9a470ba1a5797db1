package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/ethereum/go-ethereum/common"
)

// KeyRegistry the non-fungible token registry whose tokens govern vaults
type KeyRegistry interface {
	OwnerOf(
		ctx context.Context, token common.Address, tokenID *big.Int, activeDBClient db.Database,
	) (common.Address, error)

	TransferFrom(
		ctx context.Context,
		token, caller, from, to common.Address,
		tokenID *big.Int,
		activeDBClient db.Database,
	) error
}

// FungibleToken fungible token registry as used for withdrawals
type FungibleToken interface {
	Transfer(
		ctx context.Context,
		token, caller, to common.Address,
		amount *big.Int,
		activeDBClient db.Database,
	) error
}

// NonFungibleToken non-fungible token registry as used for withdrawals
type NonFungibleToken interface {
	SafeTransferFrom(
		ctx context.Context,
		token, caller, from, to common.Address,
		tokenID *big.Int,
		data []byte,
		activeDBClient db.Database,
	) error
}

// MultiToken multi-token registry as used for withdrawals
type MultiToken interface {
	SafeTransferFrom(
		ctx context.Context,
		token, caller, from, to common.Address,
		tokenID, amount *big.Int,
		data []byte,
		activeDBClient db.Database,
	) error
}

// LegacyMarketToken legacy market registry as used for withdrawals
type LegacyMarketToken interface {
	Transfer(
		ctx context.Context,
		token, caller, to common.Address,
		index *big.Int,
		activeDBClient db.Database,
	) error
}

// Administered code of the account which initialized a vault, able to name its administrator
type Administered interface {
	Owner(ctx context.Context, self common.Address, activeDBClient db.Database) (common.Address, error)
}

// registryKinds the registry account kind each asset type is held in
var registryKinds = map[models.TokenTypeENUMType]models.AccountKindENUMType{
	models.TokenTypeFungible:     models.AccountKindFungible,
	models.TokenTypeNonFungible:  models.AccountKindNonFungible,
	models.TokenTypeMultiToken:   models.AccountKindMultiToken,
	models.TokenTypeLegacyMarket: models.AccountKindLegacyMarket,
}

// registryAt fetch the code of an asset registry, verifying it holds the asset type
func (v *Logic) registryAt(
	ctx context.Context,
	token common.Address,
	tokenType models.TokenTypeENUMType,
	dbClient db.Database,
) (interface{}, error) {
	expected, ok := registryKinds[tokenType]
	if !ok {
		return nil, fmt.Errorf("'%s' assets are not held in a registry [%w]", tokenType, models.ErrInvalidRequest)
	}
	code, account, err := v.ledger.CodeAt(ctx, token, dbClient)
	if err != nil {
		return nil, fmt.Errorf("%s [%w] [%w]", token.Hex(), models.ErrTransferFailed, err)
	}
	if account.Kind != expected {
		return nil, fmt.Errorf(
			"%s is a '%s' account, not a '%s' registry [%w]",
			token.Hex(),
			account.Kind,
			expected,
			models.ErrTransferFailed,
		)
	}
	return code, nil
}

// keyRegistryAt fetch the code of a key registry
func (v *Logic) keyRegistryAt(
	ctx context.Context, keyRegistry common.Address, dbClient db.Database,
) (KeyRegistry, error) {
	code, err := v.registryAt(ctx, keyRegistry, models.TokenTypeNonFungible, dbClient)
	if err != nil {
		return nil, err
	}
	registry, ok := code.(KeyRegistry)
	if !ok {
		return nil, fmt.Errorf("%s is not a key registry [%w]", keyRegistry.Hex(), models.ErrInvalidRequest)
	}
	return registry, nil
}
