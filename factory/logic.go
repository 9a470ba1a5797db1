package factory

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/ledger"
	"github.com/alwitt/keyvault/models"
	"github.com/alwitt/keyvault/vault"
	"github.com/ethereum/go-ethereum/common"
)

// Storage the state and collaborators a factory logic version operates on
//
// Storage survives logic upgrades unchanged.
type Storage struct {
	// Address the factory proxy
	Address common.Address
	// Params the persisted factory parameters
	Params models.FactoryParams
	// Ledger the ledger
	Ledger ledger.Ledger
	// Vaults the vault code
	Vaults *vault.Logic
}

// VaultImplementation the vault implementation new vaults clone
func (s Storage) VaultImplementation() common.Address {
	if s.Params.VaultImplementation == nil {
		return common.Address{}
	}
	return common.HexToAddress(*s.Params.VaultImplementation)
}

// KeyRegistry the key token registry
func (s Storage) KeyRegistry() common.Address {
	if s.Params.KeyRegistry == nil {
		return common.Address{}
	}
	return common.HexToAddress(*s.Params.KeyRegistry)
}

// Logic one version of the factory logic
type Logic interface {
	// Version logic version tag
	Version() string

	/*
		CreateVault deploy the vault of a key token; the caller must hold the key

			@param ctx context.Context - execution context
			@param storage Storage - factory storage
			@param caller common.Address - the calling account
			@param keyID *big.Int - the key token ID
			@param dbClient db.Database - active ledger step
			@returns the vault address
	*/
	CreateVault(
		ctx context.Context,
		storage Storage,
		caller common.Address,
		keyID *big.Int,
		dbClient db.Database,
	) (common.Address, error)

	/*
		VaultOf fetch the vault of a key token; the zero address if there is none

			@param ctx context.Context - execution context
			@param storage Storage - factory storage
			@param keyID *big.Int - the key token ID
			@param dbClient db.Database - active ledger step
			@returns the vault address
	*/
	VaultOf(
		ctx context.Context, storage Storage, keyID *big.Int, dbClient db.Database,
	) (common.Address, error)
}

// VaultImplementationSetter logic versions able to change the vault implementation
type VaultImplementationSetter interface {
	/*
		SetVaultImplementation change the vault implementation new vaults clone

			@param ctx context.Context - execution context
			@param storage Storage - factory storage
			@param implementation common.Address - new vault implementation
			@param dbClient db.Database - active ledger step
	*/
	SetVaultImplementation(
		ctx context.Context,
		storage Storage,
		implementation common.Address,
		dbClient db.Database,
	) error
}

// LogicV1Version version tag of LogicV1
const LogicV1Version = "v1"

// LogicV1 first factory logic version
type LogicV1 struct{}

// Version logic version tag
func (LogicV1) Version() string {
	return LogicV1Version
}

/*
CreateVault deploy the vault of a key token; the caller must hold the key

	@param ctx context.Context - execution context
	@param storage Storage - factory storage
	@param caller common.Address - the calling account
	@param keyID *big.Int - the key token ID
	@param dbClient db.Database - active ledger step
	@returns the vault address
*/
func (LogicV1) CreateVault(
	ctx context.Context,
	storage Storage,
	caller common.Address,
	keyID *big.Int,
	dbClient db.Database,
) (common.Address, error) {
	if !models.IsUint256(keyID) {
		return common.Address{}, fmt.Errorf("key ID %s is not valid [%w]", keyID, models.ErrInvalidRequest)
	}

	keyRegistry, err := keyRegistryAt(ctx, storage, dbClient)
	if err != nil {
		return common.Address{}, err
	}
	holder, err := keyRegistry.OwnerOf(ctx, storage.KeyRegistry(), keyID, dbClient)
	if err != nil {
		return common.Address{}, fmt.Errorf(
			"%s and key #%s [%w] [%w]", caller.Hex(), keyID, models.ErrNotKeyHolder, err,
		)
	}
	if holder != caller {
		return common.Address{}, fmt.Errorf(
			"%s and key #%s [%w]", caller.Hex(), keyID, models.ErrNotKeyHolder,
		)
	}

	factoryAddr := models.NormalizeAddress(storage.Address)
	if _, exists, err := dbClient.GetFactoryVault(ctx, factoryAddr, keyID); err != nil {
		return common.Address{}, err
	} else if exists {
		return common.Address{}, fmt.Errorf("key #%s [%w]", keyID, models.ErrAlreadyRegistered)
	}

	vaultAddr, err := storage.Vaults.Clone(
		ctx, storage.Address, storage.VaultImplementation(), dbClient,
	)
	if err != nil {
		return common.Address{}, err
	}
	if err := storage.Vaults.Initialize(
		ctx, vaultAddr, storage.Address, storage.KeyRegistry(), keyID, dbClient,
	); err != nil {
		return common.Address{}, err
	}
	if _, err := dbClient.RegisterFactoryVault(
		ctx, factoryAddr, keyID, models.NormalizeAddress(vaultAddr),
	); err != nil {
		return common.Address{}, err
	}

	if err := storage.Ledger.Emit(
		ctx, storage.Address, models.LedgerEventTypeCreateVault, &models.CreateVaultEvent{
			KeyID: keyID.String(), Vault: models.NormalizeAddress(vaultAddr),
		}, dbClient,
	); err != nil {
		return common.Address{}, err
	}

	return vaultAddr, nil
}

/*
VaultOf fetch the vault of a key token; the zero address if there is none

	@param ctx context.Context - execution context
	@param storage Storage - factory storage
	@param keyID *big.Int - the key token ID
	@param dbClient db.Database - active ledger step
	@returns the vault address
*/
func (LogicV1) VaultOf(
	ctx context.Context, storage Storage, keyID *big.Int, dbClient db.Database,
) (common.Address, error) {
	entry, exists, err := dbClient.GetFactoryVault(ctx, models.NormalizeAddress(storage.Address), keyID)
	if err != nil || !exists {
		return common.Address{}, err
	}
	return common.HexToAddress(entry.Vault), nil
}

// keyRegistryAt fetch the code of the key registry
func keyRegistryAt(
	ctx context.Context, storage Storage, dbClient db.Database,
) (vault.KeyRegistry, error) {
	code, account, err := storage.Ledger.CodeAt(ctx, storage.KeyRegistry(), dbClient)
	if err != nil {
		return nil, err
	}
	keyRegistry, ok := code.(vault.KeyRegistry)
	if !ok || account.Kind != models.AccountKindNonFungible {
		return nil, fmt.Errorf(
			"%s is not a key registry [%w]", storage.KeyRegistry().Hex(), models.ErrInvalidRequest,
		)
	}
	return keyRegistry, nil
}
