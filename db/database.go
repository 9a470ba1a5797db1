package db

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/goutils"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CommonListEntryQueryFilter common query filter when listing data entries
type CommonListEntryQueryFilter struct {
	Limit  *int
	Offset *int
}

// LedgerEventQueryFilter ledger event query filter conditions
type LedgerEventQueryFilter struct {
	CommonListEntryQueryFilter
	// EventTypes the specific event types to query for
	EventTypes []models.LedgerEventTypeENUMType
	// Emitter only events emitted by this account
	Emitter *string
	// TxID only events emitted by this ledger step
	TxID *string
}

// FactoryVaultQueryFilter factory vault mapping query filter conditions
type FactoryVaultQueryFilter struct {
	CommonListEntryQueryFilter
}

// NewLedgerEvent parameters of an event to record
type NewLedgerEvent struct {
	// TxID the atomic ledger step emitting the event
	TxID string
	// Emitter the emitting account
	Emitter string
	// EventType event type
	EventType models.LedgerEventTypeENUMType
	// Metadata event arguments
	Metadata interface{}
}

// Database the database handle to interacting with the data base
type Database interface {
	// ------------------------------------------------------------------------------------
	// Ledger accounts

	/*
		DefineAccount record a new ledger account

			@param ctx context.Context - execution context
			@param account models.Account - the account
			@returns the account entry
	*/
	DefineAccount(ctx context.Context, account models.Account) (models.Account, error)

	/*
		GetAccount fetch one ledger account

			@param ctx context.Context - execution context
			@param address string - account address
			@returns the account entry
	*/
	GetAccount(ctx context.Context, address string) (models.Account, error)

	/*
		GetOrDefineExternalAccount fetch one ledger account, defining it as an externally
		owned account if it is not known yet

			@param ctx context.Context - execution context
			@param address string - account address
			@returns the account entry
	*/
	GetOrDefineExternalAccount(ctx context.Context, address string) (models.Account, error)

	/*
		IncrementAccountNonce increment the deployment nonce of an account

			@param ctx context.Context - execution context
			@param address string - account address
			@returns the nonce before the increment
	*/
	IncrementAccountNonce(ctx context.Context, address string) (uint64, error)

	/*
		SetAccountBalance set the native value balance of an account

			@param ctx context.Context - execution context
			@param address string - account address
			@param balance *big.Int - new balance
	*/
	SetAccountBalance(ctx context.Context, address string, balance *big.Int) error

	// ------------------------------------------------------------------------------------
	// Ledger events

	/*
		RecordLedgerEvent record an emitted event

			@param ctx context.Context - execution context
			@param event NewLedgerEvent - the event
			@returns the event entry
	*/
	RecordLedgerEvent(ctx context.Context, event NewLedgerEvent) (models.LedgerEvent, error)

	/*
		ListLedgerEvents list emitted events

			@param ctx context.Context - execution context
			@param filters LedgerEventQueryFilter - entry listing filter
			@return list of events
	*/
	ListLedgerEvents(
		ctx context.Context, filters LedgerEventQueryFilter,
	) ([]models.LedgerEvent, error)

	// ------------------------------------------------------------------------------------
	// Token registries

	/*
		DefineRegistry record the parameters of a new token registry

			@param ctx context.Context - execution context
			@param params models.RegistryParams - registry parameters
			@returns the registry entry
	*/
	DefineRegistry(ctx context.Context, params models.RegistryParams) (models.RegistryParams, error)

	/*
		GetRegistry fetch the parameters of a token registry

			@param ctx context.Context - execution context
			@param address string - registry address
			@returns the registry entry
	*/
	GetRegistry(ctx context.Context, address string) (models.RegistryParams, error)

	/*
		AdvanceRegistryTokenID consume the next sequential token ID of a registry

			@param ctx context.Context - execution context
			@param address string - registry address
			@returns the consumed token ID
	*/
	AdvanceRegistryTokenID(ctx context.Context, address string) (*big.Int, error)

	/*
		SealRegistry mark a registry as sealed

			@param ctx context.Context - execution context
			@param address string - registry address
	*/
	SealRegistry(ctx context.Context, address string) error

	/*
		GetFungibleBalance fetch a fungible token balance; unknown holders have zero

			@param ctx context.Context - execution context
			@param token string - registry address
			@param holder string - holder address
			@returns the balance
	*/
	GetFungibleBalance(ctx context.Context, token, holder string) (*big.Int, error)

	/*
		SetFungibleBalance set a fungible token balance

			@param ctx context.Context - execution context
			@param token string - registry address
			@param holder string - holder address
			@param amount *big.Int - new balance
	*/
	SetFungibleBalance(ctx context.Context, token, holder string, amount *big.Int) error

	/*
		GetNonFungibleOwner fetch the owner of a non-fungible token

			@param ctx context.Context - execution context
			@param token string - registry address
			@param tokenID *big.Int - token ID
			@returns the owner
	*/
	GetNonFungibleOwner(ctx context.Context, token string, tokenID *big.Int) (string, error)

	/*
		SetNonFungibleOwner set the owner of a non-fungible token

			@param ctx context.Context - execution context
			@param token string - registry address
			@param tokenID *big.Int - token ID
			@param owner string - new owner
	*/
	SetNonFungibleOwner(ctx context.Context, token string, tokenID *big.Int, owner string) error

	/*
		CountNonFungibleOwned count the tokens of a registry held by one owner

			@param ctx context.Context - execution context
			@param token string - registry address
			@param owner string - owner address
			@returns number of tokens
	*/
	CountNonFungibleOwned(ctx context.Context, token, owner string) (int64, error)

	/*
		GetMultiTokenBalance fetch a multi-token balance; unknown holders have zero

			@param ctx context.Context - execution context
			@param token string - registry address
			@param tokenID *big.Int - token ID
			@param holder string - holder address
			@returns the balance
	*/
	GetMultiTokenBalance(
		ctx context.Context, token string, tokenID *big.Int, holder string,
	) (*big.Int, error)

	/*
		SetMultiTokenBalance set a multi-token balance

			@param ctx context.Context - execution context
			@param token string - registry address
			@param tokenID *big.Int - token ID
			@param holder string - holder address
			@param amount *big.Int - new balance
	*/
	SetMultiTokenBalance(
		ctx context.Context, token string, tokenID *big.Int, holder string, amount *big.Int,
	) error

	/*
		GetLegacyMarketOwner fetch the owner of a legacy market item

			@param ctx context.Context - execution context
			@param token string - registry address
			@param index *big.Int - item index
			@returns the owner
	*/
	GetLegacyMarketOwner(ctx context.Context, token string, index *big.Int) (string, error)

	/*
		SetLegacyMarketOwner set the owner of a legacy market item

			@param ctx context.Context - execution context
			@param token string - registry address
			@param index *big.Int - item index
			@param owner string - new owner
	*/
	SetLegacyMarketOwner(ctx context.Context, token string, index *big.Int, owner string) error

	// ------------------------------------------------------------------------------------
	// Vaults

	/*
		DefineVault record the state of a newly initialized vault

			@param ctx context.Context - execution context
			@param state models.VaultState - vault state
			@returns the vault entry
	*/
	DefineVault(ctx context.Context, state models.VaultState) (models.VaultState, error)

	/*
		GetVault fetch the state of a vault

			@param ctx context.Context - execution context
			@param address string - vault address
			@returns the vault entry
	*/
	GetVault(ctx context.Context, address string) (models.VaultState, error)

	/*
		LockVault set the write-once unlock timestamp of a vault

			@param ctx context.Context - execution context
			@param address string - vault address
			@param unlockTimestamp int64 - unix seconds
	*/
	LockVault(ctx context.Context, address string, unlockTimestamp int64) error

	// ------------------------------------------------------------------------------------
	// Vault factories

	/*
		DefineFactory record the storage of a newly deployed factory proxy

			@param ctx context.Context - execution context
			@param params models.FactoryParams - factory storage
			@returns the factory entry
	*/
	DefineFactory(ctx context.Context, params models.FactoryParams) (models.FactoryParams, error)

	/*
		GetFactory fetch the storage of a factory proxy

			@param ctx context.Context - execution context
			@param address string - factory address
			@returns the factory entry
	*/
	GetFactory(ctx context.Context, address string) (models.FactoryParams, error)

	/*
		MarkFactoryInitialized initialize a factory

			@param ctx context.Context - execution context
			@param address string - factory address
			@param owner string - factory administrator
			@param vaultImplementation string - shared vault implementation
			@param keyRegistry string - key token registry
	*/
	MarkFactoryInitialized(
		ctx context.Context, address, owner, vaultImplementation, keyRegistry string,
	) error

	/*
		SetFactoryOwner change the factory administrator

			@param ctx context.Context - execution context
			@param address string - factory address
			@param owner string - new administrator
	*/
	SetFactoryOwner(ctx context.Context, address, owner string) error

	/*
		SetFactoryLogic change the active factory logic

			@param ctx context.Context - execution context
			@param address string - factory address
			@param implementation string - logic account
			@param version string - logic version tag
	*/
	SetFactoryLogic(ctx context.Context, address, implementation, version string) error

	/*
		SetFactoryVaultImplementation change the vault implementation new vaults clone

			@param ctx context.Context - execution context
			@param address string - factory address
			@param implementation string - vault implementation
	*/
	SetFactoryVaultImplementation(ctx context.Context, address, implementation string) error

	/*
		RegisterFactoryVault insert a key ID to vault mapping

			@param ctx context.Context - execution context
			@param factory string - factory address
			@param keyID *big.Int - key token ID
			@param vault string - vault address
			@returns the mapping entry
	*/
	RegisterFactoryVault(
		ctx context.Context, factory string, keyID *big.Int, vault string,
	) (models.FactoryVault, error)

	/*
		GetFactoryVault fetch the vault mapped to a key ID

			@param ctx context.Context - execution context
			@param factory string - factory address
			@param keyID *big.Int - key token ID
			@returns the mapping entry, and whether it exists
	*/
	GetFactoryVault(
		ctx context.Context, factory string, keyID *big.Int,
	) (models.FactoryVault, bool, error)

	/*
		ListFactoryVaults list the key ID to vault mapping of a factory

			@param ctx context.Context - execution context
			@param factory string - factory address
			@param filters FactoryVaultQueryFilter - entry listing filter
			@return list of mapping entries
	*/
	ListFactoryVaults(
		ctx context.Context, factory string, filters FactoryVaultQueryFilter,
	) ([]models.FactoryVault, error)
}

// databaseImpl implements Database
type databaseImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

// newDatabase define a new database client
func newDatabase(_ context.Context, sqlClient *gorm.DB) (Database, error) {
	logTags := log.Fields{"package": "keyvault", "module": "db", "component": "db-client"}

	instance := &databaseImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        sqlClient,
		validator: validator.New(),
	}

	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	return instance, nil
}

// applyListFilter apply the common limit / offset filters
func applyListFilter(query *gorm.DB, filters CommonListEntryQueryFilter) *gorm.DB {
	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}
	return query
}
