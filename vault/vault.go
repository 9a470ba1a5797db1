// Package vault - key token gated asset custody vaults
package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/alwitt/goutils"
	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/ledger"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// Vault one vault instance
//
// Every mutating call authorizes the caller against the live owner of the key token.
type Vault interface {
	// Address the vault address
	Address() common.Address

	/*
		KeyReference the key token governing the vault

			@param ctx context.Context - execution context
			@param activeDBClient db.Database - existing ledger step
			@returns the key reference
	*/
	KeyReference(ctx context.Context, activeDBClient db.Database) (models.KeyReference, error)

	/*
		KeyOwner the current holder of the key token, which is the authorized caller

			@param ctx context.Context - execution context
			@param activeDBClient db.Database - existing ledger step
			@returns the key holder
	*/
	KeyOwner(ctx context.Context, activeDBClient db.Database) (common.Address, error)

	/*
		UnlockTime the timelock unix timestamp; zero if never locked

			@param ctx context.Context - execution context
			@param activeDBClient db.Database - existing ledger step
			@returns the unlock timestamp
	*/
	UnlockTime(ctx context.Context, activeDBClient db.Database) (int64, error)

	/*
		Timelock block withdrawals until the unlock timestamp. The lock can be set once.

			@param ctx context.Context - execution context
			@param caller common.Address - must be the key holder
			@param unlockTimestamp int64 - unix seconds
			@param note string - lock note
			@param activeDBClient db.Database - existing ledger step
	*/
	Timelock(
		ctx context.Context,
		caller common.Address,
		unlockTimestamp int64,
		note string,
		activeDBClient db.Database,
	) error

	/*
		WithdrawETH move native value out of the vault

			@param ctx context.Context - execution context
			@param caller common.Address - must be the key holder
			@param to common.Address - destination
			@param amount *big.Int - value to move
			@param activeDBClient db.Database - existing ledger step
	*/
	WithdrawETH(
		ctx context.Context,
		caller, to common.Address,
		amount *big.Int,
		activeDBClient db.Database,
	) error

	/*
		WithdrawFungible move fungible tokens out of the vault

			@param ctx context.Context - execution context
			@param caller common.Address - must be the key holder
			@param token common.Address - the registry
			@param to common.Address - destination
			@param amount *big.Int - amount to move
			@param activeDBClient db.Database - existing ledger step
	*/
	WithdrawFungible(
		ctx context.Context,
		caller, token, to common.Address,
		amount *big.Int,
		activeDBClient db.Database,
	) error

	/*
		WithdrawNonFungible move a non-fungible token out of the vault

			@param ctx context.Context - execution context
			@param caller common.Address - must be the key holder
			@param token common.Address - the registry
			@param tokenID *big.Int - the token
			@param to common.Address - destination
			@param activeDBClient db.Database - existing ledger step
	*/
	WithdrawNonFungible(
		ctx context.Context,
		caller, token common.Address,
		tokenID *big.Int,
		to common.Address,
		activeDBClient db.Database,
	) error

	/*
		WithdrawMultiToken move multi-tokens of one ID out of the vault

			@param ctx context.Context - execution context
			@param caller common.Address - must be the key holder
			@param token common.Address - the registry
			@param tokenID *big.Int - the token ID
			@param to common.Address - destination
			@param amount *big.Int - amount to move
			@param activeDBClient db.Database - existing ledger step
	*/
	WithdrawMultiToken(
		ctx context.Context,
		caller, token common.Address,
		tokenID *big.Int,
		to common.Address,
		amount *big.Int,
		activeDBClient db.Database,
	) error

	/*
		WithdrawLegacyMarketToken move a legacy market item out of the vault

			@param ctx context.Context - execution context
			@param caller common.Address - must be the key holder
			@param token common.Address - the registry
			@param tokenID *big.Int - the item index
			@param to common.Address - destination
			@param activeDBClient db.Database - existing ledger step
	*/
	WithdrawLegacyMarketToken(
		ctx context.Context,
		caller, token common.Address,
		tokenID *big.Int,
		to common.Address,
		activeDBClient db.Database,
	) error

	/*
		WithdrawMultiple execute several withdrawals in order. Either all succeed or none.

			@param ctx context.Context - execution context
			@param caller common.Address - must be the key holder
			@param requests []models.WithdrawalRequest - the withdrawals
			@param to common.Address - destination of every withdrawal
			@param activeDBClient db.Database - existing ledger step
	*/
	WithdrawMultiple(
		ctx context.Context,
		caller common.Address,
		requests []models.WithdrawalRequest,
		to common.Address,
		activeDBClient db.Database,
	) error

	/*
		RecoverKey move the key token out of the vault holding it, to the factory administrator

			@param ctx context.Context - execution context
			@param caller common.Address - must be the administrator of the vault's factory
			@param activeDBClient db.Database - existing ledger step
	*/
	RecoverKey(ctx context.Context, caller common.Address, activeDBClient db.Database) error
}

// Logic the vault code shared by every vault clone
type Logic struct {
	goutils.Component
	ledger ledger.Ledger
}

/*
Install define the vault code and bind it to the ledger

	@param l ledger.Ledger - the ledger
	@returns the vault code
*/
func Install(l ledger.Ledger) *Logic {
	logic := &Logic{
		Component: goutils.Component{
			LogTags: log.Fields{"package": "keyvault", "module": "vault", "component": "vault"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		ledger: l,
	}
	l.BindCode(models.AccountKindVaultImplementation, logic)
	l.BindCode(models.AccountKindVault, logic)
	return logic
}

// At attach to the vault at an address
func (v *Logic) At(address common.Address) Vault {
	return &vaultImpl{Logic: v, self: address}
}

/*
DeployImplementation deploy the shared implementation which clones delegate to. The
implementation can never be initialized.

	@param ctx context.Context - execution context
	@param deployer common.Address - deploying account
	@param activeDBClient db.Database - existing ledger step
	@returns the implementation address
*/
func (v *Logic) DeployImplementation(
	ctx context.Context, deployer common.Address, activeDBClient db.Database,
) (common.Address, error) {
	impl, err := v.ledger.DeployContract(ctx, ledger.DeployParams{
		Deployer: deployer, Kind: models.AccountKindVaultImplementation, Label: "vault-implementation",
	}, activeDBClient)
	if err != nil {
		return common.Address{}, err
	}
	log.
		WithFields(v.GetLogTagsForContext(ctx)).
		WithField("implementation", impl.Hex()).
		Info("Deployed vault implementation")
	return impl, nil
}

/*
Clone deploy a new uninitialized clone of a vault implementation

	@param ctx context.Context - execution context
	@param deployer common.Address - deploying account
	@param implementation common.Address - the shared implementation
	@param activeDBClient db.Database - existing ledger step
	@returns the clone address
*/
func (v *Logic) Clone(
	ctx context.Context,
	deployer, implementation common.Address,
	activeDBClient db.Database,
) (common.Address, error) {
	var clone common.Address
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.ledger, func(ctx context.Context, dbClient db.Database) error {
			implAccount, err := dbClient.GetAccount(ctx, models.NormalizeAddress(implementation))
			if err != nil {
				return err
			}
			if implAccount.Kind != models.AccountKindVaultImplementation {
				return fmt.Errorf(
					"%s is not a vault implementation [%w]", implementation.Hex(), models.ErrInvalidRequest,
				)
			}
			clone, err = v.ledger.DeployContract(ctx, ledger.DeployParams{
				Deployer:       deployer,
				Kind:           models.AccountKindVault,
				Label:          "vault",
				Implementation: &implementation,
			}, dbClient)
			return err
		},
	)
	return clone, err
}

/*
Initialize bind a vault clone to its key token. A clone is initialized once, and the
caller is recorded as the factory of the vault.

	@param ctx context.Context - execution context
	@param self common.Address - the vault clone
	@param caller common.Address - the initializing account
	@param keyRegistry common.Address - the key token registry
	@param keyID *big.Int - the key token ID
	@param activeDBClient db.Database - existing ledger step
*/
func (v *Logic) Initialize(
	ctx context.Context,
	self, caller, keyRegistry common.Address,
	keyID *big.Int,
	activeDBClient db.Database,
) error {
	if !models.IsUint256(keyID) {
		return fmt.Errorf("key ID %s is not valid [%w]", keyID, models.ErrInvalidRequest)
	}
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, v.ledger, func(ctx context.Context, dbClient db.Database) error {
			account, err := dbClient.GetAccount(ctx, models.NormalizeAddress(self))
			if err != nil {
				return err
			}
			switch account.Kind {
			case models.AccountKindVault:
			case models.AccountKindVaultImplementation:
				return fmt.Errorf(
					"vault implementation %s can not be initialized [%w]", self.Hex(), models.ErrAlreadyInitialized,
				)
			default:
				return fmt.Errorf("%s is not a vault [%w]", self.Hex(), models.ErrInvalidRequest)
			}

			if _, err := dbClient.GetVault(ctx, models.NormalizeAddress(self)); err == nil {
				return fmt.Errorf("vault %s [%w]", self.Hex(), models.ErrAlreadyInitialized)
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			if _, err := dbClient.DefineVault(ctx, models.VaultState{
				Address:     models.NormalizeAddress(self),
				Factory:     models.NormalizeAddress(caller),
				KeyRegistry: models.NormalizeAddress(keyRegistry),
				KeyID:       keyID.String(),
			}); err != nil {
				return err
			}

			return v.ledger.Emit(ctx, self, models.LedgerEventTypeInitialized, &models.InitializedEvent{
				Initializer: models.NormalizeAddress(caller),
			}, dbClient)
		},
	)
}

// ======================================================================================
// Instance

// vaultImpl implements Vault
type vaultImpl struct {
	*Logic
	self common.Address
}

func (v *vaultImpl) Address() common.Address {
	return v.self
}

// read run read-only logic within the active ledger step, or outside any step
func (v *vaultImpl) read(
	ctx context.Context,
	activeDBClient db.Database,
	coreLogic func(ctx context.Context, dbClient db.Database) error,
) error {
	if activeDBClient != nil {
		return coreLogic(ctx, activeDBClient)
	}
	return v.ledger.UseDatabase(ctx, coreLogic)
}

// loadState fetch the vault state
func (v *vaultImpl) loadState(
	ctx context.Context, dbClient db.Database,
) (models.VaultState, models.KeyReference, error) {
	state, err := dbClient.GetVault(ctx, models.NormalizeAddress(v.self))
	if err != nil {
		return models.VaultState{}, models.KeyReference{}, fmt.Errorf(
			"vault %s is not initialized [%w]", v.self.Hex(), err,
		)
	}
	keyID, err := models.ParseAmount(state.KeyID)
	if err != nil {
		return models.VaultState{}, models.KeyReference{}, err
	}
	return state, models.KeyReference{
		KeyRegistry: common.HexToAddress(state.KeyRegistry), KeyID: keyID,
	}, nil
}

func (v *vaultImpl) KeyReference(
	ctx context.Context, activeDBClient db.Database,
) (models.KeyReference, error) {
	var keyRef models.KeyReference
	err := v.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		var err error
		_, keyRef, err = v.loadState(ctx, dbClient)
		return err
	})
	return keyRef, err
}

func (v *vaultImpl) KeyOwner(
	ctx context.Context, activeDBClient db.Database,
) (common.Address, error) {
	var owner common.Address
	err := v.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		_, keyRef, err := v.loadState(ctx, dbClient)
		if err != nil {
			return err
		}
		owner, err = v.keyOwner(ctx, keyRef, dbClient)
		return err
	})
	return owner, err
}

func (v *vaultImpl) UnlockTime(ctx context.Context, activeDBClient db.Database) (int64, error) {
	var unlockAt int64
	err := v.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		state, _, err := v.loadState(ctx, dbClient)
		unlockAt = state.UnlockTimestamp
		return err
	})
	return unlockAt, err
}

// keyOwner query the key registry for the current key holder
func (v *vaultImpl) keyOwner(
	ctx context.Context, keyRef models.KeyReference, dbClient db.Database,
) (common.Address, error) {
	keyRegistry, err := v.keyRegistryAt(ctx, keyRef.KeyRegistry, dbClient)
	if err != nil {
		return common.Address{}, err
	}
	owner, err := keyRegistry.OwnerOf(ctx, keyRef.KeyRegistry, keyRef.KeyID, dbClient)
	if err != nil {
		return common.Address{}, fmt.Errorf(
			"unable to resolve holder of key %s #%s [%w]", keyRef.KeyRegistry.Hex(), keyRef.KeyID, err,
		)
	}
	return owner, nil
}

// authorize verify the caller is the current key holder
func (v *vaultImpl) authorize(
	ctx context.Context, caller common.Address, dbClient db.Database,
) (models.VaultState, models.KeyReference, error) {
	state, keyRef, err := v.loadState(ctx, dbClient)
	if err != nil {
		return models.VaultState{}, models.KeyReference{}, err
	}
	owner, err := v.keyOwner(ctx, keyRef, dbClient)
	if err != nil {
		return models.VaultState{}, models.KeyReference{}, err
	}
	if owner != caller {
		return models.VaultState{}, models.KeyReference{}, fmt.Errorf(
			"%s does not hold the key of vault %s [%w]", caller.Hex(), v.self.Hex(), models.ErrNotAuthorized,
		)
	}
	return state, keyRef, nil
}

// authorizeWithdrawal verify the caller is the current key holder and the lock is not blocking
func (v *vaultImpl) authorizeWithdrawal(
	ctx context.Context, caller common.Address, dbClient db.Database,
) error {
	state, _, err := v.authorize(ctx, caller, dbClient)
	if err != nil {
		return err
	}
	if state.LockBlocking(v.ledger.Clock().Now()) {
		return fmt.Errorf(
			"vault %s is locked until %d [%w]", v.self.Hex(), state.UnlockTimestamp, models.ErrVaultLocked,
		)
	}
	return nil
}
