// Package factory - upgradeable vault factory
package factory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/alwitt/goutils"
	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/ledger"
	"github.com/alwitt/keyvault/models"
	"github.com/alwitt/keyvault/vault"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
)

// Factory one vault factory proxy
//
// The storage of the proxy outlives logic upgrades.
type Factory interface {
	// Address the factory proxy address
	Address() common.Address

	/*
		Initialize initialize the factory once; the caller becomes the administrator

			@param ctx context.Context - execution context
			@param caller common.Address - the calling account
			@param vaultImplementation common.Address - the vault implementation to clone
			@param keyRegistry common.Address - the key token registry
			@param activeDBClient db.Database - existing ledger step
	*/
	Initialize(
		ctx context.Context,
		caller, vaultImplementation, keyRegistry common.Address,
		activeDBClient db.Database,
	) error

	/*
		CreateVault deploy the vault of a key token; the caller must hold the key

			@param ctx context.Context - execution context
			@param caller common.Address - the calling account
			@param keyID *big.Int - the key token ID
			@param activeDBClient db.Database - existing ledger step
			@returns the vault address
	*/
	CreateVault(
		ctx context.Context, caller common.Address, keyID *big.Int, activeDBClient db.Database,
	) (common.Address, error)

	/*
		VaultOf fetch the vault of a key token; the zero address if there is none

			@param ctx context.Context - execution context
			@param keyID *big.Int - the key token ID
			@param activeDBClient db.Database - existing ledger step
			@returns the vault address
	*/
	VaultOf(
		ctx context.Context, keyID *big.Int, activeDBClient db.Database,
	) (common.Address, error)

	/*
		ListVaults list the key ID to vault mapping

			@param ctx context.Context - execution context
			@param filters db.FactoryVaultQueryFilter - entry listing filter
			@param activeDBClient db.Database - existing ledger step
			@returns the mapping entries
	*/
	ListVaults(
		ctx context.Context, filters db.FactoryVaultQueryFilter, activeDBClient db.Database,
	) ([]models.FactoryVault, error)

	/*
		Owner the factory administrator; the zero address before initialization

			@param ctx context.Context - execution context
			@param activeDBClient db.Database - existing ledger step
			@returns the administrator
	*/
	Owner(ctx context.Context, activeDBClient db.Database) (common.Address, error)

	/*
		TransferOwnership change the factory administrator

			@param ctx context.Context - execution context
			@param caller common.Address - must be the administrator
			@param newOwner common.Address - new administrator
			@param activeDBClient db.Database - existing ledger step
	*/
	TransferOwnership(
		ctx context.Context, caller, newOwner common.Address, activeDBClient db.Database,
	) error

	/*
		VaultImplementation the vault implementation new vaults clone

			@param ctx context.Context - execution context
			@param activeDBClient db.Database - existing ledger step
			@returns the vault implementation
	*/
	VaultImplementation(ctx context.Context, activeDBClient db.Database) (common.Address, error)

	/*
		KeyRegistry the key token registry

			@param ctx context.Context - execution context
			@param activeDBClient db.Database - existing ledger step
			@returns the key registry
	*/
	KeyRegistry(ctx context.Context, activeDBClient db.Database) (common.Address, error)

	/*
		Implementation the active logic account and its version tag

			@param ctx context.Context - execution context
			@param activeDBClient db.Database - existing ledger step
			@returns the logic account and version
	*/
	Implementation(
		ctx context.Context, activeDBClient db.Database,
	) (common.Address, string, error)

	/*
		UpgradeTo swap the factory logic for a registered logic version

			@param ctx context.Context - execution context
			@param caller common.Address - must be the administrator
			@param version string - logic version tag
			@param activeDBClient db.Database - existing ledger step
			@returns the new logic account
	*/
	UpgradeTo(
		ctx context.Context, caller common.Address, version string, activeDBClient db.Database,
	) (common.Address, error)

	/*
		SetVaultImplementation change the vault implementation new vaults clone. Only
		available if the active logic supports it.

			@param ctx context.Context - execution context
			@param caller common.Address - must be the administrator
			@param implementation common.Address - new vault implementation
			@param activeDBClient db.Database - existing ledger step
	*/
	SetVaultImplementation(
		ctx context.Context, caller, implementation common.Address, activeDBClient db.Database,
	) error
}

// Code the factory proxy code, shared by every factory proxy
type Code struct {
	goutils.Component
	ledger ledger.Ledger
	vaults *vault.Logic

	logicLock sync.RWMutex
	logics    map[string]Logic
}

/*
Install define the factory code and bind it to the ledger. LogicV1 is registered.

	@param l ledger.Ledger - the ledger
	@param vaults *vault.Logic - the vault code
	@returns the factory code
*/
func Install(l ledger.Ledger, vaults *vault.Logic) *Code {
	code := &Code{
		Component: goutils.Component{
			LogTags: log.Fields{"package": "keyvault", "module": "factory", "component": "factory"},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		ledger: l,
		vaults: vaults,
		logics: map[string]Logic{},
	}
	code.RegisterLogic(LogicV1{})
	l.BindCode(models.AccountKindFactory, code)
	return code
}

// RegisterLogic make a logic version available to deployments and upgrades
func (c *Code) RegisterLogic(logic Logic) {
	c.logicLock.Lock()
	defer c.logicLock.Unlock()
	c.logics[logic.Version()] = logic
}

// logic fetch a registered logic version
func (c *Code) logic(version string) (Logic, error) {
	c.logicLock.RLock()
	defer c.logicLock.RUnlock()
	logic, ok := c.logics[version]
	if !ok {
		return nil, fmt.Errorf("factory logic '%s' is not known [%w]", version, models.ErrInvalidRequest)
	}
	return logic, nil
}

/*
Deploy deploy the LogicV1 account and an uninitialized factory proxy delegating to it

	@param ctx context.Context - execution context
	@param deployer common.Address - deploying account
	@param activeDBClient db.Database - existing ledger step
	@returns the factory proxy address
*/
func (c *Code) Deploy(
	ctx context.Context, deployer common.Address, activeDBClient db.Database,
) (common.Address, error) {
	var proxy common.Address
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, c.ledger, func(ctx context.Context, dbClient db.Database) error {
			logicAddr, err := c.ledger.DeployContract(ctx, ledger.DeployParams{
				Deployer: deployer, Kind: models.AccountKindFactoryLogic, Label: "factory-logic-" + LogicV1Version,
			}, dbClient)
			if err != nil {
				return err
			}
			proxy, err = c.ledger.DeployContract(ctx, ledger.DeployParams{
				Deployer: deployer, Kind: models.AccountKindFactory, Label: "factory", Implementation: &logicAddr,
			}, dbClient)
			if err != nil {
				return err
			}
			_, err = dbClient.DefineFactory(ctx, models.FactoryParams{
				Address:             models.NormalizeAddress(proxy),
				LogicImplementation: models.NormalizeAddress(logicAddr),
				LogicVersion:        LogicV1Version,
			})
			return err
		},
	)
	if err != nil {
		return common.Address{}, err
	}
	log.
		WithFields(c.GetLogTagsForContext(ctx)).
		WithField("factory", proxy.Hex()).
		Info("Deployed vault factory")
	return proxy, nil
}

// At attach to the factory proxy at an address
func (c *Code) At(address common.Address) Factory {
	return &factoryImpl{Code: c, self: address}
}

/*
Load re-attach to a persisted factory proxy, verifying its logic version is registered

	@param ctx context.Context - execution context
	@param address common.Address - the factory proxy
	@param activeDBClient db.Database - existing ledger step
	@returns the factory
*/
func (c *Code) Load(
	ctx context.Context, address common.Address, activeDBClient db.Database,
) (Factory, error) {
	instance := &factoryImpl{Code: c, self: address}
	err := instance.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		_, _, err := instance.load(ctx, dbClient)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load factory %s [%w]", address.Hex(), err)
	}
	return instance, nil
}

/*
Owner the administrator of a factory proxy. Vaults resolve their recovery administrator
through this.

	@param ctx context.Context - execution context
	@param self common.Address - the factory proxy
	@param activeDBClient db.Database - existing ledger step
	@returns the administrator
*/
func (c *Code) Owner(
	ctx context.Context, self common.Address, activeDBClient db.Database,
) (common.Address, error) {
	return c.At(self).Owner(ctx, activeDBClient)
}

// ======================================================================================
// Instance

// factoryImpl implements Factory
type factoryImpl struct {
	*Code
	self common.Address
}

func (f *factoryImpl) Address() common.Address {
	return f.self
}

// read run read-only logic within the active ledger step, or outside any step
func (f *factoryImpl) read(
	ctx context.Context,
	activeDBClient db.Database,
	coreLogic func(ctx context.Context, dbClient db.Database) error,
) error {
	if activeDBClient != nil {
		return coreLogic(ctx, activeDBClient)
	}
	return f.ledger.UseDatabase(ctx, coreLogic)
}

// load fetch the factory storage and its active logic
func (f *factoryImpl) load(ctx context.Context, dbClient db.Database) (Storage, Logic, error) {
	account, err := dbClient.GetAccount(ctx, models.NormalizeAddress(f.self))
	if err != nil {
		return Storage{}, nil, err
	}
	if account.Kind != models.AccountKindFactory {
		return Storage{}, nil, fmt.Errorf(
			"%s is not a factory proxy [%w]", f.self.Hex(), models.ErrInvalidRequest,
		)
	}
	params, err := dbClient.GetFactory(ctx, models.NormalizeAddress(f.self))
	if err != nil {
		return Storage{}, nil, err
	}
	logic, err := f.logic(params.LogicVersion)
	if err != nil {
		return Storage{}, nil, err
	}
	return Storage{Address: f.self, Params: params, Ledger: f.ledger, Vaults: f.vaults}, logic, nil
}

// loadInitialized fetch the storage of an initialized factory
func (f *factoryImpl) loadInitialized(
	ctx context.Context, dbClient db.Database,
) (Storage, Logic, error) {
	storage, logic, err := f.load(ctx, dbClient)
	if err != nil {
		return Storage{}, nil, err
	}
	if storage.Params.State != models.FactoryStateInitialized {
		return Storage{}, nil, fmt.Errorf(
			"factory %s is not initialized [%w]", f.self.Hex(), models.ErrInvalidRequest,
		)
	}
	return storage, logic, nil
}

// authorize verify the caller is the factory administrator
func (f *factoryImpl) authorize(storage Storage, caller common.Address) error {
	if storage.Params.Owner == nil || common.HexToAddress(*storage.Params.Owner) != caller {
		return fmt.Errorf(
			"%s is not the administrator of factory %s [%w]",
			caller.Hex(),
			f.self.Hex(),
			models.ErrNotAdministrator,
		)
	}
	return nil
}

func (f *factoryImpl) Initialize(
	ctx context.Context,
	caller, vaultImplementation, keyRegistry common.Address,
	activeDBClient db.Database,
) error {
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, f.ledger, func(ctx context.Context, dbClient db.Database) error {
			account, err := dbClient.GetAccount(ctx, models.NormalizeAddress(f.self))
			if err != nil {
				return err
			}
			switch account.Kind {
			case models.AccountKindFactory:
			case models.AccountKindFactoryLogic:
				return fmt.Errorf(
					"factory logic %s can not be initialized [%w]", f.self.Hex(), models.ErrAlreadyInitialized,
				)
			default:
				return fmt.Errorf("%s is not a factory proxy [%w]", f.self.Hex(), models.ErrInvalidRequest)
			}

			if err := f.checkAccountKind(
				ctx, vaultImplementation, models.AccountKindVaultImplementation, dbClient,
			); err != nil {
				return err
			}
			if err := f.checkAccountKind(
				ctx, keyRegistry, models.AccountKindNonFungible, dbClient,
			); err != nil {
				return err
			}

			if err := dbClient.MarkFactoryInitialized(
				ctx,
				models.NormalizeAddress(f.self),
				models.NormalizeAddress(caller),
				models.NormalizeAddress(vaultImplementation),
				models.NormalizeAddress(keyRegistry),
			); err != nil {
				return err
			}

			if err := f.ledger.Emit(ctx, f.self, models.LedgerEventTypeInitialized, &models.InitializedEvent{
				Initializer: models.NormalizeAddress(caller),
			}, dbClient); err != nil {
				return err
			}
			return f.ledger.Emit(
				ctx, f.self, models.LedgerEventTypeOwnershipTransferred, &models.OwnershipTransferredEvent{
					NewOwner: models.NormalizeAddress(caller),
				}, dbClient,
			)
		},
	)
	if err != nil {
		return err
	}
	log.
		WithFields(f.GetLogTagsForContext(ctx)).
		WithField("factory", f.self.Hex()).
		WithField("owner", caller.Hex()).
		Info("Initialized vault factory")
	return nil
}

// checkAccountKind verify an account is of the expected kind
func (f *factoryImpl) checkAccountKind(
	ctx context.Context,
	address common.Address,
	kind models.AccountKindENUMType,
	dbClient db.Database,
) error {
	account, err := dbClient.GetAccount(ctx, models.NormalizeAddress(address))
	if err != nil {
		return fmt.Errorf("account %s is not known [%w] [%w]", address.Hex(), models.ErrInvalidRequest, err)
	}
	if account.Kind != kind {
		return fmt.Errorf(
			"%s is a %s account, expected %s [%w]", address.Hex(), account.Kind, kind, models.ErrInvalidRequest,
		)
	}
	return nil
}

func (f *factoryImpl) CreateVault(
	ctx context.Context, caller common.Address, keyID *big.Int, activeDBClient db.Database,
) (common.Address, error) {
	var vaultAddr common.Address
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, f.ledger, func(ctx context.Context, dbClient db.Database) error {
			storage, logic, err := f.loadInitialized(ctx, dbClient)
			if err != nil {
				return err
			}
			vaultAddr, err = logic.CreateVault(ctx, storage, caller, keyID, dbClient)
			return err
		},
	)
	if err != nil {
		return common.Address{}, err
	}
	log.
		WithFields(f.GetLogTagsForContext(ctx)).
		WithField("factory", f.self.Hex()).
		WithField("vault", vaultAddr.Hex()).
		Infof("Created vault for key #%s", keyID)
	return vaultAddr, nil
}

func (f *factoryImpl) VaultOf(
	ctx context.Context, keyID *big.Int, activeDBClient db.Database,
) (common.Address, error) {
	var vaultAddr common.Address
	err := f.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		storage, logic, err := f.load(ctx, dbClient)
		if err != nil {
			return err
		}
		vaultAddr, err = logic.VaultOf(ctx, storage, keyID, dbClient)
		return err
	})
	return vaultAddr, err
}

func (f *factoryImpl) ListVaults(
	ctx context.Context, filters db.FactoryVaultQueryFilter, activeDBClient db.Database,
) ([]models.FactoryVault, error) {
	var entries []models.FactoryVault
	err := f.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		var err error
		entries, err = dbClient.ListFactoryVaults(ctx, models.NormalizeAddress(f.self), filters)
		return err
	})
	return entries, err
}

func (f *factoryImpl) Owner(
	ctx context.Context, activeDBClient db.Database,
) (common.Address, error) {
	var owner common.Address
	err := f.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		storage, _, err := f.load(ctx, dbClient)
		if err != nil {
			return err
		}
		if storage.Params.Owner != nil {
			owner = common.HexToAddress(*storage.Params.Owner)
		}
		return nil
	})
	return owner, err
}

func (f *factoryImpl) TransferOwnership(
	ctx context.Context, caller, newOwner common.Address, activeDBClient db.Database,
) error {
	if newOwner == (common.Address{}) {
		return fmt.Errorf("new administrator can not be the zero address [%w]", models.ErrInvalidRequest)
	}
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, f.ledger, func(ctx context.Context, dbClient db.Database) error {
			storage, _, err := f.loadInitialized(ctx, dbClient)
			if err != nil {
				return err
			}
			if err := f.authorize(storage, caller); err != nil {
				return err
			}
			if err := dbClient.SetFactoryOwner(
				ctx, models.NormalizeAddress(f.self), models.NormalizeAddress(newOwner),
			); err != nil {
				return err
			}
			return f.ledger.Emit(
				ctx, f.self, models.LedgerEventTypeOwnershipTransferred, &models.OwnershipTransferredEvent{
					PreviousOwner: models.NormalizeAddress(caller),
					NewOwner:      models.NormalizeAddress(newOwner),
				}, dbClient,
			)
		},
	)
	if err != nil {
		return err
	}
	log.
		WithFields(f.GetLogTagsForContext(ctx)).
		WithField("factory", f.self.Hex()).
		WithField("new-owner", newOwner.Hex()).
		Warn("Transferred factory ownership")
	return nil
}

func (f *factoryImpl) VaultImplementation(
	ctx context.Context, activeDBClient db.Database,
) (common.Address, error) {
	var impl common.Address
	err := f.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		storage, _, err := f.load(ctx, dbClient)
		impl = storage.VaultImplementation()
		return err
	})
	return impl, err
}

func (f *factoryImpl) KeyRegistry(
	ctx context.Context, activeDBClient db.Database,
) (common.Address, error) {
	var registry common.Address
	err := f.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		storage, _, err := f.load(ctx, dbClient)
		registry = storage.KeyRegistry()
		return err
	})
	return registry, err
}

func (f *factoryImpl) Implementation(
	ctx context.Context, activeDBClient db.Database,
) (common.Address, string, error) {
	var impl common.Address
	var version string
	err := f.read(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		storage, _, err := f.load(ctx, dbClient)
		if err != nil {
			return err
		}
		impl = common.HexToAddress(storage.Params.LogicImplementation)
		version = storage.Params.LogicVersion
		return nil
	})
	return impl, version, err
}

func (f *factoryImpl) UpgradeTo(
	ctx context.Context, caller common.Address, version string, activeDBClient db.Database,
) (common.Address, error) {
	if _, err := f.logic(version); err != nil {
		return common.Address{}, err
	}
	var logicAddr common.Address
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, f.ledger, func(ctx context.Context, dbClient db.Database) error {
			storage, _, err := f.load(ctx, dbClient)
			if err != nil {
				return err
			}
			if err := f.authorize(storage, caller); err != nil {
				return err
			}
			logicAddr, err = f.ledger.DeployContract(ctx, ledger.DeployParams{
				Deployer: caller, Kind: models.AccountKindFactoryLogic, Label: "factory-logic-" + version,
			}, dbClient)
			if err != nil {
				return err
			}
			if err := dbClient.SetFactoryLogic(
				ctx, models.NormalizeAddress(f.self), models.NormalizeAddress(logicAddr), version,
			); err != nil {
				return err
			}
			return f.ledger.Emit(ctx, f.self, models.LedgerEventTypeUpgraded, &models.UpgradedEvent{
				Implementation: models.NormalizeAddress(logicAddr), Version: version,
			}, dbClient)
		},
	)
	if err != nil {
		return common.Address{}, err
	}
	log.
		WithFields(f.GetLogTagsForContext(ctx)).
		WithField("factory", f.self.Hex()).
		WithField("logic", logicAddr.Hex()).
		Warnf("Upgraded factory logic to '%s'", version)
	return logicAddr, nil
}

func (f *factoryImpl) SetVaultImplementation(
	ctx context.Context, caller, implementation common.Address, activeDBClient db.Database,
) error {
	return db.ActiveSessionWrapper(
		ctx, activeDBClient, f.ledger, func(ctx context.Context, dbClient db.Database) error {
			storage, logic, err := f.loadInitialized(ctx, dbClient)
			if err != nil {
				return err
			}
			if err := f.authorize(storage, caller); err != nil {
				return err
			}
			setter, ok := logic.(VaultImplementationSetter)
			if !ok {
				return fmt.Errorf(
					"factory logic '%s' can not change the vault implementation [%w]",
					logic.Version(),
					models.ErrInvalidRequest,
				)
			}
			return setter.SetVaultImplementation(ctx, storage, implementation, dbClient)
		},
	)
}
