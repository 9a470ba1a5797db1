// Package keyvault - key token gated custody vaults on a transactional ledger
package keyvault

import (
	"context"
	"fmt"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/factory"
	"github.com/alwitt/keyvault/ledger"
	"github.com/alwitt/keyvault/registry"
	"github.com/alwitt/keyvault/vault"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SystemParams custody system parameters
type SystemParams struct {
	// Clock ledger clock; defaults to the system clock
	Clock ledger.Clock
	// SkipMigration do not create the tables on start
	SkipMigration bool
}

// CustodySystem the ledger with all contract code bound to it
type CustodySystem struct {
	Ledger     ledger.Ledger
	Registries registry.Suite
	Vaults     *vault.Logic
	Factories  *factory.Code
}

// Deployment contracts created by one custody deployment
type Deployment struct {
	VaultImplementation common.Address
	Factory             common.Address
}

/*
NewCustodySystem initialize a custody system instance.

Each instance is backed by a SQL database; two instances using the same database share
the same ledger, though steps are only serialized within one instance.

	@param ctx context.Context - execution context
	@param dbDialector gorm.Dialector - GORM dialector
	@param dbLogLevel logger.LogLevel - SQL log level
	@param params SystemParams - system parameters
	@returns new custody system
*/
func NewCustodySystem(
	ctx context.Context,
	dbDialector gorm.Dialector,
	dbLogLevel logger.LogLevel,
	params SystemParams,
) (*CustodySystem, error) {
	// Prepare persistence
	persistence, err := db.NewConnection(dbDialector, dbLogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialized persistence client [%w]", err)
	}
	if !params.SkipMigration {
		if err := persistence.RunSQLInTransaction(ctx, db.DefineTables); err != nil {
			return nil, fmt.Errorf("failed to prepare tables [%w]", err)
		}
	}

	// Prepare ledger
	theLedger, err := ledger.NewLedger(ctx, ledger.Params{Persistence: persistence, Clock: params.Clock})
	if err != nil {
		return nil, fmt.Errorf("failed to initialized ledger [%w]", err)
	}

	// Bind contract code
	system := &CustodySystem{
		Ledger:     theLedger,
		Registries: registry.Install(theLedger),
		Vaults:     vault.Install(theLedger),
	}
	system.Factories = factory.Install(theLedger, system.Vaults)

	return system, nil
}

/*
Deploy deploy the vault implementation and a factory proxy, then initialize the factory.
The deployer becomes the factory administrator.

	@param ctx context.Context - execution context
	@param deployer common.Address - deploying account
	@param keyRegistry common.Address - the key token registry
	@returns the deployed contracts
*/
func (s *CustodySystem) Deploy(
	ctx context.Context, deployer, keyRegistry common.Address,
) (Deployment, error) {
	var deployed Deployment
	err := s.Ledger.UseDatabaseInTransaction(
		ctx, func(ctx context.Context, dbClient db.Database) error {
			var err error
			deployed.VaultImplementation, err = s.Vaults.DeployImplementation(ctx, deployer, dbClient)
			if err != nil {
				return err
			}
			deployed.Factory, err = s.Factories.Deploy(ctx, deployer, dbClient)
			if err != nil {
				return err
			}
			return s.Factories.At(deployed.Factory).Initialize(
				ctx, deployer, deployed.VaultImplementation, keyRegistry, dbClient,
			)
		},
	)
	if err != nil {
		return Deployment{}, fmt.Errorf("custody deployment failed [%w]", err)
	}
	log.
		WithField("factory", deployed.Factory.Hex()).
		WithField("vault-implementation", deployed.VaultImplementation.Hex()).
		Info("Deployed custody contracts")
	return deployed, nil
}
