package keyvault_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/alwitt/keyvault"
	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

// TestCustodySystemEndToEnd deploy the custody contracts against a fresh database, run
// one vault through deposit and withdrawal, then re-attach a second system instance to
// the same database.
func TestCustodySystemEndToEnd(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	ctx := context.Background()

	testDB := fmt.Sprintf("/tmp/keyvault_ut_%s.db", ulid.Make().String())

	uut, err := keyvault.NewCustodySystem(
		ctx, db.GetSqliteDialector(testDB), logger.Error, keyvault.SystemParams{},
	)
	assert.Nil(err)

	deployer, err := uut.Ledger.NewExternalAccount(ctx, "deployer", nil)
	assert.Nil(err)
	user, err := uut.Ledger.NewExternalAccount(ctx, "user", nil)
	assert.Nil(err)

	keyRegistry, err := uut.Registries.NonFungible.Deploy(ctx, deployer, "Vault Key", "VKEY", nil)
	assert.Nil(err)
	keyID, err := uut.Registries.NonFungible.Mint(ctx, keyRegistry, deployer, user, nil)
	assert.Nil(err)

	// A key registry of the wrong kind leaves nothing behind
	_, err = uut.Deploy(ctx, deployer, user)
	assert.ErrorIs(err, models.ErrInvalidRequest)

	deployed, err := uut.Deploy(ctx, deployer, keyRegistry)
	assert.Nil(err)

	vaultFactory := uut.Factories.At(deployed.Factory)
	owner, err := vaultFactory.Owner(ctx, nil)
	assert.Nil(err)
	assert.Equal(deployer, owner)

	vaultAddr, err := vaultFactory.CreateVault(ctx, user, keyID, nil)
	assert.Nil(err)

	assert.Nil(uut.Ledger.Mint(ctx, user, big.NewInt(10), nil))
	assert.Nil(uut.Ledger.SendValue(ctx, user, vaultAddr, big.NewInt(10), nil))
	assert.Nil(uut.Vaults.At(vaultAddr).WithdrawETH(ctx, user, deployer, big.NewInt(4), nil))

	balance, err := uut.Ledger.BalanceOf(ctx, deployer, nil)
	assert.Nil(err)
	assert.Equal(int64(4), balance.Int64())

	// A second instance sees the same ledger
	reattached, err := keyvault.NewCustodySystem(
		ctx, db.GetSqliteDialector(testDB), logger.Error, keyvault.SystemParams{SkipMigration: true},
	)
	assert.Nil(err)
	loaded, err := reattached.Factories.Load(ctx, deployed.Factory, nil)
	assert.Nil(err)
	stored, err := loaded.VaultOf(ctx, keyID, nil)
	assert.Nil(err)
	assert.Equal(vaultAddr, stored)
	stored, err = loaded.VaultOf(ctx, big.NewInt(99), nil)
	assert.Nil(err)
	assert.Equal(common.Address{}, stored)

	balance, err = reattached.Ledger.BalanceOf(ctx, vaultAddr, nil)
	assert.Nil(err)
	assert.Equal(int64(6), balance.Int64())
}
