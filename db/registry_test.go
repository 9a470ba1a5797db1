package db_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestDBRegistryParameters(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := prepareTestDB(t, utCtx)

	registry := testAddress(20)
	minter := testAddress(21)

	assert.Nil(
		uut.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbClient db.Database) error {
				entry, err := dbClient.DefineRegistry(ctx, models.RegistryParams{
					Address: registry,
					Kind:    models.AccountKindNonFungible,
					Name:    "Vault Key",
					Symbol:  "KEY",
					Minter:  minter,
				})
				assert.Nil(err)
				assert.Equal("1", entry.NextTokenID)
				assert.False(entry.Sealed)
				return err
			},
		),
	)

	// Sequential token IDs
	assert.Nil(
		uut.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbClient db.Database) error {
				for idx := int64(1); idx <= 3; idx++ {
					tokenID, err := dbClient.AdvanceRegistryTokenID(ctx, registry)
					assert.Nil(err)
					assert.Equal(0, big.NewInt(idx).Cmp(tokenID))
				}
				entry, err := dbClient.GetRegistry(ctx, registry)
				assert.Nil(err)
				assert.Equal("4", entry.NextTokenID)
				return err
			},
		),
	)

	// Seal twice
	assert.Nil(
		uut.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbClient db.Database) error {
				assert.Nil(dbClient.SealRegistry(ctx, registry))
				assert.Nil(dbClient.SealRegistry(ctx, registry))
				entry, err := dbClient.GetRegistry(ctx, registry)
				assert.Nil(err)
				assert.True(entry.Sealed)
				return err
			},
		),
	)

	// Unknown registry
	assert.NotNil(
		uut.UseDatabase(utCtx, func(ctx context.Context, dbClient db.Database) error {
			_, err := dbClient.AdvanceRegistryTokenID(ctx, testAddress(99))
			return err
		}),
	)
}

func TestDBRegistryHoldings(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	uut := prepareTestDB(t, utCtx)

	token := testAddress(30)
	alice := testAddress(31)
	bob := testAddress(32)

	// Fungible balances
	assert.Nil(
		uut.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbClient db.Database) error {
				balance, err := dbClient.GetFungibleBalance(ctx, token, alice)
				assert.Nil(err)
				assert.Equal(0, balance.Sign())

				assert.Nil(dbClient.SetFungibleBalance(ctx, token, alice, big.NewInt(500)))
				assert.Nil(dbClient.SetFungibleBalance(ctx, token, alice, big.NewInt(300)))
				assert.Nil(dbClient.SetFungibleBalance(ctx, token, bob, big.NewInt(200)))

				balance, err = dbClient.GetFungibleBalance(ctx, token, alice)
				assert.Nil(err)
				assert.Equal(int64(300), balance.Int64())
				balance, err = dbClient.GetFungibleBalance(ctx, token, bob)
				assert.Nil(err)
				assert.Equal(int64(200), balance.Int64())
				return nil
			},
		),
	)

	// Non-fungible ownership
	assert.Nil(
		uut.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbClient db.Database) error {
				_, err := dbClient.GetNonFungibleOwner(ctx, token, big.NewInt(1))
				assert.NotNil(err)

				assert.Nil(dbClient.SetNonFungibleOwner(ctx, token, big.NewInt(1), alice))
				assert.Nil(dbClient.SetNonFungibleOwner(ctx, token, big.NewInt(2), alice))
				count, err := dbClient.CountNonFungibleOwned(ctx, token, alice)
				assert.Nil(err)
				assert.Equal(int64(2), count)

				assert.Nil(dbClient.SetNonFungibleOwner(ctx, token, big.NewInt(1), bob))
				owner, err := dbClient.GetNonFungibleOwner(ctx, token, big.NewInt(1))
				assert.Nil(err)
				assert.Equal(bob, owner)
				count, err = dbClient.CountNonFungibleOwned(ctx, token, alice)
				assert.Nil(err)
				assert.Equal(int64(1), count)
				return nil
			},
		),
	)

	// Multi-token balances
	assert.Nil(
		uut.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbClient db.Database) error {
				balance, err := dbClient.GetMultiTokenBalance(ctx, token, big.NewInt(7), alice)
				assert.Nil(err)
				assert.Equal(0, balance.Sign())

				assert.Nil(dbClient.SetMultiTokenBalance(ctx, token, big.NewInt(7), alice, big.NewInt(10)))
				assert.Nil(dbClient.SetMultiTokenBalance(ctx, token, big.NewInt(8), alice, big.NewInt(3)))
				assert.Nil(dbClient.SetMultiTokenBalance(ctx, token, big.NewInt(7), alice, big.NewInt(4)))

				balance, err = dbClient.GetMultiTokenBalance(ctx, token, big.NewInt(7), alice)
				assert.Nil(err)
				assert.Equal(int64(4), balance.Int64())
				balance, err = dbClient.GetMultiTokenBalance(ctx, token, big.NewInt(8), alice)
				assert.Nil(err)
				assert.Equal(int64(3), balance.Int64())
				return nil
			},
		),
	)

	// Legacy market ownership
	assert.Nil(
		uut.UseDatabaseInTransaction(
			utCtx, func(ctx context.Context, dbClient db.Database) error {
				_, err := dbClient.GetLegacyMarketOwner(ctx, token, big.NewInt(0))
				assert.NotNil(err)

				assert.Nil(dbClient.SetLegacyMarketOwner(ctx, token, big.NewInt(0), alice))
				assert.Nil(dbClient.SetLegacyMarketOwner(ctx, token, big.NewInt(0), bob))
				owner, err := dbClient.GetLegacyMarketOwner(ctx, token, big.NewInt(0))
				assert.Nil(err)
				assert.Equal(bob, owner)
				return nil
			},
		),
	)
}
