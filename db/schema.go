package db

import (
	"context"

	"gorm.io/gorm"
)

// DefineTables prepare a database with tables
func DefineTables(_ context.Context, db *gorm.DB) error {
	return db.AutoMigrate(TableModels()...)
}

// TableModels the GORM models of every table
func TableModels() []interface{} {
	return []interface{}{
		&AccountDBEntry{},
		&LedgerEventDBEntry{},
		&RegistryDBEntry{},
		&FungibleBalanceDBEntry{},
		&NonFungibleOwnerDBEntry{},
		&MultiTokenBalanceDBEntry{},
		&LegacyMarketOwnerDBEntry{},
		&VaultDBEntry{},
		&FactoryDBEntry{},
		&FactoryVaultDBEntry{},
	}
}
