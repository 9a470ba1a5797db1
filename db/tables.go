package db

import "github.com/alwitt/keyvault/models"

// --------------------------------------------------------------------------------------
// Ledger

// AccountDBEntry ledger account DB entry
type AccountDBEntry struct {
	models.Account
}

// TableName hard code table name
func (AccountDBEntry) TableName() string {
	return "ledger_accounts"
}

// LedgerEventDBEntry ledger event DB entry
type LedgerEventDBEntry struct {
	models.LedgerEvent
}

// TableName hard code table name
func (LedgerEventDBEntry) TableName() string {
	return "ledger_events"
}

// --------------------------------------------------------------------------------------
// Token registries

// RegistryDBEntry token registry parameter DB entry
type RegistryDBEntry struct {
	models.RegistryParams
}

// TableName hard code table name
func (RegistryDBEntry) TableName() string {
	return "token_registries"
}

// FungibleBalanceDBEntry fungible balance DB entry
type FungibleBalanceDBEntry struct {
	models.FungibleBalance
}

// TableName hard code table name
func (FungibleBalanceDBEntry) TableName() string {
	return "fungible_balances"
}

// NonFungibleOwnerDBEntry non-fungible ownership DB entry
type NonFungibleOwnerDBEntry struct {
	models.NonFungibleOwner
}

// TableName hard code table name
func (NonFungibleOwnerDBEntry) TableName() string {
	return "non_fungible_owners"
}

// MultiTokenBalanceDBEntry multi-token balance DB entry
type MultiTokenBalanceDBEntry struct {
	models.MultiTokenBalance
}

// TableName hard code table name
func (MultiTokenBalanceDBEntry) TableName() string {
	return "multi_token_balances"
}

// LegacyMarketOwnerDBEntry legacy market ownership DB entry
type LegacyMarketOwnerDBEntry struct {
	models.LegacyMarketOwner
}

// TableName hard code table name
func (LegacyMarketOwnerDBEntry) TableName() string {
	return "legacy_market_owners"
}

// --------------------------------------------------------------------------------------
// Vaults

// VaultDBEntry vault state DB entry
type VaultDBEntry struct {
	models.VaultState
}

// TableName hard code table name
func (VaultDBEntry) TableName() string {
	return "vaults"
}

// --------------------------------------------------------------------------------------
// Vault factories

// FactoryDBEntry factory storage DB entry
type FactoryDBEntry struct {
	models.FactoryParams
}

// TableName hard code table name
func (FactoryDBEntry) TableName() string {
	return "vault_factories"
}

// FactoryVaultDBEntry factory key ID to vault mapping DB entry
type FactoryVaultDBEntry struct {
	models.FactoryVault
	FactoryEntry FactoryDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:Factory" validate:"-"`
	VaultEntry   VaultDBEntry   `gorm:"constraint:OnDelete:CASCADE;foreignKey:Vault" validate:"-"`
}

// TableName hard code table name
func (FactoryVaultDBEntry) TableName() string {
	return "factory_vaults"
}
