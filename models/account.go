// Package models - ledger, vault and factory data models
package models

import "time"

// AccountKindENUMType ledger account kind ENUM value type
type AccountKindENUMType string

const (
	// AccountKindExternal externally owned account; it carries no code
	AccountKindExternal AccountKindENUMType = "EXTERNAL"
	// AccountKindVaultImplementation shared vault logic that every vault clone delegates to
	AccountKindVaultImplementation AccountKindENUMType = "VAULT_IMPLEMENTATION"
	// AccountKindVault a vault clone
	AccountKindVault AccountKindENUMType = "VAULT"
	// AccountKindFactory the vault factory proxy
	AccountKindFactory AccountKindENUMType = "FACTORY"
	// AccountKindFactoryLogic one version of the vault factory logic
	AccountKindFactoryLogic AccountKindENUMType = "FACTORY_LOGIC"
	// AccountKindFungible fungible token registry
	AccountKindFungible AccountKindENUMType = "FUNGIBLE"
	// AccountKindNonFungible non-fungible token registry
	AccountKindNonFungible AccountKindENUMType = "NON_FUNGIBLE"
	// AccountKindMultiToken multi-token registry
	AccountKindMultiToken AccountKindENUMType = "MULTI_TOKEN"
	// AccountKindLegacyMarket legacy market-style token registry
	AccountKindLegacyMarket AccountKindENUMType = "LEGACY_MARKET"
)

// Account a ledger account
type Account struct {
	// Address account address, checksum hex encoded
	Address string `json:"address" gorm:"column:address;primaryKey;unique" validate:"required,eth_addr"`

	// Kind account kind
	Kind AccountKindENUMType `json:"kind" gorm:"column:kind;not null" validate:"required,account_kind"`

	// Label human readable account label
	Label string `json:"label,omitempty" gorm:"column:label"`

	// Implementation for clones, the account holding the shared logic
	Implementation *string `json:"implementation,omitempty" gorm:"column:implementation;default:null" validate:"omitempty,eth_addr"`

	// Deployer the account which deployed this contract account
	Deployer *string `json:"deployer,omitempty" gorm:"column:deployer;default:null" validate:"omitempty,eth_addr"`

	// Nonce number of contract accounts this account has deployed
	Nonce uint64 `json:"nonce" gorm:"column:nonce;not null;default:0"`

	// Balance native value balance, decimal encoded
	Balance string `json:"balance" gorm:"column:balance;not null;default:'0'" validate:"required,uint256_dec"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// IsContract whether the account carries code
func (a Account) IsContract() bool {
	return a.Kind != AccountKindExternal
}
