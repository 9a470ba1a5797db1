package models

import "time"

// RegistryParams per-registry parameters of a token registry
type RegistryParams struct {
	// Address registry address
	Address string `json:"address" gorm:"column:address;primaryKey;unique" validate:"required,eth_addr"`
	// Kind registry kind
	Kind AccountKindENUMType `json:"kind" gorm:"column:kind;not null" validate:"required,account_kind"`
	// Name token name
	Name string `json:"name" gorm:"column:name"`
	// Symbol token symbol
	Symbol string `json:"symbol" gorm:"column:symbol"`
	// Minter the only account allowed to mint
	Minter string `json:"minter" gorm:"column:minter;not null" validate:"required,eth_addr"`
	// NextTokenID next sequential token ID to mint
	NextTokenID string `json:"next_token_id" gorm:"column:next_token_id;not null;default:'1'" validate:"required,uint256_dec"`
	// Sealed no more initial owner assignment is allowed (legacy market only)
	Sealed bool `json:"sealed" gorm:"column:sealed;not null;default:false"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// FungibleBalance balance of one holder in a fungible token registry
type FungibleBalance struct {
	Token  string `json:"token" gorm:"column:token;primaryKey" validate:"required,eth_addr"`
	Holder string `json:"holder" gorm:"column:holder;primaryKey" validate:"required,eth_addr"`
	Amount string `json:"amount" gorm:"column:amount;not null" validate:"required,uint256_dec"`
}

// NonFungibleOwner owner of one non-fungible token
type NonFungibleOwner struct {
	Token   string `json:"token" gorm:"column:token;primaryKey" validate:"required,eth_addr"`
	TokenID string `json:"token_id" gorm:"column:token_id;primaryKey" validate:"required,uint256_dec"`
	Owner   string `json:"owner" gorm:"column:owner;not null;index" validate:"required,eth_addr"`
}

// MultiTokenBalance balance of one holder for one ID of a multi-token registry
type MultiTokenBalance struct {
	Token   string `json:"token" gorm:"column:token;primaryKey" validate:"required,eth_addr"`
	TokenID string `json:"token_id" gorm:"column:token_id;primaryKey" validate:"required,uint256_dec"`
	Holder  string `json:"holder" gorm:"column:holder;primaryKey" validate:"required,eth_addr"`
	Amount  string `json:"amount" gorm:"column:amount;not null" validate:"required,uint256_dec"`
}

// LegacyMarketOwner owner of one legacy market item
type LegacyMarketOwner struct {
	Token string `json:"token" gorm:"column:token;primaryKey" validate:"required,eth_addr"`
	Index string `json:"index" gorm:"column:item_index;primaryKey" validate:"required,uint256_dec"`
	Owner string `json:"owner" gorm:"column:owner;not null;index" validate:"required,eth_addr"`
}
