package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// LedgerEventTypeENUMType ledger event type ENUM value type
type LedgerEventTypeENUMType string

const (
	// LedgerEventTypeCreateVault factory deployed a vault
	LedgerEventTypeCreateVault LedgerEventTypeENUMType = "CREATE_VAULT"
	// LedgerEventTypeUpgraded factory logic swapped
	LedgerEventTypeUpgraded LedgerEventTypeENUMType = "UPGRADED"
	// LedgerEventTypeOwnershipTransferred factory administrator changed
	LedgerEventTypeOwnershipTransferred LedgerEventTypeENUMType = "OWNERSHIP_TRANSFERRED"
	// LedgerEventTypeInitialized contract initialized
	LedgerEventTypeInitialized LedgerEventTypeENUMType = "INITIALIZED"
	// LedgerEventTypeLockVault vault timelock set
	LedgerEventTypeLockVault LedgerEventTypeENUMType = "LOCK_VAULT"
	// LedgerEventTypeWithdrawETH native value withdrawn from a vault
	LedgerEventTypeWithdrawETH LedgerEventTypeENUMType = "WITHDRAW_ETH"
	// LedgerEventTypeWithdrawFungible fungible token withdrawn from a vault
	LedgerEventTypeWithdrawFungible LedgerEventTypeENUMType = "WITHDRAW_FUNGIBLE"
	// LedgerEventTypeWithdrawNonFungible non-fungible token withdrawn from a vault
	LedgerEventTypeWithdrawNonFungible LedgerEventTypeENUMType = "WITHDRAW_NON_FUNGIBLE"
	// LedgerEventTypeWithdrawMultiToken multi-token withdrawn from a vault
	LedgerEventTypeWithdrawMultiToken LedgerEventTypeENUMType = "WITHDRAW_MULTI_TOKEN"
	// LedgerEventTypeWithdrawLegacyMarket legacy market item withdrawn from a vault
	LedgerEventTypeWithdrawLegacyMarket LedgerEventTypeENUMType = "WITHDRAW_LEGACY_MARKET"
	// LedgerEventTypeRecoverKey vault key recovered by the factory administrator
	LedgerEventTypeRecoverKey LedgerEventTypeENUMType = "RECOVER_KEY"
	// LedgerEventTypeValueTransfer native value moved between accounts
	LedgerEventTypeValueTransfer LedgerEventTypeENUMType = "VALUE_TRANSFER"
	// LedgerEventTypeTokenTransfer a registry moved a token
	LedgerEventTypeTokenTransfer LedgerEventTypeENUMType = "TOKEN_TRANSFER"
)

// LedgerEvent an event emitted by a ledger account
type LedgerEvent struct {
	// ID event ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`
	// TxID the atomic ledger step which emitted the event
	TxID string `json:"tx_id" gorm:"column:tx_id;not null;index" validate:"required"`
	// Emitter the account which emitted the event
	Emitter string `json:"emitter" gorm:"column:emitter;not null;index" validate:"required,eth_addr"`
	// EventType event type
	EventType LedgerEventTypeENUMType `json:"type" gorm:"column:type;not null" validate:"required,ledger_event_type"`
	// Metadata event arguments
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata;default:null"`
	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseMetadata parse the metadata based on the event type
func (e LedgerEvent) ParseMetadata(validator *validator.Validate) (interface{}, error) {
	var parsed interface{}
	switch e.EventType {
	case LedgerEventTypeCreateVault:
		parsed = &CreateVaultEvent{}
	case LedgerEventTypeUpgraded:
		parsed = &UpgradedEvent{}
	case LedgerEventTypeOwnershipTransferred:
		parsed = &OwnershipTransferredEvent{}
	case LedgerEventTypeInitialized:
		parsed = &InitializedEvent{}
	case LedgerEventTypeLockVault:
		parsed = &LockVaultEvent{}
	case LedgerEventTypeWithdrawETH:
		parsed = &WithdrawETHEvent{}
	case LedgerEventTypeWithdrawFungible:
		parsed = &WithdrawFungibleEvent{}
	case LedgerEventTypeWithdrawNonFungible:
		parsed = &WithdrawNonFungibleEvent{}
	case LedgerEventTypeWithdrawMultiToken:
		parsed = &WithdrawMultiTokenEvent{}
	case LedgerEventTypeWithdrawLegacyMarket:
		parsed = &WithdrawLegacyMarketEvent{}
	case LedgerEventTypeRecoverKey:
		parsed = &RecoverKeyEvent{}
	case LedgerEventTypeValueTransfer:
		parsed = &ValueTransferEvent{}
	case LedgerEventTypeTokenTransfer:
		parsed = &TokenTransferEvent{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(e.Metadata, parsed); err != nil {
		return nil, fmt.Errorf("ledger event '%s' metadata parse failed [%w]", e.EventType, err)
	}
	return parsed, validator.Struct(parsed)
}

// CreateVaultEvent CreateVault(keyId, vaultAddress)
type CreateVaultEvent struct {
	KeyID string `json:"key_id" validate:"required,uint256_dec"`
	Vault string `json:"vault" validate:"required,eth_addr"`
}

// UpgradedEvent Upgraded(newImplementation)
type UpgradedEvent struct {
	Implementation string `json:"implementation" validate:"required,eth_addr"`
	Version        string `json:"version" validate:"required"`
}

// OwnershipTransferredEvent OwnershipTransferred(previousOwner, newOwner)
type OwnershipTransferredEvent struct {
	PreviousOwner string `json:"previous_owner,omitempty" validate:"omitempty,eth_addr"`
	NewOwner      string `json:"new_owner" validate:"required,eth_addr"`
}

// InitializedEvent Initialized()
type InitializedEvent struct {
	Initializer string `json:"initializer" validate:"required,eth_addr"`
}

// LockVaultEvent LockVault(unlockTimestamp, note)
type LockVaultEvent struct {
	UnlockTimestamp int64  `json:"unlock_timestamp" validate:"gt=0"`
	Note            string `json:"note"`
}

// WithdrawETHEvent WithdrawETH(caller, to, amount)
type WithdrawETHEvent struct {
	Caller string `json:"caller" validate:"required,eth_addr"`
	To     string `json:"to" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required,uint256_dec"`
}

// WithdrawFungibleEvent WithdrawFungible(caller, token, to, amount)
type WithdrawFungibleEvent struct {
	Caller string `json:"caller" validate:"required,eth_addr"`
	Token  string `json:"token" validate:"required,eth_addr"`
	To     string `json:"to" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required,uint256_dec"`
}

// WithdrawNonFungibleEvent WithdrawNonFungible(caller, token, tokenId, to)
type WithdrawNonFungibleEvent struct {
	Caller  string `json:"caller" validate:"required,eth_addr"`
	Token   string `json:"token" validate:"required,eth_addr"`
	TokenID string `json:"token_id" validate:"required,uint256_dec"`
	To      string `json:"to" validate:"required,eth_addr"`
}

// WithdrawMultiTokenEvent WithdrawMultiToken(caller, token, tokenId, to, amount)
type WithdrawMultiTokenEvent struct {
	Caller  string `json:"caller" validate:"required,eth_addr"`
	Token   string `json:"token" validate:"required,eth_addr"`
	TokenID string `json:"token_id" validate:"required,uint256_dec"`
	To      string `json:"to" validate:"required,eth_addr"`
	Amount  string `json:"amount" validate:"required,uint256_dec"`
}

// WithdrawLegacyMarketEvent WithdrawLegacyMarketToken(caller, token, tokenId, to)
type WithdrawLegacyMarketEvent struct {
	Caller  string `json:"caller" validate:"required,eth_addr"`
	Token   string `json:"token" validate:"required,eth_addr"`
	TokenID string `json:"token_id" validate:"required,uint256_dec"`
	To      string `json:"to" validate:"required,eth_addr"`
}

// RecoverKeyEvent RecoverKey(administrator, keyRegistry, keyId)
type RecoverKeyEvent struct {
	Administrator string `json:"administrator" validate:"required,eth_addr"`
	KeyRegistry   string `json:"key_registry" validate:"required,eth_addr"`
	KeyID         string `json:"key_id" validate:"required,uint256_dec"`
}

// ValueTransferEvent native value transfer
type ValueTransferEvent struct {
	From   string `json:"from,omitempty" validate:"omitempty,eth_addr"`
	To     string `json:"to" validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required,uint256_dec"`
}

// TokenTransferEvent registry token movement; From is empty for mints
type TokenTransferEvent struct {
	Operator string `json:"operator" validate:"required,eth_addr"`
	From     string `json:"from,omitempty" validate:"omitempty,eth_addr"`
	To       string `json:"to" validate:"required,eth_addr"`
	TokenID  string `json:"token_id,omitempty" validate:"omitempty,uint256_dec"`
	Amount   string `json:"amount,omitempty" validate:"omitempty,uint256_dec"`
}
