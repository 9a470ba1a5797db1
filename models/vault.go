package models

import "time"

// VaultState persisted state of one vault
//
// UnlockTimestamp is write-once: zero means never locked, any non-zero value is permanent.
type VaultState struct {
	// Address vault address
	Address string `json:"address" gorm:"column:address;primaryKey;unique" validate:"required,eth_addr"`
	// Factory the account which initialized the vault
	Factory string `json:"factory" gorm:"column:factory;not null" validate:"required,eth_addr"`
	// KeyRegistry the key token registry
	KeyRegistry string `json:"key_registry" gorm:"column:key_registry;not null" validate:"required,eth_addr"`
	// KeyID the key token ID
	KeyID string `json:"key_id" gorm:"column:key_id;not null" validate:"required,uint256_dec"`
	// UnlockTimestamp unix seconds before which withdrawals are blocked
	UnlockTimestamp int64 `json:"unlock_timestamp" gorm:"column:unlock_timestamp;not null;default:0" validate:"gte=0"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// IsLocked whether the single-use timelock was ever set
func (v VaultState) IsLocked() bool {
	return v.UnlockTimestamp > 0
}

// LockBlocking whether the timelock blocks withdrawals at the given time
func (v VaultState) LockBlocking(now time.Time) bool {
	return v.IsLocked() && now.Unix() < v.UnlockTimestamp
}
