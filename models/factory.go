package models

import (
	"fmt"
	"time"
)

// FactoryStateENUMType vault factory state ENUM
type FactoryStateENUMType string

const (
	// FactoryStateUninitialized proxy deployed but not initialized
	FactoryStateUninitialized FactoryStateENUMType = "UNINITIALIZED"
	// FactoryStateInitialized factory initialized and operating
	FactoryStateInitialized FactoryStateENUMType = "INITIALIZED"
)

// FactoryParams persisted storage of a vault factory proxy
//
// Logic upgrades only change LogicImplementation and LogicVersion.
type FactoryParams struct {
	// Address factory proxy address
	Address string `json:"address" gorm:"column:address;primaryKey;unique" validate:"required,eth_addr"`

	// State factory state
	State FactoryStateENUMType `json:"state" gorm:"column:state;not null" validate:"required,factory_state"`

	// Owner factory administrator
	Owner *string `json:"owner,omitempty" gorm:"column:owner;default:null" validate:"omitempty,eth_addr"`

	// VaultImplementation the shared vault implementation new vaults clone
	VaultImplementation *string `json:"vault_implementation,omitempty" gorm:"column:vault_implementation;default:null" validate:"omitempty,eth_addr"`

	// KeyRegistry the key token registry
	KeyRegistry *string `json:"key_registry,omitempty" gorm:"column:key_registry;default:null" validate:"omitempty,eth_addr"`

	// LogicImplementation the account of the active factory logic
	LogicImplementation string `json:"logic_implementation" gorm:"column:logic_implementation;not null" validate:"required,eth_addr"`

	// LogicVersion version tag of the active factory logic
	LogicVersion string `json:"logic_version" gorm:"column:logic_version;not null" validate:"required"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateNextState verify can transition to new state
func (p *FactoryParams) ValidateNextState(newState FactoryStateENUMType) error {
	statesWithTransitions := map[FactoryStateENUMType]map[FactoryStateENUMType]bool{
		FactoryStateUninitialized: {
			FactoryStateInitialized: true,
		},
		FactoryStateInitialized: {},
	}

	availableNextStates, ok := statesWithTransitions[p.State]
	if !ok {
		return fmt.Errorf("factory can't transition out of state '%s'", p.State)
	}

	if _, ok := availableNextStates[newState]; !ok {
		return fmt.Errorf("factory can't transition from '%s' to '%s'", p.State, newState)
	}

	return nil
}

// FactoryVault key ID to vault mapping entry of a factory
//
// Entries are insert-only.
type FactoryVault struct {
	// Factory the factory proxy
	Factory string `json:"factory" gorm:"column:factory;primaryKey" validate:"required,eth_addr"`
	// KeyID the key token ID
	KeyID string `json:"key_id" gorm:"column:key_id;primaryKey" validate:"required,uint256_dec"`
	// Vault the vault deployed for the key
	Vault string `json:"vault" gorm:"column:vault;not null;unique" validate:"required,eth_addr"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
}
