package db

import (
	"context"
	"fmt"

	"github.com/alwitt/keyvault/models"
)

/*
DefineVault record the state of a newly initialized vault

	@param ctx context.Context - execution context
	@param state models.VaultState - vault state
	@returns the vault entry
*/
func (d *databaseImpl) DefineVault(
	_ context.Context, state models.VaultState,
) (models.VaultState, error) {
	state.UnlockTimestamp = 0
	newEntry := VaultDBEntry{VaultState: state}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.VaultState{}, fmt.Errorf("new vault %s is not valid [%w]", state.Address, err)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.VaultState{}, fmt.Errorf(
			"new vault %s insert failed [%w]", state.Address, tmp.Error,
		)
	}

	return newEntry.VaultState, nil
}

/*
GetVault fetch the state of a vault

	@param ctx context.Context - execution context
	@param address string - vault address
	@returns the vault entry
*/
func (d *databaseImpl) GetVault(_ context.Context, address string) (models.VaultState, error) {
	var entry VaultDBEntry
	if tmp := d.db.Where("address = ?", address).First(&entry); tmp.Error != nil {
		return models.VaultState{}, fmt.Errorf("failed to fetch vault %s [%w]", address, tmp.Error)
	}
	return entry.VaultState, nil
}

/*
LockVault set the write-once unlock timestamp of a vault

	@param ctx context.Context - execution context
	@param address string - vault address
	@param unlockTimestamp int64 - unix seconds
*/
func (d *databaseImpl) LockVault(_ context.Context, address string, unlockTimestamp int64) error {
	if unlockTimestamp <= 0 {
		return fmt.Errorf(
			"unlock timestamp %d of vault %s is not valid [%w]",
			unlockTimestamp,
			address,
			models.ErrInvalidRequest,
		)
	}

	// The zero guard makes the timestamp write-once at the storage level
	tmp := d.db.Model(&VaultDBEntry{}).
		Where("address = ? AND unlock_timestamp = 0", address).
		Update("unlock_timestamp", unlockTimestamp)
	if tmp.Error != nil {
		return fmt.Errorf("vault %s lock update failed [%w]", address, tmp.Error)
	}
	if tmp.RowsAffected == 0 {
		return fmt.Errorf("vault %s can not be locked [%w]", address, models.ErrAlreadyLocked)
	}

	return nil
}
