package db

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/models"
	"gorm.io/gorm"
)

/*
DefineAccount record a new ledger account

	@param ctx context.Context - execution context
	@param account models.Account - the account
	@returns the account entry
*/
func (d *databaseImpl) DefineAccount(
	_ context.Context, account models.Account,
) (models.Account, error) {
	if account.Balance == "" {
		account.Balance = "0"
	}
	newEntry := AccountDBEntry{Account: account}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Account{}, fmt.Errorf("new account %s is not valid [%w]", account.Address, err)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Account{}, fmt.Errorf(
			"new account %s insert failed [%w]", account.Address, tmp.Error,
		)
	}

	return newEntry.Account, nil
}

// getAccountEntry fetch one ledger account
func (d *databaseImpl) getAccountEntry(address string) (AccountDBEntry, error) {
	var entry AccountDBEntry
	err := d.db.Where("address = ?", address).First(&entry).Error
	return entry, err
}

/*
GetAccount fetch one ledger account

	@param ctx context.Context - execution context
	@param address string - account address
	@returns the account entry
*/
func (d *databaseImpl) GetAccount(_ context.Context, address string) (models.Account, error) {
	entry, err := d.getAccountEntry(address)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to fetch account %s [%w]", address, err)
	}
	return entry.Account, nil
}

/*
GetOrDefineExternalAccount fetch one ledger account, defining it as an externally
owned account if it is not known yet

	@param ctx context.Context - execution context
	@param address string - account address
	@returns the account entry
*/
func (d *databaseImpl) GetOrDefineExternalAccount(
	ctx context.Context, address string,
) (models.Account, error) {
	entry, err := d.getAccountEntry(address)
	if err == nil {
		return entry.Account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Account{}, fmt.Errorf("failed to fetch account %s [%w]", address, err)
	}
	return d.DefineAccount(ctx, models.Account{Address: address, Kind: models.AccountKindExternal})
}

/*
IncrementAccountNonce increment the deployment nonce of an account

	@param ctx context.Context - execution context
	@param address string - account address
	@returns the nonce before the increment
*/
func (d *databaseImpl) IncrementAccountNonce(_ context.Context, address string) (uint64, error) {
	entry, err := d.getAccountEntry(address)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch account %s [%w]", address, err)
	}

	current := entry.Nonce
	if tmp := d.db.Model(&entry).Update("nonce", current+1); tmp.Error != nil {
		return 0, fmt.Errorf("account %s nonce update failed [%w]", address, tmp.Error)
	}

	return current, nil
}

/*
SetAccountBalance set the native value balance of an account

	@param ctx context.Context - execution context
	@param address string - account address
	@param balance *big.Int - new balance
*/
func (d *databaseImpl) SetAccountBalance(
	_ context.Context, address string, balance *big.Int,
) error {
	if !models.IsUint256(balance) {
		return fmt.Errorf("balance %s of account %s is not valid", balance, address)
	}

	tmp := d.db.Model(&AccountDBEntry{}).
		Where("address = ?", address).
		Update("balance", balance.String())
	if tmp.Error != nil {
		return fmt.Errorf("account %s balance update failed [%w]", address, tmp.Error)
	}
	if tmp.RowsAffected == 0 {
		return fmt.Errorf("account %s balance update failed [%w]", address, gorm.ErrRecordNotFound)
	}

	return nil
}
