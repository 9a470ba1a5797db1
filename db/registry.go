package db

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/*
DefineRegistry record the parameters of a new token registry

	@param ctx context.Context - execution context
	@param params models.RegistryParams - registry parameters
	@returns the registry entry
*/
func (d *databaseImpl) DefineRegistry(
	_ context.Context, params models.RegistryParams,
) (models.RegistryParams, error) {
	if params.NextTokenID == "" {
		params.NextTokenID = "1"
	}
	newEntry := RegistryDBEntry{RegistryParams: params}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.RegistryParams{}, fmt.Errorf(
			"new registry %s is not valid [%w]", params.Address, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.RegistryParams{}, fmt.Errorf(
			"new registry %s insert failed [%w]", params.Address, tmp.Error,
		)
	}

	return newEntry.RegistryParams, nil
}

// getRegistryEntry fetch one registry
func (d *databaseImpl) getRegistryEntry(address string) (RegistryDBEntry, error) {
	var entry RegistryDBEntry
	err := d.db.Where("address = ?", address).First(&entry).Error
	return entry, err
}

/*
GetRegistry fetch the parameters of a token registry

	@param ctx context.Context - execution context
	@param address string - registry address
	@returns the registry entry
*/
func (d *databaseImpl) GetRegistry(
	_ context.Context, address string,
) (models.RegistryParams, error) {
	entry, err := d.getRegistryEntry(address)
	if err != nil {
		return models.RegistryParams{}, fmt.Errorf("failed to fetch registry %s [%w]", address, err)
	}
	return entry.RegistryParams, nil
}

/*
AdvanceRegistryTokenID consume the next sequential token ID of a registry

	@param ctx context.Context - execution context
	@param address string - registry address
	@returns the consumed token ID
*/
func (d *databaseImpl) AdvanceRegistryTokenID(
	_ context.Context, address string,
) (*big.Int, error) {
	entry, err := d.getRegistryEntry(address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registry %s [%w]", address, err)
	}

	current, err := models.ParseAmount(entry.NextTokenID)
	if err != nil {
		return nil, fmt.Errorf("registry %s has corrupt token ID counter [%w]", address, err)
	}

	next := new(big.Int).Add(current, big.NewInt(1))
	if tmp := d.db.Model(&entry).Update("next_token_id", next.String()); tmp.Error != nil {
		return nil, fmt.Errorf("registry %s token ID counter update failed [%w]", address, tmp.Error)
	}

	return current, nil
}

/*
SealRegistry mark a registry as sealed

	@param ctx context.Context - execution context
	@param address string - registry address
*/
func (d *databaseImpl) SealRegistry(_ context.Context, address string) error {
	entry, err := d.getRegistryEntry(address)
	if err != nil {
		return fmt.Errorf("failed to fetch registry %s [%w]", address, err)
	}

	if entry.Sealed {
		// NOOP
		return nil
	}

	if tmp := d.db.Model(&entry).Update("sealed", true); tmp.Error != nil {
		return fmt.Errorf("registry %s seal failed [%w]", address, tmp.Error)
	}

	return nil
}

// upsert insert a row, or update the value columns of the row with the same key columns
func (d *databaseImpl) upsert(entry interface{}, keyColumns []string, valueColumns ...string) error {
	if err := d.validator.Struct(entry); err != nil {
		return err
	}
	conflictOn := []clause.Column{}
	for _, column := range keyColumns {
		conflictOn = append(conflictOn, clause.Column{Name: column})
	}
	return d.db.Clauses(clause.OnConflict{
		Columns:   conflictOn,
		DoUpdates: clause.AssignmentColumns(valueColumns),
	}).Create(entry).Error
}

/*
GetFungibleBalance fetch a fungible token balance; unknown holders have zero

	@param ctx context.Context - execution context
	@param token string - registry address
	@param holder string - holder address
	@returns the balance
*/
func (d *databaseImpl) GetFungibleBalance(
	_ context.Context, token, holder string,
) (*big.Int, error) {
	var entry FungibleBalanceDBEntry
	err := d.db.Where("token = ? AND holder = ?", token, holder).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch %s balance of %s [%w]", token, holder, err)
	}
	return models.ParseAmount(entry.Amount)
}

/*
SetFungibleBalance set a fungible token balance

	@param ctx context.Context - execution context
	@param token string - registry address
	@param holder string - holder address
	@param amount *big.Int - new balance
*/
func (d *databaseImpl) SetFungibleBalance(
	_ context.Context, token, holder string, amount *big.Int,
) error {
	entry := FungibleBalanceDBEntry{
		FungibleBalance: models.FungibleBalance{
			Token: token, Holder: holder, Amount: models.FormatAmount(amount),
		},
	}
	if err := d.upsert(&entry, []string{"token", "holder"}, "amount"); err != nil {
		return fmt.Errorf("failed to set %s balance of %s [%w]", token, holder, err)
	}
	return nil
}

/*
GetNonFungibleOwner fetch the owner of a non-fungible token

	@param ctx context.Context - execution context
	@param token string - registry address
	@param tokenID *big.Int - token ID
	@returns the owner
*/
func (d *databaseImpl) GetNonFungibleOwner(
	_ context.Context, token string, tokenID *big.Int,
) (string, error) {
	var entry NonFungibleOwnerDBEntry
	err := d.db.
		Where("token = ? AND token_id = ?", token, models.FormatAmount(tokenID)).
		First(&entry).Error
	if err != nil {
		return "", fmt.Errorf("failed to fetch owner of %s #%s [%w]", token, tokenID, err)
	}
	return entry.Owner, nil
}

/*
SetNonFungibleOwner set the owner of a non-fungible token

	@param ctx context.Context - execution context
	@param token string - registry address
	@param tokenID *big.Int - token ID
	@param owner string - new owner
*/
func (d *databaseImpl) SetNonFungibleOwner(
	_ context.Context, token string, tokenID *big.Int, owner string,
) error {
	entry := NonFungibleOwnerDBEntry{
		NonFungibleOwner: models.NonFungibleOwner{
			Token: token, TokenID: models.FormatAmount(tokenID), Owner: owner,
		},
	}
	if err := d.upsert(&entry, []string{"token", "token_id"}, "owner"); err != nil {
		return fmt.Errorf("failed to set owner of %s #%s [%w]", token, tokenID, err)
	}
	return nil
}

/*
CountNonFungibleOwned count the tokens of a registry held by one owner

	@param ctx context.Context - execution context
	@param token string - registry address
	@param owner string - owner address
	@returns number of tokens
*/
func (d *databaseImpl) CountNonFungibleOwned(
	_ context.Context, token, owner string,
) (int64, error) {
	var count int64
	tmp := d.db.Model(&NonFungibleOwnerDBEntry{}).
		Where("token = ? AND owner = ?", token, owner).
		Count(&count)
	if tmp.Error != nil {
		return 0, fmt.Errorf("failed to count %s tokens of %s [%w]", token, owner, tmp.Error)
	}
	return count, nil
}

/*
GetMultiTokenBalance fetch a multi-token balance; unknown holders have zero

	@param ctx context.Context - execution context
	@param token string - registry address
	@param tokenID *big.Int - token ID
	@param holder string - holder address
	@returns the balance
*/
func (d *databaseImpl) GetMultiTokenBalance(
	_ context.Context, token string, tokenID *big.Int, holder string,
) (*big.Int, error) {
	var entry MultiTokenBalanceDBEntry
	err := d.db.
		Where(
			"token = ? AND token_id = ? AND holder = ?", token, models.FormatAmount(tokenID), holder,
		).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	} else if err != nil {
		return nil, fmt.Errorf(
			"failed to fetch %s #%s balance of %s [%w]", token, tokenID, holder, err,
		)
	}
	return models.ParseAmount(entry.Amount)
}

/*
SetMultiTokenBalance set a multi-token balance

	@param ctx context.Context - execution context
	@param token string - registry address
	@param tokenID *big.Int - token ID
	@param holder string - holder address
	@param amount *big.Int - new balance
*/
func (d *databaseImpl) SetMultiTokenBalance(
	_ context.Context, token string, tokenID *big.Int, holder string, amount *big.Int,
) error {
	entry := MultiTokenBalanceDBEntry{
		MultiTokenBalance: models.MultiTokenBalance{
			Token:   token,
			TokenID: models.FormatAmount(tokenID),
			Holder:  holder,
			Amount:  models.FormatAmount(amount),
		},
	}
	if err := d.upsert(&entry, []string{"token", "token_id", "holder"}, "amount"); err != nil {
		return fmt.Errorf("failed to set %s #%s balance of %s [%w]", token, tokenID, holder, err)
	}
	return nil
}

/*
GetLegacyMarketOwner fetch the owner of a legacy market item

	@param ctx context.Context - execution context
	@param token string - registry address
	@param index *big.Int - item index
	@returns the owner
*/
func (d *databaseImpl) GetLegacyMarketOwner(
	_ context.Context, token string, index *big.Int,
) (string, error) {
	var entry LegacyMarketOwnerDBEntry
	err := d.db.
		Where("token = ? AND item_index = ?", token, models.FormatAmount(index)).
		First(&entry).Error
	if err != nil {
		return "", fmt.Errorf("failed to fetch owner of %s item %s [%w]", token, index, err)
	}
	return entry.Owner, nil
}

/*
SetLegacyMarketOwner set the owner of a legacy market item

	@param ctx context.Context - execution context
	@param token string - registry address
	@param index *big.Int - item index
	@param owner string - new owner
*/
func (d *databaseImpl) SetLegacyMarketOwner(
	_ context.Context, token string, index *big.Int, owner string,
) error {
	entry := LegacyMarketOwnerDBEntry{
		LegacyMarketOwner: models.LegacyMarketOwner{
			Token: token, Index: models.FormatAmount(index), Owner: owner,
		},
	}
	if err := d.upsert(&entry, []string{"token", "item_index"}, "owner"); err != nil {
		return fmt.Errorf("failed to set owner of %s item %s [%w]", token, index, err)
	}
	return nil
}
