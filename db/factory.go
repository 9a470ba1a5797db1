package db

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/models"
	"gorm.io/gorm"
)

/*
DefineFactory record the storage of a newly deployed factory proxy

	@param ctx context.Context - execution context
	@param params models.FactoryParams - factory storage
	@returns the factory entry
*/
func (d *databaseImpl) DefineFactory(
	_ context.Context, params models.FactoryParams,
) (models.FactoryParams, error) {
	params.State = models.FactoryStateUninitialized
	newEntry := FactoryDBEntry{FactoryParams: params}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.FactoryParams{}, fmt.Errorf(
			"new factory %s is not valid [%w]", params.Address, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.FactoryParams{}, fmt.Errorf(
			"new factory %s insert failed [%w]", params.Address, tmp.Error,
		)
	}

	return newEntry.FactoryParams, nil
}

// getFactoryEntry fetch one factory
func (d *databaseImpl) getFactoryEntry(address string) (FactoryDBEntry, error) {
	var entry FactoryDBEntry
	err := d.db.Where("address = ?", address).First(&entry).Error
	return entry, err
}

/*
GetFactory fetch the storage of a factory proxy

	@param ctx context.Context - execution context
	@param address string - factory address
	@returns the factory entry
*/
func (d *databaseImpl) GetFactory(_ context.Context, address string) (models.FactoryParams, error) {
	entry, err := d.getFactoryEntry(address)
	if err != nil {
		return models.FactoryParams{}, fmt.Errorf("failed to fetch factory %s [%w]", address, err)
	}
	return entry.FactoryParams, nil
}

/*
MarkFactoryInitialized initialize a factory

	@param ctx context.Context - execution context
	@param address string - factory address
	@param owner string - factory administrator
	@param vaultImplementation string - shared vault implementation
	@param keyRegistry string - key token registry
*/
func (d *databaseImpl) MarkFactoryInitialized(
	_ context.Context, address, owner, vaultImplementation, keyRegistry string,
) error {
	entry, err := d.getFactoryEntry(address)
	if err != nil {
		return fmt.Errorf("failed to fetch factory %s [%w]", address, err)
	}

	if err := entry.ValidateNextState(models.FactoryStateInitialized); err != nil {
		return fmt.Errorf(
			"factory %s initialization not allowed [%w] [%w]", address, models.ErrAlreadyInitialized, err,
		)
	}

	entry.State = models.FactoryStateInitialized
	entry.Owner = &owner
	entry.VaultImplementation = &vaultImplementation
	entry.KeyRegistry = &keyRegistry

	if err := d.validator.Struct(&entry); err != nil {
		return fmt.Errorf("factory %s initialization parameters not valid [%w]", address, err)
	}

	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return fmt.Errorf("factory %s initialization update failed [%w]", address, tmp.Error)
	}

	return nil
}

// updateFactoryColumn update one column of a factory entry
func (d *databaseImpl) updateFactoryColumn(address, column string, value interface{}) error {
	tmp := d.db.Model(&FactoryDBEntry{}).Where("address = ?", address).Update(column, value)
	if tmp.Error != nil {
		return fmt.Errorf("factory %s '%s' update failed [%w]", address, column, tmp.Error)
	}
	if tmp.RowsAffected == 0 {
		return fmt.Errorf("factory %s '%s' update failed [%w]", address, column, gorm.ErrRecordNotFound)
	}
	return nil
}

/*
SetFactoryOwner change the factory administrator

	@param ctx context.Context - execution context
	@param address string - factory address
	@param owner string - new administrator
*/
func (d *databaseImpl) SetFactoryOwner(_ context.Context, address, owner string) error {
	return d.updateFactoryColumn(address, "owner", owner)
}

/*
SetFactoryLogic change the active factory logic

	@param ctx context.Context - execution context
	@param address string - factory address
	@param implementation string - logic account
	@param version string - logic version tag
*/
func (d *databaseImpl) SetFactoryLogic(
	_ context.Context, address, implementation, version string,
) error {
	tmp := d.db.Model(&FactoryDBEntry{}).
		Where("address = ?", address).
		Updates(map[string]interface{}{
			"logic_implementation": implementation,
			"logic_version":        version,
		})
	if tmp.Error != nil {
		return fmt.Errorf("factory %s logic update failed [%w]", address, tmp.Error)
	}
	if tmp.RowsAffected == 0 {
		return fmt.Errorf("factory %s logic update failed [%w]", address, gorm.ErrRecordNotFound)
	}
	return nil
}

/*
SetFactoryVaultImplementation change the vault implementation new vaults clone

	@param ctx context.Context - execution context
	@param address string - factory address
	@param implementation string - vault implementation
*/
func (d *databaseImpl) SetFactoryVaultImplementation(
	_ context.Context, address, implementation string,
) error {
	return d.updateFactoryColumn(address, "vault_implementation", implementation)
}

/*
RegisterFactoryVault insert a key ID to vault mapping

	@param ctx context.Context - execution context
	@param factory string - factory address
	@param keyID *big.Int - key token ID
	@param vault string - vault address
	@returns the mapping entry
*/
func (d *databaseImpl) RegisterFactoryVault(
	ctx context.Context, factory string, keyID *big.Int, vault string,
) (models.FactoryVault, error) {
	if _, exists, err := d.GetFactoryVault(ctx, factory, keyID); err != nil {
		return models.FactoryVault{}, err
	} else if exists {
		return models.FactoryVault{}, fmt.Errorf(
			"factory %s key %s [%w]", factory, keyID, models.ErrAlreadyRegistered,
		)
	}

	newEntry := FactoryVaultDBEntry{
		FactoryVault: models.FactoryVault{
			Factory: factory, KeyID: models.FormatAmount(keyID), Vault: vault,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.FactoryVault{}, fmt.Errorf(
			"factory %s key %s mapping is not valid [%w]", factory, keyID, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.FactoryVault{}, fmt.Errorf(
			"factory %s key %s mapping insert failed [%w]", factory, keyID, tmp.Error,
		)
	}

	return newEntry.FactoryVault, nil
}

/*
GetFactoryVault fetch the vault mapped to a key ID

	@param ctx context.Context - execution context
	@param factory string - factory address
	@param keyID *big.Int - key token ID
	@returns the mapping entry, and whether it exists
*/
func (d *databaseImpl) GetFactoryVault(
	_ context.Context, factory string, keyID *big.Int,
) (models.FactoryVault, bool, error) {
	var entries []FactoryVaultDBEntry
	tmp := d.db.
		Where("factory = ? AND key_id = ?", factory, models.FormatAmount(keyID)).
		Find(&entries)
	if tmp.Error != nil {
		return models.FactoryVault{}, false, fmt.Errorf(
			"failed to read factory %s key %s mapping [%w]", factory, keyID, tmp.Error,
		)
	}
	if len(entries) == 0 {
		return models.FactoryVault{}, false, nil
	}
	return entries[0].FactoryVault, true, nil
}

/*
ListFactoryVaults list the key ID to vault mapping of a factory

	@param ctx context.Context - execution context
	@param factory string - factory address
	@param filters FactoryVaultQueryFilter - entry listing filter
	@return list of mapping entries
*/
func (d *databaseImpl) ListFactoryVaults(
	_ context.Context, factory string, filters FactoryVaultQueryFilter,
) ([]models.FactoryVault, error) {
	query := d.db.Model(&FactoryVaultDBEntry{}).Where("factory = ?", factory)

	query = applyListFilter(query, filters.CommonListEntryQueryFilter)

	query = query.Order("created_at")

	var entries []FactoryVaultDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list factory %s vaults [%w]", factory, tmp.Error)
	}

	result := []models.FactoryVault{}
	for _, entry := range entries {
		result = append(result, entry.FactoryVault)
	}

	return result, nil
}
