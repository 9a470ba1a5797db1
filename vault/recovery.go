package vault

import (
	"context"
	"fmt"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
)

func (v *vaultImpl) RecoverKey(
	ctx context.Context, caller common.Address, activeDBClient db.Database,
) error {
	var keyRef models.KeyReference
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.ledger, func(ctx context.Context, dbClient db.Database) error {
			var state models.VaultState
			var err error
			state, keyRef, err = v.loadState(ctx, dbClient)
			if err != nil {
				return err
			}

			keyRegistry, err := v.keyRegistryAt(ctx, keyRef.KeyRegistry, dbClient)
			if err != nil {
				return err
			}
			holder, err := keyRegistry.OwnerOf(ctx, keyRef.KeyRegistry, keyRef.KeyID, dbClient)
			if err != nil {
				return err
			}
			if holder != v.self {
				return fmt.Errorf(
					"vault %s does not hold its own key [%w]", v.self.Hex(), models.ErrNotRecoverable,
				)
			}

			admin, err := v.administrator(ctx, common.HexToAddress(state.Factory), dbClient)
			if err != nil {
				return err
			}
			if admin != caller {
				return fmt.Errorf(
					"%s is not the administrator of vault %s [%w]",
					caller.Hex(),
					v.self.Hex(),
					models.ErrNotAdministrator,
				)
			}

			if err := v.ledger.Emit(ctx, v.self, models.LedgerEventTypeRecoverKey, &models.RecoverKeyEvent{
				Administrator: models.NormalizeAddress(admin),
				KeyRegistry:   models.NormalizeAddress(keyRef.KeyRegistry),
				KeyID:         keyRef.KeyID.String(),
			}, dbClient); err != nil {
				return err
			}

			// Plain transfer; the administrator may be a contract without receipt hooks
			if err := keyRegistry.TransferFrom(
				ctx, keyRef.KeyRegistry, v.self, v.self, admin, keyRef.KeyID, dbClient,
			); err != nil {
				return fmt.Errorf("key recovery failed [%w] [%w]", models.ErrTransferFailed, err)
			}
			return nil
		},
	)
	if err != nil {
		return err
	}
	log.
		WithFields(v.GetLogTagsForContext(ctx)).
		WithField("vault", v.self.Hex()).
		WithField("administrator", caller.Hex()).
		Warnf("Recovered key %s #%s", keyRef.KeyRegistry.Hex(), keyRef.KeyID)
	return nil
}

// administrator resolve the administrator of the factory which initialized the vault
func (v *vaultImpl) administrator(
	ctx context.Context, factory common.Address, dbClient db.Database,
) (common.Address, error) {
	code, account, err := v.ledger.CodeAt(ctx, factory, dbClient)
	if err != nil {
		return common.Address{}, err
	}
	administered, ok := code.(Administered)
	if !ok || !account.IsContract() {
		return common.Address{}, fmt.Errorf(
			"vault %s was not initialized by a factory [%w]", v.self.Hex(), models.ErrNotRecoverable,
		)
	}
	return administered.Owner(ctx, factory, dbClient)
}
