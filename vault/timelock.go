package vault

import (
	"context"
	"fmt"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
)

func (v *vaultImpl) Timelock(
	ctx context.Context,
	caller common.Address,
	unlockTimestamp int64,
	note string,
	activeDBClient db.Database,
) error {
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.ledger, func(ctx context.Context, dbClient db.Database) error {
			state, _, err := v.authorize(ctx, caller, dbClient)
			if err != nil {
				return err
			}
			if unlockTimestamp <= 0 {
				return fmt.Errorf(
					"unlock timestamp %d is not valid [%w]", unlockTimestamp, models.ErrInvalidRequest,
				)
			}
			// Single-use, even after the lock elapsed
			if state.IsLocked() {
				return fmt.Errorf(
					"vault %s was locked until %d [%w]",
					v.self.Hex(),
					state.UnlockTimestamp,
					models.ErrAlreadyLocked,
				)
			}
			if err := dbClient.LockVault(ctx, state.Address, unlockTimestamp); err != nil {
				return err
			}
			return v.ledger.Emit(ctx, v.self, models.LedgerEventTypeLockVault, &models.LockVaultEvent{
				UnlockTimestamp: unlockTimestamp, Note: note,
			}, dbClient)
		},
	)
	if err != nil {
		return err
	}
	log.
		WithFields(v.GetLogTagsForContext(ctx)).
		WithField("vault", v.self.Hex()).
		WithField("unlock-at", unlockTimestamp).
		Info("Vault timelocked")
	return nil
}
