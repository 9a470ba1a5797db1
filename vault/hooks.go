package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// ReceiveValue vaults accept native value from anyone
func (v *Logic) ReceiveValue(
	_ context.Context, _, _ common.Address, _ *big.Int, _ db.Database,
) error {
	return nil
}

// OnNonFungibleReceived vaults accept any non-fungible token except their own key
func (v *Logic) OnNonFungibleReceived(
	ctx context.Context,
	self, token, _, _ common.Address,
	tokenID *big.Int,
	_ []byte,
	dbClient db.Database,
) error {
	state, err := dbClient.GetVault(ctx, models.NormalizeAddress(self))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Uninitialized vaults are not governed by any key
			return nil
		}
		return err
	}
	if state.KeyRegistry == models.NormalizeAddress(token) && state.KeyID == models.FormatAmount(tokenID) {
		return fmt.Errorf(
			"key %s #%s governs vault %s [%w]", token.Hex(), tokenID, self.Hex(), models.ErrSelfKeyDeposit,
		)
	}
	return nil
}

// OnMultiTokenReceived vaults accept any multi-token
func (v *Logic) OnMultiTokenReceived(
	_ context.Context,
	_, _, _, _ common.Address,
	_, _ *big.Int,
	_ []byte,
	_ db.Database,
) error {
	return nil
}

// OnMultiTokenBatchReceived vaults accept any multi-token batch
func (v *Logic) OnMultiTokenBatchReceived(
	_ context.Context,
	_, _, _, _ common.Address,
	_, _ []*big.Int,
	_ []byte,
	_ db.Database,
) error {
	return nil
}
