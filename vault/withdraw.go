package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
)

func (v *vaultImpl) WithdrawETH(
	ctx context.Context,
	caller, to common.Address,
	amount *big.Int,
	activeDBClient db.Database,
) error {
	return v.withdraw(ctx, caller, []models.WithdrawalRequest{
		{TokenType: models.TokenTypeETH, Amount: amount},
	}, to, activeDBClient)
}

func (v *vaultImpl) WithdrawFungible(
	ctx context.Context,
	caller, token, to common.Address,
	amount *big.Int,
	activeDBClient db.Database,
) error {
	return v.withdraw(ctx, caller, []models.WithdrawalRequest{
		{TokenType: models.TokenTypeFungible, Token: token, Amount: amount},
	}, to, activeDBClient)
}

func (v *vaultImpl) WithdrawNonFungible(
	ctx context.Context,
	caller, token common.Address,
	tokenID *big.Int,
	to common.Address,
	activeDBClient db.Database,
) error {
	return v.withdraw(ctx, caller, []models.WithdrawalRequest{
		{TokenType: models.TokenTypeNonFungible, Token: token, TokenID: tokenID},
	}, to, activeDBClient)
}

func (v *vaultImpl) WithdrawMultiToken(
	ctx context.Context,
	caller, token common.Address,
	tokenID *big.Int,
	to common.Address,
	amount *big.Int,
	activeDBClient db.Database,
) error {
	return v.withdraw(ctx, caller, []models.WithdrawalRequest{
		{TokenType: models.TokenTypeMultiToken, Token: token, TokenID: tokenID, Amount: amount},
	}, to, activeDBClient)
}

func (v *vaultImpl) WithdrawLegacyMarketToken(
	ctx context.Context,
	caller, token common.Address,
	tokenID *big.Int,
	to common.Address,
	activeDBClient db.Database,
) error {
	return v.withdraw(ctx, caller, []models.WithdrawalRequest{
		{TokenType: models.TokenTypeLegacyMarket, Token: token, TokenID: tokenID},
	}, to, activeDBClient)
}

func (v *vaultImpl) WithdrawMultiple(
	ctx context.Context,
	caller common.Address,
	requests []models.WithdrawalRequest,
	to common.Address,
	activeDBClient db.Database,
) error {
	return v.withdraw(ctx, caller, requests, to, activeDBClient)
}

// withdraw authorize and validate once, then execute each withdrawal in order within one ledger step
func (v *vaultImpl) withdraw(
	ctx context.Context,
	caller common.Address,
	requests []models.WithdrawalRequest,
	to common.Address,
	activeDBClient db.Database,
) error {
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, v.ledger, func(ctx context.Context, dbClient db.Database) error {
			if err := v.authorizeWithdrawal(ctx, caller, dbClient); err != nil {
				return err
			}
			for idx, request := range requests {
				if err := validateRequest(request); err != nil {
					return fmt.Errorf("withdrawal %d %s is not valid [%w]", idx, request, err)
				}
			}
			for idx, request := range requests {
				if err := v.withdrawOne(ctx, caller, request, to, dbClient); err != nil {
					return fmt.Errorf("withdrawal %d %s failed [%w]", idx, request, err)
				}
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	logHandle := log.WithFields(v.GetLogTagsForContext(ctx))
	for _, request := range requests {
		logHandle.
			WithField("vault", v.self.Hex()).
			WithField("to", to.Hex()).
			Debugf("Withdrew %s", request)
	}
	return nil
}

// validateRequest verify a withdrawal carries the fields its asset type needs
func validateRequest(request models.WithdrawalRequest) error {
	switch request.TokenType {
	case models.TokenTypeETH, models.TokenTypeFungible:
		if !models.IsUint256(request.Amount) {
			return fmt.Errorf("amount %s [%w]", request.Amount, models.ErrInvalidRequest)
		}
	case models.TokenTypeNonFungible, models.TokenTypeLegacyMarket:
		if !models.IsUint256(request.TokenID) {
			return fmt.Errorf("token ID %s [%w]", request.TokenID, models.ErrInvalidRequest)
		}
	case models.TokenTypeMultiToken:
		if !models.IsUint256(request.TokenID) || !models.IsUint256(request.Amount) {
			return fmt.Errorf(
				"token ID %s amount %s [%w]", request.TokenID, request.Amount, models.ErrInvalidRequest,
			)
		}
	default:
		return fmt.Errorf("unknown asset type '%s' [%w]", request.TokenType, models.ErrInvalidRequest)
	}
	return nil
}

// withdrawOne record the withdrawal, then move the asset out of the vault
func (v *vaultImpl) withdrawOne(
	ctx context.Context,
	caller common.Address,
	request models.WithdrawalRequest,
	to common.Address,
	dbClient db.Database,
) error {
	callerAddr := models.NormalizeAddress(caller)
	toAddr := models.NormalizeAddress(to)
	tokenAddr := models.NormalizeAddress(request.Token)

	var eventType models.LedgerEventTypeENUMType
	var event interface{}
	switch request.TokenType {
	case models.TokenTypeETH:
		eventType = models.LedgerEventTypeWithdrawETH
		event = &models.WithdrawETHEvent{
			Caller: callerAddr, To: toAddr, Amount: request.Amount.String(),
		}
	case models.TokenTypeFungible:
		eventType = models.LedgerEventTypeWithdrawFungible
		event = &models.WithdrawFungibleEvent{
			Caller: callerAddr, Token: tokenAddr, To: toAddr, Amount: request.Amount.String(),
		}
	case models.TokenTypeNonFungible:
		eventType = models.LedgerEventTypeWithdrawNonFungible
		event = &models.WithdrawNonFungibleEvent{
			Caller: callerAddr, Token: tokenAddr, TokenID: request.TokenID.String(), To: toAddr,
		}
	case models.TokenTypeMultiToken:
		eventType = models.LedgerEventTypeWithdrawMultiToken
		event = &models.WithdrawMultiTokenEvent{
			Caller:  callerAddr,
			Token:   tokenAddr,
			TokenID: request.TokenID.String(),
			To:      toAddr,
			Amount:  request.Amount.String(),
		}
	case models.TokenTypeLegacyMarket:
		eventType = models.LedgerEventTypeWithdrawLegacyMarket
		event = &models.WithdrawLegacyMarketEvent{
			Caller: callerAddr, Token: tokenAddr, TokenID: request.TokenID.String(), To: toAddr,
		}
	}
	if err := v.ledger.Emit(ctx, v.self, eventType, event, dbClient); err != nil {
		return err
	}

	return v.transferOut(ctx, request, to, dbClient)
}

// transferOut move one asset out of the vault through its registry
func (v *vaultImpl) transferOut(
	ctx context.Context,
	request models.WithdrawalRequest,
	to common.Address,
	dbClient db.Database,
) error {
	if request.TokenType == models.TokenTypeETH {
		return v.ledger.SendValue(ctx, v.self, to, request.Amount, dbClient)
	}

	code, err := v.registryAt(ctx, request.Token, request.TokenType, dbClient)
	if err != nil {
		return err
	}

	switch request.TokenType {
	case models.TokenTypeFungible:
		if token, ok := code.(FungibleToken); ok {
			err = token.Transfer(ctx, request.Token, v.self, to, request.Amount, dbClient)
		} else {
			err = fmt.Errorf("unsupported fungible token %s", request.Token.Hex())
		}
	case models.TokenTypeNonFungible:
		if token, ok := code.(NonFungibleToken); ok {
			err = token.SafeTransferFrom(
				ctx, request.Token, v.self, v.self, to, request.TokenID, nil, dbClient,
			)
		} else {
			err = fmt.Errorf("unsupported non-fungible token %s", request.Token.Hex())
		}
	case models.TokenTypeMultiToken:
		if token, ok := code.(MultiToken); ok {
			err = token.SafeTransferFrom(
				ctx, request.Token, v.self, v.self, to, request.TokenID, request.Amount, nil, dbClient,
			)
		} else {
			err = fmt.Errorf("unsupported multi-token %s", request.Token.Hex())
		}
	case models.TokenTypeLegacyMarket:
		if token, ok := code.(LegacyMarketToken); ok {
			err = token.Transfer(ctx, request.Token, v.self, to, request.TokenID, dbClient)
		} else {
			err = fmt.Errorf("unsupported legacy market token %s", request.Token.Hex())
		}
	}
	if err != nil {
		return fmt.Errorf("%s [%w] [%w]", request, models.ErrTransferFailed, err)
	}
	return nil
}
