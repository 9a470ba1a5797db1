package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

/*
RegisterWithValidator register with the validator this custom validation support

	@param v *validator.Validate - the validator to register against
	@return whether successful
*/
func RegisterWithValidator(v *validator.Validate) error {
	if err := v.RegisterValidation(
		"account_kind", validateAccountKindType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"token_type", validateTokenType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"factory_state", validateFactoryStateType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"ledger_event_type", validateLedgerEventType,
	); err != nil {
		return err
	}

	if err := v.RegisterValidation(
		"uint256_dec", validateUint256Decimal,
	); err != nil {
		return err
	}

	return nil
}

func validateAccountKindType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch AccountKindENUMType(fl.Field().String()) {
	case AccountKindExternal:
		fallthrough
	case AccountKindVaultImplementation:
		fallthrough
	case AccountKindVault:
		fallthrough
	case AccountKindFactory:
		fallthrough
	case AccountKindFactoryLogic:
		fallthrough
	case AccountKindFungible:
		fallthrough
	case AccountKindNonFungible:
		fallthrough
	case AccountKindMultiToken:
		fallthrough
	case AccountKindLegacyMarket:
		return true
	}
	return false
}

func validateTokenType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch TokenTypeENUMType(fl.Field().String()) {
	case TokenTypeETH:
		fallthrough
	case TokenTypeFungible:
		fallthrough
	case TokenTypeNonFungible:
		fallthrough
	case TokenTypeMultiToken:
		fallthrough
	case TokenTypeLegacyMarket:
		return true
	}
	return false
}

func validateFactoryStateType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch FactoryStateENUMType(fl.Field().String()) {
	case FactoryStateUninitialized:
		fallthrough
	case FactoryStateInitialized:
		return true
	}
	return false
}

func validateLedgerEventType(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	switch LedgerEventTypeENUMType(fl.Field().String()) {
	case LedgerEventTypeCreateVault:
		fallthrough
	case LedgerEventTypeUpgraded:
		fallthrough
	case LedgerEventTypeOwnershipTransferred:
		fallthrough
	case LedgerEventTypeInitialized:
		fallthrough
	case LedgerEventTypeLockVault:
		fallthrough
	case LedgerEventTypeWithdrawETH:
		fallthrough
	case LedgerEventTypeWithdrawFungible:
		fallthrough
	case LedgerEventTypeWithdrawNonFungible:
		fallthrough
	case LedgerEventTypeWithdrawMultiToken:
		fallthrough
	case LedgerEventTypeWithdrawLegacyMarket:
		fallthrough
	case LedgerEventTypeRecoverKey:
		fallthrough
	case LedgerEventTypeValueTransfer:
		fallthrough
	case LedgerEventTypeTokenTransfer:
		return true
	}
	return false
}

func validateUint256Decimal(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	_, err := ParseAmount(fl.Field().String())
	return err == nil
}
