package models

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenTypeENUMType custodied asset type ENUM value type
type TokenTypeENUMType string

const (
	// TokenTypeETH native ledger value
	TokenTypeETH TokenTypeENUMType = "ETH"
	// TokenTypeFungible fungible token
	TokenTypeFungible TokenTypeENUMType = "FUNGIBLE"
	// TokenTypeNonFungible non-fungible token
	TokenTypeNonFungible TokenTypeENUMType = "NON_FUNGIBLE"
	// TokenTypeMultiToken multi-token
	TokenTypeMultiToken TokenTypeENUMType = "MULTI_TOKEN"
	// TokenTypeLegacyMarket legacy market-style token
	TokenTypeLegacyMarket TokenTypeENUMType = "LEGACY_MARKET"
)

// KeyReference identifies the external non-fungible token governing a vault
type KeyReference struct {
	// KeyRegistry the non-fungible token registry
	KeyRegistry common.Address `json:"key_registry"`
	// KeyID the key token ID
	KeyID *big.Int `json:"key_id"`
}

// WithdrawalRequest one item of a batched withdrawal
//
// Amount is ignored for NON_FUNGIBLE and LEGACY_MARKET, Token and TokenID are ignored for ETH.
type WithdrawalRequest struct {
	// TokenType the asset type
	TokenType TokenTypeENUMType `json:"token_type" validate:"required,token_type"`
	// Token the asset registry
	Token common.Address `json:"token"`
	// TokenID the item identifier within the registry
	TokenID *big.Int `json:"token_id,omitempty"`
	// Amount the amount to move
	Amount *big.Int `json:"amount,omitempty"`
}

// String describe the request
func (r WithdrawalRequest) String() string {
	return fmt.Sprintf(
		"%s(token=%s, id=%s, amount=%s)",
		r.TokenType, r.Token.Hex(), FormatAmount(r.TokenID), FormatAmount(r.Amount),
	)
}

// uint256Max largest value a 256-bit unsigned integer can hold
var uint256Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

/*
ParseAmount parse a decimal encoded unsigned 256-bit integer

	@param value string - decimal string
	@returns parsed value
*/
func ParseAmount(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("'%s' is not a decimal integer", value)
	}
	if !IsUint256(parsed) {
		return nil, fmt.Errorf("'%s' is outside the uint256 range", value)
	}
	return parsed, nil
}

// FormatAmount decimal encode a value; nil is encoded as zero
func FormatAmount(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// IsUint256 whether value fits an unsigned 256-bit integer
func IsUint256(value *big.Int) bool {
	return value != nil && value.Sign() >= 0 && value.Cmp(uint256Max) <= 0
}

// NormalizeAddress canonical checksum encoding of an address
func NormalizeAddress(addr common.Address) string {
	return addr.Hex()
}
