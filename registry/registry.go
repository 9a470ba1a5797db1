// Package registry - token registries held in custody by vaults
package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/goutils"
	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/ledger"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
)

// NonFungibleReceiver contract code which accepts non-fungible tokens through safe transfers
type NonFungibleReceiver interface {
	/*
		OnNonFungibleReceived called after a non-fungible token is moved to the contract

			@param ctx context.Context - execution context
			@param self common.Address - the receiving contract
			@param token common.Address - the token registry
			@param operator common.Address - the account which started the transfer
			@param from common.Address - the previous owner
			@param tokenID *big.Int - the token
			@param data []byte - transfer payload
			@param dbClient db.Database - active ledger step
	*/
	OnNonFungibleReceived(
		ctx context.Context,
		self, token, operator, from common.Address,
		tokenID *big.Int,
		data []byte,
		dbClient db.Database,
	) error
}

// MultiTokenReceiver contract code which accepts multi-token transfers
type MultiTokenReceiver interface {
	/*
		OnMultiTokenReceived called after one multi-token ID is moved to the contract

			@param ctx context.Context - execution context
			@param self common.Address - the receiving contract
			@param token common.Address - the token registry
			@param operator common.Address - the account which started the transfer
			@param from common.Address - the previous holder
			@param tokenID *big.Int - the token ID
			@param amount *big.Int - amount moved
			@param data []byte - transfer payload
			@param dbClient db.Database - active ledger step
	*/
	OnMultiTokenReceived(
		ctx context.Context,
		self, token, operator, from common.Address,
		tokenID, amount *big.Int,
		data []byte,
		dbClient db.Database,
	) error

	/*
		OnMultiTokenBatchReceived called after several multi-token IDs are moved to the contract

			@param ctx context.Context - execution context
			@param self common.Address - the receiving contract
			@param token common.Address - the token registry
			@param operator common.Address - the account which started the transfer
			@param from common.Address - the previous holder
			@param tokenIDs []*big.Int - the token IDs
			@param amounts []*big.Int - amount moved per ID
			@param data []byte - transfer payload
			@param dbClient db.Database - active ledger step
	*/
	OnMultiTokenBatchReceived(
		ctx context.Context,
		self, token, operator, from common.Address,
		tokenIDs, amounts []*big.Int,
		data []byte,
		dbClient db.Database,
	) error
}

// Suite the code of every registry kind, bound to one ledger
type Suite struct {
	Fungible     *Fungible
	NonFungible  *NonFungible
	MultiToken   *MultiToken
	LegacyMarket *LegacyMarket
}

/*
Install define the registry code and bind it to the ledger

	@param l ledger.Ledger - the ledger
	@returns the registry code
*/
func Install(l ledger.Ledger) Suite {
	suite := Suite{
		Fungible:     &Fungible{base: newBase(l, models.AccountKindFungible, "fungible")},
		NonFungible:  &NonFungible{base: newBase(l, models.AccountKindNonFungible, "non-fungible")},
		MultiToken:   &MultiToken{base: newBase(l, models.AccountKindMultiToken, "multi-token")},
		LegacyMarket: &LegacyMarket{base: newBase(l, models.AccountKindLegacyMarket, "legacy-market")},
	}
	l.BindCode(models.AccountKindFungible, suite.Fungible)
	l.BindCode(models.AccountKindNonFungible, suite.NonFungible)
	l.BindCode(models.AccountKindMultiToken, suite.MultiToken)
	l.BindCode(models.AccountKindLegacyMarket, suite.LegacyMarket)
	return suite
}

// base logic shared by all registry kinds
type base struct {
	goutils.Component
	ledger ledger.Ledger
	kind   models.AccountKindENUMType
}

func newBase(l ledger.Ledger, kind models.AccountKindENUMType, component string) base {
	return base{
		Component: goutils.Component{
			LogTags: log.Fields{
				"package": "keyvault", "module": "registry", "component": component,
			},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		ledger: l,
		kind:   kind,
	}
}

/*
Deploy deploy a new registry of this kind. The deployer becomes the minter.

	@param ctx context.Context - execution context
	@param deployer common.Address - deploying account
	@param name string - token name
	@param symbol string - token symbol
	@param activeDBClient db.Database - existing ledger step
	@returns the registry address
*/
func (b *base) Deploy(
	ctx context.Context,
	deployer common.Address,
	name, symbol string,
	activeDBClient db.Database,
) (common.Address, error) {
	var token common.Address
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, b.ledger, func(ctx context.Context, dbClient db.Database) error {
			var err error
			token, err = b.ledger.DeployContract(ctx, ledger.DeployParams{
				Deployer: deployer, Kind: b.kind, Label: symbol,
			}, dbClient)
			if err != nil {
				return err
			}
			_, err = dbClient.DefineRegistry(ctx, models.RegistryParams{
				Address: models.NormalizeAddress(token),
				Kind:    b.kind,
				Name:    name,
				Symbol:  symbol,
				Minter:  models.NormalizeAddress(deployer),
			})
			return err
		},
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to deploy '%s' registry [%w]", b.kind, err)
	}

	log.
		WithFields(b.GetLogTagsForContext(ctx)).
		WithField("token", token.Hex()).
		WithField("symbol", symbol).
		Info("Deployed token registry")

	return token, nil
}

// loadParams fetch the registry parameters, verifying the registry kind
func (b *base) loadParams(
	ctx context.Context, token common.Address, dbClient db.Database,
) (models.RegistryParams, error) {
	params, err := dbClient.GetRegistry(ctx, models.NormalizeAddress(token))
	if err != nil {
		return models.RegistryParams{}, err
	}
	if params.Kind != b.kind {
		return models.RegistryParams{}, fmt.Errorf(
			"%s is a '%s' registry, not '%s' [%w]",
			token.Hex(),
			params.Kind,
			b.kind,
			models.ErrInvalidRequest,
		)
	}
	return params, nil
}

// checkMinter verify the caller may mint
func (b *base) checkMinter(
	ctx context.Context, token, caller common.Address, dbClient db.Database,
) (models.RegistryParams, error) {
	params, err := b.loadParams(ctx, token, dbClient)
	if err != nil {
		return models.RegistryParams{}, err
	}
	if params.Minter != models.NormalizeAddress(caller) {
		return models.RegistryParams{}, fmt.Errorf(
			"%s is not the minter of %s [%w]", caller.Hex(), token.Hex(), models.ErrNotAuthorized,
		)
	}
	return params, nil
}

// read run read-only logic within the active ledger step, or outside any step
func (b *base) read(
	ctx context.Context,
	activeDBClient db.Database,
	coreLogic func(ctx context.Context, dbClient db.Database) error,
) error {
	if activeDBClient != nil {
		return coreLogic(ctx, activeDBClient)
	}
	return b.ledger.UseDatabase(ctx, coreLogic)
}

// emitTransfer record a TOKEN_TRANSFER event
func (b *base) emitTransfer(
	ctx context.Context,
	token, operator common.Address,
	from *common.Address,
	to common.Address,
	tokenID, amount *big.Int,
	dbClient db.Database,
) error {
	event := &models.TokenTransferEvent{
		Operator: models.NormalizeAddress(operator),
		To:       models.NormalizeAddress(to),
	}
	if from != nil {
		event.From = models.NormalizeAddress(*from)
	}
	if tokenID != nil {
		event.TokenID = tokenID.String()
	}
	if amount != nil {
		event.Amount = amount.String()
	}
	return b.ledger.Emit(ctx, token, models.LedgerEventTypeTokenTransfer, event, dbClient)
}

// validAmount whether the value is a usable transfer amount
func validAmount(amount *big.Int) error {
	if !models.IsUint256(amount) {
		return fmt.Errorf("amount %s is not valid [%w]", amount, models.ErrInvalidRequest)
	}
	return nil
}
