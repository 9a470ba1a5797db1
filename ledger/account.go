package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// externalAccountSeedLen bytes of RNG output hashed into a new external address
const externalAccountSeedLen = 32

func (l *ledgerImpl) NewExternalAccount(
	ctx context.Context, label string, activeDBClient db.Database,
) (common.Address, error) {
	seed := make([]byte, externalAccountSeedLen)
	if n, err := l.rng.GetRNGReader().Read(seed); err != nil {
		return common.Address{}, fmt.Errorf(
			"failed to read %d bytes from RNG [%w]", externalAccountSeedLen, err,
		)
	} else if n != externalAccountSeedLen {
		return common.Address{}, fmt.Errorf(
			"did not get %d bytes from RNG, only %d", externalAccountSeedLen, n,
		)
	}

	address := common.BytesToAddress(crypto.Keccak256(seed)[12:])

	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, l, func(ctx context.Context, dbClient db.Database) error {
			_, err := dbClient.DefineAccount(ctx, models.Account{
				Address: models.NormalizeAddress(address),
				Kind:    models.AccountKindExternal,
				Label:   label,
			})
			return err
		},
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to define external account [%w]", err)
	}

	log.
		WithFields(l.GetLogTagsForContext(ctx)).
		WithField("address", address.Hex()).
		WithField("label", label).
		Debug("Defined new external account")

	return address, nil
}

func (l *ledgerImpl) DeployContract(
	ctx context.Context, params DeployParams, activeDBClient db.Database,
) (common.Address, error) {
	if err := l.validator.Struct(&params); err != nil {
		return common.Address{}, fmt.Errorf("deployment parameters not valid [%w]", err)
	}
	if params.Kind == models.AccountKindExternal {
		return common.Address{}, fmt.Errorf("can not deploy an external account")
	}

	var address common.Address
	err := db.ActiveSessionWrapper(
		ctx, activeDBClient, l, func(ctx context.Context, dbClient db.Database) error {
			deployerAddr := models.NormalizeAddress(params.Deployer)
			if _, err := dbClient.GetOrDefineExternalAccount(ctx, deployerAddr); err != nil {
				return err
			}
			nonce, err := dbClient.IncrementAccountNonce(ctx, deployerAddr)
			if err != nil {
				return err
			}

			address = crypto.CreateAddress(params.Deployer, nonce)

			entry := models.Account{
				Address:  models.NormalizeAddress(address),
				Kind:     params.Kind,
				Label:    params.Label,
				Deployer: &deployerAddr,
			}
			if params.Implementation != nil {
				impl := models.NormalizeAddress(*params.Implementation)
				entry.Implementation = &impl
			}
			_, err = dbClient.DefineAccount(ctx, entry)
			return err
		},
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to deploy '%s' contract [%w]", params.Kind, err)
	}

	log.
		WithFields(l.GetLogTagsForContext(ctx)).
		WithField("address", address.Hex()).
		WithField("kind", params.Kind).
		WithField("deployer", params.Deployer.Hex()).
		Debug("Deployed contract")

	return address, nil
}

func (l *ledgerImpl) GetAccount(
	ctx context.Context, address common.Address, activeDBClient db.Database,
) (models.Account, error) {
	var account models.Account
	err := l.useForRead(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		var err error
		account, err = dbClient.GetAccount(ctx, models.NormalizeAddress(address))
		return err
	})
	return account, err
}

func (l *ledgerImpl) BalanceOf(
	ctx context.Context, address common.Address, activeDBClient db.Database,
) (*big.Int, error) {
	balance := big.NewInt(0)
	err := l.useForRead(ctx, activeDBClient, func(ctx context.Context, dbClient db.Database) error {
		account, err := dbClient.GetAccount(ctx, models.NormalizeAddress(address))
		if err != nil {
			// Unknown accounts hold nothing
			return nil
		}
		balance, err = models.ParseAmount(account.Balance)
		return err
	})
	return balance, err
}

// useForRead run read-only logic within the active ledger step, or outside any step
func (l *ledgerImpl) useForRead(
	ctx context.Context,
	activeDBClient db.Database,
	coreLogic func(ctx context.Context, dbClient db.Database) error,
) error {
	if activeDBClient != nil {
		return coreLogic(ctx, activeDBClient)
	}
	return l.UseDatabase(ctx, coreLogic)
}
