package vault_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/factory"
	"github.com/alwitt/keyvault/ledger"
	"github.com/alwitt/keyvault/models"
	"github.com/alwitt/keyvault/registry"
	"github.com/alwitt/keyvault/vault"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

const oneYear = int64(31536000)

// custodyFixture the accounts, tokens, and vaults shared by the vault tests
type custodyFixture struct {
	ledger     ledger.Ledger
	clock      *ledger.ManualClock
	registries registry.Suite
	vaults     *vault.Logic
	factories  *factory.Code

	tokenTeam common.Address
	vaultTeam common.Address
	userA     common.Address
	userB     common.Address

	keyRegistry  common.Address
	fungible     common.Address
	nonFungible  common.Address
	multiToken   common.Address
	legacyMarket common.Address

	vaultImpl common.Address
	factory   common.Address
	vaultA    common.Address
	vaultB    common.Address
}

func prepareFixture(t *testing.T, utCtx context.Context) custodyFixture {
	assert := assert.New(t)

	testDB := fmt.Sprintf("/tmp/keyvault_ut_%s.db", ulid.Make().String())
	log.WithField("db", testDB).Debug("Test database")

	dbClient, err := db.NewConnection(db.GetSqliteDialector(testDB), logger.Error)
	assert.Nil(err)
	assert.Nil(dbClient.RunSQLInTransaction(utCtx, db.DefineTables))

	clock := ledger.NewManualClock(time.Unix(1_700_000_000, 0))
	l, err := ledger.NewLedger(utCtx, ledger.Params{Persistence: dbClient, Clock: clock})
	assert.Nil(err)

	fx := custodyFixture{ledger: l, clock: clock, registries: registry.Install(l), vaults: vault.Install(l)}
	fx.factories = factory.Install(l, fx.vaults)

	for _, account := range []struct {
		label  string
		target *common.Address
	}{
		{label: "token-team", target: &fx.tokenTeam},
		{label: "vault-team", target: &fx.vaultTeam},
		{label: "user-a", target: &fx.userA},
		{label: "user-b", target: &fx.userB},
	} {
		*account.target, err = l.NewExternalAccount(utCtx, account.label, nil)
		assert.Nil(err)
	}

	// Tokens
	fx.keyRegistry, err = fx.registries.NonFungible.Deploy(utCtx, fx.tokenTeam, "Vault Key", "VKEY", nil)
	assert.Nil(err)
	fx.fungible, err = fx.registries.Fungible.Deploy(utCtx, fx.tokenTeam, "Fungible", "FT", nil)
	assert.Nil(err)
	fx.nonFungible, err = fx.registries.NonFungible.Deploy(utCtx, fx.tokenTeam, "Collectible", "NFT", nil)
	assert.Nil(err)
	fx.multiToken, err = fx.registries.MultiToken.Deploy(utCtx, fx.tokenTeam, "Multi", "MT", nil)
	assert.Nil(err)
	fx.legacyMarket, err = fx.registries.LegacyMarket.Deploy(utCtx, fx.tokenTeam, "Punks", "PUNK", nil)
	assert.Nil(err)

	for idx, user := range []common.Address{fx.userA, fx.userB} {
		itemID := big.NewInt(int64(idx + 1))

		keyID, err := fx.registries.NonFungible.Mint(utCtx, fx.keyRegistry, fx.tokenTeam, user, nil)
		assert.Nil(err)
		assert.Equal(itemID.Int64(), keyID.Int64())
		tokenID, err := fx.registries.NonFungible.Mint(utCtx, fx.nonFungible, fx.tokenTeam, user, nil)
		assert.Nil(err)
		assert.Equal(itemID.Int64(), tokenID.Int64())

		assert.Nil(fx.registries.Fungible.Mint(
			utCtx, fx.fungible, fx.tokenTeam, user, big.NewInt(100), nil,
		))
		assert.Nil(fx.registries.MultiToken.Mint(
			utCtx, fx.multiToken, fx.tokenTeam, user, itemID, big.NewInt(10), nil,
		))
		assert.Nil(fx.registries.LegacyMarket.SetInitialOwner(
			utCtx, fx.legacyMarket, fx.tokenTeam, user, itemID, nil,
		))
		assert.Nil(l.Mint(utCtx, user, big.NewInt(1000), nil))
	}
	assert.Nil(fx.registries.LegacyMarket.AllInitialOwnersAssigned(
		utCtx, fx.legacyMarket, fx.tokenTeam, nil,
	))

	// Custody contracts
	fx.vaultImpl, err = fx.vaults.DeployImplementation(utCtx, fx.vaultTeam, nil)
	assert.Nil(err)
	fx.factory, err = fx.factories.Deploy(utCtx, fx.vaultTeam, nil)
	assert.Nil(err)
	vaultFactory := fx.factories.At(fx.factory)
	assert.Nil(vaultFactory.Initialize(utCtx, fx.vaultTeam, fx.vaultImpl, fx.keyRegistry, nil))

	fx.vaultA, err = vaultFactory.CreateVault(utCtx, fx.userA, big.NewInt(1), nil)
	assert.Nil(err)
	fx.vaultB, err = vaultFactory.CreateVault(utCtx, fx.userB, big.NewInt(2), nil)
	assert.Nil(err)

	return fx
}

// depositAll move one unit of every asset type of a user into a vault
func (fx custodyFixture) depositAll(
	t *testing.T, utCtx context.Context, user, target common.Address, itemID *big.Int,
) {
	assert := assert.New(t)
	assert.Nil(fx.ledger.SendValue(utCtx, user, target, big.NewInt(500), nil))
	assert.Nil(fx.registries.Fungible.Transfer(utCtx, fx.fungible, user, target, big.NewInt(50), nil))
	assert.Nil(fx.registries.NonFungible.SafeTransferFrom(
		utCtx, fx.nonFungible, user, user, target, itemID, nil, nil,
	))
	assert.Nil(fx.registries.MultiToken.SafeTransferFrom(
		utCtx, fx.multiToken, user, user, target, itemID, big.NewInt(5), nil, nil,
	))
	assert.Nil(fx.registries.LegacyMarket.Transfer(utCtx, fx.legacyMarket, user, target, itemID, nil))
}

// withdrawAllRequests withdraw every asset deposited by depositAll
func (fx custodyFixture) withdrawAllRequests(itemID *big.Int) []models.WithdrawalRequest {
	return []models.WithdrawalRequest{
		{TokenType: models.TokenTypeETH, Amount: big.NewInt(500)},
		{TokenType: models.TokenTypeFungible, Token: fx.fungible, Amount: big.NewInt(50)},
		{TokenType: models.TokenTypeNonFungible, Token: fx.nonFungible, TokenID: itemID},
		{TokenType: models.TokenTypeMultiToken, Token: fx.multiToken, TokenID: itemID, Amount: big.NewInt(5)},
		{TokenType: models.TokenTypeLegacyMarket, Token: fx.legacyMarket, TokenID: itemID},
	}
}

// holdings snapshot of the assets of one account
type holdings struct {
	eth          int64
	fungible     int64
	nonFungible  common.Address
	multiToken   int64
	legacyMarket common.Address
}

func (fx custodyFixture) holdingsOf(
	t *testing.T, utCtx context.Context, holder common.Address, itemID *big.Int,
) holdings {
	assert := assert.New(t)
	var result holdings

	eth, err := fx.ledger.BalanceOf(utCtx, holder, nil)
	assert.Nil(err)
	result.eth = eth.Int64()
	fungible, err := fx.registries.Fungible.BalanceOf(utCtx, fx.fungible, holder, nil)
	assert.Nil(err)
	result.fungible = fungible.Int64()
	multi, err := fx.registries.MultiToken.BalanceOf(utCtx, fx.multiToken, holder, itemID, nil)
	assert.Nil(err)
	result.multiToken = multi.Int64()
	result.nonFungible, err = fx.registries.NonFungible.OwnerOf(utCtx, fx.nonFungible, itemID, nil)
	assert.Nil(err)
	result.legacyMarket, err = fx.registries.LegacyMarket.OwnerOf(utCtx, fx.legacyMarket, itemID, nil)
	assert.Nil(err)

	return result
}

func (fx custodyFixture) vaultEvents(
	t *testing.T, utCtx context.Context, target common.Address, eventType models.LedgerEventTypeENUMType,
) []models.LedgerEvent {
	emitter := models.NormalizeAddress(target)
	events, err := fx.ledger.ListEvents(utCtx, db.LedgerEventQueryFilter{
		EventTypes: []models.LedgerEventTypeENUMType{eventType}, Emitter: &emitter,
	})
	assert.Nil(t, err)
	return events
}

func TestVaultInitialize(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	fx := prepareFixture(t, utCtx)

	// The implementation can never be initialized
	err := fx.vaults.Initialize(utCtx, fx.vaultImpl, fx.userA, fx.keyRegistry, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrAlreadyInitialized)

	// Nor can a vault be re-initialized
	err = fx.vaults.Initialize(utCtx, fx.vaultA, fx.userA, fx.keyRegistry, big.NewInt(2), nil)
	assert.ErrorIs(err, models.ErrAlreadyInitialized)
	keyRef, err := fx.vaults.At(fx.vaultA).KeyReference(utCtx, nil)
	assert.Nil(err)
	assert.Equal(int64(1), keyRef.KeyID.Int64())

	err = fx.vaults.Initialize(utCtx, fx.userA, fx.userA, fx.keyRegistry, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrInvalidRequest)

	// Clones are only made of an implementation
	_, err = fx.vaults.Clone(utCtx, fx.userA, fx.vaultA, nil)
	assert.ErrorIs(err, models.ErrInvalidRequest)

	// A clone initialized outside a factory
	standalone, err := fx.vaults.Clone(utCtx, fx.userA, fx.vaultImpl, nil)
	assert.Nil(err)
	assert.Nil(fx.vaults.Initialize(utCtx, standalone, fx.userA, fx.keyRegistry, big.NewInt(1), nil))
	owner, err := fx.vaults.At(standalone).KeyOwner(utCtx, nil)
	assert.Nil(err)
	assert.Equal(fx.userA, owner)
	assert.Len(fx.vaultEvents(t, utCtx, standalone, models.LedgerEventTypeInitialized), 1)

	unlockTime, err := fx.vaults.At(fx.vaultA).UnlockTime(utCtx, nil)
	assert.Nil(err)
	assert.Equal(int64(0), unlockTime)
}

func TestVaultDeposits(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	fx := prepareFixture(t, utCtx)

	// A key can not be deposited into its own vault
	err := fx.registries.NonFungible.SafeTransferFrom(
		utCtx, fx.keyRegistry, fx.userA, fx.userA, fx.vaultA, big.NewInt(1), nil, nil,
	)
	assert.ErrorIs(err, models.ErrSelfKeyDeposit)
	keyHolder, err := fx.registries.NonFungible.OwnerOf(utCtx, fx.keyRegistry, big.NewInt(1), nil)
	assert.Nil(err)
	assert.Equal(fx.userA, keyHolder)

	// Another vault's key is fine
	assert.Nil(fx.registries.NonFungible.SafeTransferFrom(
		utCtx, fx.keyRegistry, fx.userB, fx.userB, fx.vaultA, big.NewInt(2), nil, nil,
	))
	keyHolder, err = fx.registries.NonFungible.OwnerOf(utCtx, fx.keyRegistry, big.NewInt(2), nil)
	assert.Nil(err)
	assert.Equal(fx.vaultA, keyHolder)

	// Deposits by the key holder, and by anyone else
	fx.depositAll(t, utCtx, fx.userA, fx.vaultA, big.NewInt(1))
	fx.depositAll(t, utCtx, fx.userB, fx.vaultA, big.NewInt(2))

	inVault := fx.holdingsOf(t, utCtx, fx.vaultA, big.NewInt(1))
	assert.Equal(int64(1000), inVault.eth)
	assert.Equal(int64(100), inVault.fungible)
	assert.Equal(fx.vaultA, inVault.nonFungible)
	assert.Equal(int64(5), inVault.multiToken)
	assert.Equal(fx.vaultA, inVault.legacyMarket)

	inVault = fx.holdingsOf(t, utCtx, fx.vaultA, big.NewInt(2))
	assert.Equal(fx.vaultA, inVault.nonFungible)
	assert.Equal(int64(5), inVault.multiToken)
	assert.Equal(fx.vaultA, inVault.legacyMarket)

	// Batched multi-token deposits
	assert.Nil(fx.registries.MultiToken.SafeBatchTransferFrom(
		utCtx,
		fx.multiToken,
		fx.userA,
		fx.userA,
		fx.vaultB,
		[]*big.Int{big.NewInt(1)},
		[]*big.Int{big.NewInt(2)},
		nil,
		nil,
	))
	multi, err := fx.registries.MultiToken.BalanceOf(utCtx, fx.multiToken, fx.vaultB, big.NewInt(1), nil)
	assert.Nil(err)
	assert.Equal(int64(2), multi.Int64())
}

func TestVaultWithdraw(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	fx := prepareFixture(t, utCtx)
	itemID := big.NewInt(1)
	fx.depositAll(t, utCtx, fx.userA, fx.vaultA, itemID)
	uut := fx.vaults.At(fx.vaultA)

	// Only the key holder
	err := uut.WithdrawETH(utCtx, fx.userB, fx.userB, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	err = uut.WithdrawFungible(utCtx, fx.userB, fx.fungible, fx.userB, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	err = uut.WithdrawNonFungible(utCtx, fx.userB, fx.nonFungible, itemID, fx.userB, nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	err = uut.WithdrawMultiToken(utCtx, fx.userB, fx.multiToken, itemID, fx.userB, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	err = uut.WithdrawLegacyMarketToken(utCtx, fx.userB, fx.legacyMarket, itemID, fx.userB, nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	// Even when the request itself is malformed
	err = uut.WithdrawETH(utCtx, fx.userB, fx.userB, nil, nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	err = uut.WithdrawETH(utCtx, fx.userA, fx.userA, nil, nil)
	assert.ErrorIs(err, models.ErrInvalidRequest)

	// More than the vault holds
	err = uut.WithdrawETH(utCtx, fx.userA, fx.userA, big.NewInt(501), nil)
	assert.ErrorIs(err, models.ErrTransferFailed)
	err = uut.WithdrawFungible(utCtx, fx.userA, fx.fungible, fx.userA, big.NewInt(51), nil)
	assert.ErrorIs(err, models.ErrTransferFailed)
	err = uut.WithdrawNonFungible(utCtx, fx.userA, fx.nonFungible, big.NewInt(2), fx.userA, nil)
	assert.ErrorIs(err, models.ErrTransferFailed)

	// A registry of the wrong type
	err = uut.WithdrawFungible(utCtx, fx.userA, fx.legacyMarket, fx.userA, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrTransferFailed)
	assert.Empty(fx.vaultEvents(t, utCtx, fx.vaultA, models.LedgerEventTypeWithdrawFungible))

	// To self
	assert.Nil(uut.WithdrawETH(utCtx, fx.userA, fx.userA, big.NewInt(200), nil))
	assert.Nil(uut.WithdrawFungible(utCtx, fx.userA, fx.fungible, fx.userA, big.NewInt(20), nil))
	assert.Nil(uut.WithdrawMultiToken(
		utCtx, fx.userA, fx.multiToken, itemID, fx.userA, big.NewInt(2), nil,
	))
	assert.Nil(uut.WithdrawNonFungible(utCtx, fx.userA, fx.nonFungible, itemID, fx.userA, nil))

	withdrawals := fx.vaultEvents(t, utCtx, fx.vaultA, models.LedgerEventTypeWithdrawETH)
	assert.Len(withdrawals, 1)
	var ethEvent models.WithdrawETHEvent
	assert.Nil(json.Unmarshal(withdrawals[0].Metadata, &ethEvent))
	assert.Equal(models.NormalizeAddress(fx.userA), ethEvent.Caller)
	assert.Equal(models.NormalizeAddress(fx.userA), ethEvent.To)
	assert.Equal("200", ethEvent.Amount)

	// To others, including another vault
	assert.Nil(uut.WithdrawETH(utCtx, fx.userA, fx.userB, big.NewInt(300), nil))
	assert.Nil(uut.WithdrawFungible(utCtx, fx.userA, fx.fungible, fx.vaultB, big.NewInt(30), nil))
	assert.Nil(uut.WithdrawMultiToken(
		utCtx, fx.userA, fx.multiToken, itemID, fx.vaultB, big.NewInt(3), nil,
	))
	assert.Nil(uut.WithdrawLegacyMarketToken(utCtx, fx.userA, fx.legacyMarket, itemID, fx.userB, nil))

	withdrawals = fx.vaultEvents(t, utCtx, fx.vaultA, models.LedgerEventTypeWithdrawLegacyMarket)
	assert.Len(withdrawals, 1)
	var legacyEvent models.WithdrawLegacyMarketEvent
	assert.Nil(json.Unmarshal(withdrawals[0].Metadata, &legacyEvent))
	assert.Equal(models.NormalizeAddress(fx.userA), legacyEvent.Caller)
	assert.Equal(models.NormalizeAddress(fx.legacyMarket), legacyEvent.Token)
	assert.Equal("1", legacyEvent.TokenID)
	assert.Equal(models.NormalizeAddress(fx.userB), legacyEvent.To)

	inVault := fx.holdingsOf(t, utCtx, fx.vaultA, itemID)
	assert.Equal(int64(0), inVault.eth)
	assert.Equal(int64(0), inVault.fungible)
	assert.Equal(int64(0), inVault.multiToken)
	assert.Equal(fx.userA, inVault.nonFungible)
	assert.Equal(fx.userB, inVault.legacyMarket)

	inVaultB := fx.holdingsOf(t, utCtx, fx.vaultB, itemID)
	assert.Equal(int64(30), inVaultB.fungible)
	assert.Equal(int64(3), inVaultB.multiToken)

	userB := fx.holdingsOf(t, utCtx, fx.userB, itemID)
	assert.Equal(int64(1300), userB.eth)
}

func TestVaultKeyTransfer(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	fx := prepareFixture(t, utCtx)
	itemID := big.NewInt(1)
	fx.depositAll(t, utCtx, fx.userA, fx.vaultA, itemID)
	uut := fx.vaults.At(fx.vaultA)

	// Authority follows the key
	assert.Nil(fx.registries.NonFungible.TransferFrom(
		utCtx, fx.keyRegistry, fx.userA, fx.userA, fx.userB, big.NewInt(1), nil,
	))
	owner, err := uut.KeyOwner(utCtx, nil)
	assert.Nil(err)
	assert.Equal(fx.userB, owner)

	err = uut.WithdrawETH(utCtx, fx.userA, fx.userA, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	err = uut.Timelock(utCtx, fx.userA, fx.clock.Now().Unix()+oneYear, "", nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)

	assert.Nil(uut.WithdrawMultiple(utCtx, fx.userB, fx.withdrawAllRequests(itemID), fx.userB, nil))
	inVault := fx.holdingsOf(t, utCtx, fx.vaultA, itemID)
	assert.Equal(int64(0), inVault.eth)
	assert.Equal(fx.userB, inVault.nonFungible)
	assert.Equal(fx.userB, inVault.legacyMarket)
}

func TestVaultWithdrawMultiple(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	fx := prepareFixture(t, utCtx)
	itemID := big.NewInt(1)
	fx.depositAll(t, utCtx, fx.userA, fx.vaultA, itemID)
	uut := fx.vaults.At(fx.vaultA)

	err := uut.WithdrawMultiple(utCtx, fx.userB, fx.withdrawAllRequests(itemID), fx.userB, nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)

	err = uut.WithdrawMultiple(utCtx, fx.userB, []models.WithdrawalRequest{
		{TokenType: "BOND", Token: fx.nonFungible, Amount: big.NewInt(1)},
	}, fx.userB, nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)

	// Malformed requests are rejected before anything moves
	err = uut.WithdrawMultiple(utCtx, fx.userA, []models.WithdrawalRequest{
		{TokenType: models.TokenTypeNonFungible, Token: fx.nonFungible},
	}, fx.userA, nil)
	assert.ErrorIs(err, models.ErrInvalidRequest)
	err = uut.WithdrawMultiple(utCtx, fx.userA, []models.WithdrawalRequest{
		{TokenType: "BOND", Token: fx.nonFungible, Amount: big.NewInt(1)},
	}, fx.userA, nil)
	assert.ErrorIs(err, models.ErrInvalidRequest)

	// One failure reverts the whole batch
	failing := append(fx.withdrawAllRequests(itemID), models.WithdrawalRequest{
		TokenType: models.TokenTypeFungible, Token: fx.fungible, Amount: big.NewInt(1),
	})
	err = uut.WithdrawMultiple(utCtx, fx.userA, failing, fx.userA, nil)
	assert.ErrorIs(err, models.ErrTransferFailed)

	inVault := fx.holdingsOf(t, utCtx, fx.vaultA, itemID)
	assert.Equal(int64(500), inVault.eth)
	assert.Equal(int64(50), inVault.fungible)
	assert.Equal(fx.vaultA, inVault.nonFungible)
	assert.Equal(int64(5), inVault.multiToken)
	assert.Equal(fx.vaultA, inVault.legacyMarket)
	assert.Empty(fx.vaultEvents(t, utCtx, fx.vaultA, models.LedgerEventTypeWithdrawETH))

	assert.Nil(uut.WithdrawMultiple(utCtx, fx.userA, fx.withdrawAllRequests(itemID), fx.userA, nil))

	inVault = fx.holdingsOf(t, utCtx, fx.vaultA, itemID)
	assert.Equal(int64(0), inVault.eth)
	assert.Equal(int64(0), inVault.fungible)
	assert.Equal(fx.userA, inVault.nonFungible)
	assert.Equal(int64(0), inVault.multiToken)
	assert.Equal(fx.userA, inVault.legacyMarket)

	userA := fx.holdingsOf(t, utCtx, fx.userA, itemID)
	assert.Equal(int64(1000), userA.eth)
	assert.Equal(int64(100), userA.fungible)
	assert.Equal(int64(10), userA.multiToken)

	for _, eventType := range []models.LedgerEventTypeENUMType{
		models.LedgerEventTypeWithdrawETH,
		models.LedgerEventTypeWithdrawFungible,
		models.LedgerEventTypeWithdrawNonFungible,
		models.LedgerEventTypeWithdrawMultiToken,
		models.LedgerEventTypeWithdrawLegacyMarket,
	} {
		assert.Len(fx.vaultEvents(t, utCtx, fx.vaultA, eventType), 1, eventType)
	}
}

func TestVaultTimelock(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	fx := prepareFixture(t, utCtx)
	itemID := big.NewInt(1)
	fx.depositAll(t, utCtx, fx.userA, fx.vaultA, itemID)
	uut := fx.vaults.At(fx.vaultA)

	unlockTime, err := uut.UnlockTime(utCtx, nil)
	assert.Nil(err)
	assert.Equal(int64(0), unlockTime)

	target := fx.clock.Now().Unix() + oneYear

	err = uut.Timelock(utCtx, fx.userB, target, "not mine", nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	err = uut.Timelock(utCtx, fx.userB, 0, "", nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)
	err = uut.Timelock(utCtx, fx.userA, 0, "", nil)
	assert.ErrorIs(err, models.ErrInvalidRequest)

	assert.Nil(uut.Timelock(utCtx, fx.userA, target, "see you next year", nil))
	unlockTime, err = uut.UnlockTime(utCtx, nil)
	assert.Nil(err)
	assert.Equal(target, unlockTime)

	locks := fx.vaultEvents(t, utCtx, fx.vaultA, models.LedgerEventTypeLockVault)
	assert.Len(locks, 1)
	var lockEvent models.LockVaultEvent
	assert.Nil(json.Unmarshal(locks[0].Metadata, &lockEvent))
	assert.Equal(target, lockEvent.UnlockTimestamp)
	assert.Equal("see you next year", lockEvent.Note)

	// The lock can not be changed
	err = uut.Timelock(utCtx, fx.userA, target+1, "", nil)
	assert.ErrorIs(err, models.ErrAlreadyLocked)
	err = uut.Timelock(utCtx, fx.userA, target-1, "", nil)
	assert.ErrorIs(err, models.ErrAlreadyLocked)

	// Every withdrawal is blocked
	err = uut.WithdrawETH(utCtx, fx.userA, fx.userA, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrVaultLocked)
	err = uut.WithdrawFungible(utCtx, fx.userA, fx.fungible, fx.userA, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrVaultLocked)
	err = uut.WithdrawNonFungible(utCtx, fx.userA, fx.nonFungible, itemID, fx.userA, nil)
	assert.ErrorIs(err, models.ErrVaultLocked)
	err = uut.WithdrawMultiToken(utCtx, fx.userA, fx.multiToken, itemID, fx.userA, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrVaultLocked)
	err = uut.WithdrawLegacyMarketToken(utCtx, fx.userA, fx.legacyMarket, itemID, fx.userA, nil)
	assert.ErrorIs(err, models.ErrVaultLocked)
	err = uut.WithdrawMultiple(utCtx, fx.userA, fx.withdrawAllRequests(itemID), fx.userA, nil)
	assert.ErrorIs(err, models.ErrVaultLocked)

	// Deposits are still accepted
	assert.Nil(fx.ledger.SendValue(utCtx, fx.userB, fx.vaultA, big.NewInt(100), nil))

	// Other vaults are unaffected
	fx.depositAll(t, utCtx, fx.userB, fx.vaultB, big.NewInt(2))
	assert.Nil(fx.vaults.At(fx.vaultB).WithdrawETH(utCtx, fx.userB, fx.userB, big.NewInt(1), nil))

	fx.clock.Set(time.Unix(target-1, 0))
	err = uut.WithdrawETH(utCtx, fx.userA, fx.userA, big.NewInt(1), nil)
	assert.ErrorIs(err, models.ErrVaultLocked)

	// Withdrawals resume at the unlock time
	fx.clock.Set(time.Unix(target, 0))
	assert.Nil(uut.WithdrawMultiple(utCtx, fx.userA, fx.withdrawAllRequests(itemID), fx.userA, nil))
	assert.Nil(uut.WithdrawETH(utCtx, fx.userA, fx.userA, big.NewInt(100), nil))

	// The lock is single use
	err = uut.Timelock(utCtx, fx.userA, target+oneYear, "", nil)
	assert.ErrorIs(err, models.ErrAlreadyLocked)
}

func TestVaultRecoverKey(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	utCtx := context.Background()

	fx := prepareFixture(t, utCtx)
	uut := fx.vaults.At(fx.vaultA)

	// The vault does not hold its key
	err := uut.RecoverKey(utCtx, fx.vaultTeam, nil)
	assert.ErrorIs(err, models.ErrNotRecoverable)
	// Non-administrators learn the same
	err = uut.RecoverKey(utCtx, fx.userB, nil)
	assert.ErrorIs(err, models.ErrNotRecoverable)

	// Plain transfers skip the receipt check, stranding the key
	assert.Nil(fx.registries.NonFungible.TransferFrom(
		utCtx, fx.keyRegistry, fx.userA, fx.userA, fx.vaultA, big.NewInt(1), nil,
	))
	err = uut.WithdrawETH(utCtx, fx.userA, fx.userA, big.NewInt(0), nil)
	assert.ErrorIs(err, models.ErrNotAuthorized)

	err = uut.RecoverKey(utCtx, fx.userA, nil)
	assert.ErrorIs(err, models.ErrNotAdministrator)

	assert.Nil(uut.RecoverKey(utCtx, fx.vaultTeam, nil))
	keyHolder, err := fx.registries.NonFungible.OwnerOf(utCtx, fx.keyRegistry, big.NewInt(1), nil)
	assert.Nil(err)
	assert.Equal(fx.vaultTeam, keyHolder)

	recovered := fx.vaultEvents(t, utCtx, fx.vaultA, models.LedgerEventTypeRecoverKey)
	assert.Len(recovered, 1)
	var recoverEvent models.RecoverKeyEvent
	assert.Nil(json.Unmarshal(recovered[0].Metadata, &recoverEvent))
	assert.Equal(models.NormalizeAddress(fx.vaultTeam), recoverEvent.Administrator)
	assert.Equal(models.NormalizeAddress(fx.keyRegistry), recoverEvent.KeyRegistry)
	assert.Equal("1", recoverEvent.KeyID)

	// The administrator follows factory ownership
	assert.Nil(fx.registries.NonFungible.TransferFrom(
		utCtx, fx.keyRegistry, fx.vaultTeam, fx.vaultTeam, fx.vaultA, big.NewInt(1), nil,
	))
	assert.Nil(fx.factories.At(fx.factory).TransferOwnership(utCtx, fx.vaultTeam, fx.userB, nil))
	err = uut.RecoverKey(utCtx, fx.vaultTeam, nil)
	assert.ErrorIs(err, models.ErrNotAdministrator)
	assert.Nil(uut.RecoverKey(utCtx, fx.userB, nil))

	// Vaults outside a factory have no administrator
	standalone, err := fx.vaults.Clone(utCtx, fx.userA, fx.vaultImpl, nil)
	assert.Nil(err)
	assert.Nil(fx.vaults.Initialize(utCtx, standalone, fx.userA, fx.keyRegistry, big.NewInt(2), nil))
	err = fx.vaults.At(standalone).RecoverKey(utCtx, fx.userA, nil)
	assert.ErrorIs(err, models.ErrNotRecoverable)
}
