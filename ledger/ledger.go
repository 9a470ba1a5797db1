// Package ledger - transactional account ledger backing the custody contracts
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	cgoCrypto "github.com/alwitt/cgoutils/crypto"
	"github.com/alwitt/goutils"
	"github.com/alwitt/keyvault/db"
	"github.com/alwitt/keyvault/models"
	"github.com/apex/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValueReceiver contract code which accepts native value transfers
type ValueReceiver interface {
	/*
		ReceiveValue called after native value is credited to the contract

			@param ctx context.Context - execution context
			@param self common.Address - the receiving contract
			@param from common.Address - the sender
			@param amount *big.Int - value received
			@param dbClient db.Database - active ledger step
	*/
	ReceiveValue(
		ctx context.Context, self, from common.Address, amount *big.Int, dbClient db.Database,
	) error
}

// Ledger transactional account ledger
//
// Every mutating entry point is one atomic step: a single DB transaction. Steps are
// serialized, and a step which fails leaves no trace.
type Ledger interface {
	db.Client

	// Clock the ledger clock
	Clock() Clock

	/*
		BindCode bind the code executing for all contract accounts of one kind

			@param kind models.AccountKindENUMType - account kind
			@param code interface{} - the code
	*/
	BindCode(kind models.AccountKindENUMType, code interface{})

	/*
		CodeAt fetch the code executing at an account

			@param ctx context.Context - execution context
			@param address common.Address - account address
			@param dbClient db.Database - active ledger step
			@returns the code, or nil for an external account; and the account entry
	*/
	CodeAt(
		ctx context.Context, address common.Address, dbClient db.Database,
	) (interface{}, models.Account, error)

	/*
		NewExternalAccount define a new external account at a random address

			@param ctx context.Context - execution context
			@param label string - human readable label
			@param activeDBClient db.Database - existing ledger step
			@returns the account address
	*/
	NewExternalAccount(
		ctx context.Context, label string, activeDBClient db.Database,
	) (common.Address, error)

	/*
		DeployContract define a new contract account at the address derived from the
		deployer and its nonce

			@param ctx context.Context - execution context
			@param params DeployParams - deployment parameters
			@param activeDBClient db.Database - existing ledger step
			@returns the account address
	*/
	DeployContract(
		ctx context.Context, params DeployParams, activeDBClient db.Database,
	) (common.Address, error)

	/*
		GetAccount fetch one account

			@param ctx context.Context - execution context
			@param address common.Address - account address
			@param activeDBClient db.Database - existing ledger step
			@returns the account entry
	*/
	GetAccount(
		ctx context.Context, address common.Address, activeDBClient db.Database,
	) (models.Account, error)

	/*
		BalanceOf fetch the native value balance of an account; unknown accounts hold zero

			@param ctx context.Context - execution context
			@param address common.Address - account address
			@param activeDBClient db.Database - existing ledger step
			@returns the balance
	*/
	BalanceOf(
		ctx context.Context, address common.Address, activeDBClient db.Database,
	) (*big.Int, error)

	/*
		Mint credit new native value to an account

			@param ctx context.Context - execution context
			@param to common.Address - receiving account
			@param amount *big.Int - value to credit
			@param activeDBClient db.Database - existing ledger step
	*/
	Mint(
		ctx context.Context, to common.Address, amount *big.Int, activeDBClient db.Database,
	) error

	/*
		SendValue move native value between accounts. Contract recipients must accept it.

			@param ctx context.Context - execution context
			@param from common.Address - sending account
			@param to common.Address - receiving account
			@param amount *big.Int - value to move
			@param activeDBClient db.Database - existing ledger step
	*/
	SendValue(
		ctx context.Context,
		from, to common.Address,
		amount *big.Int,
		activeDBClient db.Database,
	) error

	/*
		Emit record an event for the current ledger step

			@param ctx context.Context - execution context
			@param emitter common.Address - emitting account
			@param eventType models.LedgerEventTypeENUMType - event type
			@param metadata interface{} - event arguments
			@param dbClient db.Database - active ledger step
	*/
	Emit(
		ctx context.Context,
		emitter common.Address,
		eventType models.LedgerEventTypeENUMType,
		metadata interface{},
		dbClient db.Database,
	) error

	/*
		ListEvents list recorded events

			@param ctx context.Context - execution context
			@param filters db.LedgerEventQueryFilter - event filter
			@returns list of events
	*/
	ListEvents(
		ctx context.Context, filters db.LedgerEventQueryFilter,
	) ([]models.LedgerEvent, error)
}

// DeployParams contract deployment parameters
type DeployParams struct {
	// Deployer the deploying account
	Deployer common.Address `validate:"-"`
	// Kind contract kind
	Kind models.AccountKindENUMType `validate:"required,account_kind"`
	// Label human readable label
	Label string
	// Implementation for clones, the account holding the shared logic
	Implementation *common.Address `validate:"-"`
}

// Params ledger parameters
type Params struct {
	// Persistence the DB client
	Persistence db.Client `validate:"required"`
	// Clock ledger clock; defaults to the system clock
	Clock Clock `validate:"-"`
}

// ledgerImpl implements Ledger
type ledgerImpl struct {
	goutils.Component
	persistence db.Client
	clock       Clock
	validator   *validator.Validate
	rng         cgoCrypto.Engine

	// stepLock serializes ledger steps
	stepLock sync.RWMutex

	codeLock sync.RWMutex
	code     map[models.AccountKindENUMType]interface{}
}

/*
NewLedger define a new ledger

	@param ctx context.Context - execution context
	@param params Params - ledger parameters
	@returns new ledger
*/
func NewLedger(_ context.Context, params Params) (Ledger, error) {
	validate := validator.New()
	if err := models.RegisterWithValidator(validate); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}
	if err := validate.Struct(&params); err != nil {
		return nil, fmt.Errorf("ledger parameters not valid [%w]", err)
	}

	engine, err := cgoCrypto.NewEngine(log.Fields{
		"package": "cgoutils", "module": "crypto", "component": "crypto-engine",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare RNG [%w]", err)
	}

	clock := params.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	logTags := log.Fields{"package": "keyvault", "module": "ledger", "component": "ledger"}

	return &ledgerImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		persistence: params.Persistence,
		clock:       clock,
		validator:   validate,
		rng:         engine,
		code:        make(map[models.AccountKindENUMType]interface{}),
	}, nil
}

func (l *ledgerImpl) Clock() Clock {
	return l.clock
}

// ======================================================================================
// Ledger steps

type txIDKey struct{}

// TxIDFromContext fetch the ID of the ledger step running under a context
func TxIDFromContext(ctx context.Context) (string, bool) {
	txID, ok := ctx.Value(txIDKey{}).(string)
	return txID, ok
}

// withTxID attach a new ledger step ID to the context if it does not carry one
func withTxID(ctx context.Context) context.Context {
	if _, ok := TxIDFromContext(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, txIDKey{}, uuid.NewString())
}

/*
RunSQLInTransaction execute SQL calls within one ledger step

	@param ctx context.Context - execution context
	@param coreLogic func(ctx context.Context, tx *gorm.DB) error - the callback to execute
*/
func (l *ledgerImpl) RunSQLInTransaction(
	ctx context.Context, coreLogic func(ctx context.Context, tx *gorm.DB) error,
) error {
	l.stepLock.Lock()
	defer l.stepLock.Unlock()
	return l.persistence.RunSQLInTransaction(withTxID(ctx), coreLogic)
}

/*
UseDatabase utilize a `Database` instance for reads

	@param ctx context.Context - execution context
	@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
*/
func (l *ledgerImpl) UseDatabase(
	ctx context.Context, coreLogic func(ctx context.Context, dbClient db.Database) error,
) error {
	l.stepLock.RLock()
	defer l.stepLock.RUnlock()
	return l.persistence.UseDatabase(ctx, coreLogic)
}

/*
UseDatabaseInTransaction utilize a `Database` instance within one ledger step

	@param ctx context.Context - execution context
	@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
*/
func (l *ledgerImpl) UseDatabaseInTransaction(
	ctx context.Context, coreLogic func(ctx context.Context, dbClient db.Database) error,
) error {
	l.stepLock.Lock()
	defer l.stepLock.Unlock()
	ctx = withTxID(ctx)
	err := l.persistence.UseDatabaseInTransaction(ctx, coreLogic)
	if err != nil {
		txID, _ := TxIDFromContext(ctx)
		log.
			WithError(err).
			WithFields(l.GetLogTagsForContext(ctx)).
			WithField("tx-id", txID).
			Debug("Ledger step reverted")
	}
	return err
}

// ======================================================================================
// Code

func (l *ledgerImpl) BindCode(kind models.AccountKindENUMType, code interface{}) {
	l.codeLock.Lock()
	defer l.codeLock.Unlock()
	l.code[kind] = code
}

func (l *ledgerImpl) CodeAt(
	ctx context.Context, address common.Address, dbClient db.Database,
) (interface{}, models.Account, error) {
	account, err := dbClient.GetAccount(ctx, models.NormalizeAddress(address))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.Account{}, err
		}
		// Unknown addresses are external accounts which were never funded
		return nil, models.Account{
			Address: models.NormalizeAddress(address), Kind: models.AccountKindExternal, Balance: "0",
		}, nil
	}
	if !account.IsContract() {
		return nil, account, nil
	}

	l.codeLock.RLock()
	defer l.codeLock.RUnlock()
	code, ok := l.code[account.Kind]
	if !ok {
		return nil, account, fmt.Errorf("no code bound for '%s' account %s", account.Kind, address)
	}
	return code, account, nil
}

// ======================================================================================
// Events

func (l *ledgerImpl) Emit(
	ctx context.Context,
	emitter common.Address,
	eventType models.LedgerEventTypeENUMType,
	metadata interface{},
	dbClient db.Database,
) error {
	txID, ok := TxIDFromContext(ctx)
	if !ok {
		return fmt.Errorf("'%s' event emitted outside of a ledger step", eventType)
	}
	_, err := dbClient.RecordLedgerEvent(ctx, db.NewLedgerEvent{
		TxID:      txID,
		Emitter:   models.NormalizeAddress(emitter),
		EventType: eventType,
		Metadata:  metadata,
	})
	if err != nil {
		return err
	}
	log.
		WithFields(l.GetLogTagsForContext(ctx)).
		WithField("tx-id", txID).
		WithField("emitter", emitter.Hex()).
		Debugf("Emitted '%s'", eventType)
	return nil
}

func (l *ledgerImpl) ListEvents(
	ctx context.Context, filters db.LedgerEventQueryFilter,
) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	err := l.UseDatabase(ctx, func(ctx context.Context, dbClient db.Database) error {
		var err error
		events, err = dbClient.ListLedgerEvents(ctx, filters)
		return err
	})
	return events, err
}
