package models

import "errors"

var (
	// ErrNotKeyHolder caller does not hold the key token at vault creation time
	ErrNotKeyHolder = errors.New("caller does not own the provided vault key")

	// ErrAlreadyRegistered the key token is already associated with a vault
	ErrAlreadyRegistered = errors.New("vault key is already associated with a vault")

	// ErrNotAuthorized caller is not the current key holder
	ErrNotAuthorized = errors.New("caller is not the vault key holder")

	// ErrVaultLocked the vault timelock is blocking
	ErrVaultLocked = errors.New("vault is locked")

	// ErrAlreadyLocked the vault timelock was already set
	ErrAlreadyLocked = errors.New("vault timelock is already set")

	// ErrNotRecoverable key recovery preconditions are not met
	ErrNotRecoverable = errors.New("vault key is not recoverable")

	// ErrTransferFailed an underlying asset transfer was rejected
	ErrTransferFailed = errors.New("asset transfer failed")

	// ErrSelfKeyDeposit the key token can not be deposited into the vault it controls
	ErrSelfKeyDeposit = errors.New("vault key can not be deposited into its own vault")

	// ErrAlreadyInitialized contract is already initialized
	ErrAlreadyInitialized = errors.New("contract is already initialized")

	// ErrNotAdministrator caller is not the factory administrator
	ErrNotAdministrator = errors.New("caller is not the factory administrator")

	// ErrInvalidRequest request parameters are not valid
	ErrInvalidRequest = errors.New("invalid request")
)
