package domain

import "errors"

// Setup errors - fatal during startup
var (
	// ErrLocalPathMissing indicates the local sync directory does not exist
	ErrLocalPathMissing = errors.New("local path does not exist")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrWatchInit indicates the filesystem watch could not be established
	ErrWatchInit = errors.New("failed to initialize filesystem watch")
)

// Engine errors - external engine invocation errors
var (
	// ErrEngineFailure indicates the external engine exited nonzero
	ErrEngineFailure = errors.New("engine command failed")

	// ErrMalformedListing indicates the listing output could not be parsed
	ErrMalformedListing = errors.New("malformed listing output")
)

// Coordination errors
var (
	// ErrNoDirection indicates a sync cycle was entered with no dirty flag set
	ErrNoDirection = errors.New("no sync direction decidable")

	// ErrSyncInProgress indicates another instance is already syncing this pair
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrDaemonNotRunning indicates no running daemon was found
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file or parameters are malformed
	ErrConfigInvalid = errors.New("invalid config")
)
