package domain

import "errors"

// Validation errors - rejected synchronously, state is left unchanged
var (
	// ErrValidation is the parent of every input validation failure
	ErrValidation = errors.New("validation failed")

	// ErrIntervalInvalid indicates a non-positive or non-numeric interval value
	ErrIntervalInvalid = errors.New("interval must be greater than zero")

	// ErrIntervalTooSmall indicates the interval normalizes to zero seconds
	ErrIntervalTooSmall = errors.New("interval too small for the chosen unit")

	// ErrUnknownUnit indicates an interval unit that is not seconds, minutes or hours
	ErrUnknownUnit = errors.New("unknown interval unit")

	// ErrEmptySelection indicates no satellite is selected
	ErrEmptySelection = errors.New("no satellites selected")
)

// Catalog errors
var (
	// ErrSatelliteNotFound indicates a name absent from the catalog
	ErrSatelliteNotFound = errors.New("satellite not found")

	// ErrDuplicateName indicates a name already used by another catalog entry
	ErrDuplicateName = errors.New("duplicate satellite name")

	// ErrIndexOutOfRange indicates a catalog position outside the list
	ErrIndexOutOfRange = errors.New("catalog index out of range")
)

// Fetch errors - per satellite, never abort a cycle
var (
	// ErrNetworkError indicates a network-related failure
	ErrNetworkError = errors.New("network error")

	// ErrTimeout indicates the request timed out while connecting or reading
	ErrTimeout = errors.New("operation timed out")
)

// Scheduler errors
var (
	// ErrBusy indicates a fetch cycle is already in flight
	ErrBusy = errors.New("fetch cycle already in progress")

	// ErrAlreadyRunning indicates the automatic schedule is already started
	ErrAlreadyRunning = errors.New("auto-update is already running")

	// ErrNotRunning indicates the automatic schedule is stopped
	ErrNotRunning = errors.New("auto-update is not running")
)

// Config and settings errors
var (
	// ErrConfigInvalid indicates the application config is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrSettingsNotFound indicates no persisted settings exist yet
	ErrSettingsNotFound = errors.New("settings file not found")

	// ErrSettingsInvalid indicates the persisted settings cannot be decoded
	ErrSettingsInvalid = errors.New("invalid settings")

	// ErrOutputMissing indicates the output file does not exist
	ErrOutputMissing = errors.New("output file does not exist")
)

// Output sink errors
var (
	// ErrOutputWrite indicates the merged text could not replace the output file
	ErrOutputWrite = errors.New("output write failed")

	// ErrPermissionDenied indicates the output location is not writable
	ErrPermissionDenied = errors.New("permission denied")

	// ErrOutputNotFile indicates the output path names a directory
	ErrOutputNotFile = errors.New("output path is not a regular file")
)
