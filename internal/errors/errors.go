package errors

import "errors"

// Configuration errors. These are programmer errors and halt startup.
var (
	ErrMissingDatabase                 = errors.New("a database name is required")
	ErrMissingURLs                     = errors.New("at least one database url is required")
	ErrConfigurationStoreNotRegistered = errors.New("configuration store must be registered before its cache")
)

// Argument errors.
var (
	ErrNilNames      = errors.New("names must not be nil")
	ErrEmptyFilter   = errors.New("grant filter must set at least one field")
	ErrNilGrant      = errors.New("grant must not be nil")
	ErrNilDeviceCode = errors.New("device code data must not be nil")

	ErrInvalidSigningAlgorithm = errors.New("signing algorithm must be non-blank without commas or surrounding spaces")
)

// Conflict errors.
var (
	ErrDeviceCodeExists = errors.New("device code already exists")
	ErrUserCodeExists   = errors.New("user code already exists")
)

// Mutation errors.
var (
	ErrDeviceCodeNotFound = errors.New("could not update device code")
)
