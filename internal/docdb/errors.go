package docdb

import "errors"

// Configuration errors.
var (
	ErrNoDatabase        = errors.New("docdb: database name is required")
	ErrNoURLs            = errors.New("docdb: at least one url is required")
	ErrUnsupportedScheme = errors.New("docdb: unsupported url scheme")
	ErrCertificateClosed = errors.New("docdb: certificate has been closed")
)

// Engine errors.
var (
	ErrStoreClosed      = errors.New("docdb: document store is closed")
	ErrSessionClosed    = errors.New("docdb: session is closed")
	ErrIndexNotFound    = errors.New("docdb: index not found")
	ErrIndexRequired    = errors.New("docdb: filtering requires an index")
	ErrUnknownField     = errors.New("docdb: field is not part of the index")
	ErrMultipleResults  = errors.New("docdb: query returned more than one result")
	ErrNonUniqueObject  = errors.New("docdb: a different object with the same id is already tracked")
	ErrIndexWaitTimeout = errors.New("docdb: timed out waiting for indexing")
	ErrInvalidIndex     = errors.New("docdb: invalid index definition")
	ErrIndexBuildFailed = errors.New("docdb: building index failed")
)
