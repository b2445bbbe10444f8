package domain

import "errors"

var (
	// ErrNetworkFailure is returned when a remote request fails at the transport level
	ErrNetworkFailure = errors.New("network failure")

	// ErrNonSuccessStatus is returned when a remote service answers with a non-200 status
	ErrNonSuccessStatus = errors.New("remote returned non-success status")

	// ErrParseFailure is returned when a response envelope or record cannot be decoded
	ErrParseFailure = errors.New("response parsing failed")

	// ErrNoRecords is returned when a lookup query matched nothing
	ErrNoRecords = errors.New("no records found")

	// ErrIO is returned when reading or writing export files fails
	ErrIO = errors.New("export file i/o failed")

	// ErrCacheMiss is returned when no cached export matches a keyword
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
)
