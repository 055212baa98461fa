package domain

import "errors"

var (
	// ErrCartNotFound is returned when a cart does not exist in storage
	ErrCartNotFound = errors.New("cart not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrExtractionFailure is returned when the extraction API request fails
	ErrExtractionFailure = errors.New("receipt extraction request failed")

	// ErrStorageFailure is returned when a cart storage operation fails
	ErrStorageFailure = errors.New("cart storage operation failed")
)
