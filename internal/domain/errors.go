package domain

import "errors"

var (
	// ErrInvalidHolding amount/avg price must be positive finite numbers
	ErrInvalidHolding = errors.New("invalid holding")

	// ErrUnknownSymbol symbol is not part of the tradable universe
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrInvalidInterval kline interval not supported by the exchange
	ErrInvalidInterval = errors.New("invalid kline interval")

	// ErrNotFound record does not exist
	ErrNotFound = errors.New("not found")
)
