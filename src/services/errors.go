package services

import "errors"

var (
	// ErrInsufficientBalance rejects a disposal larger than the held amount.
	// Local to one transaction; the balance row is left untouched.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateTransaction marks an ingestion candidate whose
	// (hash, chain) pair is already stored. Idempotent callers treat it as
	// a no-op success.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrUnknownAccountOrAsset is an integrity failure on the referenced
	// wallet, cex account or token.
	ErrUnknownAccountOrAsset = errors.New("unknown account or asset")

	// ErrUnsupportedTransactionKind cannot occur while the kind taxonomy is
	// exhaustive; it is surfaced loudly rather than swallowed.
	ErrUnsupportedTransactionKind = errors.New("unsupported transaction kind")

	// ErrInvalidTransaction rejects malformed ingestion candidates before
	// anything is persisted.
	ErrInvalidTransaction = errors.New("invalid transaction")
)
