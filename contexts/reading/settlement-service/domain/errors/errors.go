package domainerrors

import "errors"

var (
	ErrNovelNotFound            = errors.New("novel not found")
	ErrChapterNotFound          = errors.New("chapter not found")
	ErrAccountNotFound          = errors.New("coin account not found")
	ErrOwnerNotFound            = errors.New("owner coin account not found")
	ErrInsufficientFunds        = errors.New("insufficient coin balance")
	ErrChapterNotPurchasable    = errors.New("chapter is not purchasable")
	ErrSelfPurchase             = errors.New("owners cannot purchase their own chapters")
	ErrInvalidPurchase          = errors.New("invalid purchase request")
	ErrInvalidRequest           = errors.New("invalid request")
	ErrIdempotencyKeyConflict   = errors.New("idempotency key reused with a different request payload")
	ErrRepositoryInvariantBroke = errors.New("settlement repository invariant violated")
)
