package queries

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"inkwell/contexts/reading/settlement-service/domain/entities"
	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
	"inkwell/contexts/reading/settlement-service/ports"
)

type GetWalletQuery struct {
	UserID string
}

type GetWalletResult struct {
	Account entities.CoinAccount
}

// GetWalletUseCase resolves a user's coin balance. A user who never held
// coins gets a zero-balance account, not an error.
type GetWalletUseCase struct {
	Accounts ports.AccountRepository
	Logger   *slog.Logger
}

func (u GetWalletUseCase) Execute(ctx context.Context, query GetWalletQuery) (GetWalletResult, error) {
	if strings.TrimSpace(query.UserID) == "" {
		return GetWalletResult{}, domainerrors.ErrInvalidRequest
	}

	account, err := u.Accounts.GetAccount(ctx, query.UserID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAccountNotFound) {
			return GetWalletResult{Account: entities.CoinAccount{UserID: query.UserID}}, nil
		}
		return GetWalletResult{}, err
	}
	return GetWalletResult{Account: account}, nil
}
