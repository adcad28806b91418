package queries

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/contexts/reading/settlement-service/domain/entities"
	domainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
	"inkwell/contexts/reading/settlement-service/ports"
)

type ListUnlocksQuery struct {
	NovelID string
	UserID  string
}

type ListUnlocksResult struct {
	Items []entities.UnlockGrant
}

// ListUnlocksUseCase returns the viewer's unlock grants for one novel.
type ListUnlocksUseCase struct {
	Ledger ports.GrantLedger
	Logger *slog.Logger
}

func (u ListUnlocksUseCase) Execute(ctx context.Context, query ListUnlocksQuery) (ListUnlocksResult, error) {
	if strings.TrimSpace(query.NovelID) == "" || strings.TrimSpace(query.UserID) == "" {
		return ListUnlocksResult{}, domainerrors.ErrInvalidRequest
	}

	items, err := u.Ledger.ListGrants(ctx, query.NovelID, query.UserID)
	if err != nil {
		return ListUnlocksResult{}, err
	}
	return ListUnlocksResult{Items: items}, nil
}
