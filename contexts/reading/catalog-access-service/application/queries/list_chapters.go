package queries

import (
	"context"
	"log/slog"
	"time"

	application "inkwell/contexts/reading/catalog-access-service/application"
	"inkwell/contexts/reading/catalog-access-service/domain/entities"
	"inkwell/contexts/reading/catalog-access-service/domain/services"
	"inkwell/contexts/reading/catalog-access-service/ports"
)

type ListChaptersQuery struct {
	NovelID  string
	ViewerID string
}

type ListChaptersResult struct {
	Novel    entities.Novel
	Regular  []services.ClassifiedChapter
	Advanced []services.ClassifiedChapter
}

// ListChaptersUseCase resolves the classified chapter list for a viewer.
// Classification is a single pure function applied over the loader's view so
// list and detail renders can never drift apart.
type ListChaptersUseCase struct {
	Loader *LoadNovelUseCase
	Clock  ports.Clock
	Logger *slog.Logger
}

func (u ListChaptersUseCase) Execute(ctx context.Context, query ListChaptersQuery) (ListChaptersResult, error) {
	logger := application.ResolveLogger(u.Logger)

	loaded, err := u.Loader.Execute(ctx, LoadNovelQuery{
		NovelID:  query.NovelID,
		ViewerID: query.ViewerID,
	})
	if err != nil {
		return ListChaptersResult{}, err
	}

	view := loaded.View
	viewer := services.ViewerContext{
		UserID:      query.ViewerID,
		OwnerAccess: view.HasTranslatorAccess,
		Unlocked:    view.Grants(),
	}

	chapters := make([]entities.Chapter, 0, len(view.Chapters))
	for _, chapter := range view.Chapters {
		chapters = append(chapters, chapter.Chapter)
	}

	now := time.Now().UTC()
	if u.Clock != nil {
		now = u.Clock.Now().UTC()
	}
	regular, advanced := services.Partition(chapters, viewer, now)

	logger.Info("chapter list classified",
		"event", "list_chapters_classified",
		"module", "reading/catalog-access-service",
		"layer", "application",
		"novel_id", query.NovelID,
		"regular_count", len(regular),
		"advanced_count", len(advanced),
	)

	return ListChaptersResult{
		Novel:    view.Novel,
		Regular:  regular,
		Advanced: advanced,
	}, nil
}
