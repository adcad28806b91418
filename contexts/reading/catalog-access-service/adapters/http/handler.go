package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "inkwell/contexts/reading/catalog-access-service/application"
	"inkwell/contexts/reading/catalog-access-service/application/queries"
	"inkwell/contexts/reading/catalog-access-service/domain/services"
	httptransport "inkwell/contexts/reading/catalog-access-service/transport/http"
)

type Handler struct {
	LoadNovel    *queries.LoadNovelUseCase
	ListChapters queries.ListChaptersUseCase
	Logger       *slog.Logger
}

// GetNovelHandler godoc
// @Summary Get novel overview
// @Description Returns the denormalized novel view for the requesting viewer.
// @Tags catalog-access-service
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Request-Id header string true "Request correlation id"
// @Param novel_id path string true "Novel id"
// @Success 200 {object} httptransport.GetNovelResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /novels/{novel_id} [get]
func (h Handler) GetNovelHandler(ctx context.Context, novelID string, viewerID string) (httptransport.GetNovelResponse, error) {
	logger := application.ResolveLogger(h.Logger)

	result, err := h.LoadNovel.Execute(ctx, queries.LoadNovelQuery{
		NovelID:  novelID,
		ViewerID: viewerID,
	})
	if err != nil {
		logger.Error("get novel request failed",
			"event", "http_get_novel_failed",
			"module", "reading/catalog-access-service",
			"layer", "transport",
			"novel_id", novelID,
			"error", err.Error(),
		)
		return httptransport.GetNovelResponse{}, err
	}

	view := result.View
	volumes := make([]httptransport.VolumeDTO, 0, len(view.Volumes))
	for _, volume := range view.Volumes {
		volumes = append(volumes, httptransport.VolumeDTO{
			VolumeID: volume.VolumeID,
			Number:   volume.Number,
			Title:    volume.Title,
		})
	}

	return httptransport.GetNovelResponse{
		Item: httptransport.NovelDTO{
			NovelID:       view.Novel.NovelID,
			Slug:          view.Novel.Slug,
			Title:         view.Novel.Title,
			OwnerID:       view.Novel.OwnerID,
			Status:        string(view.Novel.Status),
			Synopsis:      view.Novel.Synopsis,
			Categories:    view.Categories,
			Tags:          view.Tags,
			Rating:        view.Rating,
			RatingCount:   view.RatingCount,
			UserRating:    view.UserRating,
			BookmarkCount: view.BookmarkCount,
		},
		Volumes:             volumes,
		CacheHit:            result.CacheHit,
		HasTranslatorAccess: view.HasTranslatorAccess,
		FetchedAt:           view.FetchedAt.UTC().Format(time.RFC3339),
	}, nil
}

// ListChaptersHandler godoc
// @Summary List classified chapters
// @Description Returns the novel's chapters partitioned into regular and advanced buckets, each carrying its visibility state for the requesting viewer.
// @Tags catalog-access-service
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Request-Id header string true "Request correlation id"
// @Param novel_id path string true "Novel id"
// @Success 200 {object} httptransport.ListChaptersResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /novels/{novel_id}/chapters [get]
func (h Handler) ListChaptersHandler(ctx context.Context, novelID string, viewerID string) (httptransport.ListChaptersResponse, error) {
	result, err := h.ListChapters.Execute(ctx, queries.ListChaptersQuery{
		NovelID:  novelID,
		ViewerID: viewerID,
	})
	if err != nil {
		return httptransport.ListChaptersResponse{}, err
	}

	return httptransport.ListChaptersResponse{
		NovelID:  result.Novel.NovelID,
		Regular:  mapChapters(result.Regular),
		Advanced: mapChapters(result.Advanced),
	}, nil
}

func mapChapters(classified []services.ClassifiedChapter) []httptransport.ChapterDTO {
	items := make([]httptransport.ChapterDTO, 0, len(classified))
	for _, item := range classified {
		dto := httptransport.ChapterDTO{
			Number:     item.Chapter.Number,
			Part:       item.Chapter.Part,
			VolumeID:   item.Chapter.VolumeID,
			Title:      item.Chapter.Title,
			CoinPrice:  item.Chapter.CoinPrice,
			AgeRating:  item.Chapter.AgeRating,
			Visibility: string(item.State),
			IsUnlocked: item.State == services.StateUnlocked,
		}
		if item.Chapter.PublishAt != nil && item.State != services.StateIndefinitelyLocked {
			dto.PublishAt = item.Chapter.PublishAt.UTC().Format(time.RFC3339)
		}
		items = append(items, dto)
	}
	return items
}
