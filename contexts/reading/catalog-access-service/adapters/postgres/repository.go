package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"inkwell/contexts/reading/catalog-access-service/domain/entities"
	domainerrors "inkwell/contexts/reading/catalog-access-service/domain/errors"
	"inkwell/contexts/reading/catalog-access-service/ports"

	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetNovel(ctx context.Context, novelID string) (entities.Novel, error) {
	var row novelModel
	err := r.db.WithContext(ctx).
		Where("novel_id = ?", novelID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Novel{}, domainerrors.ErrNovelNotFound
		}
		return entities.Novel{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListVolumes(ctx context.Context, novelID string) ([]entities.Volume, error) {
	var rows []volumeModel
	if err := r.db.WithContext(ctx).
		Where("novel_id = ?", novelID).
		Order("number ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Volume, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListChapters(ctx context.Context, novelID string) ([]entities.Chapter, error) {
	var rows []chapterModel
	if err := r.db.WithContext(ctx).
		Where("novel_id = ?", novelID).
		Order("number ASC, part ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Chapter, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListGrants(ctx context.Context, novelID string, userID string) ([]entities.UnlockGrant, error) {
	var rows []grantModel
	if err := r.db.WithContext(ctx).
		Where("novel_id = ? AND user_id = ?", novelID, userID).
		Order("unlocked_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.UnlockGrant, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetRatingSummary(ctx context.Context, novelID string) (ports.RatingSummary, error) {
	var result struct {
		Sum   int64
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&ratingModel{}).
		Select("COALESCE(SUM(score), 0) AS sum, COUNT(*) AS count").
		Where("novel_id = ?", novelID).
		Scan(&result).
		Error
	if err != nil {
		return ports.RatingSummary{}, err
	}
	return ports.RatingSummary{Sum: result.Sum, Count: int(result.Count)}, nil
}

func (r *Repository) GetUserRating(ctx context.Context, novelID string, userID string) (int, bool, error) {
	var row ratingModel
	err := r.db.WithContext(ctx).
		Where("novel_id = ? AND user_id = ?", novelID, userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return row.Score, true, nil
}

func (r *Repository) CountBookmarks(ctx context.Context, novelID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&bookmarkModel{}).
		Where("novel_id = ?", novelID).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) ListCategories(ctx context.Context, novelID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&novelCategoryModel{}).
		Select("category").
		Where("novel_id = ?", novelID).
		Order("category ASC").
		Scan(&names).
		Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *Repository) ListTags(ctx context.Context, novelID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&novelTagModel{}).
		Select("tag").
		Where("novel_id = ?", novelID).
		Order("tag ASC").
		Scan(&names).
		Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

type novelModel struct {
	NovelID       string    `gorm:"column:novel_id;primaryKey"`
	Slug          string    `gorm:"column:slug"`
	Title         string    `gorm:"column:title"`
	OwnerID       string    `gorm:"column:owner_id"`
	Status        string    `gorm:"column:status"`
	Synopsis      string    `gorm:"column:synopsis"`
	BookmarkCount int       `gorm:"column:bookmark_count"`
	RatingSum     int64     `gorm:"column:rating_sum"`
	RatingCount   int       `gorm:"column:rating_count"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (novelModel) TableName() string { return "novels" }

func (m novelModel) toEntity() entities.Novel {
	return entities.Novel{
		NovelID:       m.NovelID,
		Slug:          m.Slug,
		Title:         m.Title,
		OwnerID:       m.OwnerID,
		Status:        entities.NovelStatus(m.Status),
		Synopsis:      m.Synopsis,
		BookmarkCount: m.BookmarkCount,
		RatingSum:     m.RatingSum,
		RatingCount:   m.RatingCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type volumeModel struct {
	VolumeID string `gorm:"column:volume_id;primaryKey"`
	NovelID  string `gorm:"column:novel_id"`
	Number   int    `gorm:"column:number"`
	Title    string `gorm:"column:title"`
}

func (volumeModel) TableName() string { return "volumes" }

func (m volumeModel) toEntity() entities.Volume {
	return entities.Volume{
		VolumeID: m.VolumeID,
		NovelID:  m.NovelID,
		Number:   m.Number,
		Title:    m.Title,
	}
}

type chapterModel struct {
	NovelID   string     `gorm:"column:novel_id;primaryKey"`
	Number    int        `gorm:"column:number;primaryKey"`
	Part      int        `gorm:"column:part;primaryKey"`
	VolumeID  string     `gorm:"column:volume_id"`
	Title     string     `gorm:"column:title"`
	CoinPrice int64      `gorm:"column:coin_price"`
	PublishAt *time.Time `gorm:"column:publish_at"`
	AgeRating string     `gorm:"column:age_rating"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

func (chapterModel) TableName() string { return "chapters" }

func (m chapterModel) toEntity() entities.Chapter {
	return entities.Chapter{
		NovelID:   m.NovelID,
		VolumeID:  m.VolumeID,
		Number:    m.Number,
		Part:      m.Part,
		Title:     m.Title,
		CoinPrice: m.CoinPrice,
		PublishAt: m.PublishAt,
		AgeRating: m.AgeRating,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type grantModel struct {
	GrantID       string    `gorm:"column:grant_id;primaryKey"`
	NovelID       string    `gorm:"column:novel_id"`
	UserID        string    `gorm:"column:user_id"`
	ChapterNumber int       `gorm:"column:chapter_number"`
	ChapterPart   int       `gorm:"column:chapter_part"`
	PricePaid     int64     `gorm:"column:price_paid"`
	UnlockedAt    time.Time `gorm:"column:unlocked_at"`
}

func (grantModel) TableName() string { return "chapter_unlocks" }

func (m grantModel) toEntity() entities.UnlockGrant {
	return entities.UnlockGrant{
		GrantID:       m.GrantID,
		NovelID:       m.NovelID,
		UserID:        m.UserID,
		ChapterNumber: m.ChapterNumber,
		ChapterPart:   m.ChapterPart,
		PricePaid:     m.PricePaid,
		UnlockedAt:    m.UnlockedAt,
	}
}

type ratingModel struct {
	NovelID string `gorm:"column:novel_id;primaryKey"`
	UserID  string `gorm:"column:user_id;primaryKey"`
	Score   int    `gorm:"column:score"`
}

func (ratingModel) TableName() string { return "novel_ratings" }

type bookmarkModel struct {
	NovelID string `gorm:"column:novel_id;primaryKey"`
	UserID  string `gorm:"column:user_id;primaryKey"`
}

func (bookmarkModel) TableName() string { return "bookmarks" }

type novelCategoryModel struct {
	NovelID  string `gorm:"column:novel_id;primaryKey"`
	Category string `gorm:"column:category;primaryKey"`
}

func (novelCategoryModel) TableName() string { return "novel_categories" }

type novelTagModel struct {
	NovelID string `gorm:"column:novel_id;primaryKey"`
	Tag     string `gorm:"column:tag;primaryKey"`
}

func (novelTagModel) TableName() string { return "novel_tags" }
