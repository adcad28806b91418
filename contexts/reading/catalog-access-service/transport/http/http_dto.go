package httptransport

type NovelDTO struct {
	NovelID       string   `json:"novel_id"`
	Slug          string   `json:"slug"`
	Title         string   `json:"title"`
	OwnerID       string   `json:"owner_id"`
	Status        string   `json:"status"`
	Synopsis      string   `json:"synopsis"`
	Categories    []string `json:"categories"`
	Tags          []string `json:"tags"`
	Rating        float64  `json:"rating"`
	RatingCount   int      `json:"rating_count"`
	UserRating    int      `json:"user_rating,omitempty"`
	BookmarkCount int      `json:"bookmark_count"`
}

type VolumeDTO struct {
	VolumeID string `json:"volume_id"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
}

type ChapterDTO struct {
	Number     int    `json:"number"`
	Part       int    `json:"part"`
	VolumeID   string `json:"volume_id,omitempty"`
	Title      string `json:"title"`
	CoinPrice  int64  `json:"coin_price"`
	PublishAt  string `json:"publish_at,omitempty"`
	AgeRating  string `json:"age_rating,omitempty"`
	Visibility string `json:"visibility"`
	IsUnlocked bool   `json:"is_unlocked"`
}

type GetNovelResponse struct {
	Item                NovelDTO    `json:"item"`
	Volumes             []VolumeDTO `json:"volumes"`
	CacheHit            bool        `json:"cache_hit"`
	HasTranslatorAccess bool        `json:"has_translator_access"`
	FetchedAt           string      `json:"fetched_at"`
}

type ListChaptersResponse struct {
	NovelID  string       `json:"novel_id"`
	Regular  []ChapterDTO `json:"regular"`
	Advanced []ChapterDTO `json:"advanced"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
