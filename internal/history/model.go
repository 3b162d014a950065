package history

import "github.com/clipvault/clipd/internal/clipboard"

// Item is the persisted history entry. ContentHash is immutable once
// assigned and carries a unique index so duplicate content maps to a
// timestamp bump instead of a second row.
type Item struct {
	ID               string                `gorm:"column:id;primaryKey;size:190;not null"`
	Content          string                `gorm:"column:content;type:text;not null"`
	RichPayload      []byte                `gorm:"column:rich_payload"`
	ImageBytes       []byte                `gorm:"column:image_bytes"`
	ContentType      clipboard.ContentType `gorm:"column:content_type;size:32;not null"`
	SourceAppName    string                `gorm:"column:source_app_name;size:190;not null;default:''"`
	SourceAppBundle  string                `gorm:"column:source_app_bundle_id;size:190;not null;default:''"`
	ThemeColor       string                `gorm:"column:theme_color;size:16;not null;default:''"`
	CreatedAtSeconds int64                 `gorm:"column:created_at_s;not null;index:idx_items_created"`
	IsFavorite       bool                  `gorm:"column:is_favorite;not null;default:false"`
	IsLocked         bool                  `gorm:"column:is_locked;not null;default:false"`
	ContentHash      string                `gorm:"column:content_hash;size:64;not null;uniqueIndex:idx_items_hash"`
	LinkTitle        string                `gorm:"column:link_title;type:text;not null;default:''"`
	LinkFavicon      string                `gorm:"column:link_favicon;type:text;not null;default:''"`
	FileSizeBytes    int64                 `gorm:"column:file_size_bytes;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Item) TableName() string {
	return "clipboard_items"
}
