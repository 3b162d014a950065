package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clipvault/clipd/internal/clipboard"
	"github.com/clipvault/clipd/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingItemID     = errors.New("item identifier is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries an operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error { return e.err }

func (e *ServiceError) Code() string { return e.code }

const (
	opServiceNew      = "history.service.new"
	opInsert          = "history.insert"
	opFindByHash      = "history.find_by_hash"
	opBumpTimestamp   = "history.bump_timestamp"
	opDelete          = "history.delete"
	opList            = "history.list"
	opGet             = "history.get"
	opSetFavorite     = "history.set_favorite"
	opSetLinkMetadata = "history.set_link_metadata"
	opSetThemeColor   = "history.set_theme_color"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Dispatcher *events.Dispatcher
	Logger     *zap.Logger
}

type IDProvider interface {
	NewID() (string, error)
}

// Service is the persistence sink for captured clipboard content. It owns
// the hash index and emits item-added/item-updated events after durable
// writes succeed.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	dispatcher *events.Dispatcher
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
	}, nil
}

// Insert persists a first-seen capture and returns the new item id.
func (s *Service) Insert(ctx context.Context, capture clipboard.Captured) (string, error) {
	itemID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opInsert, "id_generation_failed", err)
		return "", newServiceError(opInsert, "id_generation_failed", err)
	}

	item := Item{
		ID:               itemID,
		Content:          capture.Text,
		RichPayload:      capture.RichPayload,
		ImageBytes:       capture.ImageBytes,
		ContentType:      capture.Type,
		SourceAppName:    capture.SourceAppName,
		SourceAppBundle:  capture.SourceAppID,
		CreatedAtSeconds: s.clock().UTC().Unix(),
		ContentHash:      capture.Hash,
		FileSizeBytes:    capture.FileSizeBytes,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		s.logError(opInsert, "insert_failed", err, zap.String("hash", capture.Hash))
		return "", newServiceError(opInsert, "insert_failed", err)
	}

	s.publish(events.Event{Kind: events.KindItemAdded, ItemID: itemID})
	return itemID, nil
}

// FindIDByHash returns the id of the item carrying the hash, or an empty
// string when the hash is unknown.
func (s *Service) FindIDByHash(ctx context.Context, hash string) (string, error) {
	var item Item
	err := s.db.WithContext(ctx).
		Select("id").
		Where("content_hash = ?", hash).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		s.logError(opFindByHash, "query_failed", err, zap.String("hash", hash))
		return "", newServiceError(opFindByHash, "query_failed", err)
	}
	return item.ID, nil
}

// BumpTimestamp moves an existing item to the top of recency-ordered
// history. Only the timestamp changes; content and hash stay untouched.
func (s *Service) BumpTimestamp(ctx context.Context, itemID string) error {
	if itemID == "" {
		return newServiceError(opBumpTimestamp, "missing_item_id", errMissingItemID)
	}
	result := s.db.WithContext(ctx).
		Model(&Item{}).
		Where("id = ?", itemID).
		Update("created_at_s", s.clock().UTC().Unix())
	if result.Error != nil {
		s.logError(opBumpTimestamp, "update_failed", result.Error, zap.String("item_id", itemID))
		return newServiceError(opBumpTimestamp, "update_failed", result.Error)
	}
	if result.RowsAffected > 0 {
		s.publish(events.Event{Kind: events.KindItemUpdated, ItemID: itemID, Changed: []string{"created_at_s"}})
	}
	return nil
}

// Get returns one item by id.
func (s *Service) Get(ctx context.Context, itemID string) (Item, error) {
	var item Item
	err := s.db.WithContext(ctx).Where("id = ?", itemID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Item{}, newServiceError(opGet, "not_found", err)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("item_id", itemID))
		return Item{}, newServiceError(opGet, "query_failed", err)
	}
	return item, nil
}

// IsNotFound reports whether the error came from a lookup of a missing id.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// List returns up to limit items, newest first. A non-positive limit
// returns the full history.
func (s *Service) List(ctx context.Context, limit int) ([]Item, error) {
	query := s.db.WithContext(ctx).Order("created_at_s DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []Item
	if err := query.Find(&items).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return items, nil
}

// Delete removes an item. Deleting an unknown id is a no-op.
func (s *Service) Delete(ctx context.Context, itemID string) error {
	if itemID == "" {
		return newServiceError(opDelete, "missing_item_id", errMissingItemID)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", itemID).Delete(&Item{}).Error; err != nil {
		s.logError(opDelete, "delete_failed", err, zap.String("item_id", itemID))
		return newServiceError(opDelete, "delete_failed", err)
	}
	return nil
}

// SetFavorite flips the favorite flag.
func (s *Service) SetFavorite(ctx context.Context, itemID string, favorite bool) error {
	if itemID == "" {
		return newServiceError(opSetFavorite, "missing_item_id", errMissingItemID)
	}
	result := s.db.WithContext(ctx).
		Model(&Item{}).
		Where("id = ?", itemID).
		Update("is_favorite", favorite)
	if result.Error != nil {
		s.logError(opSetFavorite, "update_failed", result.Error, zap.String("item_id", itemID))
		return newServiceError(opSetFavorite, "update_failed", result.Error)
	}
	if result.RowsAffected > 0 {
		s.publish(events.Event{Kind: events.KindItemUpdated, ItemID: itemID, Changed: []string{"is_favorite"}})
	}
	return nil
}

// SetLinkMetadata attaches enrichment results to a link item. Updating an
// id that was deleted in the meantime is a no-op, not an error.
func (s *Service) SetLinkMetadata(ctx context.Context, itemID, title, favicon string) error {
	if itemID == "" {
		return newServiceError(opSetLinkMetadata, "missing_item_id", errMissingItemID)
	}
	result := s.db.WithContext(ctx).
		Model(&Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"link_title": title, "link_favicon": favicon})
	if result.Error != nil {
		s.logError(opSetLinkMetadata, "update_failed", result.Error, zap.String("item_id", itemID))
		return newServiceError(opSetLinkMetadata, "update_failed", result.Error)
	}
	if result.RowsAffected > 0 {
		s.publish(events.Event{Kind: events.KindItemUpdated, ItemID: itemID, Changed: []string{"link_title", "link_favicon"}})
	}
	return nil
}

// SetThemeColor records the sampled theme color. Unknown ids are no-ops.
func (s *Service) SetThemeColor(ctx context.Context, itemID, hexColor string) error {
	if itemID == "" {
		return newServiceError(opSetThemeColor, "missing_item_id", errMissingItemID)
	}
	result := s.db.WithContext(ctx).
		Model(&Item{}).
		Where("id = ?", itemID).
		Update("theme_color", hexColor)
	if result.Error != nil {
		s.logError(opSetThemeColor, "update_failed", result.Error, zap.String("item_id", itemID))
		return newServiceError(opSetThemeColor, "update_failed", result.Error)
	}
	if result.RowsAffected > 0 {
		s.publish(events.Event{Kind: events.KindItemUpdated, ItemID: itemID, Changed: []string{"theme_color"}})
	}
	return nil
}

func (s *Service) publish(event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.Timestamp = s.clock().UTC()
	s.dispatcher.Publish(event)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("history service error", attrs...)
}
