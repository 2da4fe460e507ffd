package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/brandpost/internal/models"
)

// ResolvedItem is one media item ready for an adapter.
type ResolvedItem struct {
	Kind        models.MediaKind
	Data        []byte
	ContentType string
	FileName    string
}

type ResolvedMedia []ResolvedItem

func (m ResolvedMedia) OfKind(kind models.MediaKind) ResolvedMedia {
	var out ResolvedMedia
	for _, item := range m {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

func (m ResolvedMedia) Images() ResolvedMedia    { return m.OfKind(models.MediaKindImage) }
func (m ResolvedMedia) Videos() ResolvedMedia    { return m.OfKind(models.MediaKindVideo) }
func (m ResolvedMedia) Documents() ResolvedMedia { return m.OfKind(models.MediaKindDocument) }

// MediaResolver turns a post's declared media into bytes. It never fails as
// a whole: items that cannot be fetched or classified are dropped.
type MediaResolver interface {
	Resolve(ctx context.Context, post *models.Post) ResolvedMedia
}

type MediaService interface {
	MediaResolver
	// Persist moves inline payloads into object storage. When storage is
	// unavailable the inline payload is kept.
	Persist(ctx context.Context, ownerKey string, items []models.MediaItem) ([]models.MediaItem, error)
	Purge(ctx context.Context, refs []string)
}

type mediaService struct {
	storage ObjectStorage
}

func NewMediaService(storage ObjectStorage) MediaService {
	return &mediaService{storage: storage}
}

func (s *mediaService) Resolve(ctx context.Context, post *models.Post) ResolvedMedia {
	items := post.MediaItems
	if len(items) == 0 && post.Media != nil {
		items = []models.MediaItem{*post.Media}
	}

	var resolved ResolvedMedia
	for i, item := range items {
		data, contentType, err := s.load(ctx, item)
		if err != nil {
			slog.Warn("dropping media item", "post_id", post.ID, "index", i, "error", err)
			continue
		}

		kind := DetectKind(item.Kind, contentType, data)
		if kind == "" {
			slog.Warn("dropping media item of unknown kind", "post_id", post.ID, "index", i, "content_type", contentType)
			continue
		}

		resolved = append(resolved, ResolvedItem{
			Kind:        kind,
			Data:        data,
			ContentType: contentType,
			FileName:    item.FileName,
		})
	}

	return resolved
}

// load prefers the durable reference and falls back to the inline payload.
func (s *mediaService) load(ctx context.Context, item models.MediaItem) ([]byte, string, error) {
	var refErr error
	if item.HasReference() {
		data, err := s.storage.Get(ctx, item.URL)
		if err == nil {
			return data, item.ContentType, nil
		}
		refErr = fmt.Errorf("fetching %s: %w", item.URL, err)
	}

	if item.HasInline() {
		data, contentType, err := decodeInline(item.Data)
		if err != nil {
			return nil, "", err
		}
		if item.ContentType != "" {
			contentType = item.ContentType
		}
		return data, contentType, nil
	}

	if refErr != nil {
		return nil, "", refErr
	}
	return nil, "", errors.New("media item has neither reference nor payload")
}

func (s *mediaService) Persist(ctx context.Context, ownerKey string, items []models.MediaItem) ([]models.MediaItem, error) {
	out := make([]models.MediaItem, 0, len(items))
	for _, item := range items {
		if !item.HasInline() {
			out = append(out, item)
			continue
		}

		data, contentType, err := decodeInline(item.Data)
		if err != nil {
			return nil, err
		}
		if item.ContentType == "" {
			item.ContentType = contentType
		}
		if item.Kind == "" {
			item.Kind = DetectKind("", item.ContentType, data)
		}
		if item.Size == 0 {
			item.Size = int64(len(data))
		}

		ref, err := s.storage.Put(ctx, data, item.ContentType, ownerKey)
		if err != nil {
			if !errors.Is(err, ErrStorageUnavailable) {
				slog.Warn("storing media failed, keeping inline payload", "error", err)
			}
			out = append(out, item)
			continue
		}

		item.URL = ref
		item.Data = ""
		out = append(out, item)
	}
	return out, nil
}

func (s *mediaService) Purge(ctx context.Context, refs []string) {
	if len(refs) == 0 {
		return
	}
	if err := s.storage.DeleteMany(ctx, refs); err != nil {
		slog.Warn("purging media failed", "refs", len(refs), "error", err)
	}
}

// DetectKind classifies media by explicit tag, then MIME type, then the
// payload's header bytes. It returns "" when nothing matches.
func DetectKind(tag models.MediaKind, contentType string, data []byte) models.MediaKind {
	switch tag {
	case models.MediaKindImage, models.MediaKindVideo, models.MediaKindDocument:
		return tag
	}

	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.MediaKindImage
	case strings.HasPrefix(mime, "video/"):
		return models.MediaKindVideo
	case mime == "application/pdf":
		return models.MediaKindDocument
	}

	switch {
	case filetype.IsImage(data):
		return models.MediaKindImage
	case filetype.IsVideo(data):
		return models.MediaKindVideo
	case filetype.Is(data, "pdf"):
		return models.MediaKindDocument
	}
	return ""
}

// decodeInline accepts raw base64 or a data URI and returns the bytes and
// the URI's declared MIME type, if any.
func decodeInline(payload string) ([]byte, string, error) {
	var contentType string
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, "", errors.New("malformed data URI")
		}
		header = strings.TrimPrefix(header, "data:")
		contentType = strings.TrimSuffix(header, ";base64")
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding inline media (%d bytes): %w", len(payload), err)
	}
	return data, contentType, nil
}
