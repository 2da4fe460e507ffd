package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	config "github.com/maheshrc27/brandpost/configs"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/transfer"
)

// PlatformAdapter publishes one post to one external platform. target is
// the platform-specific sub-target; "" selects the adapter's default.
type PlatformAdapter interface {
	Platform() string
	Publish(ctx context.Context, post *models.Post, media ResolvedMedia, target string) (*models.PlatformResult, error)
}

// ConnectionProvider hands out decrypted platform connections.
type ConnectionProvider interface {
	GetConnection(ctx context.Context, platform string) (*models.PlatformConnection, error)
}

type facebookService struct {
	cfg    config.Facebook
	conns  ConnectionProvider
	client *platformClient
}

func NewFacebookService(cfg config.Config, conns ConnectionProvider) PlatformAdapter {
	return &facebookService{
		cfg:    cfg.Facebook,
		conns:  conns,
		client: newPlatformClient(cfg.PlatformTimeout, cfg.PlatformRate),
	}
}

func (s *facebookService) Platform() string {
	return models.PlatformFacebook
}

// Publish posts to the first connected page. Documents are not supported
// by pages and are skipped.
func (s *facebookService) Publish(ctx context.Context, post *models.Post, media ResolvedMedia, _ string) (*models.PlatformResult, error) {
	conn, err := s.conns.GetConnection(ctx, models.PlatformFacebook)
	if err != nil {
		return nil, &PlatformError{Platform: models.PlatformFacebook, Kind: KindNotConnected, Err: err}
	}
	if conn == nil || conn.AccessToken == "" {
		return nil, platformError(models.PlatformFacebook, KindNotConnected, "no page token on file")
	}
	if len(conn.Targets) == 0 {
		return nil, platformError(models.PlatformFacebook, KindNoTarget, "no pages connected")
	}

	page := conn.Targets[0]
	token := page.AccessToken
	if token == "" {
		token = conn.AccessToken
	}

	var skipped []string
	for _, doc := range media.Documents() {
		name := doc.FileName
		if name == "" {
			name = "document"
		}
		slog.Warn("facebook does not support documents, skipping", "post_id", post.ID, "file", name)
		skipped = append(skipped, name)
	}

	images := media.Images()
	videos := media.Videos()

	var resp *transfer.FacebookPostResponse
	switch {
	case len(images) >= 2:
		resp, err = s.postMultiImage(ctx, page.ID, token, post.Caption, images)
	case len(videos) >= 1:
		if len(videos) > 1 {
			slog.Warn("facebook accepts one video per post, using the first", "post_id", post.ID, "videos", len(videos))
		}
		resp, err = s.postVideo(ctx, page.ID, token, post.Caption, videos[0])
	case len(images) == 1:
		resp, err = s.postPhoto(ctx, page.ID, token, post.Caption, images[0])
	default:
		resp, err = s.postText(ctx, page.ID, token, post.Caption)
	}
	if err != nil {
		return nil, err
	}

	externalID := resp.PostID
	if externalID == "" {
		externalID = resp.ID
	}

	return &models.PlatformResult{
		Success:    true,
		ExternalID: externalID,
		Target:     page.ID,
		Response:   responseMap(resp),
		Skipped:    skipped,
	}, nil
}

func (s *facebookService) endpoint(base, pageID, edge string) string {
	return fmt.Sprintf("%s/%s/%s/%s", base, s.cfg.APIVersion, url.PathEscape(pageID), edge)
}

func (s *facebookService) postText(ctx context.Context, pageID, token, caption string) (*transfer.FacebookPostResponse, error) {
	form := url.Values{}
	form.Set("message", caption)
	form.Set("access_token", token)

	var resp transfer.FacebookPostResponse
	if err := s.client.postForm(ctx, s.endpoint(s.cfg.GraphURL, pageID, "feed"), form, &resp); err != nil {
		return nil, graphError(KindPostFailed, err)
	}
	return &resp, nil
}

func (s *facebookService) postPhoto(ctx context.Context, pageID, token, caption string, image ResolvedItem) (*transfer.FacebookPostResponse, error) {
	fields := map[string]string{
		"caption":      caption,
		"access_token": token,
	}

	var resp transfer.FacebookPostResponse
	err := s.client.postMultipart(ctx, s.endpoint(s.cfg.GraphURL, pageID, "photos"), fields, "source", image.FileName, image.Data, &resp)
	if err != nil {
		return nil, graphError(KindPostFailed, err)
	}
	return &resp, nil
}

func (s *facebookService) postVideo(ctx context.Context, pageID, token, caption string, video ResolvedItem) (*transfer.FacebookPostResponse, error) {
	fields := map[string]string{
		"description":  caption,
		"access_token": token,
	}

	var resp transfer.FacebookPostResponse
	err := s.client.postMultipart(ctx, s.endpoint(s.cfg.VideoURL, pageID, "videos"), fields, "source", video.FileName, video.Data, &resp)
	if err != nil {
		return nil, graphError(KindPostFailed, err)
	}
	return &resp, nil
}

// postMultiImage uploads every image unpublished and attaches them all to a
// single feed post.
func (s *facebookService) postMultiImage(ctx context.Context, pageID, token, caption string, images ResolvedMedia) (*transfer.FacebookPostResponse, error) {
	form := url.Values{}
	form.Set("message", caption)
	form.Set("access_token", token)

	for i, image := range images {
		fields := map[string]string{
			"published":    "false",
			"access_token": token,
		}

		var uploaded transfer.FacebookPostResponse
		err := s.client.postMultipart(ctx, s.endpoint(s.cfg.GraphURL, pageID, "photos"), fields, "source", image.FileName, image.Data, &uploaded)
		if err != nil {
			return nil, graphError(KindUploadFailed, fmt.Errorf("image %d: %w", i+1, err))
		}

		attached, err := json.Marshal(transfer.FacebookAttachedMedia{MediaFBID: uploaded.ID})
		if err != nil {
			return nil, err
		}
		form.Set(fmt.Sprintf("attached_media[%d]", i), string(attached))
	}

	var resp transfer.FacebookPostResponse
	if err := s.client.postForm(ctx, s.endpoint(s.cfg.GraphURL, pageID, "feed"), form, &resp); err != nil {
		return nil, graphError(KindPostFailed, err)
	}
	return &resp, nil
}

// graphError tags err with kind, surfacing the Graph API's own message when
// the response carries one.
func graphError(kind PlatformErrorKind, err error) *PlatformError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		var body transfer.FacebookErrorResponse
		if json.Unmarshal([]byte(apiErr.Body), &body) == nil && body.Error.Message != "" {
			err = fmt.Errorf("%w (code %d: %s)", err, body.Error.Code, body.Error.Message)
		}
	}
	return &PlatformError{Platform: models.PlatformFacebook, Kind: kind, Err: err}
}
