package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	config "github.com/maheshrc27/brandpost/configs"
	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/transfer"
)

const (
	linkedInImageRecipe = "urn:li:digitalmediaRecipe:feedshare-image"
	linkedInVideoRecipe = "urn:li:digitalmediaRecipe:feedshare-video"
)

type linkedInService struct {
	cfg    config.LinkedIn
	conns  ConnectionProvider
	client *platformClient
}

func NewLinkedInService(cfg config.Config, conns ConnectionProvider) PlatformAdapter {
	return &linkedInService{
		cfg:    cfg.LinkedIn,
		conns:  conns,
		client: newPlatformClient(cfg.PlatformTimeout, cfg.PlatformRate),
	}
}

func (s *linkedInService) Platform() string {
	return models.PlatformLinkedIn
}

// Publish posts as an organization: the one named by target, or the first
// connected organization when target is empty.
func (s *linkedInService) Publish(ctx context.Context, post *models.Post, media ResolvedMedia, target string) (*models.PlatformResult, error) {
	conn, err := s.conns.GetConnection(ctx, models.PlatformLinkedIn)
	if err != nil {
		return nil, &PlatformError{Platform: models.PlatformLinkedIn, Kind: KindNotConnected, Err: err}
	}
	if conn == nil || conn.AccessToken == "" {
		return nil, platformError(models.PlatformLinkedIn, KindNotConnected, "no organization token on file")
	}
	if len(conn.Targets) == 0 {
		return nil, platformError(models.PlatformLinkedIn, KindNoTarget, "no organizations connected")
	}

	org := &conn.Targets[0]
	if target != "" {
		found, ok := conn.FindTarget(target)
		if !ok {
			return nil, platformError(models.PlatformLinkedIn, KindNoTarget, "organization %s is not connected", target)
		}
		org = found
	}

	token := org.AccessToken
	if token == "" {
		token = conn.AccessToken
	}
	author := "urn:li:organization:" + org.ID

	var skipped []string
	var postID string

	documents := media.Documents()
	images := media.Images()
	videos := media.Videos()

	switch {
	case len(documents) > 0:
		for _, doc := range documents[1:] {
			slog.Warn("linkedin accepts one document per post, skipping", "post_id", post.ID, "file", doc.FileName)
			skipped = append(skipped, doc.FileName)
		}
		postID, err = s.postDocument(ctx, token, author, post.Caption, documents[0])
	case len(images) > 0:
		postID, err = s.postAssets(ctx, token, author, post.Caption, "IMAGE", linkedInImageRecipe, images)
	case len(videos) >= 1:
		postID, err = s.postAssets(ctx, token, author, post.Caption, "VIDEO", linkedInVideoRecipe, videos[:1])
	default:
		postID, err = s.postUGC(ctx, token, author, post.Caption, "NONE", nil)
	}
	if err != nil {
		return nil, err
	}

	return &models.PlatformResult{
		Success:    true,
		ExternalID: postID,
		Target:     org.ID,
		Response:   map[string]any{"id": postID},
		Skipped:    skipped,
	}, nil
}

func (s *linkedInService) headers(token string, rest bool) map[string]string {
	h := map[string]string{
		"Authorization":             "Bearer " + token,
		"X-Restli-Protocol-Version": "2.0.0",
	}
	if rest {
		h["LinkedIn-Version"] = s.cfg.Version
	}
	return h
}

// postAssets registers and uploads each item, then attaches every asset to
// one UGC post.
func (s *linkedInService) postAssets(ctx context.Context, token, author, caption, category, recipe string, items ResolvedMedia) (string, error) {
	var media []transfer.LinkedInMedia
	for i, item := range items {
		asset, err := s.uploadAsset(ctx, token, author, recipe, item)
		if err != nil {
			return "", &PlatformError{Platform: models.PlatformLinkedIn, Kind: KindUploadFailed, Err: fmt.Errorf("item %d: %w", i+1, err)}
		}
		media = append(media, transfer.LinkedInMedia{Status: "READY", Media: asset})
	}
	return s.postUGC(ctx, token, author, caption, category, media)
}

func (s *linkedInService) uploadAsset(ctx context.Context, token, author, recipe string, item ResolvedItem) (string, error) {
	payload := transfer.LinkedInRegisterUploadRequest{
		RegisterUploadRequest: transfer.LinkedInRegisterUpload{
			Recipes: []string{recipe},
			Owner:   author,
			ServiceRelationships: []transfer.LinkedInServiceRelationship{
				{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
			},
		},
	}

	var registered transfer.LinkedInRegisterUploadResponse
	_, err := s.client.sendJSON(ctx, http.MethodPost, s.cfg.APIURL+"/v2/assets?action=registerUpload", s.headers(token, false), payload, &registered)
	if err != nil {
		return "", fmt.Errorf("registering upload: %w", err)
	}

	uploadURL := registered.Value.UploadMechanism.HTTPRequest.UploadURL
	if uploadURL == "" || registered.Value.Asset == "" {
		return "", fmt.Errorf("registering upload: empty upload url or asset")
	}

	if err := s.client.putBytes(ctx, uploadURL, map[string]string{"Authorization": "Bearer " + token}, item.ContentType, item.Data); err != nil {
		return "", fmt.Errorf("uploading bytes: %w", err)
	}
	return registered.Value.Asset, nil
}

func (s *linkedInService) postUGC(ctx context.Context, token, author, caption, category string, media []transfer.LinkedInMedia) (string, error) {
	payload := transfer.LinkedInUGCPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: transfer.LinkedInSpecificContent{
			ShareContent: transfer.LinkedInShareContent{
				ShareCommentary:    transfer.LinkedInText{Text: caption},
				ShareMediaCategory: category,
				Media:              media,
			},
		},
		Visibility: map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	var resp transfer.LinkedInPostResponse
	header, err := s.client.sendJSON(ctx, http.MethodPost, s.cfg.APIURL+"/v2/ugcPosts", s.headers(token, false), payload, &resp)
	if err != nil {
		return "", &PlatformError{Platform: models.PlatformLinkedIn, Kind: KindPostFailed, Err: err}
	}
	return postIDFrom(header, resp.ID), nil
}

// postDocument runs the document flow: initialize, PUT bytes, create the
// post. Failures are returned as-is; there is no text-only fallback.
func (s *linkedInService) postDocument(ctx context.Context, token, author, caption string, doc ResolvedItem) (string, error) {
	var initialized transfer.LinkedInInitializeUploadResponse
	_, err := s.client.sendJSON(ctx, http.MethodPost, s.cfg.APIURL+"/rest/documents?action=initializeUpload", s.headers(token, true),
		transfer.LinkedInInitializeUploadRequest{InitializeUploadRequest: transfer.LinkedInOwner{Owner: author}}, &initialized)
	if err != nil {
		return "", &PlatformError{Platform: models.PlatformLinkedIn, Kind: KindUploadFailed, Err: fmt.Errorf("initializing document upload: %w", err)}
	}
	if initialized.Value.UploadURL == "" || initialized.Value.Document == "" {
		return "", platformError(models.PlatformLinkedIn, KindUploadFailed, "initializing document upload: empty upload url or document")
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	if err := s.client.putBytes(ctx, initialized.Value.UploadURL, map[string]string{"Authorization": "Bearer " + token}, contentType, doc.Data); err != nil {
		return "", &PlatformError{Platform: models.PlatformLinkedIn, Kind: KindUploadFailed, Err: fmt.Errorf("uploading document: %w", err)}
	}

	title := doc.FileName
	if title == "" {
		title = "Document"
	}
	payload := transfer.LinkedInDocumentPost{
		Author:     author,
		Commentary: caption,
		Visibility: "PUBLIC",
		Distribution: transfer.LinkedInDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		Content:        transfer.LinkedInContent{Media: transfer.LinkedInContentMedia{Title: title, ID: initialized.Value.Document}},
		LifecycleState: "PUBLISHED",
	}

	var resp transfer.LinkedInPostResponse
	header, err := s.client.sendJSON(ctx, http.MethodPost, s.cfg.APIURL+"/rest/posts", s.headers(token, true), payload, &resp)
	if err != nil {
		return "", &PlatformError{Platform: models.PlatformLinkedIn, Kind: KindPostFailed, Err: err}
	}
	return postIDFrom(header, resp.ID), nil
}

// postIDFrom prefers the x-restli-id header LinkedIn returns on create.
func postIDFrom(header http.Header, bodyID string) string {
	if id := header.Get("X-Restli-Id"); id != "" {
		return id
	}
	return bodyID
}
