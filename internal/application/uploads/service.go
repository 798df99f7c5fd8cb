package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"objektbetreuer-backend/internal/pkg/apperr"
	"objektbetreuer-backend/internal/tenant"

	"github.com/google/uuid"
)

const DefaultBucket = "property-images"

var (
	ErrFileName      = apperr.Validation("missing_field", "file_name is required")
	ErrFileType      = apperr.Validation("invalid_field", "Only JPEG, PNG, WebP and HEIC images can be uploaded")
	ErrForeignObject = apperr.Validation("invalid_field", "Image URL does not belong to this company")
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true}

// SupabaseClient is what the service needs from Supabase Storage.
type SupabaseClient interface {
	CreateSignedUploadURL(ctx context.Context, bucket, objectPath string) (string, error)
}

// HTTPClient is a SupabaseClient backed by the Storage HTTP API.
type HTTPClient struct {
	BaseURL   string
	SecretKey string
	Client    *http.Client
}

type signedUploadResponse struct {
	SignedURL      string `json:"signedUrl"`
	SignedURLSnake string `json:"signed_url"`
	URL            string `json:"url"` // relative path returned by upload/sign
}

func (c *HTTPClient) CreateSignedUploadURL(ctx context.Context, bucket, objectPath string) (string, error) {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if c.BaseURL == "" {
		return "", fmt.Errorf("supabase: SUPABASE_URL is not set")
	}
	if c.SecretKey == "" {
		return "", fmt.Errorf("supabase: SUPABASE_SECRET_KEY is not set")
	}
	base := strings.TrimRight(c.BaseURL, "/")
	url := fmt.Sprintf("%s/storage/v1/object/upload/sign/%s/%s", base, bucket, objectPath)

	bodyBytes, _ := json.Marshal(map[string]interface{}{
		"expiresIn": 3600,
		"upsert":    false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	// the service_role key goes in both headers
	req.Header.Set("apikey", c.SecretKey)
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", apperr.Unavailable(fmt.Errorf("supabase request: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("supabase error: status %d body: %s", resp.StatusCode, string(respBody))
	}

	var data signedUploadResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return "", fmt.Errorf("supabase response decode: %w", err)
	}
	switch {
	case data.SignedURL != "":
		return data.SignedURL, nil
	case data.SignedURLSnake != "":
		return data.SignedURLSnake, nil
	case data.URL != "":
		u := data.URL
		if u[0] != '/' {
			u = "/" + u
		}
		return base + u, nil
	}
	return "", fmt.Errorf("supabase returned no signed URL, body: %s", string(respBody))
}

// Service hands out signed upload URLs for property images. Objects are
// stored under <company>/<property>/ so a URL can be traced back to its tenant.
type Service struct {
	Client      SupabaseClient
	SupabaseURL string
	Bucket      string
	Now         func() time.Time
}

type UploadResult struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	Path      string `json:"path"`
}

func (s *Service) bucket() string {
	if s.Bucket != "" {
		return s.Bucket
	}
	return DefaultBucket
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PropertyImageUpload returns a signed upload URL and the public URL the image
// will have. The caller has already checked that the property is in scope.
func (s *Service) PropertyImageUpload(ctx context.Context, scope tenant.Scope, propertyID uuid.UUID, fileName string) (*UploadResult, error) {
	if !scope.Valid() {
		return nil, apperr.ErrInvalidScope
	}
	name := sanitize(fileName)
	if name == "" {
		return nil, ErrFileName
	}
	if !imageExtensions[strings.ToLower(path.Ext(name))] {
		return nil, ErrFileType
	}
	objectPath := fmt.Sprintf("%s/%s/%d-%s", scope.CompanyID(), propertyID, s.now().UnixMilli(), name)

	signedURL, err := s.Client.CreateSignedUploadURL(ctx, s.bucket(), objectPath)
	if err != nil {
		return nil, err
	}
	return &UploadResult{
		UploadURL: signedURL,
		PublicURL: s.publicPrefix() + objectPath,
		Path:      objectPath,
	}, nil
}

func (s *Service) publicPrefix() string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/", strings.TrimRight(s.SupabaseURL, "/"), s.bucket())
}

// CheckPublicURL verifies that url points into the scope's folder of the bucket.
func (s *Service) CheckPublicURL(scope tenant.Scope, url string) error {
	prefix := s.publicPrefix() + scope.CompanyID().String() + "/"
	if !scope.Valid() || !strings.HasPrefix(url, prefix) || strings.Contains(url[len(prefix):], "..") {
		return ErrForeignObject
	}
	return nil
}

// sanitize keeps letters, digits, dot, dash and underscore of the base name.
func sanitize(fileName string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
