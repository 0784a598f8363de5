package clients

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SupabaseStorage stores private objects with the service-role key.
type SupabaseStorage struct {
	rest    restClient
	baseURL string
}

func NewSupabaseStorage(projectURL, serviceRoleKey string, httpClient *http.Client, logger *zap.Logger) *SupabaseStorage {
	base := projectURL + "/storage/v1"
	s := &SupabaseStorage{
		rest:    newRestClient("supabase-storage", base, httpClient, logger),
		baseURL: base,
	}
	s.rest.authorize = func(r *http.Request) {
		r.Header.Set("apikey", serviceRoleKey)
		r.Header.Set("Authorization", "Bearer "+serviceRoleKey)
	}
	return s
}

// Upload writes data at bucket/path. Existing objects are not overwritten.
func (s *SupabaseStorage) Upload(ctx context.Context, bucket, path, contentType string, data []byte) error {
	_, err := s.rest.do(ctx, http.MethodPost, "/object/"+bucket+"/"+escapePath(path), bytes.NewReader(data), func(r *http.Request) {
		r.Header.Set("Content-Type", contentType)
		r.Header.Set("x-upsert", "false")
	})
	return err
}

// SignedURL returns a time-limited download URL.
func (s *SupabaseStorage) SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error) {
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	err := s.rest.doJSON(ctx, http.MethodPost, "/object/sign/"+bucket+"/"+escapePath(path), map[string]int{
		"expiresIn": int(expiresIn.Seconds()),
	}, &out)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(out.SignedURL, "http") {
		return out.SignedURL, nil
	}
	return s.baseURL + out.SignedURL, nil
}

func (s *SupabaseStorage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.rest.doJSON(ctx, http.MethodDelete, "/object/"+bucket, map[string][]string{"prefixes": paths}, nil)
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
