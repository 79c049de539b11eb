package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// StorageClient uploads image bytes and returns a public URL.
type StorageClient interface {
	UploadImage(ctx context.Context, path string, data []byte) (string, error)
}

// HTTPStorageClient talks to a Supabase-style storage API: objects are
// POSTed to /storage/v1/object/{bucket}/{path} with a bearer service
// key and read back anonymously under /storage/v1/object/public/.
type HTTPStorageClient struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client

	mu          sync.Mutex
	bucketReady bool
}

func NewHTTPStorageClient(baseURL, serviceKey, bucket string) *HTTPStorageClient {
	return &HTTPStorageClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// UploadImage stores JPEG bytes under path and returns the public URL.
func (s *HTTPStorageClient) UploadImage(ctx context.Context, path string, data []byte) (string, error) {
	if s.baseURL == "" || s.serviceKey == "" {
		return "", fmt.Errorf("storage not configured")
	}

	// Bucket creation is best effort: 409 means it already exists, and
	// a transient failure here still lets the upload itself decide.
	if err := s.readyBucket(ctx); err != nil {
		log.Printf("storage: could not ensure bucket %s: %v", s.bucket, err)
	}

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Cache-Control", "3600")
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("storage upload failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, path), nil
}

// readyBucket ensures the bucket exists at most once across concurrent
// uploads. Concurrent callers serialize here; after a failure the next
// upload tries again.
func (s *HTTPStorageClient) readyBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	s.bucketReady = true
	return nil
}

func (s *HTTPStorageClient) ensureBucket(ctx context.Context) error {
	payload := fmt.Sprintf(`{"id":%q,"name":%q,"public":true}`, s.bucket, s.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/storage/v1/bucket", strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("create bucket: status %d", resp.StatusCode)
	}
}
