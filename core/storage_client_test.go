package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestHTTPStorageClientUpload(t *testing.T) {
	var gotUpload *http.Request
	var gotBody []byte
	bucketCreated := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/storage/v1/bucket":
			bucketCreated = true
			w.WriteHeader(http.StatusConflict) // already exists
		case "/storage/v1/object/images/events/1/pic.jpg":
			gotUpload = r.Clone(context.Background())
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPStorageClient(srv.URL, "service-key", "images")
	url, err := client.UploadImage(context.Background(), "events/1/pic.jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}

	if !bucketCreated {
		t.Fatal("bucket was not ensured before upload")
	}
	if gotUpload == nil {
		t.Fatal("upload request never reached the server")
	}
	if got := gotUpload.Header.Get("Authorization"); got != "Bearer service-key" {
		t.Fatalf("Authorization = %q", got)
	}
	if got := gotUpload.Header.Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := gotUpload.Header.Get("x-upsert"); got != "true" {
		t.Fatalf("x-upsert = %q", got)
	}
	if string(gotBody) != "jpeg-bytes" {
		t.Fatalf("body = %q", gotBody)
	}
	want := srv.URL + "/storage/v1/object/public/images/events/1/pic.jpg"
	if url != want {
		t.Fatalf("public url = %q, want %q", url, want)
	}
}

func TestHTTPStorageClientConcurrentUploads(t *testing.T) {
	var bucketCreates atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/storage/v1/bucket" {
			bucketCreates.Add(1)
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPStorageClient(srv.URL, "service-key", "images")

	const uploads = 4
	errs := make([]error, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.UploadImage(context.Background(),
				fmt.Sprintf("events/1/%d.jpg", i), []byte("jpeg-bytes"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("upload %d error: %v", i, err)
		}
	}
	if n := bucketCreates.Load(); n != 1 {
		t.Fatalf("bucket created %d times, want 1", n)
	}
}

func TestHTTPStorageClientUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/storage/v1/bucket" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Unauthorized"}`))
	}))
	defer srv.Close()

	client := NewHTTPStorageClient(srv.URL, "bad-key", "images")
	if _, err := client.UploadImage(context.Background(), "x.jpg", []byte("data")); err == nil {
		t.Fatal("expected error on 403 upload")
	}
}

func TestHTTPStorageClientUnconfigured(t *testing.T) {
	client := NewHTTPStorageClient("", "", "images")
	if _, err := client.UploadImage(context.Background(), "x.jpg", []byte("data")); err == nil {
		t.Fatal("expected error when storage is unconfigured")
	}
}
