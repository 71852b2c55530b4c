package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"

	"resumate/internal/config"
)

func TestParseBucketLookup(t *testing.T) {
	cases := map[string]minio.BucketLookupType{
		"":     minio.BucketLookupAuto,
		"AUTO": minio.BucketLookupAuto,
		"dns":  minio.BucketLookupDNS,
		"path": minio.BucketLookupPath,
	}
	for raw, want := range cases {
		got, err := parseBucketLookup(raw)
		if err != nil || got != want {
			t.Fatalf("%q: got %v, %v", raw, got, err)
		}
	}
	if _, err := parseBucketLookup("virtual"); err == nil {
		t.Fatalf("expected error for unknown lookup")
	}
}

func TestPublicTarget(t *testing.T) {
	host, secure, err := publicTarget(config.MinIOConfig{Endpoint: "minio:9000", PublicEndpoint: "https://files.example.com"})
	if err != nil || host != "files.example.com" || !secure {
		t.Fatalf("unexpected public target %q %v %v", host, secure, err)
	}

	host, secure, err = publicTarget(config.MinIOConfig{Endpoint: "minio:9000"})
	if err != nil || host != "minio:9000" || secure {
		t.Fatalf("expected internal endpoint fallback, got %q %v %v", host, secure, err)
	}

	if _, _, err := publicTarget(config.MinIOConfig{PublicEndpoint: "files.example.com"}); err == nil {
		t.Fatalf("expected error for endpoint without scheme")
	}
}

func TestIsNoSuchKey(t *testing.T) {
	wrapped := fmt.Errorf("remove: %w", minio.ErrorResponse{Code: "NoSuchKey"})
	if !IsNoSuchKey(wrapped) {
		t.Fatalf("expected wrapped NoSuchKey to match")
	}
	if IsNoSuchKey(errors.New("access denied")) || IsNoSuchKey(nil) {
		t.Fatalf("unexpected match")
	}
}
