package storage

import (
	"errors"
	"testing"
)

func TestParseDescriptorS3(t *testing.T) {
	desc, err := ParseDescriptor("s3://us-west-2.results/crawl/out")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if desc.Scheme != "s3" {
		t.Errorf("unexpected scheme: %q", desc.Scheme)
	}
	if desc.Region != "us-west-2" || desc.Bucket != "results" || desc.Path != "crawl/out" {
		t.Errorf("unexpected fields: %+v", desc)
	}
}

func TestParseDescriptorFile(t *testing.T) {
	desc, err := ParseDescriptor("file:///tmp/out")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if desc.Scheme != "file" || desc.Path != "/tmp/out" {
		t.Errorf("unexpected fields: %+v", desc)
	}
}

func TestParseDescriptorEmptyIsStdout(t *testing.T) {
	desc, err := ParseDescriptor("")
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if !desc.IsZero() {
		t.Errorf("expected zero descriptor, got %+v", desc)
	}
}

func TestParseDescriptorRejectsBadURIs(t *testing.T) {
	testCases := []struct {
		name string
		uri  string
	}{
		{"unknown scheme", "http://bucket/key"},
		{"bare path", "/tmp/out"},
		{"s3 without region", "s3://bucket/key"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseDescriptor(tc.uri); !errors.Is(err, ErrBadURI) {
				t.Errorf("expected ErrBadURI for %q, got %v", tc.uri, err)
			}
		})
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	creds, err := CredentialsFromEnv()
	if err != nil {
		t.Fatalf("failed to resolve credentials: %v", err)
	}
	if creds.AccessKeyID != "AKIAEXAMPLE" || creds.SecretAccessKey != "secret" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestCredentialsMissing(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	if _, err := CredentialsFromEnv(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}
