package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestStatic_Extract(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Example Article">
			<meta name="description" content="An example page">
			<meta name="keywords" content="news, example">
		</head></html>`))
	}))
	defer srv.Close()

	s := NewStatic(srv.Client(), "test-agent/1.0")
	meta, err := s.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if gotUA != "test-agent/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "test-agent/1.0")
	}
	if meta.Title != "Example Article" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "An example page" {
		t.Errorf("Description = %q", meta.Description)
	}
	if want := []string{"news", "example"}; !reflect.DeepEqual(meta.Tags, want) {
		t.Errorf("Tags = %v, want %v", meta.Tags, want)
	}
	if meta.URL != srv.URL {
		t.Errorf("URL = %q, want %q", meta.URL, srv.URL)
	}
}

func TestStatic_Extract_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStatic(srv.Client(), "test-agent/1.0")
	if _, err := s.Extract(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestStatic_Extract_InvalidURL(t *testing.T) {
	s := NewStatic(http.DefaultClient, "test-agent/1.0")

	for _, target := range []string{"", "not a url", "ftp://example.com/file"} {
		if _, err := s.Extract(context.Background(), target); err == nil {
			t.Errorf("Extract(%q) should fail", target)
		}
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		contentType string
		target      string
		want        bool
	}{
		{"application/pdf", "https://example.com/doc", true},
		{"application/pdf; charset=binary", "https://example.com/doc", true},
		{"text/html", "https://example.com/paper.pdf", true},
		{"text/html", "https://example.com/page", false},
	}
	for _, tt := range tests {
		if got := isPDF(tt.contentType, tt.target); got != tt.want {
			t.Errorf("isPDF(%q, %q) = %v, want %v", tt.contentType, tt.target, got, tt.want)
		}
	}
}
