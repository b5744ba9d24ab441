package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "label.png")
	if err := os.WriteFile(path, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestRemoteExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("image field missing: %v", err)
		} else {
			file.Close()
			if header.Filename != "label.png" {
				t.Errorf("unexpected filename %s", header.Filename)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " 配料：水，白砂糖 \n"})
	}))
	defer srv.Close()

	remote, err := NewRemote(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}

	text, err := remote.ExtractText(context.Background(), writeTempImage(t))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "配料：水，白砂糖" {
		t.Fatalf("expected trimmed text, got %q", text)
	}
}

func TestRemoteExtractTextHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ocr backend down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	remote, err := NewRemote(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}

	_, err = remote.ExtractText(context.Background(), writeTempImage(t))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "http status 503") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestRemoteExtractTextBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	remote, err := NewRemote(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}

	_, err = remote.ExtractText(context.Background(), writeTempImage(t))
	if err == nil || !strings.Contains(err.Error(), "response parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestRemoteExtractTextMissingImage(t *testing.T) {
	remote, err := NewRemote("http://127.0.0.1:1", time.Second)
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}
	_, err = remote.ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	if err == nil || !strings.Contains(err.Error(), "open image") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestNewRemoteRequiresEndpoint(t *testing.T) {
	if _, err := NewRemote("  ", time.Second); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

func TestRemoteExtractTextContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	remote, err := NewRemote(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := remote.ExtractText(ctx, writeTempImage(t)); err == nil {
		t.Fatal("expected an error on canceled context")
	}
}
