package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtract(t *testing.T) {
	var gotAuth, gotFilename, gotType string
	var gotData []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/extract/profile" {
			t.Errorf("path = %q, want /v1/extract/profile", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"experiences": [{"title": "Engineer", "organization": "Acme", "startDate": "2019-04"},
			                {"title": "", "organization": "No title"}],
			"skills": [{"name": "Go"}]
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "key-1")
	got, err := c.Extract(context.Background(), "cv.pdf", "application/pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if gotAuth != "Bearer key-1" {
		t.Errorf("Authorization = %q, want Bearer key-1", gotAuth)
	}
	if gotFilename != "cv.pdf" || gotType != "application/pdf" || string(gotData) != "%PDF-1.7" {
		t.Errorf("upload = %q %q %q", gotFilename, gotType, gotData)
	}
	if len(got.Experiences) != 1 || got.Experiences[0].Title != "Engineer" {
		t.Errorf("experiences = %+v, want only the valid one", got.Experiences)
	}
	if len(got.Skills) != 1 {
		t.Errorf("skills = %d, want 1", len(got.Skills))
	}
	if got.Educations == nil {
		t.Error("educations should be an empty list, not nil")
	}
}

func TestExtractServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	if _, err := c.Extract(context.Background(), "cv.pdf", "", []byte("x")); err == nil {
		t.Fatal("expected error for service failure")
	}
}

func TestConfigured(t *testing.T) {
	if NewClient("", "k").Configured() {
		t.Error("expected Configured() = false without url")
	}
	if !NewClient("https://extract.test", "").Configured() {
		t.Error("expected Configured() = true with url")
	}
}
