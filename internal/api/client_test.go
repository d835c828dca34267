package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/satsuralala/face-detection/internal/domain"
)

func TestListPeople(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/people" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]domain.Person{
			{ID: "p1", Name: "Bat"},
			{MongoID: "656f00", Name: "Saruul"},
		})
	}))
	defer srv.Close()

	people, err := NewClient(srv.URL).ListPeople(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}
	if people[0].Key() != "p1" {
		t.Errorf("expected key p1, got %s", people[0].Key())
	}
	if people[1].Key() != "656f00" {
		t.Errorf("expected mongo id fallback, got %s", people[1].Key())
	}
}

func TestGetPerson_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"person not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetPerson(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestRegisterPerson_EmbedsPhoto(t *testing.T) {
	photo := filepath.Join(t.TempDir(), "face.jpg")
	if err := os.WriteFile(photo, []byte{0xff, 0xd8, 0xff, 0xd9}, 0o644); err != nil {
		t.Fatal(err)
	}

	var received domain.Person
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/person" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received.ID = "p9"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(received)
	}))
	defer srv.Close()

	created, err := NewClient(srv.URL).RegisterPerson(context.Background(), domain.Person{Name: "Bat"}, photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "p9" {
		t.Errorf("expected assigned id, got %q", created.ID)
	}
	if !strings.HasPrefix(received.Img, "data:image/jpeg;base64,") {
		t.Errorf("expected photo embedded as data URI, got %q", received.Img)
	}
}
