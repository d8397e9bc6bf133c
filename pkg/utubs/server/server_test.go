package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *bytes.Buffer) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	var buf bytes.Buffer
	return NewRouter(db, log.New(&buf)), &buf
}

func TestHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, path := range []string{"/health", "/api/health"} {
		req, _ := http.NewRequest("GET", path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, resp.Code)
		}
		var body map[string]string
		json.Unmarshal(resp.Body.Bytes(), &body)
		if body["status"] != "ok" {
			t.Errorf("%s: expected status ok, got %v", path, body)
		}
	}
}

func TestRequestID(t *testing.T) {
	router, _ := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Header().Get(HeaderRequestID) == "" {
		t.Error("Expected a generated request id")
	}

	const id = "6f1c1e4e-5b7a-4c8e-9d2a-0f3b2a1c9e11"
	req, _ = http.NewRequest("GET", "/health", nil)
	req.Header.Set(HeaderRequestID, id)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if got := resp.Header().Get(HeaderRequestID); got != id {
		t.Errorf("Expected request id %s to be echoed, got %s", id, got)
	}

	req, _ = http.NewRequest("GET", "/health", nil)
	req.Header.Set(HeaderRequestID, "not-a-uuid")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if got := resp.Header().Get(HeaderRequestID); got == "not-a-uuid" {
		t.Error("Expected a malformed request id to be replaced")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, logs := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/api/utubs", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
	if !bytes.Contains(logs.Bytes(), []byte("status=401")) {
		t.Errorf("Expected the request to be logged, got %q", logs.String())
	}
}
