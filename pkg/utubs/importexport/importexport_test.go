package importexport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/auth"
	"github.com/mikepea/utubs/pkg/utubs/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	user := models.User{Username: username, Email: username + "@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestUTub(t *testing.T, db *gorm.DB, owner models.User) models.UTub {
	utub := models.UTub{Name: "Reading", OwnerID: owner.ID}
	if err := db.Create(&utub).Error; err != nil {
		t.Fatalf("Failed to create test UTub: %v", err)
	}
	db.Create(&models.UTubMember{UTubID: utub.ID, UserID: owner.ID, Role: models.MemberRoleOwner})
	return utub
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(db).RegisterRoutes(r.Group("", auth.AuthMiddleware()))
	return r
}

func doRequest(router *gin.Engine, method, path string, user models.User, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	token, _ := auth.GenerateToken(user.ID, user.Username)
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestImport(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner")
	utub := createTestUTub(t, db, owner)
	db.Create(&models.UTubTag{UTubID: utub.ID, Label: "go"})

	req := api.ImportRequest{Bookmarks: []api.Bookmark{
		{Href: "go.dev", Description: "Go", Tags: "go lang go", Time: "2024-01-15T10:30:00Z"},
		{Href: "https://example.com", Tags: "a b c d e f"},
		{Href: "https://go.dev"},
		{Href: "ftp://example.com"},
		{Href: "https://example.org", Time: "yesterday"},
	}}

	resp := doRequest(router, "POST", fmt.Sprintf("/utubs/%d/import", utub.ID), owner, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result api.ImportResult
	json.Unmarshal(resp.Body.Bytes(), &result)

	if result.Imported != 2 {
		t.Errorf("Expected 2 imported, got %d", result.Imported)
	}
	if result.Skipped != 3 || len(result.Errors) != 3 {
		t.Errorf("Expected 3 skipped with errors, got %d: %v", result.Skipped, result.Errors)
	}

	var goURL models.UTubURL
	db.Preload("Tags").Where("url_string = ?", "https://go.dev").First(&goURL)
	if goURL.Title != "Go" {
		t.Errorf("Expected title 'Go', got %q", goURL.Title)
	}
	if len(goURL.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %d", len(goURL.Tags))
	}
	if goURL.CreatedAt.Year() != 2024 {
		t.Errorf("Expected the bookmark time to be kept, got %v", goURL.CreatedAt)
	}

	var untitled models.UTubURL
	db.Preload("Tags").Where("url_string = ?", "https://example.com").First(&untitled)
	if untitled.Title != "https://example.com" {
		t.Errorf("Expected the href as title, got %q", untitled.Title)
	}
	if len(untitled.Tags) != api.MaxTagsPerURL {
		t.Errorf("Expected %d tags, got %d", api.MaxTagsPerURL, len(untitled.Tags))
	}

	var goTags int64
	db.Model(&models.UTubTag{}).Where("utub_id = ? AND label = ?", utub.ID, "go").Count(&goTags)
	if goTags != 1 {
		t.Errorf("Expected the existing 'go' tag to be reused, got %d", goTags)
	}
}

func TestImportNotMember(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner")
	stranger := createTestUser(t, db, "stranger")
	utub := createTestUTub(t, db, owner)

	req := api.ImportRequest{Bookmarks: []api.Bookmark{{Href: "https://go.dev"}}}
	resp := doRequest(router, "POST", fmt.Sprintf("/utubs/%d/import", utub.ID), stranger, req)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestExport(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner")
	utub := createTestUTub(t, db, owner)

	tag := models.UTubTag{UTubID: utub.ID, Label: "go"}
	db.Create(&tag)
	db.Create(&models.UTubURL{UTubID: utub.ID, AddedByID: owner.ID, URLString: "https://go.dev", Title: "Go", Tags: []models.UTubTag{tag}})
	db.Create(&models.UTubURL{UTubID: utub.ID, AddedByID: owner.ID, URLString: "https://pkg.go.dev", Title: "Packages"})

	path := fmt.Sprintf("/utubs/%d/export", utub.ID)
	resp := doRequest(router, "GET", path, owner, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("Content-Disposition") != "" {
		t.Error("Expected no Content-Disposition without download")
	}

	var bookmarks []api.Bookmark
	json.Unmarshal(resp.Body.Bytes(), &bookmarks)
	if len(bookmarks) != 2 {
		t.Fatalf("Expected 2 bookmarks, got %d", len(bookmarks))
	}
	if bookmarks[0].Href != "https://go.dev" || bookmarks[0].Description != "Go" || bookmarks[0].Tags != "go" {
		t.Errorf("Unexpected first bookmark %+v", bookmarks[0])
	}
	if bookmarks[0].Time == "" {
		t.Error("Expected a time on the bookmark")
	}

	resp = doRequest(router, "GET", path+"?download=true", owner, nil)
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected an attachment, got %q", cd)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner")
	from := createTestUTub(t, db, owner)
	to := createTestUTub(t, db, owner)

	tag := models.UTubTag{UTubID: from.ID, Label: "docs"}
	db.Create(&tag)
	db.Create(&models.UTubURL{UTubID: from.ID, AddedByID: owner.ID, URLString: "https://go.dev/doc", Title: "Docs", Tags: []models.UTubTag{tag}})

	resp := doRequest(router, "GET", fmt.Sprintf("/utubs/%d/export", from.ID), owner, nil)
	var bookmarks []api.Bookmark
	json.Unmarshal(resp.Body.Bytes(), &bookmarks)

	resp = doRequest(router, "POST", fmt.Sprintf("/utubs/%d/import", to.ID), owner, api.ImportRequest{Bookmarks: bookmarks})
	var result api.ImportResult
	json.Unmarshal(resp.Body.Bytes(), &result)
	if result.Imported != 1 {
		t.Fatalf("Expected 1 imported, got %+v", result)
	}

	var copied models.UTubURL
	if err := db.Preload("Tags").Where("utub_id = ?", to.ID).First(&copied).Error; err != nil {
		t.Fatalf("Expected the URL in the target UTub: %v", err)
	}
	if len(copied.Tags) != 1 || copied.Tags[0].UTubID != to.ID {
		t.Errorf("Expected a tag owned by the target UTub, got %+v", copied.Tags)
	}
}
