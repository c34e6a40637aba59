package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSMiddlewareAllowsApprovalWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware())
	router.PUT("/api/photos/:id/approval", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/api/photos/photo_1/approval", http.NoBody)
	request.Header.Set("Origin", "https://dashboard.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPut)
	request.Header.Set("Access-Control-Request-Headers", "Content-Type")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}

	allowMethods := recorder.Header().Get("Access-Control-Allow-Methods")
	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		if !strings.Contains(allowMethods, method) {
			t.Fatalf("expected Access-Control-Allow-Methods to include %s, got %q", method, allowMethods)
		}
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "https://dashboard.example.com" {
		t.Fatalf("expected origin to be echoed, got %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
	if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be enabled")
	}
}
