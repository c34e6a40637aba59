package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/photoreview/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSessionValidator struct {
	reviewer    auth.Reviewer
	validateErr error
}

func (s stubSessionValidator) ValidateRequest(*http.Request) (auth.Reviewer, error) {
	return s.reviewer, s.validateErr
}

func runAuthorizeReviewer(t *testing.T, sessions SessionValidator) (*httptest.ResponseRecorder, *gin.Context, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodPut, "/api/photos/photo_1/approval", http.NoBody)

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: sessions,
		logger:   zap.New(core),
	}
	handler.authorizeReviewer(ctx)
	return recorder, ctx, logs
}

func TestAuthorizeReviewerLogsExpiredSessionAtInfoLevel(t *testing.T) {
	recorder, _, logs := runAuthorizeReviewer(t, stubSessionValidator{validateErr: auth.ErrExpiredSessionToken})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired session, got %s", entry.Level)
	}
	if entry.Message != "reviewer session rejected" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired session error context, got %v", entry.Context)
	}
}

func TestAuthorizeReviewerLogsUnexpectedErrorAtWarnLevel(t *testing.T) {
	recorder, _, logs := runAuthorizeReviewer(t, stubSessionValidator{validateErr: errors.New("signature mismatch")})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestAuthorizeReviewerStoresReviewerID(t *testing.T) {
	recorder, ctx, _ := runAuthorizeReviewer(t, stubSessionValidator{reviewer: auth.Reviewer{ID: "reviewer-7"}})

	if ctx.IsAborted() {
		t.Fatalf("expected request to continue, got status %d", recorder.Code)
	}
	if reviewer := reviewerFrom(ctx); reviewer != "reviewer-7" {
		t.Fatalf("unexpected reviewer %q", reviewer)
	}
}

func TestAuthorizeReviewerWithoutSessionsIsAnonymous(t *testing.T) {
	_, ctx, logs := runAuthorizeReviewer(t, nil)

	if ctx.IsAborted() {
		t.Fatalf("expected request to continue")
	}
	if reviewer := reviewerFrom(ctx); reviewer != anonymousReviewer {
		t.Fatalf("unexpected reviewer %q", reviewer)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no log entries")
	}
}
