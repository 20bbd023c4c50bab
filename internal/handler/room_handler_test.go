package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-room/internal/middleware"
	"github.com/stemsi/exstem-room/internal/service"
)

func TestTokenID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := tokenID(c); got != "" {
		t.Fatalf("expected empty token id without claims, got %q", got)
	}

	c.Set(middleware.ContextKeyClaims, &service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "7c1e"},
		TokenType:        service.TokenTypeExaminer,
	})
	if got := tokenID(c); got != "7c1e" {
		t.Fatalf("expected 7c1e, got %q", got)
	}
}
