package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupWebhookRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhooks/voice", WebhookAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return router
}

func TestWebhookAuth_ValidToken(t *testing.T) {
	router := setupWebhookRouter("super-secret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", nil)
	req.Header.Set("X-Webhook-Token", "super-secret")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "success")
}

func TestWebhookAuth_MissingToken(t *testing.T) {
	router := setupWebhookRouter("super-secret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}

func TestWebhookAuth_WrongToken(t *testing.T) {
	router := setupWebhookRouter("super-secret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", nil)
	req.Header.Set("X-Webhook-Token", "guess")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookAuth_NoSecretConfigured(t *testing.T) {
	// An empty secret disables the check so local setups work without
	// configuring the vendor side.
	router := setupWebhookRouter("")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
