package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendaflow/lead-api/internal/actor"
	"github.com/vendaflow/lead-api/internal/http/middleware"
)

func resolveActor(t *testing.T, req *http.Request) *actor.Actor {
	var got *actor.Actor
	handler := middleware.ActorContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor.FromContext(r.Context())
		require.True(t, ok)
		got = a
	}))

	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	return got
}

func TestActorContext_IdentityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", nil)
	req.Header.Set(middleware.HeaderActorID, "user-7")
	req.Header.Set(middleware.HeaderActorName, "Paula Mendes")
	req.Header.Set(middleware.HeaderChannel, "web")
	req.Header.Set("X-Request-ID", "req-123")

	a := resolveActor(t, req)
	assert.Equal(t, "user-7", a.ID)
	assert.Equal(t, "Paula Mendes", a.Name)
	assert.Equal(t, "web", a.Channel)
	assert.Equal(t, "req-123", a.RequestID)
}

func TestActorContext_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)

	a := resolveActor(t, req)
	assert.Equal(t, "anonymous", a.ID)
	assert.Equal(t, "anonymous", a.Name)
	assert.Equal(t, "api", a.Channel)
	assert.Nil(t, a.UTM)
}

func TestActorContext_NameFallsBackToID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
	req.Header.Set(middleware.HeaderActorID, "user-9")

	a := resolveActor(t, req)
	assert.Equal(t, "user-9", a.Name)
}

func TestActorContext_CapturesUTMParameters(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/leads?utm_source=newsletter&utm_campaign=spring&other=ignored", nil)

	a := resolveActor(t, req)
	require.NotNil(t, a.UTM)
	assert.Equal(t, "newsletter", a.UTM["utm_source"])
	assert.Equal(t, "spring", a.UTM["utm_campaign"])
	assert.NotContains(t, a.UTM, "other")
	assert.NotContains(t, a.UTM, "utm_medium")
}

func TestActorContext_Provenance(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads?utm_source=ads", nil)
	req.Header.Set(middleware.HeaderChannel, "mobile")
	req.Header.Set("X-Request-ID", "req-55")

	a := resolveActor(t, req)
	meta := a.Provenance()
	assert.Equal(t, "mobile", meta["channel"])
	assert.Equal(t, "req-55", meta["requestId"])

	utm, ok := meta["utm"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ads", utm["utm_source"])
}
