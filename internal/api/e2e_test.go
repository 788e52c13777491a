package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeWithSummarySectionEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signup(t, "alice")

	rec := srv.do(t, http.MethodPost, "/v1/resumes", map[string]any{"title": "My CV"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "My CV", created["title"])
	assert.Equal(t, "classic", created["template_name"])
	assert.Empty(t, created["sections"])
	assert.NotNil(t, created["sections"])
	assert.Equal(t, map[string]any{
		"id":            created["style"].(map[string]any)["id"],
		"primary_color": "#000000",
		"font_family":   "Inter",
		"font_size":     float64(10),
	}, created["style"])

	resumeID := uint(created["id"].(float64))
	rec = srv.do(t, http.MethodPost, fmt.Sprintf("/v1/resumes/%d/sections", resumeID), map[string]any{"type": "summary"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, fmt.Sprintf("/v1/resumes/%d", resumeID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	sections := decode(t, rec)["sections"].([]any)
	require.Len(t, sections, 1)
	section := sections[0].(map[string]any)
	assert.Equal(t, "summary", section["type"])
	assert.Equal(t, map[string]any{"text": ""}, section["content"])
	assert.Equal(t, float64(1), section["order"])
}

func TestShareThenPublicFetchEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	token := srv.signup(t, "alice")
	resumeID := srv.createResume(t, token, "Shared CV")
	rec := srv.do(t, http.MethodPost, fmt.Sprintf("/v1/resumes/%d/sections", resumeID),
		map[string]any{"type": "contact", "content": map[string]any{"name": "Alice"}}, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, http.MethodPost, fmt.Sprintf("/v1/resumes/%d/share", resumeID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	share := decode(t, rec)
	shareID := share["share_id"].(string)
	require.NotEmpty(t, shareID)
	assert.Equal(t, "https://cv.example.com/share/"+shareID, share["share_url"])

	rec = srv.do(t, http.MethodPost, fmt.Sprintf("/v1/resumes/%d/share", resumeID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, shareID, decode(t, rec)["share_id"])

	rec = srv.do(t, http.MethodGet, "/v1/public/resume/"+shareID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	public := decode(t, rec)
	assert.Equal(t, "Shared CV", public["title"])
	assert.Equal(t, "classic", public["template_name"])
	assert.Len(t, public["sections"], 1)
	assert.NotNil(t, public["style"])
	for _, key := range []string{"user_id", "owner_id", "owner", "email", "share_id", "created_at", "updated_at"} {
		assert.NotContains(t, public, key)
	}
	assert.NotContains(t, rec.Body.String(), "alice@example.com")
}

func TestPublicUnknownShareID(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, "/v1/public/resume/does-not-exist", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["code"])
}

func TestPublicEndpointIsRateLimited(t *testing.T) {
	srv := newTestServer(t, withPublicRateLimit(0.001, 2))
	for i := 0; i < 2; i++ {
		rec := srv.do(t, http.MethodGet, "/v1/public/resume/nope", nil, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := srv.do(t, http.MethodGet, "/v1/public/resume/nope", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, rec)["code"])
}
