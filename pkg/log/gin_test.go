package log

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestGinMiddleware_TagsGroupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(GinMiddleware(zerolog.New(&buf)))
	r.PUT("/api/v1/groups/:name/name", func(c *gin.Context) {
		c.Set(FieldUsername, "alice")
		ctx := WithActor(c.Request.Context(), "alice")
		l := Ctx(ctx)
		l.Info().Msg("renaming")
		c.Status(http.StatusForbidden)
	})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/groups/devs/name", nil)
	req.Header.Set(headerRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(headerRequestID))

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)

	inner := lines[0]
	assert.Equal(t, "renaming", inner["message"])
	assert.Equal(t, "devs", inner[FieldGroup])
	assert.Equal(t, "alice", inner[FieldUsername])
	assert.Equal(t, "req-1", inner[FieldRequestID])

	done := lines[1]
	assert.Equal(t, "warn", done["level"])
	assert.Equal(t, "/api/v1/groups/:name/name", done[FieldRoute])
	assert.Equal(t, "devs", done[FieldGroup])
	assert.Equal(t, "alice", done[FieldUsername])
	assert.EqualValues(t, http.StatusForbidden, done[FieldStatus])
}

func TestGinMiddleware_UntaggedOutsideGroups(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(GinMiddleware(zerolog.New(&buf)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.NotContains(t, lines[0], FieldGroup)
	assert.NotContains(t, lines[0], FieldUsername)
}
