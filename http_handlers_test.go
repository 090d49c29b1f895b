package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*echo.Echo, *ServiceImpl) {
	t.Helper()
	cfg := DefaultConfig()
	svc := NewService(NewMemoryRepository(), nil, nil, cfg, log.New(io.Discard))
	return NewHTTPRouter(svc, nil, nil, nil, cfg), svc
}

func doJSON(router *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionHandler(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token      string `json:"token"`
		ListenerID string `json:"listener_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.ListenerID)
}

func TestSuggestionEndpoints(t *testing.T) {
	t.Run("create returns 201", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(router, http.MethodPost, "/api/suggestions",
			`{"video_id":"abc12345678","title":"A"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var s Suggestion
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
		assert.Equal(t, "abc12345678", s.VideoID)
		assert.Equal(t, int64(1), s.Votes)
	})

	t.Run("url body accepted", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(router, http.MethodPost, "/api/suggestions",
			`{"url":"https://youtu.be/abc12345678","title":"A"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("duplicate returns 409", func(t *testing.T) {
		router, _ := newTestRouter(t)
		doJSON(router, http.MethodPost, "/api/suggestions", `{"video_id":"abc12345678","title":"A"}`)
		rec := doJSON(router, http.MethodPost, "/api/suggestions", `{"video_id":"abc12345678","title":"A"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(router, http.MethodPost, "/api/suggestions", `{"video_id":"nope","title":"A"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list is ranked by votes", func(t *testing.T) {
		router, svc := newTestRouter(t)
		doJSON(router, http.MethodPost, "/api/suggestions", `{"video_id":"abc12345678","title":"A"}`)
		doJSON(router, http.MethodPost, "/api/suggestions", `{"video_id":"xyz98765432","title":"B"}`)

		suggestions, err := svc.Suggestions()
		require.NoError(t, err)
		_, err = svc.Vote(suggestions[1].ID, "another-listener")
		require.NoError(t, err)

		rec := doJSON(router, http.MethodGet, "/api/suggestions", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var listed []Suggestion
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
		require.Len(t, listed, 2)
		assert.Equal(t, "B", listed[0].Title)
	})
}

func TestVoteEndpoint(t *testing.T) {
	t.Run("unknown id returns 404", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(router, http.MethodPost, "/api/suggestions/missing/vote", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("vote returns updated suggestion", func(t *testing.T) {
		router, svc := newTestRouter(t)
		created, err := svc.Suggest("abc12345678", "A", "someone-else")
		require.NoError(t, err)

		rec := doJSON(router, http.MethodPost, "/api/suggestions/"+created.ID+"/vote", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var s Suggestion
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
		assert.Equal(t, int64(2), s.Votes)
	})

	t.Run("repeat vote from same address returns 403", func(t *testing.T) {
		router, svc := newTestRouter(t)
		created, err := svc.Suggest("abc12345678", "A", "someone-else")
		require.NoError(t, err)

		doJSON(router, http.MethodPost, "/api/suggestions/"+created.ID+"/vote", "")
		rec := doJSON(router, http.MethodPost, "/api/suggestions/"+created.ID+"/vote", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("listener token names the voter", func(t *testing.T) {
		router, svc := newTestRouter(t)
		created, err := svc.Suggest("abc12345678", "A", "someone-else")
		require.NoError(t, err)

		var session struct {
			Token string `json:"token"`
		}
		rec := doJSON(router, http.MethodPost, "/api/session", "")
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

		// same remote address, but a distinct token identity
		doJSON(router, http.MethodPost, "/api/suggestions/"+created.ID+"/vote", "")

		req := httptest.NewRequest(http.MethodPost, "/api/suggestions/"+created.ID+"/vote", nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		tokenRec := httptest.NewRecorder()
		router.ServeHTTP(tokenRec, req)
		assert.Equal(t, http.StatusOK, tokenRec.Code)
	})
}

func TestPlaylistEndpoints(t *testing.T) {
	t.Run("get returns current order", func(t *testing.T) {
		router, svc := newTestRouter(t)
		require.NoError(t, svc.repo.ReplacePlaylist([]Song{
			{VideoID: "abc12345678", Title: "A"},
			{VideoID: "xyz98765432", Title: "B"},
		}))

		rec := doJSON(router, http.MethodGet, "/api/playlist", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var playlist []Song
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &playlist))
		require.Len(t, playlist, 2)
		assert.Equal(t, "abc12345678", playlist[0].VideoID)
	})

	t.Run("save applies the new order for every later reader", func(t *testing.T) {
		router, svc := newTestRouter(t)
		require.NoError(t, svc.repo.ReplacePlaylist([]Song{
			{VideoID: "abc12345678", Title: "A"},
			{VideoID: "xyz98765432", Title: "B"},
			{VideoID: "qrs55555555", Title: "C"},
		}))

		rec := doJSON(router, http.MethodPost, "/api/playlist",
			`[{"video_id":"qrs55555555","title":"C"},
			  {"video_id":"abc12345678","title":"A"},
			  {"video_id":"xyz98765432","title":"B"}]`)
		require.Equal(t, http.StatusOK, rec.Code)

		for i := 0; i < 3; i++ {
			getRec := doJSON(router, http.MethodGet, "/api/playlist", "")
			var playlist []Song
			require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &playlist))
			assert.Equal(t, "qrs55555555", playlist[0].VideoID)
		}
	})

	t.Run("non-permutation returns 400", func(t *testing.T) {
		router, svc := newTestRouter(t)
		require.NoError(t, svc.repo.ReplacePlaylist([]Song{
			{VideoID: "abc12345678", Title: "A"},
		}))

		rec := doJSON(router, http.MethodPost, "/api/playlist",
			`[{"video_id":"zzz99999999","title":"Z"}]`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPromoteEndpoint(t *testing.T) {
	t.Run("empty queue returns 409", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(router, http.MethodPost, "/api/promote_winner", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("winner text returned", func(t *testing.T) {
		router, svc := newTestRouter(t)
		_, err := svc.Suggest("abc12345678", "A", "v1")
		require.NoError(t, err)

		rec := doJSON(router, http.MethodPost, "/api/promote_winner", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "promoted to playlist")
	})
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("missing query returns 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(router, http.MethodGet, "/api/search", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unconfigured search returns 503", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := doJSON(router, http.MethodGet, "/api/search?q=test", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestNowPlayingEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodGet, "/api/now_playing", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var np NowPlaying
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &np))
	assert.Equal(t, "idle", np.State)
}
