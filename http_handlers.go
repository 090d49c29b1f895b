package main

// this file contains implementation of HTTP handlers - REST API

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
)

var (
	jwtSecret  []byte
	sessionTTL time.Duration
	service    Service
	hub        *Hub
	radio      *Radio
	yt         *YouTubeClient

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
)

func NewHTTPRouter(_service Service, _hub *Hub, _radio *Radio, _yt *YouTubeClient, cfg *Config) *echo.Echo {
	service = _service
	hub = _hub
	radio = _radio
	yt = _yt
	jwtSecret = []byte(cfg.Session.JWTSecret)
	sessionTTL = time.Duration(cfg.Session.TTLHours) * time.Hour

	r := echo.New()
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}\n",
	}))

	router := r.Group("/api")
	router.GET("/health", healthCheckHandler)
	router.POST("/session", sessionHandler)

	router.GET("/playlist", getPlaylistHandler)
	router.POST("/playlist", savePlaylistHandler)

	router.GET("/suggestions", getSuggestionsHandler)
	router.POST("/suggestions", newSuggestionHandler)
	router.POST("/suggestions/:id/vote", voteHandler)
	router.POST("/promote_winner", promoteWinnerHandler)

	router.GET("/search", searchHandler)
	router.GET("/now_playing", nowPlayingHandler)

	r.GET("/ws", wsHandler)

	return r
}

func healthCheckHandler(c echo.Context) error {
	return c.String(http.StatusOK, "I am up and running!")
}

// sessionHandler hands out a listener token. The token only names a
// voter for the one-vote-per-listener policy; there are no roles.
func sessionHandler(c echo.Context) error {
	listenerID := uuid.New().String()

	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)
	claims["listener_id"] = listenerID
	claims["exp"] = time.Now().Add(sessionTTL).Unix()
	t, err := token.SignedString(jwtSecret)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token":       t,
		"listener_id": listenerID,
	})
}

func getPlaylistHandler(c echo.Context) error {
	playlist, err := service.Playlist()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, playlist)
}

func savePlaylistHandler(c echo.Context) error {
	var songs []Song
	if err := c.Bind(&songs); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "Invalid data format",
		})
	}
	if err := service.ReorderPlaylist(songs); err != nil {
		return serviceError(c, err)
	}
	return c.String(http.StatusOK, "Playlist updated")
}

func getSuggestionsHandler(c echo.Context) error {
	suggestions, err := service.Suggestions()
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, RankSuggestions(suggestions))
}

func newSuggestionHandler(c echo.Context) error {
	form := struct {
		VideoID string `json:"video_id" form:"video_id"`
		URL     string `json:"url" form:"url"`
		Title   string `json:"title" form:"title"`
	}{}
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "Invalid data format",
		})
	}
	input := form.VideoID
	if input == "" {
		input = form.URL
	}

	suggestion, err := service.Suggest(input, form.Title, voterIdentity(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, suggestion)
}

func voteHandler(c echo.Context) error {
	suggestion, err := service.Vote(c.Param("id"), voterIdentity(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, suggestion)
}

func promoteWinnerHandler(c echo.Context) error {
	result, err := service.PromoteWinner()
	if err != nil {
		return serviceError(c, err)
	}
	return c.String(http.StatusOK, result)
}

func searchHandler(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "Query required",
		})
	}
	if yt == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"message": "Search is not configured",
		})
	}

	results, err := yt.Search(c.Request().Context(), query, 5)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, results)
}

func nowPlayingHandler(c echo.Context) error {
	if radio == nil {
		return c.JSON(http.StatusOK, NowPlaying{State: "idle"})
	}
	return c.JSON(http.StatusOK, radio.NowPlaying())
}

func wsHandler(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}

// voterIdentity names the caller for vote bookkeeping: the listener
// token when one is presented, the remote address otherwise.
func voterIdentity(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		raw := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return jwtSecret, nil
		})
		if err == nil && token.Valid {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if id, ok := claims["listener_id"].(string); ok && id != "" {
					return id
				}
			}
		}
	}
	return c.RealIP()
}

// serviceError maps engine failures onto HTTP statuses. Every failure
// leaves state untouched, so callers can simply refresh and retry.
func serviceError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ErrDuplicateSuggestion):
		status = http.StatusConflict
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrAlreadyVoted):
		status = http.StatusForbidden
	case errors.Is(err, ErrEmptyQueue):
		status = http.StatusConflict
	}
	return c.JSON(status, echo.Map{
		"message": err.Error(),
	})
}
