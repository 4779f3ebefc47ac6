package backend

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/config"
	"github.com/averko/supportline/internal/domain"
)

// ClientTokenMiddleware tags every browser with a stable opaque token.
// There is no auth; the token only distinguishes clients.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires the REST API, the session websocket endpoint and the
// meeting signaling relay.
func SetupRouter(ctx context.Context, cfg *config.Config, store *Store, hub *Hub, relay *Relay) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SupportSessions", cookieStore))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")

	api.POST("/sessions/", func(c *gin.Context) {
		var req struct {
			Title    string `json:"title"`
			AgentID  string `json:"agent_id"`
			Customer string `json:"customer_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		sess := store.CreateSession(req.Title, domain.Identity(req.AgentID), domain.Identity(req.Customer))
		c.JSON(http.StatusCreated, sess)
	})

	api.GET("/sessions/list/", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.ListSessions())
	})

	api.POST("/sessions/:id/close/", func(c *gin.Context) {
		id := domain.SessionID(c.Param("id"))
		if !store.CloseSession(id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/sessions/:id/messages/", func(c *gin.Context) {
		id := domain.SessionID(c.Param("id"))
		if _, ok := store.Session(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		c.JSON(http.StatusOK, store.Messages(id))
	})

	api.POST("/sessions/:id/meetings/create/", func(c *gin.Context) {
		id := domain.SessionID(c.Param("id"))
		var req struct {
			Creator      string `json:"creator"`
			OneTime      bool   `json:"one_time"`
			AllowedCount int    `json:"allowed_count"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		if req.AllowedCount <= 0 {
			req.AllowedCount = 2
		}
		link, ok := store.CreateMeeting(id, domain.Identity(req.Creator), req.OneTime, req.AllowedCount)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown or closed session"})
			return
		}
		log.Info().Str("module", "backend.api").Str("session", string(id)).Str("link", string(link.ID)).Msg("meeting link created")
		c.JSON(http.StatusCreated, gin.H{"id": link.ID})
	})

	api.GET("/meetings/:id/validate/", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.ValidateMeeting(domain.LinkID(c.Param("id"))))
	})

	api.POST("/meetings/:id/issue/", func(c *gin.Context) {
		id := domain.LinkID(c.Param("id"))
		var req struct {
			Identity string `json:"identity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Identity == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing identity"})
			return
		}
		access, reason := store.IssueToken(id, domain.Identity(req.Identity))
		if reason != "" {
			c.JSON(http.StatusForbidden, gin.H{"error": reason})
			return
		}
		hub.BroadcastMeetingStarted(access.Session, id)
		c.JSON(http.StatusOK, access)
	})

	r.GET("/ws/sessions/:id/", func(c *gin.Context) {
		hub.HandleSession(ctx, c)
	})

	r.GET("/ws/meetings/:room/", func(c *gin.Context) {
		relay.HandleMeeting(ctx, c)
	})

	return r
}
