package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/magnecruit/backend/internal/ws"
)

// RouterConfig carries the pieces the router wires together.
type RouterConfig struct {
	AllowedOrigins []string
	WSHandler      *ws.Handler
}

// NewRouter builds the gin engine with CORS, the public auth surface and the
// authenticated API.
func (s *Server) NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", s.healthcheck)

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", s.login)
		authGroup.POST("/logout", s.logout)
		authGroup.GET("/session", s.session)
	}

	protected := router.Group("/")
	protected.Use(s.auth.RequireAuth())
	{
		protected.GET("/api/chat/conversations", s.listConversations)

		protected.GET("/api/job-sections/get/:conversationID", s.getJob)
		protected.POST("/api/job-sections/save", s.saveJob)
		protected.POST("/api/job-sections/generate", s.generateSampleJob)

		protected.GET("/api/job-sequence/get/:conversationID", s.getSequence)
		protected.POST("/api/job-sequence/save", s.saveSequence)
		protected.POST("/api/job-sequence/generate", s.generateSampleSequence)

		protected.POST("/api/linkedin-post/generate", s.generateLinkedInPost)

		if cfg.WSHandler != nil {
			protected.GET("/ws", cfg.WSHandler.Serve)
		}
	}

	return router
}

// CheckOrigin builds the websocket origin check from the CORS allow list.
func CheckOrigin(allowed []string) func(*http.Request) bool {
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return allowedSet[origin]
	}
}
