package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/magnecruit/backend/internal/auth"
	"github.com/magnecruit/backend/internal/chat"
	"github.com/magnecruit/backend/internal/store"
	"github.com/magnecruit/backend/internal/workspace"
)

// Server bundles the HTTP handlers with their collaborators.
type Server struct {
	store        *store.Store
	auth         *auth.Service
	orchestrator *chat.Orchestrator
	jobs         *workspace.Jobs
	sequences    *workspace.Sequences
	logger       *zap.Logger
}

func New(st *store.Store, authSvc *auth.Service, orchestrator *chat.Orchestrator, jobs *workspace.Jobs, sequences *workspace.Sequences, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:        st,
		auth:         authSvc,
		orchestrator: orchestrator,
		jobs:         jobs,
		sequences:    sequences,
		logger:       logger.With(zap.String("component", "http")),
	}
}

func (s *Server) healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, token, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		s.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	s.setSessionCookie(c, token, int(s.auth.TokenTTL().Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

func (s *Server) logout(c *gin.Context) {
	s.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// session reports login state without requiring authentication; the client
// calls it on startup.
func (s *Server) session(c *gin.Context) {
	user, err := s.auth.Verify(c.Request.Context(), auth.TokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"isLoggedIn": false, "user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isLoggedIn": true,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

func (s *Server) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, maxAge, "/", "", false, true)
}

func (s *Server) listConversations(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	conversations, err := s.store.ListConversations(c.Request.Context(), user.ID)
	if err != nil {
		s.logger.Error("list conversations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

func (s *Server) getJob(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	conversationID, ok := pathID(c, "conversationID")
	if !ok {
		return
	}

	job, err := s.jobs.Get(c.Request.Context(), conversationID, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No job description found for this conversation"})
		return
	}
	if err != nil {
		s.logger.Error("get job failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch job description"})
		return
	}
	c.JSON(http.StatusOK, job)
}

type saveJobRequest struct {
	ConversationID uint `json:"conversation_id"`
	workspace.SaveJobInput
}

func (s *Server) saveJob(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req saveJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if req.JobRole == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job title is required"})
		return
	}
	if req.ConversationID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Conversation ID is required"})
		return
	}

	job, err := s.jobs.Save(c.Request.Context(), user.ID, req.ConversationID, req.SaveJobInput)
	if err != nil {
		s.logger.Error("save job failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save job"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": job.ID, "message": "Job saved successfully"})
}

func (s *Server) getSequence(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	conversationID, ok := pathID(c, "conversationID")
	if !ok {
		return
	}

	seq, err := s.sequences.Get(c.Request.Context(), conversationID, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No job sequence found for this conversation"})
		return
	}
	if err != nil {
		s.logger.Error("get sequence failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sequence"})
		return
	}
	c.JSON(http.StatusOK, seq)
}

type saveSequenceRequest struct {
	ConversationID uint `json:"conversation_id"`
	workspace.SaveSequenceInput
}

func (s *Server) saveSequence(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req saveSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if req.JobRole == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job title is required"})
		return
	}
	if req.ConversationID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Conversation ID is required"})
		return
	}

	seq, err := s.sequences.Save(c.Request.Context(), user.ID, req.ConversationID, req.SaveSequenceInput)
	if err != nil {
		s.logger.Error("save sequence failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save sequence"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": seq.ID, "message": "Job sequence saved successfully"})
}

func (s *Server) generateLinkedInPost(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req chat.LinkedInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if req.ConversationID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
		return
	}
	if req.CompanyName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company_name is required"})
		return
	}

	post, err := s.orchestrator.GenerateLinkedInPost(c.Request.Context(), user.ID, req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"linkedin_post": post})
	case errors.Is(err, chat.ErrNoJob) || errors.Is(err, chat.ErrJobTitleMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("linkedin post generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": chat.UserMessage(err)})
	}
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return uint(id), true
}
