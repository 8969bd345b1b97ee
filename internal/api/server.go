// Package api exposes the tutor over a small JSON HTTP API. All requests
// share one Tutor and are serialized by a single mutex, so the server
// behaves like one user working through the chat sidebar.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/export"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/guard"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/session"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/tutor"

	"github.com/gin-gonic/gin"
)

type Server struct {
	tutor  *tutor.Tutor
	bans   *guard.IPBanList
	logger *slog.Logger

	mu sync.Mutex
}

// NewServer wraps t. bans may be nil.
func NewServer(t *tutor.Tutor, bans *guard.IPBanList, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{tutor: t, bans: bans, logger: logger}
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	// Client addresses come from the socket, not from forwarding headers.
	_ = engine.SetTrustedProxies(nil)
	engine.Use(gin.Logger(), gin.Recovery(), s.banMiddleware())
	engine.GET("/healthz", s.handleHealthz)

	api := engine.Group("/api", s.serialize())
	api.GET("/chats", s.handleListChats)
	api.POST("/chats", s.handleCreateChat)
	api.POST("/chats/:name/select", s.handleSelectChat)
	api.PATCH("/chats/:name", s.handleRenameChat)
	api.DELETE("/chats/:name", s.handleDeleteChat)
	api.GET("/chats/:name/turns", s.handleTurns)
	api.POST("/chats/:name/messages", s.handleAsk)
	api.GET("/chats/:name/export", s.handleExport)
	return engine
}

func (s *Server) banMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.bans.Banned(c.ClientIP()) {
			s.logger.Info("rejected banned client", "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

func (s *Server) serialize() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.Next()
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Turns     int       `json:"turns"`
	Active    bool      `json:"active"`
}

func (s *Server) summary(name string) (chatSummary, bool) {
	store := s.tutor.Store()
	conv, err := store.Get(name)
	if err != nil {
		return chatSummary{}, false
	}
	return chatSummary{
		ID:        conv.ID,
		Name:      conv.Name,
		CreatedAt: conv.CreatedAt,
		Turns:     conv.Log.Len(),
		Active:    store.ActiveName() == conv.Name,
	}, true
}

func (s *Server) handleListChats(c *gin.Context) {
	chats := []chatSummary{}
	for _, name := range s.tutor.Store().Names() {
		if sum, ok := s.summary(name); ok {
			chats = append(chats, sum)
		}
	}
	c.JSON(http.StatusOK, gin.H{"active": s.tutor.Store().ActiveName(), "chats": chats})
}

type createChatRequest struct {
	Name string `json:"name"`
}

// handleCreateChat accepts an optional {"name": base}.
func (s *Server) handleCreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name, err := s.tutor.NewChat(req.Name)
	sum, _ := s.summary(name)
	s.respond(c, http.StatusCreated, err, gin.H{"chat": sum})
}

func (s *Server) handleSelectChat(c *gin.Context) {
	name, err := s.tutor.SwitchChat(c.Param("name"))
	if err != nil && name == "" {
		s.writeError(c, err)
		return
	}
	sum, _ := s.summary(name)
	s.respond(c, http.StatusOK, err, gin.H{"chat": sum})
}

type renameChatRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRenameChat(c *gin.Context) {
	var req renameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := s.tutor.RenameChat(c.Param("name"), req.Name)
	if err != nil && !session.IsStorageError(err) {
		s.writeError(c, err)
		return
	}
	sum, _ := s.summary(strings.TrimSpace(req.Name))
	s.respond(c, http.StatusOK, err, gin.H{"chat": sum})
}

func (s *Server) handleDeleteChat(c *gin.Context) {
	err := s.tutor.DeleteChat(c.Param("name"))
	if err != nil && !session.IsStorageError(err) {
		s.writeError(c, err)
		return
	}
	s.respond(c, http.StatusOK, err, gin.H{"active": s.tutor.Store().ActiveName()})
}

func (s *Server) handleTurns(c *gin.Context) {
	conv, err := s.tutor.Store().Get(c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": conv.Name, "turns": conv.Log.Turns()})
}

type askRequest struct {
	Text string `json:"text" binding:"required"`
}

type askResponse struct {
	Chat    string `json:"chat"`
	Reply   string `json:"reply"`
	Refused bool   `json:"refused,omitempty"`
	Turns   int    `json:"turns"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// handleAsk selects the chat and runs one question. A client that goes away
// before the reply arrives abandons the question.
func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}
	if err := s.tutor.Store().Select(c.Param("name")); err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.tutor.Ask(c.Request.Context(), req.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if res.Blocked {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Reply})
		return
	}

	resp := askResponse{Chat: res.Chat, Reply: res.Reply, Refused: res.Refused, Turns: res.Turns}
	if res.PersistErr != nil {
		resp.Warning = res.PersistErr.Error()
	}
	status := http.StatusOK
	if res.RemoteErr != nil {
		status = http.StatusBadGateway
		resp.Error = res.RemoteErr.Error()
	}
	c.JSON(status, resp)
}

func (s *Server) handleExport(c *gin.Context) {
	f, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := c.Param("name")
	data, err := s.tutor.ExportChat(name, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+tutor.FileName(name, f)+`"`)
	c.Data(http.StatusOK, f.ContentType(), data)
}

// respond writes body with status, adding a warning when the change could
// not be persisted.
func (s *Server) respond(c *gin.Context, status int, persistErr error, body gin.H) {
	if persistErr != nil {
		body["warning"] = persistErr.Error()
	}
	c.JSON(status, body)
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrConflict), errors.Is(err, chat.ErrReplyPending):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInvalidName), errors.Is(err, tutor.ErrEmptyQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, chat.ErrAbandoned):
		status = http.StatusRequestTimeout
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
