// Package dashboard exposes the operator console surface: a REST query and
// command API plus the real-time WebSocket event stream.
package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dialwatch/dialwatch/registry"
	"github.com/dialwatch/dialwatch/utils"
)

// Server wires the dashboard routes to the call registry.
type Server struct {
	log      *zap.Logger
	registry *registry.Registry
}

// NewServer builds a dashboard server over the registry.
func NewServer(log *zap.Logger, reg *registry.Registry) *Server {
	return &Server{log: log, registry: reg}
}

// Register mounts all routes on the engine.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/", s.health)
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	api.GET("/stats", s.getStats)
	api.GET("/calls", s.getCalls)
	api.GET("/calls/:call_id", s.getCall)
	api.POST("/calls/start", s.startCall)
	api.POST("/calls/:call_id/transfer", s.transferCall)
	api.POST("/calls/:call_id/end", s.endCall)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "outbound call dashboard",
	})
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Statistics())
}

func (s *Server) getCalls(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	calls, total := s.registry.Recent(limit)
	c.JSON(http.StatusOK, gin.H{
		"calls": calls,
		"total": total,
	})
}

func (s *Server) getCall(c *gin.Context) {
	call, ok := s.registry.Call(c.Param("call_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	c.JSON(http.StatusOK, call)
}

type startCallRequest struct {
	PhoneNumber  string `json:"phone_number" binding:"required"`
	CustomerName string `json:"customer_name"`
	TransferTo   string `json:"transfer_to"`
}

func (s *Server) startCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !utils.ValidPhoneNumber(req.PhoneNumber) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number must be E.164"})
		return
	}

	call, dispatchID, err := s.registry.StartCall(c.Request.Context(), req.PhoneNumber, req.CustomerName, req.TransferTo)
	if err != nil {
		s.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"call_id":     call.CallID,
		"dispatch_id": dispatchID,
	})
}

type transferRequest struct {
	TransferTo string `json:"transfer_to" binding:"required"`
}

func (s *Server) transferCall(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !utils.ValidPhoneNumber(req.TransferTo) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transfer_to must be E.164"})
		return
	}

	if err := s.registry.Transfer(c.Request.Context(), c.Param("call_id"), req.TransferTo); err != nil {
		s.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) endCall(c *gin.Context) {
	if err := s.registry.EndCall(c.Request.Context(), c.Param("call_id")); err != nil {
		s.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// commandError maps registry errors onto HTTP statuses: unknown call id vs a
// failed delegated action are distinguishable by the client.
func (s *Server) commandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrCallNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case registry.IsDelegated(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
