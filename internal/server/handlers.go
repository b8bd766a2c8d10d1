package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/combatlog/combatlog-go/pkg/combatlog"
)

// Status is the body of GET /api/status.
type Status struct {
	Running       bool   `json:"running"`
	SelectedPath  string `json:"selected_path"`
	Cursor        int64  `json:"cursor"`
	CurrentTarget string `json:"current_target"`
	Casting       string `json:"casting"`
	Dropped       int64  `json:"dropped"`
}

// Paths is the body of GET /api/paths and POST /api/relocate.
type Paths struct {
	Paths            []string `json:"paths"`
	Searching        bool     `json:"searching"`
	SelectedPath     string   `json:"selected_path"`
	SearchEverywhere bool     `json:"search_everywhere"`
}

type targetRequest struct {
	Name string `json:"name"`
}

type pathRequest struct {
	Path string `json:"path" binding:"required"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type startRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, Status{
		Running:       s.backend.Running(),
		SelectedPath:  s.backend.SelectedPath(),
		Cursor:        s.backend.Cursor(),
		CurrentTarget: s.backend.CurrentTarget(),
		Casting:       s.backend.Casting(),
		Dropped:       s.backend.Dropped(),
	})
}

func (s *Server) paths() Paths {
	paths := s.backend.Paths()
	if paths == nil {
		paths = []string{}
	}
	return Paths{
		Paths:            paths,
		Searching:        s.backend.Searching(),
		SelectedPath:     s.backend.SelectedPath(),
		SearchEverywhere: s.backend.SearchEverywhere(),
	}
}

func (s *Server) handlePaths(c *gin.Context) {
	c.JSON(http.StatusOK, s.paths())
}

func (s *Server) handleReset(c *gin.Context) {
	s.backend.Reset()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTarget(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.backend.SetCurrentTarget(req.Name)
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePath(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.backend.SetSelectedPath(req.Path)
	c.JSON(http.StatusOK, s.paths())
}

func (s *Server) handleSearchEverywhere(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.backend.SetSearchEverywhere(*req.Enabled)
	c.JSON(http.StatusOK, s.paths())
}

func (s *Server) handleRelocate(c *gin.Context) {
	if _, err := s.backend.Relocate(c.Request.Context()); err != nil {
		s.log.Warn("relocate failed", "error", err)
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.paths())
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if err := s.backend.Start(req.Path); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.handleStatus(c)
}

func (s *Server) handleStop(c *gin.Context) {
	s.backend.Stop()
	s.handleStatus(c)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func errorStatus(err error) int {
	if errors.Is(err, combatlog.ErrEngineClosed) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
