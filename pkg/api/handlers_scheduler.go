package api

import "github.com/gin-gonic/gin"

func (s *Server) startScheduler(c *gin.Context) {
	s.controller.Start(c.Request.Context())
	c.Status(202)
}

func (s *Server) pauseScheduler(c *gin.Context) {
	s.controller.Pause()
	c.Status(202)
}

func (s *Server) resumeScheduler(c *gin.Context) {
	s.controller.Resume(c.Request.Context())
	c.Status(202)
}

func (s *Server) runRecovery(c *gin.Context) {
	s.controller.RecoverMissedTasks(c.Request.Context())
	c.Status(202)
}
