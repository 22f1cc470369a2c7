package httpapi

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) listResultsForWorkflow(c *gin.Context) (interface{}, error) {
	workflowID, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return s.results.ListForWorkflow(c.Request.Context(), workflowID, parseListParams(c, nil))
}

func (s *Server) listResultsForJob(c *gin.Context) (interface{}, error) {
	jobID, err := parseID(c, "jid")
	if err != nil {
		return nil, err
	}
	return s.results.ListForJob(c.Request.Context(), jobID, parseListParams(c, nil))
}
