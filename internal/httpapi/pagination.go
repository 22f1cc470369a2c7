package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NREL/torc/internal/store"
)

// parseListParams reads spec.md §4.7's four pagination query
// parameters (offset, limit, sort_by, reverse_sort) plus an
// equality-filter set the caller supplies, following the teacher's
// listDeploymentRequests query-param shape.
func parseListParams(c *gin.Context, filters map[string]interface{}) store.ListParams {
	p := store.ListParams{Filters: filters}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Offset = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Limit = n
		}
	}
	p.OrderBy = c.Query("sort_by")
	if v := c.Query("reverse_sort"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.Desc = b
		}
	}
	return p
}
