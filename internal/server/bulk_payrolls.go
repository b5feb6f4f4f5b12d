package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bulkpayrolldomain "github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	obstracing "github.com/smallbiznis/workforce/internal/observability/tracing"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
)

type createBulkPayrollRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	PayPeriodStart string   `json:"pay_period_start"`
	PayPeriodEnd   string   `json:"pay_period_end"`
	EmployeeIDs    []string `json:"employee_ids"`
}

func (s *Server) CreateBulkPayroll(c *gin.Context) {
	var req createBulkPayrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, err := dateField("pay_period_start", req.PayPeriodStart)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	end, err := dateField("pay_period_end", req.PayPeriodEnd)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.bulkPayrollSvc.CreateBatch(c.Request.Context(), bulkpayrolldomain.CreateBatchRequest{
		Name:           req.Name,
		Description:    req.Description,
		PayPeriodStart: start,
		PayPeriodEnd:   end,
		EmployeeIDs:    req.EmployeeIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListBulkPayrolls(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bulkPayrollSvc.ListBatches(c.Request.Context(), bulkpayrolldomain.ListBatchRequest{
		Pagination: query.Pagination,
		Status:     strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Batches, "page_info": resp.PageInfo})
}

func (s *Server) GetBulkPayroll(c *gin.Context) {
	resp, err := s.bulkPayrollSvc.GetBatch(c.Request.Context(), s.batchParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// StartBulkPayroll drives the batch within the request. Progress is observable on
// the events stream; a dropped connection parks the batch as paused.
func (s *Server) StartBulkPayroll(c *gin.Context) {
	result, err := s.bulkPayrollSvc.StartBatch(c.Request.Context(), s.batchParam(c))
	s.respondRun(c, result, err)
}

func (s *Server) ResumeBulkPayroll(c *gin.Context) {
	result, err := s.bulkPayrollSvc.ResumeBatch(c.Request.Context(), s.batchParam(c))
	s.respondRun(c, result, err)
}

func (s *Server) PauseBulkPayroll(c *gin.Context) {
	resp, err := s.bulkPayrollSvc.PauseBatch(c.Request.Context(), s.batchParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBulkPayrollItems(c *gin.Context) {
	items, err := s.bulkPayrollSvc.ListItems(c.Request.Context(), s.batchParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListBulkPayrollFailures(c *gin.Context) {
	rows, err := s.bulkPayrollSvc.FailureManifest(c.Request.Context(), s.batchParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) batchParam(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	c.Set(obstracing.BatchIDKey, id)
	return id
}

func (s *Server) respondRun(c *gin.Context, result bulkpayrolldomain.RunResult, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"data": result})
		return
	}
	// The run ended but the batch state is still meaningful to the caller.
	if errors.Is(err, bulkpayrolldomain.ErrNoItems) && result.BatchID != 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"data":  result,
			"error": errorPayload{Type: "validation_error", Message: "batch has no items", Code: err.Error()},
		})
		return
	}
	AbortWithError(c, err)
}
