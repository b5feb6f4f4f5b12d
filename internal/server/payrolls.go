package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payrolldomain "github.com/smallbiznis/workforce/internal/payroll/domain"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
)

func (s *Server) ListPayrolls(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ProfileID     string `form:"profile_id"`
		BulkPayrollID string `form:"bulk_payroll_id"`
		Status        string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payrollSvc.List(c.Request.Context(), payrolldomain.ListRequest{
		Pagination:    query.Pagination,
		ProfileID:     strings.TrimSpace(query.ProfileID),
		BulkPayrollID: strings.TrimSpace(query.BulkPayrollID),
		Status:        strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Payrolls, "page_info": resp.PageInfo})
}

func (s *Server) GetPayrollByID(c *gin.Context) {
	resp, err := s.payrollSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApprovePayroll(c *gin.Context) {
	resp, err := s.payrollSvc.Approve(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkPayrollPaid(c *gin.Context) {
	resp, err := s.payrollSvc.MarkPaid(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadPayslip(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	doc, err := s.payrollSvc.Payslip(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"payslip-%s.pdf\"", id))
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, doc); err != nil {
		_ = c.Error(err)
	}
}
