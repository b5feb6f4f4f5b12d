package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	workinghoursdomain "github.com/smallbiznis/workforce/internal/workinghours/domain"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
)

type createWorkingHoursRequest struct {
	ProfileID     string `json:"profile_id"`
	ClientID      string `json:"client_id"`
	ProjectID     string `json:"project_id"`
	WorkDate      string `json:"work_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	TotalHours    string `json:"total_hours"`
	OvertimeHours string `json:"overtime_hours"`
	Notes         string `json:"notes"`
}

func (s *Server) CreateWorkingHours(c *gin.Context) {
	var req createWorkingHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	workDate, err := dateField("work_date", req.WorkDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	total, err := requiredDecimalField("total_hours", req.TotalHours)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	overtime, err := decimalField("overtime_hours", req.OvertimeHours)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if overtime == nil {
		zero := decimal.Zero
		overtime = &zero
	}

	resp, err := s.workingHoursSvc.Create(c.Request.Context(), workinghoursdomain.CreateRequest{
		ProfileID:     req.ProfileID,
		ClientID:      req.ClientID,
		ProjectID:     req.ProjectID,
		WorkDate:      workDate,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		TotalHours:    total,
		OvertimeHours: *overtime,
		Notes:         req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListWorkingHours(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ProfileID string `form:"profile_id"`
		Status    string `form:"status"`
		From      string `form:"from"`
		To        string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := rangeBound("from", query.From, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	to, err := rangeBound("to", query.To, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.workingHoursSvc.List(c.Request.Context(), workinghoursdomain.ListRequest{
		Pagination: query.Pagination,
		ProfileID:  strings.TrimSpace(query.ProfileID),
		Status:     strings.TrimSpace(query.Status),
		From:       from,
		To:         to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.WorkingHours, "page_info": resp.PageInfo})
}

func (s *Server) ApproveWorkingHours(c *gin.Context) {
	resp, err := s.workingHoursSvc.Approve(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectWorkingHours(c *gin.Context) {
	resp, err := s.workingHoursSvc.Reject(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteWorkingHours(c *gin.Context) {
	if err := s.workingHoursSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
