package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
)

type createProfileRequest struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Role           string `json:"role"`
	EmploymentType string `json:"employment_type"`
	HourlyRate     string `json:"hourly_rate"`
	StartDate      string `json:"start_date"`
}

type updateProfileRequest struct {
	FullName       *string `json:"full_name"`
	Phone          *string `json:"phone"`
	Role           *string `json:"role"`
	EmploymentType *string `json:"employment_type"`
	HourlyRate     *string `json:"hourly_rate"`
	IsActive       *bool   `json:"is_active"`
}

func (s *Server) CreateProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rate, err := decimalField("hourly_rate", req.HourlyRate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	startDate, err := optionalDateField("start_date", req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	create := employeedomain.CreateProfileRequest{
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Role:           req.Role,
		EmploymentType: req.EmploymentType,
		HourlyRate:     rate,
		StartDate:      startDate,
	}

	resp, err := s.employeeSvc.Create(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListProfiles(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Role   string `form:"role"`
		Active string `form:"active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	active, err := boolField("active", query.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.employeeSvc.List(c.Request.Context(), employeedomain.ListProfileRequest{
		Pagination: query.Pagination,
		Role:       strings.TrimSpace(query.Role),
		ActiveOnly: active != nil && *active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Profiles, "page_info": resp.PageInfo})
}

func (s *Server) GetProfileByID(c *gin.Context) {
	resp, err := s.employeeSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := employeedomain.UpdateProfileRequest{
		ID:             strings.TrimSpace(c.Param("id")),
		FullName:       req.FullName,
		Phone:          req.Phone,
		Role:           req.Role,
		EmploymentType: req.EmploymentType,
		IsActive:       req.IsActive,
	}
	if req.HourlyRate != nil {
		rate, err := decimalField("hourly_rate", *req.HourlyRate)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		update.HourlyRate = rate
		update.ClearRate = rate == nil
	}

	resp, err := s.employeeSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProfile(c *gin.Context) {
	if err := s.employeeSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
