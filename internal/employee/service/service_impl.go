package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/internal/actorcontext"
	"github.com/smallbiznis/workforce/internal/clock"
	"github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/pkg/db"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("employee.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProfileRequest) (domain.Profile, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return domain.Profile{}, domain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Profile{}, domain.ErrInvalidEmail
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = actorcontext.RoleEmployee
	}
	if err := validateRole(role); err != nil {
		return domain.Profile{}, err
	}
	employmentType := strings.ToLower(strings.TrimSpace(req.EmploymentType))
	if employmentType == "" {
		employmentType = domain.EmploymentFullTime
	}
	if err := validateEmploymentType(employmentType); err != nil {
		return domain.Profile{}, err
	}
	rate, err := normalizeRate(req.HourlyRate)
	if err != nil {
		return domain.Profile{}, err
	}

	now := s.clock.Now()
	profile := domain.Profile{
		ID:             s.genID.Generate(),
		FullName:       name,
		Email:          email,
		Phone:          optionalString(req.Phone),
		Role:           role,
		EmploymentType: employmentType,
		HourlyRate:     rate,
		IsActive:       true,
		StartDate:      req.StartDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &profile); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Profile{}, domain.ErrDuplicateEmail
		}
		return domain.Profile{}, err
	}

	s.log.Info("profile created", zap.String("profile_id", profile.ID.String()), zap.String("role", role))
	return profile, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Profile, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Profile{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if item == nil {
		return domain.Profile{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListProfileRequest) (domain.ListProfileResponse, error) {
	var cursorID snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListProfileResponse{}, domain.ErrInvalidPageToken
		}
		cursorID, err = parseID(decoded.ID)
		if err != nil {
			return domain.ListProfileResponse{}, domain.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, domain.ListProfileFilter{
		Role:       strings.ToLower(strings.TrimSpace(req.Role)),
		ActiveOnly: req.ActiveOnly,
		CursorID:   cursorID,
		Limit:      limit,
	})
	if err != nil {
		return domain.ListProfileResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(p *domain.Profile) string { return p.ID.String() })
	profiles := make([]domain.Profile, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		profiles = append(profiles, *item)
	}
	return domain.ListProfileResponse{PageInfo: pageInfo, Profiles: profiles}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateProfileRequest) (domain.Profile, error) {
	profile, err := s.GetByID(ctx, req.ID)
	if err != nil {
		return domain.Profile{}, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return domain.Profile{}, domain.ErrInvalidName
		}
		profile.FullName = name
	}
	if req.Phone != nil {
		profile.Phone = optionalString(*req.Phone)
	}
	if req.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*req.Role))
		if err := validateRole(role); err != nil {
			return domain.Profile{}, err
		}
		profile.Role = role
	}
	if req.EmploymentType != nil {
		employmentType := strings.ToLower(strings.TrimSpace(*req.EmploymentType))
		if err := validateEmploymentType(employmentType); err != nil {
			return domain.Profile{}, err
		}
		profile.EmploymentType = employmentType
	}
	switch {
	case req.ClearRate:
		profile.HourlyRate = decimal.NullDecimal{}
	case req.HourlyRate != nil:
		rate, err := normalizeRate(req.HourlyRate)
		if err != nil {
			return domain.Profile{}, err
		}
		profile.HourlyRate = rate
	}
	if req.IsActive != nil {
		profile.IsActive = *req.IsActive
	}
	profile.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	affected, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		if db.IsForeignKeyErr(err) {
			return domain.ErrInUse
		}
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	s.log.Info("profile deleted", zap.String("profile_id", id.String()))
	return nil
}

func validateRole(role string) error {
	if role == actorcontext.RoleSystem || !actorcontext.IsKnownRole(role) {
		return domain.ErrInvalidRole
	}
	return nil
}

func validateEmploymentType(value string) error {
	switch value {
	case domain.EmploymentFullTime, domain.EmploymentPartTime, domain.EmploymentCasual:
		return nil
	}
	return domain.ErrInvalidEmploymentType
}

func normalizeRate(rate *decimal.Decimal) (decimal.NullDecimal, error) {
	if rate == nil {
		return decimal.NullDecimal{}, nil
	}
	if rate.IsNegative() {
		return decimal.NullDecimal{}, domain.ErrInvalidHourlyRate
	}
	return decimal.NewNullDecimal(rate.Round(2)), nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
