package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	"github.com/smallbiznis/workforce/internal/authorization"
	bulkpayrolldomain "github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/liveevents"
	"github.com/smallbiznis/workforce/internal/config"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/internal/observability"
	obsmiddleware "github.com/smallbiznis/workforce/internal/observability/logger"
	obstracing "github.com/smallbiznis/workforce/internal/observability/tracing"
	payrolldomain "github.com/smallbiznis/workforce/internal/payroll/domain"
	workinghoursdomain "github.com/smallbiznis/workforce/internal/workinghours/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           debug,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg.Debug())
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	employeeSvc     employeedomain.Service
	workingHoursSvc workinghoursdomain.Service
	payrollSvc      payrolldomain.Service
	bulkPayrollSvc  bulkpayrolldomain.Service
	liveEvents      *liveevents.Hub
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	EmployeeSvc     employeedomain.Service
	WorkingHoursSvc workinghoursdomain.Service
	PayrollSvc      payrolldomain.Service
	BulkPayrollSvc  bulkpayrolldomain.Service
	LiveEvents      *liveevents.Hub `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		employeeSvc:     p.EmployeeSvc,
		workingHoursSvc: p.WorkingHoursSvc,
		payrollSvc:      p.PayrollSvc,
		bulkPayrollSvc:  p.BulkPayrollSvc,
		liveEvents:      p.LiveEvents,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	api.GET("/me/permissions", s.ListMyPermissions)

	// -------- Profiles --------
	api.GET("/profiles", s.authorize(authorization.ObjectProfile, authorization.ActionView), s.ListProfiles)
	api.POST("/profiles", s.authorize(authorization.ObjectProfile, authorization.ActionCreate), s.CreateProfile)
	api.GET("/profiles/:id", s.authorize(authorization.ObjectProfile, authorization.ActionView), s.GetProfileByID)
	api.PATCH("/profiles/:id", s.authorize(authorization.ObjectProfile, authorization.ActionUpdate), s.UpdateProfile)
	api.DELETE("/profiles/:id", s.authorize(authorization.ObjectProfile, authorization.ActionDelete), s.DeleteProfile)

	// -------- Working hours --------
	api.GET("/working-hours", s.authorize(authorization.ObjectWorkingHours, authorization.ActionView), s.ListWorkingHours)
	api.POST("/working-hours", s.authorize(authorization.ObjectWorkingHours, authorization.ActionCreate), s.CreateWorkingHours)
	api.POST("/working-hours/:id/approve", s.authorize(authorization.ObjectWorkingHours, authorization.ActionApprove), s.ApproveWorkingHours)
	api.POST("/working-hours/:id/reject", s.authorize(authorization.ObjectWorkingHours, authorization.ActionApprove), s.RejectWorkingHours)
	api.DELETE("/working-hours/:id", s.authorize(authorization.ObjectWorkingHours, authorization.ActionUpdate), s.DeleteWorkingHours)

	// -------- Payrolls --------
	api.GET("/payrolls", s.authorize(authorization.ObjectPayroll, authorization.ActionView), s.ListPayrolls)
	api.GET("/payrolls/:id", s.authorize(authorization.ObjectPayroll, authorization.ActionView), s.GetPayrollByID)
	api.GET("/payrolls/:id/payslip", s.authorize(authorization.ObjectPayroll, authorization.ActionView), s.DownloadPayslip)
	api.POST("/payrolls/:id/approve", s.authorize(authorization.ObjectPayroll, authorization.ActionApprove), s.ApprovePayroll)
	api.POST("/payrolls/:id/pay", s.authorize(authorization.ObjectPayroll, authorization.ActionPay), s.MarkPayrollPaid)

	// -------- Bulk payrolls --------
	api.GET("/bulk-payrolls", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionView), s.ListBulkPayrolls)
	api.POST("/bulk-payrolls", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionCreate), s.CreateBulkPayroll)
	api.GET("/bulk-payrolls/:id", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionView), s.GetBulkPayroll)
	api.POST("/bulk-payrolls/:id/start", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionRun), s.StartBulkPayroll)
	api.POST("/bulk-payrolls/:id/pause", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionRun), s.PauseBulkPayroll)
	api.POST("/bulk-payrolls/:id/resume", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionRun), s.ResumeBulkPayroll)
	api.GET("/bulk-payrolls/:id/items", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionView), s.ListBulkPayrollItems)
	api.GET("/bulk-payrolls/:id/failures", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionView), s.ListBulkPayrollFailures)
	api.GET("/bulk-payrolls/:id/events", s.authorize(authorization.ObjectBulkPayroll, authorization.ActionView), s.StreamBulkPayrollEvents)

	// -------- Audit --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
