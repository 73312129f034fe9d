package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admission-api/internal/handler"
	"github.com/noah-isme/sma-admission-api/internal/middleware"
	"github.com/noah-isme/sma-admission-api/internal/models"
	"github.com/noah-isme/sma-admission-api/internal/service"
	"github.com/noah-isme/sma-admission-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-admission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-admission-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-admission-api/pkg/resume"
)

type routerDeps struct {
	logger         *zap.Logger
	apiPrefix      string
	allowedOrigins []string
	enableDocs     bool

	metrics  *service.MetricsService
	tokens   middleware.TokenValidator
	subjects middleware.SubjectResolver
	guard    *service.RouteGuard
	resume   *resume.Signer

	subjectHandler *handler.SubjectHandler
	accessHandler  *handler.AccessHandler
	metricsHandler *handler.MetricsHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.allowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	r.GET("/health", d.metricsHandler.Health)
	r.GET("/ready", d.metricsHandler.Ready)
	r.GET("/metrics", d.metricsHandler.Prometheus)
	if d.enableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staffOrSelf := middleware.RBAC(
		string(models.RoleTeacher),
		string(models.RoleRegistrar),
		string(models.RoleAccountant),
		string(models.RoleSuperAdmin),
		middleware.SelfAccess,
	)

	api := r.Group(d.apiPrefix)
	api.POST("/subjects", middleware.Audit(d.logger, "subject.register"), d.subjectHandler.Register)

	subjects := api.Group("/subjects/:id", middleware.JWT(d.tokens))
	subjects.GET("", staffOrSelf, d.subjectHandler.Get)
	subjects.GET("/history", staffOrSelf, d.subjectHandler.History)
	subjects.POST("/transitions", middleware.Audit(d.logger, "subject.transition"), d.subjectHandler.Transition)
	subjects.POST("/advance", middleware.Audit(d.logger, "subject.advance"), d.subjectHandler.Advance)

	access := api.Group("/access")
	access.GET("/areas", middleware.OptionalJWT(d.tokens), d.accessHandler.Areas)
	access.GET("/guard", middleware.OptionalJWT(d.tokens), d.accessHandler.Guard)
	access.GET("/resume", middleware.JWT(d.tokens), d.accessHandler.Resume)

	api.GET("/areas/:area",
		middleware.OptionalJWT(d.tokens),
		middleware.AreaGuard(d.guard, d.subjects, d.resume, middleware.AreaParam("area")),
		d.accessHandler.Area,
	)

	return r
}
