package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"nebulaai/config"
	"nebulaai/internal/api/admin"
	"nebulaai/internal/api/apis"
	"nebulaai/internal/api/handler"
	"nebulaai/internal/middleware"
	"nebulaai/internal/pay"
	"nebulaai/internal/repository"
	"nebulaai/internal/scheduler"
	"nebulaai/internal/service"
	"nebulaai/pkg/async"
	"nebulaai/pkg/email"
	"nebulaai/pkg/logger"
)

// NewEngine 创建gin引擎并装配通用中间件
func NewEngine(cfg *config.Config, logger *logger.Logger) *gin.Engine {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// 支付接口契约要求对错误的请求方法返回405
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())
	return router
}

// SetupRouter 设置API路由
// 返回的关闭函数在HTTP服务器停止后调用，依次停掉调度器并等待异步队列排空
func SetupRouter(cfg *config.Config, logger *logger.Logger, db *sqlx.DB, redisClient *redis.Client, gateway pay.Gateway) (*gin.Engine, func()) {
	router := NewEngine(cfg, logger)

	// 创建异步工作器
	worker := async.NewWorker(100, logger)
	worker.Start(5)

	// 初始化存储库
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	// 初始化邮件服务
	emailService := email.NewService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
	}, logger)

	// 同一订单的通知处理用redis互斥锁串行化
	locks := redsync.New(goredis.NewPool(redisClient))

	// 初始化服务
	userService := service.NewUserService(userRepo, logger)
	planService := service.NewPlanService(planRepo, redisClient, logger)
	membershipService := service.NewMembershipService(userRepo, orderRepo, planRepo, logger)
	orderService := service.NewOrderService(orderRepo, gateway, membershipService, userService, locks, worker, emailService, logger)
	announcementService := service.NewAnnouncementService(announcementRepo, redisClient, logger)

	// 启动支付对账调度器
	paymentScheduler := scheduler.NewPaymentScheduler(orderRepo, logger)
	paymentScheduler.Start()

	// 初始化处理器
	paymentHandler := handler.NewPaymentHandler(orderService, userService, planService, logger)
	planHandler := handler.NewPlanHandler(planService, orderService, logger)
	announcementHandler := handler.NewAnnouncementHandler(announcementService, logger)

	// 初始化管理员处理器
	membershipAdminHandler := admin.NewMembershipAdminHandler(membershipService, userService, logger)
	announcementAdminHandler := admin.NewAnnouncementAdminHandler(announcementService, logger)

	// 公开路由
	apis.RegisterPaymentRoutes(router, paymentHandler)

	v1Public := router.Group("/api/v1")
	apis.RegisterShopPublicRoutes(v1Public, planHandler)
	apis.RegisterAnnouncementRoutes(v1Public, announcementHandler)

	// 需要认证的路由
	v1 := router.Group("/api/v1")
	v1.Use(middleware.UserAuth(userService))
	apis.RegisterShopRoutes(v1, planHandler)

	// 管理端路由
	admin.RegisterAdminRoutes(router, cfg.Admin.JWTSecret, membershipAdminHandler, announcementAdminHandler)

	shutdown := func() {
		paymentScheduler.Stop()
		worker.Stop()
	}
	return router, shutdown
}
