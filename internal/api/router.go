package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pratik860s/Autopart-Backend/internal/api/handlers"
	"github.com/pratik860s/Autopart-Backend/internal/api/middleware"
	"github.com/pratik860s/Autopart-Backend/internal/captcha"
	"github.com/pratik860s/Autopart-Backend/internal/chat"
	"github.com/pratik860s/Autopart-Backend/internal/config"
	"github.com/pratik860s/Autopart-Backend/internal/models"
	"github.com/pratik860s/Autopart-Backend/internal/services"
	"github.com/pratik860s/Autopart-Backend/internal/storage"
)

// SetupRouter configures and returns the main Gin engine. notifier may be a
// services.NopNotifier when no queue is attached (tests, tooling).
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client, notifier services.Notifier) *gin.Engine {
	// Initialize services needed by API handlers HERE
	userService := services.NewUserService(db)
	linkedActionService := services.NewLinkedActionService(db, cfg)
	vehicleService := services.NewVehicleService(db, rdb, cfg)
	productTypeService := services.NewProductTypeService(db)
	capabilityService := services.NewCapabilityService(db)
	enquiryService := services.NewEnquiryService(db, userService, vehicleService, productTypeService, capabilityService, linkedActionService, notifier)
	quotationService := services.NewQuotationService(db, userService, enquiryService, notifier)
	registry := chat.NewRegistry()
	chatService := services.NewChatService(db, userService, registry, notifier)
	feedbackService := services.NewFeedbackService(db, userService, notifier)
	adminService := services.NewAdminService(db)
	templateService := services.NewEmailTemplateService(db)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	// Initialize Captcha Verifier
	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, userService, linkedActionService, notifier)
	enquiryHandler := handlers.NewEnquiryHandler(enquiryService)
	quotationHandler := handlers.NewQuotationHandler(quotationService)
	vehicleHandler := handlers.NewVehicleHandler(vehicleService)
	catalogHandler := handlers.NewCatalogHandler(productTypeService, capabilityService)
	chatHandler := handlers.NewChatHandler(chatService, registry)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService)
	adminHandler := handlers.NewAdminHandler(adminService, userService, quotationService, templateService, notifier)
	uploadHandler := handlers.NewUploadHandler(s3StorageService, taskClient)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(200, "pong")
		})

		// Public routes. Enquiry submission is the anonymous entry point;
		// the captcha/soft-rate-limit pair gates abuse.
		v1.POST("/enquiry", enquiryHandler.Create)
		v1.GET("/product-types", catalogHandler.ListProductTypes)

		vehicle := v1.Group("/vehicle")
		{
			vehicle.GET("/makes", vehicleHandler.GetMakes)
			vehicle.GET("/models", vehicleHandler.GetModels)
			vehicle.GET("/years", vehicleHandler.GetYears)
			vehicle.GET("/body-styles", vehicleHandler.GetBodyStyles)
			vehicle.GET("/trims", vehicleHandler.GetTrims)
			vehicle.GET("/gearboxes", vehicleHandler.GetGearboxes)
			vehicle.GET("/fuels", vehicleHandler.GetFuels)
		}

		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/setup-account", authHandler.SetupAccount)
			auth.POST("/verify-email", authHandler.VerifyEmail)
			auth.POST("/password-reset/request", authHandler.RequestPasswordReset)
			auth.GET("/password-reset/:action_id", authHandler.VerifyResetToken)
			auth.POST("/password-reset", authHandler.CompletePasswordReset)
		}

		// Authenticated routes
		authed := v1.Group("/")
		authed.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authed.GET("/me", authHandler.GetProfile)
			authed.PUT("/me", authHandler.UpdateProfile)
			authed.PUT("/me/company", middleware.RequireRole(models.RoleSeller), authHandler.CompleteSellerSignup)

			authed.GET("/product-types/mine", catalogHandler.ListMyProductTypes)
			authed.POST("/product-types", middleware.RequireRole(models.RoleBuyer), catalogHandler.CreateProductType)

			authed.GET("/enquiries", middleware.RequireRole(models.RoleBuyer, models.RoleAdmin), enquiryHandler.ListMine)
			authed.GET("/enquiries/received", middleware.RequireRole(models.RoleSeller), enquiryHandler.ListReceived)
			authed.GET("/enquiries/:id", enquiryHandler.GetDetails)
			authed.POST("/enquiries/:id/respond", middleware.RequireRole(models.RoleSeller), enquiryHandler.Respond)
			authed.GET("/enquiries/:id/quotations", quotationHandler.ListByEnquiry)

			authed.POST("/quotations", middleware.RequireRole(models.RoleSeller), quotationHandler.Create)
			authed.GET("/quotations", middleware.RequireRole(models.RoleSeller), quotationHandler.ListMine)
			authed.POST("/quotation-items/:id/status", quotationHandler.UpdateItemStatus)
			authed.PATCH("/quotation-items/:id", middleware.RequireRole(models.RoleSeller), quotationHandler.EditItem)

			authed.GET("/capabilities", middleware.RequireRole(models.RoleSeller), catalogHandler.GetCapabilities)
			authed.PUT("/capabilities", middleware.RequireRole(models.RoleSeller), catalogHandler.SetCapabilities)

			authed.GET("/chat/ws", chatHandler.Connect)
			authed.GET("/chat/rooms", chatHandler.Sidebar)
			authed.GET("/chat/rooms/:room_id/messages", chatHandler.History)
			authed.POST("/chat/messages", chatHandler.Send)

			authed.POST("/feedback", feedbackHandler.Submit)
			authed.GET("/feedback", feedbackHandler.ListMine)
			authed.GET("/feedback/:id", feedbackHandler.Thread)
			authed.POST("/feedback/:id/reply", feedbackHandler.Reply)

			authed.POST("/uploads", uploadHandler.Presign)
			authed.POST("/uploads/direct", uploadHandler.Direct)
			authed.POST("/uploads/confirm", uploadHandler.Confirm)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.POST("/users/:id/status", adminHandler.SetUserStatus)
			admin.POST("/users/:id/verify", adminHandler.SetSellerVerified)
			admin.GET("/enquiries", adminHandler.ListEnquiries)
			admin.GET("/quotations", adminHandler.ListQuotations)
			admin.GET("/quotations/:id", adminHandler.GetQuotation)
			admin.GET("/conversations", adminHandler.ListConversations)
			admin.GET("/feedback", feedbackHandler.ListAll)
			admin.POST("/feedback/:id/status", feedbackHandler.UpdateStatus)
			admin.PUT("/email-templates", adminHandler.SaveEmailTemplate)
			admin.DELETE("/email-templates/:template_id/:locale", adminHandler.DeleteEmailTemplate)
		}
	}

	return r
}
