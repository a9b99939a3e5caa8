package handlers

import (
	"context"
	"time"

	"library_api/internal/logger"
	"library_api/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const defaultBookLimit = 10

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Config holds the HTTP-layer settings.
type Config struct {
	AllowedOrigins   []string
	DefaultBookLimit int
	DB               Pinger
	// MaxCoverBytes caps the cover file size; the request body may exceed it only by coverFormOverhead.
	MaxCoverBytes int64
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	cfg      Config
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, cfg Config) *Handler {
	if cfg.DefaultBookLimit <= 0 {
		cfg.DefaultBookLimit = defaultBookLimit
	}
	return &Handler{services: services, log: log, cfg: cfg}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)
	router.Use(cors.New(h.corsConfig()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)

	h.registerUserRoutes(router)
	h.registerBookRoutes(router)
	h.registerBorrowRoutes(router)
	h.registerReviewRoutes(router)
	h.registerActivityRoutes(router)

	return router
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(h.cfg.AllowedOrigins) == 0 || (len(h.cfg.AllowedOrigins) == 1 && h.cfg.AllowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = h.cfg.AllowedOrigins
	}
	return cfg
}

func (h *Handler) registerUserRoutes(r *gin.Engine) {
	users := r.Group("/users")
	{
		users.POST("/register", h.register)
		users.POST("/login", h.login)
		users.GET("/me", h.authMiddleware, h.me)
		users.GET("/", h.authMiddleware, h.adminMiddleware, h.listUsers)
		users.PUT("/:id/role", h.authMiddleware, h.adminMiddleware, h.setRole)
	}
}

func (h *Handler) registerBookRoutes(r *gin.Engine) {
	books := r.Group("/books")
	{
		books.GET("/", h.listBooks)
		books.GET("/export/csv", h.exportBooksCSV)
		books.GET("/:id", h.getBook)
		books.POST("/", h.authMiddleware, h.createBook)
		books.PUT("/:id", h.authMiddleware, h.updateBook)
		books.DELETE("/:id", h.authMiddleware, h.deleteBook)
		books.POST("/:id/cover", h.authMiddleware, h.uploadCover)
	}
}

func (h *Handler) registerBorrowRoutes(r *gin.Engine) {
	borrows := r.Group("/borrows", h.authMiddleware)
	{
		borrows.POST("/", h.borrowBook)
		borrows.POST("/:id/return", h.returnBook)
		borrows.GET("/me", h.myBorrows)
		borrows.GET("/", h.adminMiddleware, h.allBorrows)
	}
}

func (h *Handler) registerReviewRoutes(r *gin.Engine) {
	reviews := r.Group("/reviews")
	{
		reviews.GET("/book/:id", h.bookReviews)
		reviews.POST("/", h.authMiddleware, h.createReview)
		reviews.PUT("/:id", h.authMiddleware, h.updateReview)
		reviews.DELETE("/:id", h.authMiddleware, h.deleteReview)
	}
}

func (h *Handler) registerActivityRoutes(r *gin.Engine) {
	activity := r.Group("/activity", h.authMiddleware, h.adminMiddleware)
	{
		activity.GET("/", h.getActivity)
		activity.GET("/ws", h.wsActivity)
	}
}
