package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"libtrack/internal/auth"
	"libtrack/internal/branch"
	"libtrack/internal/cloudinary"
	"libtrack/internal/config"
	"libtrack/internal/gatelog"
	"libtrack/internal/handler"
	"libtrack/internal/httpmiddleware"
	"libtrack/internal/kiosk"
	"libtrack/internal/queue"
	"libtrack/internal/store"
	"libtrack/internal/student"
	"libtrack/internal/visionclient"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	var (
		db           *store.DB
		studentStore student.Store
		branchStore  branch.Registry
		logStore     gatelog.Store
		kioskStore   kiosk.Store
	)

	if cfg.StoreBackend == "memory" {
		studentStore = student.NewMemory()
		branchStore = branch.NewMemory("Computer", "Mechanical", "Civil", "Electrical", student.BranchStaff)
		logStore = gatelog.NewMemory()
		kioskStore = kiosk.NewMemory()
		log.Println("using in-memory store backend")
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Printf("warning: db not reachable, falling back to memory stores: %v", err)
			studentStore = student.NewMemory()
			branchStore = branch.NewMemory(student.BranchStaff)
			logStore = gatelog.NewMemory()
			kioskStore = kiosk.NewMemory()
		} else {
			studentStore = student.NewRepository(db.Client)
			branchStore = branch.NewRepository(db.Client)
			logStore = gatelog.NewRepository(db.Client)
			kioskStore = kiosk.NewRepository(db.Client)
		}
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	vision := visionclient.New(cfg.VisionServiceURL, cfg.VisionSkip)

	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	students := student.NewService(studentStore)
	scans := gatelog.NewService(students, logStore, gatelog.NewHTTPImageFetcher(), cfg.MinScanInterval)
	prometheus.MustRegister(scans.Collector())

	h := handler.New(cfg, students, branchStore, scans, kioskStore, vision, cdnClient, q)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil || cfg.StoreBackend == "memory"
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/kiosks/register", h.RegisterKiosk)
	r.POST("/v1/auth/login", h.AdminLogin)

	kioskGroup := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleKiosk))
	kioskGroup.POST("/scans", h.Scan)
	kioskGroup.POST("/upload", h.Upload)

	adminGroup := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin))
	adminGroup.GET("/students", h.ListStudents)
	adminGroup.POST("/students", h.CreateStudent)
	adminGroup.GET("/students/:id", h.GetStudent)
	adminGroup.PUT("/students/:id", h.UpdateStudent)
	adminGroup.DELETE("/students/:id", h.DeleteStudent)
	adminGroup.GET("/branches", h.ListBranches)
	adminGroup.POST("/branches", h.AddBranch)
	adminGroup.DELETE("/branches/:name", h.DeleteBranch)
	adminGroup.GET("/logs", h.ListLogs)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
