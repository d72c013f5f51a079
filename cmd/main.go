package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-forum-backend/config"
	"course-forum-backend/internal/api/admin"
	"course-forum-backend/internal/api/forum"
	"course-forum-backend/internal/api/user"
	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/middleware"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/realtime"
	"course-forum-backend/internal/repository/interfaces"
	"course-forum-backend/internal/repository/memory"
	mongorepo "course-forum-backend/internal/repository/mongo"
	mysqlrepo "course-forum-backend/internal/repository/mysql"
	"course-forum-backend/internal/service"
	"course-forum-backend/internal/storage"
	"course-forum-backend/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// stores bundles the repositories of one backend.
type stores struct {
	forum   interfaces.ForumRepository
	users   interfaces.UserRepository
	courses interfaces.CourseRepository
	close   func()
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			util.Logger.Error("fatal panic", zap.Any("error", r))
		}
	}()

	config.Init()
	cfg := config.AppConfig

	util.InitLogger(cfg.LogLevel)
	defer util.Logger.Sync()

	util.Logger.Info("starting course forum backend",
		zap.String("store", cfg.StoreBackend),
		zap.String("storage", cfg.StorageBackend))

	if err := util.RegisterValidators(); err != nil {
		util.Logger.Fatal("failed to register validators", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStores(ctx, cfg)
	cancel()
	if err != nil {
		util.Logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.close()

	uploader, err := storage.New(cfg)
	if err != nil {
		util.Logger.Fatal("failed to initialise attachment storage", zap.Error(err))
	}

	hub := realtime.NewHub(realtime.DefaultBufferSize)
	analytics := errors.NewErrorAnalytics()

	notifier := service.NewNotificationService(cfg, st.users)
	forumService := service.NewForumService(st.forum, st.courses, uploader, hub, notifier)
	userService := service.NewUserService(st.users)
	statsService := service.NewStatsService(analytics, hub)

	forumHandler := forum.NewForumHandler(forumService)
	userHandler := user.NewUserHandler(userService)
	adminHandler := admin.NewAdminHandler(statsService)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorMonitorMiddleware(analytics))
	r.Use(middleware.RecoveryMiddleware())

	if cfg.StorageBackend == "local" {
		r.Static("/uploads", cfg.LocalStoragePath)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(userService, cfg.JWTSecret))
	{
		forumHandler.RegisterRoutes(api)
		api.GET("/me", userHandler.GetMe)

		adminRoutes := api.Group("/admin")
		adminRoutes.Use(middleware.AdminMiddleware())
		{
			adminRoutes.GET("/stats", adminHandler.GetSystemStats)
			adminRoutes.GET("/errors", adminHandler.GetErrorStats)
		}
	}

	if cfg.Debug {
		for _, route := range r.Routes() {
			util.Logger.Debug("route",
				zap.String("method", route.Method),
				zap.String("path", route.Path),
				zap.String("handler", route.Handler))
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		util.Logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	util.Logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		util.Logger.Error("forced shutdown", zap.Error(err))
	}
	util.Logger.Info("server stopped")
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.DBUser
		mc.Passwd = cfg.DBPassword
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
		mc.DBName = cfg.DBName
		mc.Params = map[string]string{"charset": "utf8mb4"}
		mc.ParseTime = true
		mc.Loc = time.UTC
		// execOne counts matched rows, not changed ones.
		mc.ClientFoundRows = true

		db, err := sql.Open("mysql", mc.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		if err := mysqlrepo.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		util.Logger.Info("connected to mysql", zap.String("addr", mc.Addr))

		return &stores{
			forum:   mysqlrepo.NewForumRepository(db),
			users:   mysqlrepo.NewUserRepository(db),
			courses: mysqlrepo.NewCourseRepository(db),
			close: func() {
				if err := db.Close(); err != nil {
					util.Logger.Warn("failed to close mysql", zap.Error(err))
				}
			},
		}, nil

	case "mongo":
		client, db, err := mongorepo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			mongorepo.Disconnect(client)
			return nil, err
		}

		return &stores{
			forum:   mongorepo.NewForumRepository(db),
			users:   mongorepo.NewUserRepository(db),
			courses: mongorepo.NewCourseRepository(db),
			close: func() {
				if err := mongorepo.Disconnect(client); err != nil {
					util.Logger.Warn("failed to disconnect mongo", zap.Error(err))
				}
			},
		}, nil

	case "memory":
		util.Logger.Warn("using in-memory store; data is lost on restart")
		db := memory.NewDB()
		if cfg.DevUserID != "" {
			db.SeedUser(model.User{
				ID:        cfg.DevUserID,
				Username:  cfg.DevUserName,
				Role:      cfg.DevUserRole,
				CreatedAt: time.Now().UTC(),
			})
			util.Logger.Info("seeded development user",
				zap.String("user_id", cfg.DevUserID), zap.String("role", cfg.DevUserRole))
		} else {
			util.Logger.Warn("DEV_USER_ID is not set; every token will be rejected by the memory store")
		}
		return &stores{
			forum:   memory.NewForumRepository(db),
			users:   memory.NewUserRepository(db),
			courses: memory.NewCourseRepository(db),
			close:   func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func corsConfig(cfg config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowOrigins = []string{cfg.FrontendURL}
	c.AllowCredentials = true
	c.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	c.ExposeHeaders = []string{"Content-Length", "Content-Type", middleware.RequestIDHeader}
	return c
}
