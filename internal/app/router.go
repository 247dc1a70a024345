package app

import (
	"database/sql"
	"net/http"
	"time"

	"traindesk/internal/activity"
	"traindesk/internal/app/observability"
	"traindesk/internal/auth"
	"traindesk/internal/drive"
	"traindesk/internal/module"
	"traindesk/internal/quiz"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)
	r.Use(CSRFMiddleware(cfg.CSRFEnforced))

	authSvc := auth.NewService(db, auth.ServiceConfig{
		SessionTTL: time.Duration(cfg.SessionTTLHours) * time.Hour,
	})
	authHandler := auth.NewHandler(authSvc)

	activitySvc := activity.NewService(db)
	activityHandler := activity.NewHandler(activitySvc)

	driveClient := drive.NewClient(drive.ClientConfig{APIKey: cfg.DriveAPIKey})
	driveHandler := drive.NewHandler(driveClient, cfg.DriveImportFolder)

	quizSvc := quiz.NewService(db, driveClient)
	quizHandler := quiz.NewHandler(quizSvc, activitySvc)

	moduleSvc := module.NewService(db)
	moduleHandler := module.NewHandler(moduleSvc, activitySvc)

	loginLimiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(RateLimitMiddleware(loginLimiter))
			public.Post("/auth/login", authHandler.LoginPassword)
		})

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/auth/me", authHandler.Me)
			secure.Post("/auth/logout", authHandler.Logout)

			secure.Get("/modules", moduleHandler.ListModules)
			secure.Get("/modules/{id}", moduleHandler.GetModule)
			secure.Get("/quizzes", quizHandler.ListQuizzes)
			secure.Get("/quizzes/{id}", quizHandler.GetQuiz)

			secure.Group(func(staff chi.Router) {
				staff.Use(authHandler.RequireRoles("admin", "manager", "trainer"))

				staff.Get("/quizzes/template", quizHandler.DownloadTemplate)
				staff.Post("/quizzes/import/preview", quizHandler.ImportPreview)
				staff.Post("/quizzes/import/drive", quizHandler.ImportFromDrive)
				staff.Post("/quizzes/import", quizHandler.CommitImport)
				staff.Delete("/quizzes/{id}", quizHandler.DeleteQuiz)

				staff.Post("/modules", moduleHandler.CreateModule)
				staff.Put("/modules/{id}", moduleHandler.UpdateModule)
				staff.Delete("/modules/{id}", moduleHandler.DeleteModule)

				staff.Get("/drive/files", driveHandler.ListFiles)
				staff.Get("/drive/files/{id}/download", driveHandler.DownloadFile)
			})

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles("admin", "manager"))
				admin.Get("/admin/stats", authHandler.DashboardStats)
				admin.Get("/admin/activity", activityHandler.ListActivity)
				admin.Get("/admin/users", authHandler.ListUsers)
				admin.Post("/admin/users", authHandler.CreateUser)
				admin.Put("/admin/users/{id}", authHandler.UpdateUser)
				admin.Delete("/admin/users/{id}", authHandler.DeactivateUser)
				admin.Get("/admin/users/export", authHandler.ExportUsersExcel)
				admin.Post("/admin/users/import", authHandler.ImportUsersExcel)
			})
		})
	})

	return r
}
