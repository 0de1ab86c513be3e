package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskflowhq/taskflow/internal/auth"
	"github.com/taskflowhq/taskflow/internal/service"
	"github.com/taskflowhq/taskflow/pkg/health"
	"github.com/taskflowhq/taskflow/pkg/middleware"
)

// RouterConfig carries everything the router needs to wire the API surface.
type RouterConfig struct {
	AuthService         *service.AuthService
	UserService         *service.UserService
	TaskService         *service.TaskService
	NoteService         *service.NoteService
	HabitService        *service.HabitService
	FolderService       *service.FolderService
	TeamService         *service.TeamService
	NotificationService *service.NotificationService

	JWTManager    *auth.JWTManager
	HealthHandler *health.Handler
	Logger        *slog.Logger
	CORS          middleware.CORSConfig
	PprofCIDRs    []string
}

// NewRouter creates a chi router with all API routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing("taskflow"))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("taskflow"))

	// Health and operational endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger)
	userHandler := NewUserHandler(cfg.UserService, cfg.Logger)
	taskHandler := NewTaskHandler(cfg.TaskService, cfg.Logger)
	noteHandler := NewNoteHandler(cfg.NoteService, cfg.Logger)
	habitHandler := NewHabitHandler(cfg.HabitService, cfg.Logger)
	folderHandler := NewFolderHandler(cfg.FolderService, cfg.Logger)
	teamHandler := NewTeamHandler(cfg.TeamService, cfg.Logger)
	notificationHandler := NewNotificationHandler(cfg.NotificationService, cfg.Logger)

	// Token validator that bridges to the internal JWT manager.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := cfg.JWTManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
		}, nil
	}

	authenticated := func(r chi.Router) {
		r.Use(RejectRevoked(cfg.AuthService))
		r.Use(middleware.Auth(tokenValidator))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/verify-email", authHandler.VerifyEmail)
			r.Get("/verify-email", authHandler.VerifyEmailLink)
			r.Post("/resend-verification", authHandler.ResendVerification)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				authenticated(r)

				r.Post("/logout", authHandler.Logout)
				r.Post("/logout-all", authHandler.LogoutAll)
				r.Get("/sessions", authHandler.ListSessions)
				r.Delete("/sessions/{id}", authHandler.RevokeSession)
				r.Post("/change-password", authHandler.ChangePassword)
				r.Get("/security-events", authHandler.SecurityHistory)
			})
		})

		r.Group(func(r chi.Router) {
			authenticated(r)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", userHandler.GetProfile)
				r.Put("/me", userHandler.UpdateProfile)
				r.Delete("/me", userHandler.DeleteAccount)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", taskHandler.Create)
				r.Get("/", taskHandler.List)
				r.Get("/trash", taskHandler.ListTrash)
				r.Get("/{id}", taskHandler.Get)
				r.Patch("/{id}", taskHandler.Update)
				r.Delete("/{id}", taskHandler.Trash)
				r.Post("/{id}/restore", taskHandler.Restore)
				r.Delete("/{id}/permanent", taskHandler.Purge)
			})

			r.Route("/notes", func(r chi.Router) {
				r.Post("/", noteHandler.Create)
				r.Get("/", noteHandler.List)
				r.Get("/trash", noteHandler.ListTrash)
				r.Get("/{id}", noteHandler.Get)
				r.Patch("/{id}", noteHandler.Update)
				r.Delete("/{id}", noteHandler.Trash)
				r.Post("/{id}/restore", noteHandler.Restore)
				r.Delete("/{id}/permanent", noteHandler.Purge)
				r.Get("/{id}/collaborators", noteHandler.ListCollaborators)
				r.Post("/{id}/collaborators", noteHandler.Share)
				r.Delete("/{id}/collaborators/{userId}", noteHandler.Unshare)
			})

			r.Route("/habits", func(r chi.Router) {
				r.Post("/", habitHandler.Create)
				r.Get("/", habitHandler.List)
				r.Get("/shared", habitHandler.ListShared)
				r.Get("/analytics", habitHandler.Analytics)
				r.Get("/heatmap", habitHandler.Heatmap)
				r.Get("/{id}", habitHandler.Get)
				r.Patch("/{id}", habitHandler.Update)
				r.Delete("/{id}", habitHandler.Archive)
				r.Post("/{id}/logs", habitHandler.Log)
				r.Get("/{id}/logs", habitHandler.ListLogs)
				r.Delete("/{id}/logs/{date}", habitHandler.Unlog)
				r.Get("/{id}/streak", habitHandler.Streak)
				r.Post("/{id}/share", habitHandler.Share)
				r.Delete("/{id}/share/{userId}", habitHandler.Unshare)
			})

			r.Route("/folders", func(r chi.Router) {
				r.Post("/", folderHandler.Create)
				r.Get("/", folderHandler.List)
				r.Get("/{id}", folderHandler.Get)
				r.Patch("/{id}", folderHandler.Update)
				r.Delete("/{id}", folderHandler.Delete)
			})

			r.Route("/teams", func(r chi.Router) {
				r.Post("/", teamHandler.Create)
				r.Get("/", teamHandler.List)
				r.Get("/{id}", teamHandler.Get)
				r.Patch("/{id}", teamHandler.Update)
				r.Delete("/{id}", teamHandler.Delete)
				r.Post("/{id}/members", teamHandler.AddMember)
				r.Delete("/{id}/members/{userId}", teamHandler.RemoveMember)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Get("/unread-count", notificationHandler.UnreadCount)
				r.Post("/read-all", notificationHandler.MarkAllRead)
				r.Post("/{id}/read", notificationHandler.MarkRead)
				r.Delete("/", notificationHandler.ClearAll)
				r.Delete("/{id}", notificationHandler.Delete)
			})
		})
	})

	return r
}
