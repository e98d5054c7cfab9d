package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/learn2pay/backend/app"
	"github.com/learn2pay/backend/handlers"
	"github.com/learn2pay/backend/models"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware. Credentials are required, the tokens travel in cookies.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	cookies := handlers.NewCookieWriter(deps.Config.Auth)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Logger)
	instituteHandler := handlers.NewInstituteHandler(
		deps.AuthService, deps.InstituteService, deps.StudentService, cookies, deps.AuditRecorder, deps.Logger)
	parentHandler := handlers.NewParentHandler(
		deps.AuthService, deps.StudentService, cookies, deps.AuditRecorder, deps.Logger)
	staffHandler := handlers.NewStaffHandler(deps.AuthService, cookies, deps.AuditRecorder, deps.AuditRecorder, deps.Logger)
	kycHandler := handlers.NewKYCHandler(deps.KYCService, deps.AuditRecorder, deps.Logger)

	authmw := deps.AuthMiddleware
	ratemw := deps.RateLimitMiddleware

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		// Institute endpoints
		r.Route("/institute", func(r chi.Router) {
			r.Post("/register", instituteHandler.HandleRegister)
			r.With(ratemw.LimitLogin).Post("/login", instituteHandler.HandleLogin)
			r.Post("/refresh", instituteHandler.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireAuth)
				r.Use(authmw.RequireRole(models.RoleInstitute))

				r.Get("/session", instituteHandler.HandleSession)
				r.Post("/logout", instituteHandler.HandleLogout)

				r.Get("/kyc", kycHandler.HandleStatus)
				r.Post("/kyc", kycHandler.HandleSubmit)
				r.Get("/kyc/documents/{type}", kycHandler.HandleDocument)

				r.Get("/students", instituteHandler.HandleListStudents)
				r.Get("/students/{id}", instituteHandler.HandleGetStudent)
				r.Put("/students/{id}", instituteHandler.HandleUpdateStudent)
			})
		})

		// Parent endpoints. Registration lives here but requires institute
		// auth: only the tenant can enroll its students.
		r.Route("/parent", func(r chi.Router) {
			r.With(ratemw.LimitLogin).Post("/login", parentHandler.HandleLogin)
			r.Post("/refresh", parentHandler.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireAuth)
				r.Use(authmw.RequireRole(models.RoleParent))

				r.Get("/session", parentHandler.HandleSession)
				r.Post("/logout", parentHandler.HandleLogout)
				r.Get("/students", parentHandler.HandleListStudents)
			})

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireAuth)
				r.Use(authmw.RequireRole(models.RoleInstitute))

				r.Post("/register", parentHandler.HandleRegister)
				r.Post("/bulk-register", parentHandler.HandleBulkRegister)
			})
		})

		// Staff endpoints
		r.Route("/user", func(r chi.Router) {
			r.With(ratemw.LimitLogin).Post("/login", staffHandler.HandleLogin)
			r.Post("/refresh", staffHandler.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireAuth)
				r.Use(authmw.RequireRole(models.RoleStaff))

				r.Get("/session", staffHandler.HandleSession)
				r.Post("/logout", staffHandler.HandleLogout)

				// Audit trail lookup, support sub-role (admin passes any gate)
				r.With(authmw.RequireStaffRole(models.StaffRoleSupport)).
					Get("/audit/{id}", staffHandler.HandleAuditTrail)
			})
		})
	})

	return r
}
