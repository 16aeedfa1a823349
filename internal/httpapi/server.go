// Package httpapi exposes the health operations as a JSON HTTP API built on gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/mamabot/internal/advisory"
	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/health"
	"github.com/edgard/mamabot/internal/logger"
)

// Service is the set of health operations served over HTTP. *health.Service implements it.
type Service interface {
	Ping(ctx context.Context) error
	SubmitVitals(ctx context.Context, in health.VitalsInput) (*health.VitalsOutcome, error)
	Ask(ctx context.Context, req advisory.Request) (*advisory.Response, error)
	SubmitAppointment(ctx context.Context, in health.AppointmentInput) (*database.Appointment, error)
	SubmitReminder(ctx context.Context, in health.ReminderInput) (*database.Reminder, error)
	SubmitSOS(ctx context.Context, in health.SOSInput) (*database.SOSEvent, error)
	RegisterPatient(ctx context.Context, in health.PatientInput) (*database.Patient, error)
	RegisterDoctor(ctx context.Context, in health.DoctorInput) (*database.Doctor, error)
	RecentVitals(ctx context.Context, userID string, limit int) ([]database.VitalsSnapshot, error)
	Appointments(ctx context.Context, userID string) ([]database.Appointment, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the API.
type Server struct {
	svc    Service
	opts   Options
	log    *slog.Logger
	engine *gin.Engine
}

// NewServer creates a Server and registers its routes.
func NewServer(svc Service, opts Options, log *slog.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		svc:  svc,
		opts: opts,
		log:  log.With("component", "http_server"),
	}
	s.engine = s.setupRoutes(log)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes(log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))

	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	{
		api.POST("/vitals", s.submitVitals)
		api.POST("/chat", s.chat)
		api.POST("/appointments", s.submitAppointment)
		api.POST("/reminders", s.submitReminder)
		api.POST("/sos", s.submitSOS)
		api.POST("/patients", s.registerPatient)
		api.POST("/doctors", s.registerDoctor)
	}

	users := api.Group("/users/:userId")
	{
		users.GET("/vitals", s.recentVitals)
		users.GET("/appointments", s.appointments)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "addr", s.opts.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received, stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server forced to shutdown: %w", err)
	}
	s.log.Info("HTTP server gracefully stopped")
	return nil
}
