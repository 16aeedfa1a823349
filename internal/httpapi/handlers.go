package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edgard/mamabot/internal/advisory"
	"github.com/edgard/mamabot/internal/errs"
	"github.com/edgard/mamabot/internal/health"
)

type failureResponse struct {
	Success   bool              `json:"success"`
	ErrorType errs.Kind         `json:"errorType"`
	Message   string            `json:"message"`
	Details   []errs.FieldIssue `json:"details,omitempty"`
}

type vitalsResponse struct {
	Success bool `json:"success"`
	Alert   any  `json:"alert"`
	Vitals  any  `json:"vitals"`
}

type chatResponse struct {
	Success bool   `json:"success"`
	Answer  string `json:"answer"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// fail writes err as a structured failure: 400 for validation, 500 otherwise.
// Internal causes are logged, never returned.
func (s *Server) fail(c *gin.Context, err error) {
	appErr, ok := errs.As(err)
	if !ok {
		appErr, _ = errs.As(errs.NewInternalError(errs.GenericMessage, err))
	}

	status := http.StatusInternalServerError
	if appErr.Kind() == errs.KindValidation {
		status = http.StatusBadRequest
	} else {
		s.log.ErrorContext(c.Request.Context(), "Request failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)

	c.JSON(status, failureResponse{
		Success:   false,
		ErrorType: appErr.Kind(),
		Message:   appErr.Message(),
		Details:   appErr.Details(),
	})
}

// bind decodes the JSON body into dst, reporting decode problems as validation errors.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		issue := errs.FieldIssue{Field: "body", Constraint: "json", Message: "request body must be valid JSON"}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			issue = errs.FieldIssue{Field: typeErr.Field, Constraint: "type", Param: typeErr.Type.String(), Message: typeErr.Field + " has the wrong type"}
		}
		s.fail(c, errs.NewValidationError("malformed request body", issue))
		return false
	}
	return true
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.svc.Ping(c.Request.Context()); err != nil {
		s.log.ErrorContext(c.Request.Context(), "Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) submitVitals(c *gin.Context) {
	var in health.VitalsInput
	if !s.bind(c, &in) {
		return
	}

	out, err := s.svc.SubmitVitals(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vitalsResponse{Success: true, Alert: out.Alert, Vitals: out.Vitals})
}

func (s *Server) chat(c *gin.Context) {
	var req advisory.Request
	if !s.bind(c, &req) {
		return
	}

	resp, err := s.svc.Ask(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{Success: true, Answer: resp.Answer})
}

func (s *Server) submitAppointment(c *gin.Context) {
	var in health.AppointmentInput
	if !s.bind(c, &in) {
		return
	}
	appt, err := s.svc.SubmitAppointment(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dataResponse{Success: true, Data: appt})
}

func (s *Server) submitReminder(c *gin.Context) {
	var in health.ReminderInput
	if !s.bind(c, &in) {
		return
	}
	reminder, err := s.svc.SubmitReminder(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dataResponse{Success: true, Data: reminder})
}

func (s *Server) submitSOS(c *gin.Context) {
	var in health.SOSInput
	if !s.bind(c, &in) {
		return
	}
	event, err := s.svc.SubmitSOS(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dataResponse{Success: true, Data: event})
}

func (s *Server) registerPatient(c *gin.Context) {
	var in health.PatientInput
	if !s.bind(c, &in) {
		return
	}
	patient, err := s.svc.RegisterPatient(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dataResponse{Success: true, Data: patient})
}

func (s *Server) registerDoctor(c *gin.Context) {
	var in health.DoctorInput
	if !s.bind(c, &in) {
		return
	}
	doctor, err := s.svc.RegisterDoctor(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dataResponse{Success: true, Data: doctor})
}

func (s *Server) recentVitals(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(c, errs.NewValidationError("invalid query", errs.FieldIssue{Field: "limit", Constraint: "integer", Message: "limit must be an integer"}))
			return
		}
		limit = n
	}

	vitals, err := s.svc.RecentVitals(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dataResponse{Success: true, Data: vitals})
}

func (s *Server) appointments(c *gin.Context) {
	appts, err := s.svc.Appointments(c.Request.Context(), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dataResponse{Success: true, Data: appts})
}
