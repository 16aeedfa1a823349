package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/edgard/mamabot/internal/advisory"
	"github.com/edgard/mamabot/internal/alert"
	"github.com/edgard/mamabot/internal/database"
	"github.com/edgard/mamabot/internal/errs"
	"github.com/edgard/mamabot/internal/health"
	"github.com/edgard/mamabot/internal/httpapi"
	"github.com/edgard/mamabot/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	mu          sync.Mutex
	pingErr     error
	vitalsErr   error
	askErr      error
	lastVitals  health.VitalsInput
	lastAsk     advisory.Request
	lastLimit   int
	lastUserID  string
	vitalsCalls int
}

func (f *fakeService) Ping(context.Context) error { return f.pingErr }

func (f *fakeService) SubmitVitals(_ context.Context, in health.VitalsInput) (*health.VitalsOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vitalsCalls++
	f.lastVitals = in
	if f.vitalsErr != nil {
		return nil, f.vitalsErr
	}
	res := alert.Classify(*in.SystolicBP, *in.SugarLevel, "Jane", "Dr. Carter")
	return &health.VitalsOutcome{
		Alert:  res,
		Vitals: database.VitalsSnapshot{ID: "v1", UserID: in.UserID, SystolicBP: *in.SystolicBP, SugarLevel: *in.SugarLevel, AlertLevel: string(res.Level)},
	}, nil
}

func (f *fakeService) Ask(_ context.Context, req advisory.Request) (*advisory.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAsk = req
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &advisory.Response{Answer: "Stay hydrated."}, nil
}

func (f *fakeService) SubmitAppointment(_ context.Context, in health.AppointmentInput) (*database.Appointment, error) {
	return &database.Appointment{ID: "a1", UserID: in.UserID, DoctorID: in.DoctorID, Status: database.AppointmentPending}, nil
}

func (f *fakeService) SubmitReminder(_ context.Context, in health.ReminderInput) (*database.Reminder, error) {
	return &database.Reminder{ID: "r1", UserID: in.UserID, Title: in.Title}, nil
}

func (f *fakeService) SubmitSOS(_ context.Context, in health.SOSInput) (*database.SOSEvent, error) {
	return &database.SOSEvent{ID: "s1", UserID: in.UserID, Lat: *in.Lat, Lng: *in.Lng}, nil
}

func (f *fakeService) RegisterPatient(_ context.Context, in health.PatientInput) (*database.Patient, error) {
	return &database.Patient{ID: "p1", Name: in.Name}, nil
}

func (f *fakeService) RegisterDoctor(_ context.Context, in health.DoctorInput) (*database.Doctor, error) {
	return &database.Doctor{ID: "d1", Name: in.Name}, nil
}

func (f *fakeService) RecentVitals(_ context.Context, userID string, limit int) ([]database.VitalsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUserID = userID
	f.lastLimit = limit
	if limit > 100 {
		return nil, errs.NewValidationError("invalid limit", errs.FieldIssue{Field: "limit", Constraint: "max", Param: "100", Message: "limit must be at most 100"})
	}
	return []database.VitalsSnapshot{{ID: "v1", UserID: userID}}, nil
}

func (f *fakeService) Appointments(_ context.Context, userID string) ([]database.Appointment, error) {
	return []database.Appointment{{ID: "a1", UserID: userID}}, nil
}

func newTestServer(svc httpapi.Service) http.Handler {
	return httpapi.NewServer(svc, httpapi.Options{Addr: ":0"}, logger.Discard()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return rec, payload
}

func TestSubmitVitals(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	h := newTestServer(svc)

	rec, payload := do(t, h, http.MethodPost, "/api/vitals", `{"userId":"u1","systolicBP":165,"sugarLevel":100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if payload["success"] != true {
		t.Errorf("success = %v, want true", payload["success"])
	}
	alertBody, ok := payload["alert"].(map[string]any)
	if !ok {
		t.Fatalf("alert missing: %v", payload)
	}
	if alertBody["level"] != "critical" {
		t.Errorf("level = %v, want critical", alertBody["level"])
	}
	if alertBody["shouldNotify"] != true {
		t.Errorf("shouldNotify = %v, want true", alertBody["shouldNotify"])
	}
	if _, ok := payload["vitals"].(map[string]any); !ok {
		t.Errorf("vitals missing: %v", payload)
	}
	if svc.lastVitals.UserID != "u1" || *svc.lastVitals.SystolicBP != 165 {
		t.Errorf("service received %+v", svc.lastVitals)
	}
}

func TestSubmitVitalsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantType   string
		wantCalls  int
	}{
		{
			name:       "malformed json",
			body:       `{"userId":`,
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
		},
		{
			name:       "wrong field type",
			body:       `{"userId":"u1","systolicBP":"high","sugarLevel":100}`,
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
		},
		{
			name:       "service validation",
			body:       `{"userId":"u1","systolicBP":10,"sugarLevel":100}`,
			serviceErr: errs.NewValidationError("invalid vitals", errs.FieldIssue{Field: "systolicBP", Constraint: "min", Param: "50"}),
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
			wantCalls:  1,
		},
		{
			name:       "service internal",
			body:       `{"userId":"u1","systolicBP":120,"sugarLevel":100}`,
			serviceErr: errs.NewInternalError(errs.GenericMessage, errors.New("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantType:   "internal",
			wantCalls:  1,
		},
		{
			name:       "plain error",
			body:       `{"userId":"u1","systolicBP":120,"sugarLevel":100}`,
			serviceErr: errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   "internal",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{vitalsErr: tt.serviceErr}
			rec, payload := do(t, newTestServer(svc), http.MethodPost, "/api/vitals", tt.body)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if payload["success"] != false {
				t.Errorf("success = %v, want false", payload["success"])
			}
			if payload["errorType"] != tt.wantType {
				t.Errorf("errorType = %v, want %s", payload["errorType"], tt.wantType)
			}
			if svc.vitalsCalls != tt.wantCalls {
				t.Errorf("service calls = %d, want %d", svc.vitalsCalls, tt.wantCalls)
			}
			if msg, _ := payload["message"].(string); strings.Contains(msg, "disk full") || strings.Contains(msg, "boom") {
				t.Errorf("internal cause leaked: %q", msg)
			}
		})
	}
}

func TestChat(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	rec, payload := do(t, newTestServer(svc), http.MethodPost, "/api/chat",
		`{"userId":"u1","question":"Can I eat sushi?","history":[{"role":"user","text":"hi"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if payload["answer"] != "Stay hydrated." {
		t.Errorf("answer = %v", payload["answer"])
	}
	if svc.lastAsk.Question != "Can I eat sushi?" || len(svc.lastAsk.History) != 1 {
		t.Errorf("service received %+v", svc.lastAsk)
	}
}

func TestChatFallback(t *testing.T) {
	t.Parallel()

	svc := &fakeService{askErr: errs.NewInternalError(advisory.FallbackMessage, errors.New("model down"))}
	rec, payload := do(t, newTestServer(svc), http.MethodPost, "/api/chat", `{"userId":"u1","question":"hello"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if payload["message"] != advisory.FallbackMessage {
		t.Errorf("message = %v, want fallback", payload["message"])
	}
}

func TestRecentVitalsQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantLimit  int
	}{
		{name: "default", path: "/api/users/u1/vitals", wantStatus: http.StatusOK, wantLimit: 0},
		{name: "explicit", path: "/api/users/u1/vitals?limit=5", wantStatus: http.StatusOK, wantLimit: 5},
		{name: "not a number", path: "/api/users/u1/vitals?limit=abc", wantStatus: http.StatusBadRequest},
		{name: "too large", path: "/api/users/u1/vitals?limit=500", wantStatus: http.StatusBadRequest, wantLimit: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeService{}
			rec, _ := do(t, newTestServer(svc), http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK || tt.wantLimit != 0 {
				if svc.lastLimit != tt.wantLimit || svc.lastUserID != "u1" {
					t.Errorf("service got user=%q limit=%d", svc.lastUserID, svc.lastLimit)
				}
			}
		})
	}
}

func TestCreateRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path       string
		body       string
		wantStatus int
	}{
		{"/api/appointments", `{"userId":"u1","doctorId":"doc-1","patientName":"Jane","scheduledAt":"2026-11-01T10:00:00Z"}`, http.StatusCreated},
		{"/api/reminders", `{"userId":"u1","title":"Iron","remindAt":"2026-11-01T08:00:00Z"}`, http.StatusCreated},
		{"/api/sos", `{"userId":"u1","lat":12.5,"lng":-3.25}`, http.StatusCreated},
		{"/api/patients", `{"name":"Jane"}`, http.StatusOK},
		{"/api/doctors", `{"name":"Dr. Carter"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			rec, payload := do(t, newTestServer(&fakeService{}), http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if payload["success"] != true {
				t.Errorf("success = %v", payload["success"])
			}
			if _, ok := payload["data"].(map[string]any); !ok {
				t.Errorf("data missing: %v", payload)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec, payload := do(t, newTestServer(&fakeService{}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || payload["status"] != "ok" {
		t.Errorf("healthy: status=%d body=%v", rec.Code, payload)
	}

	rec, payload = do(t, newTestServer(&fakeService{pingErr: errors.New("db gone")}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable || payload["status"] != "unavailable" {
		t.Errorf("unhealthy: status=%d body=%v", rec.Code, payload)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := httpapi.NewServer(&fakeService{}, httpapi.Options{Addr: "127.0.0.1:0"}, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}
