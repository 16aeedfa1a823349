package alert_test

import (
	"strings"
	"testing"

	"github.com/edgard/mamabot/internal/alert"
)

func TestClassify_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		systolic int
		sugar    int
		want     alert.Level
	}{
		{name: "normal", systolic: 120, sugar: 95, want: alert.LevelNormal},
		{name: "just below warning", systolic: 139, sugar: 179, want: alert.LevelNormal},
		{name: "systolic warning boundary", systolic: 140, sugar: 90, want: alert.LevelWarning},
		{name: "systolic just below critical", systolic: 159, sugar: 90, want: alert.LevelWarning},
		{name: "systolic critical boundary", systolic: 160, sugar: 90, want: alert.LevelCritical},
		{name: "sugar warning boundary", systolic: 110, sugar: 180, want: alert.LevelWarning},
		{name: "sugar just below critical", systolic: 110, sugar: 249, want: alert.LevelWarning},
		{name: "sugar critical boundary", systolic: 110, sugar: 250, want: alert.LevelCritical},
		{name: "sugar critical overrides bp warning", systolic: 145, sugar: 260, want: alert.LevelCritical},
		{name: "bp critical with sugar warning", systolic: 170, sugar: 200, want: alert.LevelCritical},
		{name: "low values", systolic: 50, sugar: 30, want: alert.LevelNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := alert.Classify(tt.systolic, tt.sugar, "Jane", "Dr. Carter")
			if got.Level != tt.want {
				t.Errorf("Classify(%d, %d).Level = %q, want %q", tt.systolic, tt.sugar, got.Level, tt.want)
			}
			if got.ShouldNotify != (got.Level != alert.LevelNormal) {
				t.Errorf("ShouldNotify = %v for level %q", got.ShouldNotify, got.Level)
			}
		})
	}
}

func TestClassify_NotifyIffNotNormal(t *testing.T) {
	t.Parallel()

	for systolic := 50; systolic <= 300; systolic += 5 {
		for sugar := 30; sugar <= 500; sugar += 10 {
			res := alert.Classify(systolic, sugar, "Jane", "Dr. Carter")

			if res.ShouldNotify != (res.Level != alert.LevelNormal) {
				t.Fatalf("Classify(%d, %d): ShouldNotify=%v level=%q", systolic, sugar, res.ShouldNotify, res.Level)
			}
			if res.ShouldNotify && !strings.Contains(res.Message, "Dr. Carter") {
				t.Fatalf("Classify(%d, %d): message %q does not name the clinician", systolic, sugar, res.Message)
			}
			if !res.ShouldNotify && strings.Contains(res.Message, "notified") {
				t.Fatalf("Classify(%d, %d): normal message %q claims a notification", systolic, sugar, res.Message)
			}
			if (systolic >= 160 || sugar >= 250) && res.Level != alert.LevelCritical {
				t.Fatalf("Classify(%d, %d) = %q, want critical", systolic, sugar, res.Level)
			}
		}
	}
}

func TestClassify_WarningScenario(t *testing.T) {
	t.Parallel()

	res := alert.Classify(145, 90, "Jane", "Dr. Carter")

	if res.Level != alert.LevelWarning || !res.ShouldNotify {
		t.Fatalf("got level=%q notify=%v, want warning/true", res.Level, res.ShouldNotify)
	}
	for _, want := range []string{"blood pressure", "145", "Dr. Carter", "Jane", "rest and monitor"} {
		if !strings.Contains(res.Message, want) {
			t.Errorf("message %q missing %q", res.Message, want)
		}
	}
	if strings.Contains(res.Message, "blood sugar") {
		t.Errorf("message %q mentions a metric that did not breach", res.Message)
	}
}

func TestClassify_CriticalScenarioNamesBothMetrics(t *testing.T) {
	t.Parallel()

	res := alert.Classify(170, 260, "Jane", "Dr. Carter")

	if res.Level != alert.LevelCritical {
		t.Fatalf("level = %q, want critical", res.Level)
	}
	for _, want := range []string{"blood pressure", "170", "blood sugar", "260", "contact your doctor immediately"} {
		if !strings.Contains(res.Message, want) {
			t.Errorf("message %q missing %q", res.Message, want)
		}
	}
	if len(res.Breaches) != 2 {
		t.Errorf("breaches = %+v, want 2", res.Breaches)
	}
}

func TestClassify_MixedSeverityBreaches(t *testing.T) {
	t.Parallel()

	res := alert.Classify(170, 200, "", "")

	if len(res.Breaches) != 2 {
		t.Fatalf("breaches = %+v, want 2", res.Breaches)
	}
	if res.Breaches[0].Level != alert.LevelCritical || res.Breaches[1].Level != alert.LevelWarning {
		t.Errorf("breach levels = %q, %q", res.Breaches[0].Level, res.Breaches[1].Level)
	}
	if !strings.Contains(res.Message, "blood sugar is elevated (200 mg/dL)") {
		t.Errorf("message %q does not describe the warning-level metric", res.Message)
	}
	if !strings.HasPrefix(res.Message, "Critical alert: ") {
		t.Errorf("message %q should drop the salutation for an empty name", res.Message)
	}
	if !strings.HasSuffix(res.Message, "Your doctor has been notified.") {
		t.Errorf("message %q should fall back to a generic clinician mention", res.Message)
	}
}

func TestClassify_NormalMessage(t *testing.T) {
	t.Parallel()

	res := alert.Classify(118, 92, "Jane", "Dr. Carter")

	if res.Message != "Jane, your vitals are within the expected range (blood pressure 118 mmHg, blood sugar 92 mg/dL)." {
		t.Errorf("message = %q", res.Message)
	}
	if strings.Contains(res.Message, "Dr. Carter") {
		t.Error("normal message should not mention the clinician")
	}
	if len(res.Breaches) != 0 {
		t.Errorf("breaches = %+v, want none", res.Breaches)
	}
}
