// Package alert classifies vitals snapshots into severity levels and builds
// the patient-facing alert message.
package alert

import (
	"fmt"
	"strings"
)

// Level is the severity of a vitals snapshot.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Thresholds, inclusive.
const (
	SystolicCritical = 160
	SystolicWarning  = 140
	SugarCritical    = 250
	SugarWarning     = 180
)

func (l Level) rank() int {
	switch l {
	case LevelCritical:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// Metric names used in Breach.
const (
	MetricBloodPressure = "blood pressure"
	MetricBloodSugar    = "blood sugar"
)

// Breach is one metric that crossed a threshold.
type Breach struct {
	Metric string `json:"metric"`
	Value  int    `json:"value"`
	Unit   string `json:"unit"`
	Level  Level  `json:"level"`
}

// Result is the outcome of Classify.
type Result struct {
	Level        Level    `json:"level"`
	Message      string   `json:"message"`
	ShouldNotify bool     `json:"shouldNotify"`
	Breaches     []Breach `json:"breaches,omitempty"`
}

// Classify evaluates systolic blood pressure (mmHg) and blood sugar (mg/dL).
// The overall level is the highest severity across both metrics, and every
// breaching metric is named in the message. Inputs are assumed range-checked.
func Classify(systolic, sugar int, userName, doctorName string) Result {
	var breaches []Breach
	if lvl := levelFor(systolic, SystolicWarning, SystolicCritical); lvl != LevelNormal {
		breaches = append(breaches, Breach{Metric: MetricBloodPressure, Value: systolic, Unit: "mmHg", Level: lvl})
	}
	if lvl := levelFor(sugar, SugarWarning, SugarCritical); lvl != LevelNormal {
		breaches = append(breaches, Breach{Metric: MetricBloodSugar, Value: sugar, Unit: "mg/dL", Level: lvl})
	}

	level := LevelNormal
	for _, b := range breaches {
		if b.Level.rank() > level.rank() {
			level = b.Level
		}
	}

	res := Result{
		Level:        level,
		ShouldNotify: level != LevelNormal,
		Breaches:     breaches,
	}
	if res.ShouldNotify {
		res.Message = alertMessage(level, breaches, strings.TrimSpace(userName), strings.TrimSpace(doctorName))
	} else {
		res.Message = normalMessage(systolic, sugar, strings.TrimSpace(userName))
	}
	return res
}

func levelFor(value, warning, critical int) Level {
	switch {
	case value >= critical:
		return LevelCritical
	case value >= warning:
		return LevelWarning
	default:
		return LevelNormal
	}
}

func alertMessage(level Level, breaches []Breach, userName, doctorName string) string {
	var sb strings.Builder

	heading := "Warning"
	if level == LevelCritical {
		heading = "Critical alert"
	}
	sb.WriteString(heading)
	if userName != "" {
		sb.WriteString(" for ")
		sb.WriteString(userName)
	}
	sb.WriteString(": ")

	phrases := make([]string, 0, len(breaches))
	for _, b := range breaches {
		phrases = append(phrases, describe(b))
	}
	sb.WriteString(strings.Join(phrases, " and "))
	sb.WriteString(". ")

	if level == LevelCritical {
		sb.WriteString("Please contact your doctor immediately. ")
	} else {
		sb.WriteString("Please rest and monitor. Contact your doctor if it remains high. ")
	}

	if doctorName != "" {
		sb.WriteString(doctorName)
		sb.WriteString(" has been notified.")
	} else {
		sb.WriteString("Your doctor has been notified.")
	}
	return sb.String()
}

func describe(b Breach) string {
	state := "elevated"
	if b.Level == LevelCritical {
		state = "critically high"
	}
	return fmt.Sprintf("%s is %s (%d %s)", b.Metric, state, b.Value, b.Unit)
}

func normalMessage(systolic, sugar int, userName string) string {
	prefix := "Your vitals"
	if userName != "" {
		prefix = userName + ", your vitals"
	}
	return fmt.Sprintf("%s are within the expected range (blood pressure %d mmHg, blood sugar %d mg/dL).", prefix, systolic, sugar)
}
