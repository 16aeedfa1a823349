package config

import "time"

// DefaultSystemInstruction fixes the assistant persona used by the advisory gateway.
const DefaultSystemInstruction = `You are a caring AI health assistant for pregnant mothers. Give personalized, practical advice in a warm and empathetic tone, and keep answers concise.

If the user asks about her own health data (blood pressure, blood sugar, weight, heart rate, or appointments), call the getUserHealthData tool to fetch her recent measurements and appointments before answering, and base your answer on that data.

You are not a doctor. Never diagnose. Whenever a question or measurement suggests a serious concern, clearly recommend contacting her healthcare provider, and for emergencies tell her to seek immediate medical care.`

var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  true,

	"http.addr":             ":8080",
	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    2 * time.Minute,
	"http.shutdown_timeout": 10 * time.Second,

	"database.driver": "sqlite",
	"database.dsn":    "mamabot.db",

	"ai.provider":            "gemini",
	"ai.api_key":             "",
	"ai.base_url":            "",
	"ai.model_name":          "gemini-2.5-flash",
	"ai.temperature":         0.4,
	"ai.max_retries":         2,
	"ai.retry_delay_seconds": 2,

	"advisory.system_instruction":  DefaultSystemInstruction,
	"advisory.recent_vitals_limit": 15,
	"advisory.max_tool_rounds":     3,
	"advisory.history_limit":       20,

	"alerts.ai_phrasing":      false,
	"alerts.phrasing_timeout": 20 * time.Second,

	"telegram.enabled":          false,
	"telegram.token":            "",
	"telegram.fallback_chat_id": 0,

	"notify.dispatch_timeout": 30 * time.Second,
	"notify.kafka.enabled":    false,
	"notify.kafka.brokers":    []string{},
	"notify.kafka.topic":      "mamabot.notifications",

	"scheduler.tasks": map[string]any{
		"reminder_dispatch": map[string]any{"enabled": true, "schedule": "0 * * * * *"},
		"sql_maintenance":   map[string]any{"enabled": true, "schedule": "0 0 4 * * *"},
	},

	"messages.welcome":       "Hi! I'm your pregnancy health assistant. Ask me anything, log vitals with /vitals, or share your location for an SOS.",
	"messages.help":          "/vitals <systolic> <sugar> [diastolic] [weight] [heart rate] - log your vitals\n/reset - clear our conversation\nSend your location to raise an SOS.\nAny other message is a question for the assistant.",
	"messages.not_linked":    "Your Telegram account is not linked to a patient profile yet. Please ask your clinic to link it.",
	"messages.vitals_usage":  "Usage: /vitals <systolic> <sugar> [diastolic] [weight] [heart rate], e.g. /vitals 120 95 80 68.5 76",
	"messages.history_reset": "Our conversation has been cleared.",
	"messages.sos_received":  "SOS received. Your care team has been alerted. If you are in danger, call your local emergency number now.",
	"messages.general_error": "I'm sorry, I encountered an error. Please try again later.",
}
