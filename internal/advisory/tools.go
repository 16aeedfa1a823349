package advisory

import (
	"context"
	"fmt"

	"github.com/edgard/mamabot/internal/llm"
)

// HealthDataToolName is the name the model uses to request patient records.
const HealthDataToolName = "getUserHealthData"

var healthDataTool = llm.Tool{
	Name: HealthDataToolName,
	Description: "Get the user's latest health data: recent vitals (blood pressure, sugar level, weight, heart rate), " +
		"newest first, and their appointments.",
	Params: []llm.Param{
		{Name: "userId", Type: llm.TypeString, Description: "The ID of the user whose data to fetch.", Required: true},
	},
}

// healthData fetches the records for userID and shapes them as the tool's output.
func (g *Gateway) healthData(ctx context.Context, userID string) (map[string]any, error) {
	vitals, err := g.records.GetRecentVitals(ctx, userID, g.cfg.RecentVitalsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load vitals: %w", err)
	}
	appointments, err := g.records.GetAppointments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load appointments: %w", err)
	}

	return map[string]any{
		"vitals":       vitals,
		"appointments": appointments,
	}, nil
}

// runTool executes one model tool call on behalf of userID. The returned
// error is non-nil only for record store failures; unknown tools yield an
// error payload for the model instead.
func (g *Gateway) runTool(ctx context.Context, userID string, call llm.FunctionCall) (llm.FunctionResult, error) {
	result := llm.FunctionResult{ID: call.ID, Name: call.Name}

	if call.Name != HealthDataToolName {
		g.log.WarnContext(ctx, "Model requested unknown tool", "tool", call.Name, "user_id", userID)
		result.Response = map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Name)}
		return result, nil
	}

	if requested, _ := call.Args["userId"].(string); requested != "" && requested != userID {
		g.log.WarnContext(ctx, "Model requested another user's records, using request user", "requested_user_id", requested, "user_id", userID)
	}

	data, err := g.healthData(ctx, userID)
	if err != nil {
		return result, err
	}
	result.Response = data
	return result, nil
}
