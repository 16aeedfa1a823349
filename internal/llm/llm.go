// Package llm defines the provider-neutral contract mamabot uses to talk to a
// text-generation service, including declared tools and tool-call round trips.
package llm

import "context"

// Role identifies who produced a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Param describes one input of a Tool.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Tool is a capability the model may ask the caller to execute.
type Tool struct {
	Name        string
	Description string
	Params      []Param
}

// FunctionCall is a model request to run a Tool.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResult is the caller's answer to a FunctionCall.
type FunctionResult struct {
	ID       string
	Name     string
	Response map[string]any
}

// Message is one entry of the conversation sent to the model. A model message
// carries Text and/or Calls; a user message carries Text and/or Results.
type Message struct {
	Role    Role
	Text    string
	Calls   []FunctionCall
	Results []FunctionResult
}

// Request is a single generation request.
type Request struct {
	System      string
	Messages    []Message
	Tools       []Tool
	Temperature *float32 // nil uses the client default
}

// Response is the model output for one Request. When Calls is non-empty the
// caller is expected to run them and send the results back.
type Response struct {
	Text  string
	Calls []FunctionCall
}

// Client generates content from a Request.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Settings are the provider-independent knobs shared by all clients.
type Settings struct {
	APIKey            string
	BaseURL           string
	ModelName         string
	Temperature       float32
	MaxRetries        int
	RetryDelaySeconds int
}
