package bigtool

import (
	"context"
	"fmt"
	"time"
)

// Server names, matching spec §6.2.
const (
	ServerCommon = "COMMON"
	ServerAtlas  = "ATLAS"
)

// capabilityServer routes each capability to the server that hosts it,
// per spec §6.2: COMMON hosts internal operations, ATLAS hosts external
// integrations.
var capabilityServer = map[string]string{
	"validation":  ServerCommon,
	"persistence": ServerCommon,
	"parsing":     ServerCommon,
	"normalize":   ServerCommon,
	"matching":    ServerCommon,
	"checkpoint":  ServerCommon,
	"accounting":  ServerCommon,
	"audit":       ServerCommon,
	"db":          ServerCommon,
	"storage":     ServerCommon,

	"ocr":           ServerAtlas,
	"enrichment":    ServerAtlas,
	"erp_connector": ServerAtlas,
	"email":         ServerAtlas,
	"policy":        ServerAtlas,
}

// Result is what Execute returns to a stage executor: one of the three
// outcomes in spec §4.3.
type Result struct {
	Success bool                   `json:"success"`
	Server  string                 `json:"server,omitempty"`
	Tool    string                 `json:"tool,omitempty"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Mock    bool                   `json:"mock,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Ts      time.Time              `json:"ts"`
}

// Orchestrator is the Bigtool singleton: it resolves a capability to a
// concrete (tool, server) pair and issues the RPC, applying the mock
// fallback policy on transport failure.
type Orchestrator struct {
	picker       *Picker
	dynamic      *DynamicPicker           // optional, nil disables description-based selection
	servers      map[string]*ServerClient // "COMMON" / "ATLAS" -> client
	mockFallback bool
}

// NewOrchestrator creates an Orchestrator wired to the given capability
// servers. mockFallback enables synthesizing a canonical mock response
// when a server is unreachable (spec §4.3 outcome 3).
func NewOrchestrator(common, atlas *ServerClient, mockFallback bool) *Orchestrator {
	return &Orchestrator{
		picker: NewPicker(),
		servers: map[string]*ServerClient{
			ServerCommon: common,
			ServerAtlas:  atlas,
		},
		mockFallback: mockFallback,
	}
}

// Picker exposes the capability-based picker, e.g. for
// /workflow/stages-style introspection.
func (o *Orchestrator) Picker() *Picker {
	return o.picker
}

// SetDynamicPicker enables description-based tool selection for
// ExecuteDescribed. A nil dp (the default) disables it, and
// ExecuteDescribed falls back to the plain capability-based Execute.
func (o *Orchestrator) SetDynamicPicker(dp *DynamicPicker) {
	o.dynamic = dp
}

// ExecuteDescribed resolves capability to a tool via the description-based
// DynamicPicker when one is configured, describing the task in
// taskDescription for the LLM prompt; otherwise it behaves exactly like
// Execute.
func (o *Orchestrator) ExecuteDescribed(ctx context.Context, capability, taskDescription string, params map[string]interface{}) Result {
	if o.dynamic == nil {
		return o.Execute(ctx, capability, params)
	}

	server, ok := capabilityServer[capability]
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown capability: %s", capability), Ts: time.Now()}
	}
	client := o.servers[server]
	if client == nil {
		return Result{Success: false, Error: fmt.Sprintf("no client configured for server: %s", server), Ts: time.Now()}
	}

	sel := o.dynamic.Select(ctx, client, capability, taskDescription)
	if !sel.Success {
		return Result{Success: false, Error: fmt.Sprintf("description-based selection failed for capability %s: %s", capability, sel.Reason), Ts: time.Now()}
	}
	return o.call(ctx, server, sel.SelectedTool, params)
}

// Execute resolves capability to a tool via the capability-based pool
// (or, for capabilities with no pool, the capability name is itself the
// tool name), issues the RPC, and returns one of the three outcomes in
// spec §4.3.
func (o *Orchestrator) Execute(ctx context.Context, capability string, params map[string]interface{}) Result {
	server, ok := capabilityServer[capability]
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown capability: %s", capability), Ts: time.Now()}
	}

	toolName := capability
	if pool := o.picker.Pool(capability); len(pool) > 0 {
		sel := o.picker.Select(capability, nil)
		if !sel.Success {
			return Result{Success: false, Error: fmt.Sprintf("no available tool for capability: %s", capability), Ts: time.Now()}
		}
		toolName = sel.SelectedTool
	}

	return o.call(ctx, server, toolName, params)
}

// ExecuteTool issues the RPC for an already-resolved (server, tool) pair,
// skipping tool selection.
func (o *Orchestrator) ExecuteTool(ctx context.Context, server, toolName string, params map[string]interface{}) Result {
	return o.call(ctx, server, toolName, params)
}

func (o *Orchestrator) call(ctx context.Context, server, toolName string, params map[string]interface{}) Result {
	client, ok := o.servers[server]
	if !ok || client == nil {
		return Result{Success: false, Error: fmt.Sprintf("no client configured for server: %s", server), Ts: time.Now()}
	}

	resp, err := client.Call(ctx, toolName, params)
	if err == nil {
		return Result{Success: true, Server: server, Tool: toolName, Result: resp.Result, Ts: time.Now()}
	}

	if httpErr, ok := err.(*HTTPError); ok {
		return Result{Success: false, Server: server, Tool: toolName, Error: httpErr.Error(), Ts: time.Now()}
	}

	// Transport error.
	if o.mockFallback {
		return Result{
			Success: true,
			Server:  server,
			Tool:    toolName,
			Result:  mockResponse(toolName, params),
			Mock:    true,
			Ts:      time.Now(),
		}
	}
	return Result{Success: false, Server: server, Tool: toolName, Error: err.Error(), Ts: time.Now()}
}

// mockResponse synthesizes a canonical mock response for toolName when the
// real server is unreachable and mock fallback is enabled. The shape is
// deliberately generic — stages treat a mock result as "best effort" data
// and annotate their audit entry with the mock marker rather than relying
// on its contents being meaningful.
func mockResponse(toolName string, params map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"tool":       toolName,
		"mock":       true,
		"input_echo": params,
		"note":       "synthesized mock response: capability server unreachable",
	}
}
