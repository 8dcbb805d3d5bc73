package bigtool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/invoiceflow/workflow-engine/graph/model"
)

// descriptorCacheTTL bounds how long a server's discovered tool roster is
// reused before Discover is called again.
const descriptorCacheTTL = 5 * time.Minute

// DynamicPicker implements description-based tool selection: it fetches
// each server's tool roster and asks an LLM to choose a tool name given a
// task description, falling back to the capability-based Picker when the
// LLM names a tool outside the discovered set.
type DynamicPicker struct {
	llm      model.ChatModel
	fallback *Picker

	mu    sync.RWMutex
	cache map[string]cachedRoster // server name -> roster
}

type cachedRoster struct {
	tools     []ToolDescriptor
	fetchedAt time.Time
}

// NewDynamicPicker creates a DynamicPicker backed by llm for selection and
// fallback for when the LLM's choice can't be honored.
func NewDynamicPicker(llm model.ChatModel, fallback *Picker) *DynamicPicker {
	return &DynamicPicker{
		llm:      llm,
		fallback: fallback,
		cache:    make(map[string]cachedRoster),
	}
}

// Select asks the LLM to pick a tool for capability/taskDescription from
// the descriptors discovered on client, refreshing the cache if stale.
// If the LLM's answer doesn't name a discovered tool, Select falls back to
// the capability-based Picker and reports that in Selection.Reason.
func (dp *DynamicPicker) Select(ctx context.Context, client *ServerClient, capability, taskDescription string) Selection {
	tools, err := dp.roster(ctx, client)
	if err != nil || len(tools) == 0 {
		return dp.fallbackSelect(capability, fmt.Sprintf("discovery_failed: %v", err))
	}

	chosen, err := dp.ask(ctx, capability, taskDescription, tools)
	if err != nil {
		return dp.fallbackSelect(capability, fmt.Sprintf("llm_error: %v", err))
	}

	for _, t := range tools {
		if t.Name == chosen {
			names := make([]string, len(tools))
			for i, td := range tools {
				names[i] = td.Name
			}
			return Selection{
				Capability:   capability,
				SelectedTool: chosen,
				Pool:         names,
				Available:    names,
				Reason:       "llm_selected_from_descriptions",
				Success:      true,
			}
		}
	}

	return dp.fallbackSelect(capability, fmt.Sprintf("llm_chose_unknown_tool:%s", chosen))
}

func (dp *DynamicPicker) fallbackSelect(capability, reason string) Selection {
	sel := dp.fallback.Select(capability, nil)
	sel.Reason = reason + "->" + sel.Reason
	return sel
}

func (dp *DynamicPicker) roster(ctx context.Context, client *ServerClient) ([]ToolDescriptor, error) {
	dp.mu.RLock()
	entry, ok := dp.cache[client.Name]
	dp.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < descriptorCacheTTL {
		return entry.tools, nil
	}

	resp, err := client.Discover(ctx)
	if err != nil {
		return nil, err
	}

	dp.mu.Lock()
	dp.cache[client.Name] = cachedRoster{tools: resp.Tools, fetchedAt: time.Now()}
	dp.mu.Unlock()
	return resp.Tools, nil
}

func (dp *DynamicPicker) ask(ctx context.Context, capability, taskDescription string, tools []ToolDescriptor) (string, error) {
	var b strings.Builder
	b.WriteString("Available tools for capability \"" + capability + "\":\n")
	for _, t := range tools {
		b.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}
	b.WriteString("\nTask: " + taskDescription)
	b.WriteString("\nReply with only the name of the single best tool, nothing else.")

	messages := []model.Message{
		{Role: model.RoleSystem, Content: "You select the best tool for a task from a fixed list. Reply with only the tool name."},
		{Role: model.RoleUser, Content: b.String()},
	}

	out, err := dp.llm.Chat(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}
