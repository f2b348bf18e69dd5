// Package tools exposes memory management as LLM tools, so a host's model
// can remember, list and forget facts on the user's behalf.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
)

// Tool names.
const (
	ToolRemember     = "remember"
	ToolListMemories = "list_memories"
	ToolForgetMemory = "forget_memory"
)

// Definition describes one tool to a model.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"input_schema"`
}

// MemoryToolDefinitions returns the definitions for the memory tools.
func MemoryToolDefinitions() []Definition {
	categories := []string{
		string(memory.CategoryPreference),
		string(memory.CategoryFact),
		string(memory.CategoryInstruction),
		string(memory.CategoryContext),
	}
	return []Definition{
		{
			Name: ToolRemember,
			Description: "Save a fact or preference the user explicitly asked you to remember. " +
				"Saving an existing key overwrites its value.",
			InputSchema: withReason(map[string]Schema{
				"key":      StringProperty("Short name of the fact, e.g. 'favorite lunch'"),
				"value":    StringProperty("The value to remember, e.g. 'ramen'"),
				"category": StringEnumProperty("Optional: kind of memory (default: fact)", categories...),
			}, true, "key", "value"),
		},
		{
			Name:        ToolListMemories,
			Description: "List everything the user has asked you to remember, most recent first.",
			InputSchema: withReason(map[string]Schema{}, false),
		},
		{
			Name:        ToolForgetMemory,
			Description: "Forget a saved memory. Pass the id from list_memories, or the key.",
			InputSchema: withReason(map[string]Schema{
				"id":  StringProperty("Memory id"),
				"key": StringProperty("Memory key, used when no id is given"),
			}, true),
		},
	}
}

// MemoryService is the memory surface the tools drive.
// Implementations: engine.Engine.
type MemoryService interface {
	StoreMemory(ctx context.Context, ownerID, key, value string, category memory.Category) (*memory.Memory, error)
	GetMemories(ctx context.Context, ownerID string) ([]memory.Memory, error)
	DeleteMemory(ctx context.Context, ownerID, id string) error
}

// Result is what a tool call returns to the model.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MemoryToolset executes memory tool calls for one service.
type MemoryToolset struct {
	service MemoryService
}

// NewMemoryToolset creates a MemoryToolset.
func NewMemoryToolset(service MemoryService) *MemoryToolset {
	return &MemoryToolset{service: service}
}

type rememberInput struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

type forgetInput struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type memoryView struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

func view(m memory.Memory) memoryView {
	return memoryView{ID: m.ID, Key: m.Key, Value: m.Value, Category: string(m.Category)}
}

// Execute runs tool name with input on behalf of ownerID.
//
// Problems the model can fix (bad input, unknown key) come back as a failed
// Result with a nil error. Storage failures and unknown tools are returned
// as errors.
func (t *MemoryToolset) Execute(ctx context.Context, ownerID, name string, input json.RawMessage) (*Result, error) {
	switch name {
	case ToolRemember:
		var in rememberInput
		if err := decode(input, &in); err != nil {
			return failed(err), nil
		}
		mem, err := t.service.StoreMemory(ctx, ownerID, in.Key, in.Value, memory.Category(in.Category))
		if err != nil {
			return toolError(err)
		}
		return &Result{Success: true, Data: view(*mem)}, nil

	case ToolListMemories:
		mems, err := t.service.GetMemories(ctx, ownerID)
		if err != nil {
			return toolError(err)
		}
		views := make([]memoryView, len(mems))
		for i, m := range mems {
			views[i] = view(m)
		}
		return &Result{Success: true, Data: views}, nil

	case ToolForgetMemory:
		var in forgetInput
		if err := decode(input, &in); err != nil {
			return failed(err), nil
		}
		id, err := t.resolve(ctx, ownerID, in)
		if err != nil {
			return toolError(err)
		}
		if id == "" {
			return failed(fmt.Errorf("no memory with key %q", in.Key)), nil
		}
		if err := t.service.DeleteMemory(ctx, ownerID, id); err != nil {
			return toolError(err)
		}
		return &Result{Success: true, Data: map[string]string{"id": id}}, nil
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

// resolve returns the id to delete, looking keys up case-insensitively.
func (t *MemoryToolset) resolve(ctx context.Context, ownerID string, in forgetInput) (string, error) {
	if in.ID != "" {
		return in.ID, nil
	}
	if strings.TrimSpace(in.Key) == "" {
		return "", core.InvalidInput("forget memory", "id or key is required")
	}
	mems, err := t.service.GetMemories(ctx, ownerID)
	if err != nil {
		return "", err
	}
	for _, m := range mems {
		if strings.EqualFold(m.Key, strings.TrimSpace(in.Key)) {
			return m.ID, nil
		}
	}
	return "", nil
}

func decode(input json.RawMessage, v any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func failed(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

// toolError turns validation errors into a failed Result and passes every
// other error through.
func toolError(err error) (*Result, error) {
	if errors.Is(err, core.ErrInvalidInput) {
		return failed(err), nil
	}
	return nil, err
}
