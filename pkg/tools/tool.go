package tools

import "context"

// Tool is the interface for all tools exposed to the model.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool's argument object.
	Parameters() any
	// Run executes the tool. The returned string is fed back to the model
	// verbatim, including descriptive failure text; an error return aborts
	// the turn instead.
	Run(ctx context.Context, args map[string]any) (string, error)
}
