package llm

import (
	"context"

	"github.com/xichengpro/SourceMind/types"
)

// ChatModel is the task-facing chat interface: a provider already bound
// to a model and generation parameters.
type ChatModel interface {
	// Complete sends the messages and returns the assistant text.
	Complete(ctx context.Context, messages []types.Message) (string, error)
	// Stream sends the messages and returns a channel of incremental chunks.
	Stream(ctx context.Context, messages []types.Message) (<-chan StreamChunk, error)
}

// ModelSource resolves a ChatModel for a task category.
type ModelSource interface {
	ChatModel(category types.TaskCategory) (ChatModel, error)
}
