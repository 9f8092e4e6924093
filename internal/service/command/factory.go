package command

import (
	"github.com/sandevgo/tuskmem/internal/core"
)

func NewCommands(
	cfg core.ProviderConfig,
	userID string,
	memories MemoryBackend,
	scheduler core.Scheduler,
	tools ToolLister,
) []core.Command {
	return []core.Command{
		NewModelCommand(cfg),
		NewMemoriesCommand(memories, userID),
		NewForgetCommand(memories, userID),
		NewCancelCommand(scheduler),
		NewToolsCommand(tools),
	}
}
