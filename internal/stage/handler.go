package stage

import (
	"context"

	"reelsmith/internal/project"
)

// Handler describes the contract the pipeline orchestrator needs from each stage.
// Prepare validates inputs and mutates the item before work begins; Execute
// performs the stage and writes outputs onto the item. The orchestrator owns
// persistence of the mutated item.
type Handler interface {
	Prepare(context.Context, *project.Item) error
	Execute(context.Context, *project.Item) error
	HealthCheck(context.Context) Health
}
