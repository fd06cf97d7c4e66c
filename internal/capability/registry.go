package capability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byoung/ai-me/internal/logging"
)

// Registry connects and tears down batches of capability providers.
type Registry struct {
	// build constructs a Capability from a launch spec. Defaults to
	// NewStdio; tests inject in-process fakes.
	build func(LaunchSpec) Capability
}

// NewRegistry constructs a Registry backed by stdio MCP capabilities.
func NewRegistry() *Registry {
	return &Registry{build: func(spec LaunchSpec) Capability { return NewStdio(spec) }}
}

// ConnectAll attempts to connect every spec independently and returns the
// successfully connected subset in the original order. A failed provider is
// logged with its error type and message and skipped — a single failure
// never aborts the batch. Failed providers are not retried.
func (r *Registry) ConnectAll(ctx context.Context, specs []LaunchSpec) []Capability {
	log := logging.FromContext(ctx)

	connected := make([]Capability, 0, len(specs))
	for _, spec := range specs {
		c := r.build(spec)
		if err := c.Connect(ctx); err != nil {
			log.Error("capability: connect failed, excluding provider",
				slog.String("id", spec.ID),
				slog.String("error_type", fmt.Sprintf("%T", err)),
				slog.String("error", err.Error()))
			continue
		}
		log.Info("capability: connected",
			slog.String("id", spec.ID),
			slog.String("category", string(spec.Category)))
		connected = append(connected, c)
	}
	return connected
}

// CloseAll tears down every capability. Teardown is best-effort: failures
// are logged at debug level and swallowed so cleanup never blocks session
// termination.
func CloseAll(ctx context.Context, caps []Capability) {
	log := logging.FromContext(ctx)
	for _, c := range caps {
		if err := c.Close(); err != nil {
			log.Debug("capability: teardown error ignored",
				slog.String("id", c.ID()),
				slog.Any("error", err))
		}
	}
}

// ByCategory groups connected capabilities by their category.
func ByCategory(caps []Capability) map[Category][]Capability {
	out := make(map[Category][]Capability)
	for _, c := range caps {
		out[c.Category()] = append(out[c.Category()], c)
	}
	return out
}
