package resolver

import (
	"context"

	"github.com/matzehuels/cfboot/pkg/framework"
	"github.com/matzehuels/cfboot/pkg/observability"
)

// StopModule stops m. A module that is still starting or stopping is given
// the stop timeout to settle; after that it is stopped regardless.
func (r *Resolver) StopModule(ctx context.Context, m *framework.Module) error {
	if m.IsSystem() {
		return nil
	}
	forced := false
	deadline := r.clock.Now().Add(r.stopTimeout)
	for r.fw.State(m).Transient() {
		if !r.clock.Now().Before(deadline) {
			forced = true
			r.logger.Warn("module did not settle, forcing stop", "module", m.Key(), "state", r.fw.State(m), "timeout", r.stopTimeout)
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(stopPollInterval):
		}
	}

	err := r.fw.Stop(ctx, m)
	observability.Resolver().OnStop(ctx, m.Name, m.Version.String(), forced)
	return err
}
