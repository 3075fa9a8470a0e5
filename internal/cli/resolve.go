package cli

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jsvx/crosscheck/internal/container"
	"github.com/jsvx/crosscheck/internal/harness"
	"github.com/jsvx/crosscheck/internal/protocol"
)

// runnerOptions configures how named implementations become sessions.
type runnerOptions struct {
	Direct  bool
	Network bool
	Timeout time.Duration
}

// resolveSpec turns one implementation name into a launch specification.
// Bare image names are resolved against the configured repository; direct
// mode splits the name into a command line.
func resolveSpec(repo, name string, opts runnerOptions) container.LaunchSpec {
	if opts.Direct {
		return container.LaunchSpec{
			ID:      name,
			Argv:    strings.Fields(name),
			Kind:    container.KindDirect,
			Network: opts.Network,
		}
	}
	image := name
	if !strings.Contains(name, "/") {
		image = repo + "/" + name
	}
	return container.LaunchSpec{
		ID:      image,
		Image:   image,
		Kind:    container.KindImage,
		Network: opts.Network,
	}
}

// startRunners spawns the execution unit for every named implementation and
// wraps each in an unstarted protocol session. Launch failures drop the
// implementation with a diagnostic; they never abort the run.
func startRunners(ctx context.Context, globals *Globals, names []string, opts runnerOptions) []harness.Runner {
	manager := container.NewManager(globals.Config.Runtime, globals.Logger)
	var runners []harness.Runner
	for _, name := range names {
		spec := resolveSpec(globals.Config.ImageRepository, name, opts)
		proc, err := manager.Spawn(ctx, spec)
		if err != nil {
			globals.Logger.Warn("implementation could not be launched; dropped",
				zap.String("implementation", spec.ID), zap.Error(err))
			continue
		}
		runners = append(runners, protocol.NewSession(spec.ID, proc, protocol.Options{
			Timeout: opts.Timeout,
			Logger:  globals.Logger,
		}))
	}
	return runners
}
