package sim

import "github.com/signalsfoundry/virtualtime-simulator/trace"

// The report renderers and code generators live outside the kernel and
// are specified here by interface only.

// StatsRenderer formats a results snapshot, e.g. as HTML.
type StatsRenderer interface {
	RenderStats(stats *Stats) (string, error)
}

// TraceRenderer formats a trace stream, e.g. as a Mermaid sequence
// diagram.
type TraceRenderer interface {
	RenderTrace(events []trace.Event) (string, error)
}

// ActorMeta is the metadata a skeleton generator consumes.
type ActorMeta struct {
	Name    string
	Targets []string
	Pattern string
}

// SkeletonGenerator emits actor skeletons for other runtimes from actor
// metadata. Keys of the returned map are file names.
type SkeletonGenerator interface {
	Generate(meta []ActorMeta) (map[string]string, error)
}
