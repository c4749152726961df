package driver

// BuildStatus is where one input of BuildAll stands.
type BuildStatus uint8

const (
	BuildQueued BuildStatus = iota
	BuildWorking
	BuildDone
	BuildCached
	BuildFailed
)

func (s BuildStatus) String() string {
	switch s {
	case BuildQueued:
		return "queued"
	case BuildWorking:
		return "working"
	case BuildDone:
		return "done"
	case BuildCached:
		return "cached"
	case BuildFailed:
		return "failed"
	}
	return "unknown"
}

// Finished reports whether no further events follow for the input.
func (s BuildStatus) Finished() bool {
	return s >= BuildDone
}

// BuildEvent reports progress for one input. Phase is set while the input
// is BuildWorking: "load" first, then the Compile phases.
type BuildEvent struct {
	Path   string
	Phase  string
	Status BuildStatus
}

// ProgressSink receives events from every BuildAll worker; implementations
// must be safe for concurrent use.
type ProgressSink interface {
	OnBuildEvent(BuildEvent)
}

// ChannelSink forwards events to Ch. Sends block when Ch is full.
type ChannelSink struct {
	Ch chan<- BuildEvent
}

func (s ChannelSink) OnBuildEvent(ev BuildEvent) {
	if s.Ch != nil {
		s.Ch <- ev
	}
}

func emit(sink ProgressSink, path, phase string, status BuildStatus) {
	if sink != nil {
		sink.OnBuildEvent(BuildEvent{Path: path, Phase: phase, Status: status})
	}
}
