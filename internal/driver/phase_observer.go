package driver

import "time"

// Stage is how far a unit has progressed.
type Stage uint8

const (
	StageQueued Stage = iota
	StageLoad
	StageLower
	StageEmit
	StageVerify
	StageWrite
	StageDone
	StageFailed
	StageCached
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageLoad:
		return "load"
	case StageLower:
		return "lower"
	case StageEmit:
		return "emit"
	case StageVerify:
		return "verify"
	case StageWrite:
		return "write"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	case StageCached:
		return "cached"
	}
	return "unknown"
}

// Terminal reports stages after which no more events arrive for the unit.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed || s == StageCached
}

// UnitEvent describes a unit entering a stage. Elapsed is set on terminal
// stages.
type UnitEvent struct {
	Path    string
	Stage   Stage
	Elapsed time.Duration
	Err     error
}

// UnitObserver receives events from every worker; it must be safe for
// concurrent use.
type UnitObserver func(UnitEvent)

func (o UnitObserver) emit(ev UnitEvent) {
	if o != nil {
		o(ev)
	}
}
