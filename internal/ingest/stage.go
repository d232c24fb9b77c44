package ingest

import "fmt"

// Stage is a step of a single venue's ingest.
type Stage int

const (
	StagePending Stage = iota
	StageFetching
	StageParsing
	StageNormalizing
	StageReconciling
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageFetching:
		return "fetching"
	case StageParsing:
		return "parsing"
	case StageNormalizing:
		return "normalizing"
	case StageReconciling:
		return "reconciling"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

func isAllowedTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	return to == from+1
}

// progress tracks the stage of one venue. It is owned by a single worker.
type progress struct {
	stage Stage
	// failedIn is the stage that was active when the venue failed.
	failedIn Stage
}

func (p *progress) advance(to Stage) error {
	if !isAllowedTransition(p.stage, to) {
		return fmt.Errorf("invalid stage transition %s -> %s", p.stage, to)
	}
	if to == StageFailed {
		p.failedIn = p.stage
	}
	p.stage = to
	return nil
}

func (p *progress) fail() {
	if p.stage.Terminal() {
		return
	}
	p.failedIn = p.stage
	p.stage = StageFailed
}

// reported is the stage a RunResult carries: where it failed, or done.
func (p *progress) reported() Stage {
	if p.stage == StageFailed {
		return p.failedIn
	}
	return p.stage
}
