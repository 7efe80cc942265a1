package campaign

import "fmt"

// Stage is one step of the fixed campaign pipeline. Stages are strictly
// linear; StageDone is terminal.
type Stage string

const (
	StageIntake     Stage = "intake"
	StageResearch   Stage = "research"
	StageStrategy   Stage = "strategy"
	StageCreative   Stage = "creative"
	StageActivation Stage = "activation"
	StagePackaging  Stage = "packaging"
	StageDone       Stage = "done"
)

// StageOrder is the pipeline sequence, including the terminal marker.
var StageOrder = []Stage{
	StageIntake,
	StageResearch,
	StageStrategy,
	StageCreative,
	StageActivation,
	StagePackaging,
	StageDone,
}

// Prerequisites maps each stage to the stages whose approved artifacts its
// executor consumes. A skipped prerequisite is delivered as an explicit
// absent input, never omitted silently.
var Prerequisites = map[Stage][]Stage{
	StageIntake:     {},
	StageResearch:   {StageIntake},
	StageStrategy:   {StageResearch},
	StageCreative:   {StageStrategy},
	StageActivation: {StageStrategy, StageCreative},
	StagePackaging:  {StageIntake, StageResearch, StageStrategy, StageCreative, StageActivation},
}

func ParseStage(s string) (Stage, error) {
	for _, st := range StageOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage: %q", s)
}

// Index returns the stage's position in pipeline order, or -1.
func (s Stage) Index() int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage after s in pipeline order. The stage after the last
// working stage is StageDone; Next of StageDone is StageDone.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i >= len(StageOrder)-1 {
		return StageDone
	}
	return StageOrder[i+1]
}

func (s Stage) Terminal() bool { return s == StageDone }

func (s Stage) Valid() bool { return s.Index() >= 0 }
