package model

type stepType string

const (
	RootStepType     = "root"
	NormalStepType   = "step"
	SplitterStepType = "splitter"
	SinkStepType     = "sink"
	MergeStepType    = "merger"
)

// StepInfo describes a step independently of its element type.
// Pipeline options only ever see StepInfo, never the typed step.
type StepInfo struct {
	Type       stepType
	Name       string
	Concurrent int
	BufferSize int
}

var (
	StartStep = &Step[any]{Details: &StepInfo{Name: "start"}}
	EndStep   = &Step[any]{Details: &StepInfo{Name: "end"}}
)

// Step is a typed pipeline step. Output carries the elements produced by
// the step to its children.
type Step[O any] struct {
	Output   chan O
	KeepOpen bool
	Details  *StepInfo
}
