package interp

// OutputKind tags an Output message (spec.md §4.9, §6: "Tagged:
// Print{string}, PlotCreate{title, x_label, y_label},
// PlotDiscreteSeries{(x,y)*}").
type OutputKind int

const (
	Print OutputKind = iota
	PlotCreate
	PlotDiscreteSeries
)

// Output is one heap-allocated message handed from the interpreter to
// the host through the SPSC queue. Only the fields matching Kind are
// meaningful.
type Output struct {
	Kind OutputKind

	Text string // Print

	Title, XLabel, YLabel string // PlotCreate

	X, Y []float64 // PlotDiscreteSeries
}

// Status is the interpreter's bitmask run state (spec.md §4.9). The
// values deliberately overlap so a single integer comparison answers
// several questions at once, exactly as the original exploits: status
// <= Continue means "keep looping", status < Return means "still
// executing this frame's statements, trim the block's locals normally".
type Status int

const (
	StatusNormal       Status = 0
	StatusContinue     Status = 1
	StatusBreak        Status = 3
	StatusReturn       Status = 7
	StatusRuntimeError Status = 15
	StatusFinished     Status = 1<<31 - 1
)

// Instruction is the host-settable directive an interpreter running on
// its own goroutine polls at every statement boundary.
type Instruction int

const (
	InstructionRun Instruction = iota
	InstructionPause
	InstructionStop
)
