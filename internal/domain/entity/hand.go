package entity

// Platform selects the prompt variant matching a broadcast's UI layout.
type Platform string

const (
	PlatformEPT    Platform = "ept"
	PlatformTriton Platform = "triton"
	PlatformWSOP   Platform = "wsop"
)

// Valid reports whether the platform is one the analyzer has a prompt for.
func (p Platform) Valid() bool {
	switch p {
	case PlatformEPT, PlatformTriton, PlatformWSOP:
		return true
	}
	return false
}

// Board holds the community cards as reported by the vision model.
type Board struct {
	Flop  []string `json:"flop"`
	Turn  string   `json:"turn,omitempty"`
	River string   `json:"river,omitempty"`
}

// HandPlayer is one seat's view of a hand.
type HandPlayer struct {
	Name      string   `json:"name"`
	Seat      int      `json:"seat,omitempty"`
	Position  string   `json:"position,omitempty"`
	StackSize float64  `json:"stackSize,omitempty"`
	HoleCards []string `json:"holeCards,omitempty"`
}

// HandAction is a single betting action.
type HandAction struct {
	Player string  `json:"player"`
	Street string  `json:"street"`
	Action string  `json:"action"`
	Amount float64 `json:"amount,omitempty"`
}

// HandWinner records who took the pot and with what.
type HandWinner struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount,omitempty"`
	Hand   string  `json:"hand,omitempty"`
}

// Hand is one structured poker hand extracted from a video segment.
// Append-only: never mutated after the analyzer produces it, except for the
// job-wide renumbering and absolute-timestamp fixup the orchestrator applies
// before aggregation.
type Hand struct {
	HandNumber int          `json:"handNumber"`
	Stakes     string       `json:"stakes,omitempty"`
	Pot        float64      `json:"pot,omitempty"`
	Board      Board        `json:"board"`
	Players    []HandPlayer `json:"players"`
	Actions    []HandAction `json:"actions,omitempty"`
	Winners    []HandWinner `json:"winners,omitempty"`

	// Clip-relative timecodes as the model reported them ("MM:SS"), and the
	// absolute offsets within the source video derived from the segment start.
	TimestampStart string  `json:"timestampStart,omitempty"`
	TimestampEnd   string  `json:"timestampEnd,omitempty"`
	AbsoluteStart  float64 `json:"absoluteStart,omitempty"`
	AbsoluteEnd    float64 `json:"absoluteEnd,omitempty"`
}

// SegmentResultStatus distinguishes "ran and found nothing" from "could not run".
type SegmentResultStatus string

const (
	SegmentCompleted SegmentResultStatus = "completed"
	SegmentFailed    SegmentResultStatus = "failed"
)

// SegmentResult is the per-segment outcome recorded in the aggregate output.
type SegmentResult struct {
	SegmentID  int                 `json:"segmentId"`
	Status     SegmentResultStatus `json:"status"`
	HandsFound int                 `json:"handsFound"`
	Start      float64             `json:"start"`
	End        float64             `json:"end"`
	Error      string              `json:"error,omitempty"`
}

// AnalysisOutput is the final aggregate attached to a job on SUCCESS.
type AnalysisOutput struct {
	Hands          []Hand          `json:"hands"`
	SegmentResults []SegmentResult `json:"segmentResults"`
}
