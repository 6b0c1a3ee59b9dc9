package state

// Outcome classifies what a command achieved.
type Outcome string

const (
	OutcomeProgress Outcome = "progress"
	OutcomeNoChange Outcome = "no-change"
	OutcomeFailure  Outcome = "failure"
)

// Marker is the single-character form used in prompts.
func (o Outcome) Marker() string {
	switch o {
	case OutcomeProgress:
		return "+"
	case OutcomeFailure:
		return "-"
	default:
		return "="
	}
}

// CommandOutcome is one entry of the rolling outcome window.
type CommandOutcome struct {
	Command string  `json:"command"`
	Result  Outcome `json:"result"`
	Turn    int     `json:"turn"`
}

// LeadType tags what kind of opportunity a lead is.
type LeadType string

const (
	LeadLocked    LeadType = "locked"
	LeadContainer LeadType = "container"
	LeadPuzzle    LeadType = "puzzle"
	LeadHazard    LeadType = "hazard"
	LeadNotable   LeadType = "notable"
)

// Lead is an unresolved opportunity noticed in a room. At most one lead exists per (Room, Type).
type Lead struct {
	Room        string   `json:"room"`
	Description string   `json:"description"`
	Type        LeadType `json:"type"`
}

// LoopPattern names the kind of repetition detected.
type LoopPattern string

const (
	LoopNone        LoopPattern = ""
	LoopRepeat      LoopPattern = "repeat"
	LoopAlternation LoopPattern = "alternation"
	LoopStuck       LoopPattern = "stuck"
)

// LoopStatus is the result of loop detection.
type LoopStatus struct {
	Looping    bool        `json:"looping"`
	Pattern    LoopPattern `json:"pattern,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	Commands   []string    `json:"commands,omitempty"` // commands implicated in the loop
}

// CandidateSource records which generation pass produced a candidate.
type CandidateSource string

const (
	SourceLead     CandidateSource = "lead"
	SourceObject   CandidateSource = "object"
	SourceExit     CandidateSource = "exit"
	SourceInfo     CandidateSource = "info"
	SourceFallback CandidateSource = "fallback"
)

// Candidate is a scored proposal for the next command.
type Candidate struct {
	Command string          `json:"command"`
	Score   int             `json:"score"`
	Reason  string          `json:"reason"`
	Source  CandidateSource `json:"source"`
}

// Validation is the policy verdict on a proposed command.
type Validation struct {
	Valid    bool   `json:"valid"`
	Adjusted string `json:"adjusted"`
	Reason   string `json:"reason,omitempty"`
}
