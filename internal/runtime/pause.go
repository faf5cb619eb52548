package runtime

import "strings"

// Reason is one tag contributing to a stopped event's composite reason
// string. The valid combinations observed on the wire are {pause, step,
// breakpoint, choice, end, start, start and choice, start and
// breakpoint, step and breakpoint, choice and breakpoint, end and
// breakpoint} — at most two tags, and the only pairs are the ones
// listed.
type Reason string

const (
	ReasonPause      Reason = "pause"
	ReasonStep       Reason = "step"
	ReasonBreakpoint Reason = "breakpoint"
	ReasonChoice     Reason = "choice"
	ReasonEnd        Reason = "end"
	ReasonStart      Reason = "start"
)

// PauseInformation aggregates the reasons and breakpoint messages a
// single checkpoint produced. Callers Add reasons in the priority order
// the engine discovers them so Reason renders the tags in the order the
// wire examples use.
type PauseInformation struct {
	reasons  []Reason
	messages []string
}

// NewPauseInformation returns an empty aggregator.
func NewPauseInformation() *PauseInformation {
	return &PauseInformation{}
}

// Add appends r if not already present.
func (p *PauseInformation) Add(r Reason) {
	if p.Has(r) {
		return
	}
	p.reasons = append(p.reasons, r)
}

// AddMessage appends a non-empty breakpoint activation message.
func (p *PauseInformation) AddMessage(m string) {
	if m != "" {
		p.messages = append(p.messages, m)
	}
}

// Has reports whether r was already added.
func (p *PauseInformation) Has(r Reason) bool {
	for _, existing := range p.reasons {
		if existing == r {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no reason was ever added.
func (p *PauseInformation) IsEmpty() bool { return len(p.reasons) == 0 }

// Reason renders the accumulated tags as "r1 and r2 and …".
func (p *PauseInformation) Reason() string {
	strs := make([]string, len(p.reasons))
	for i, r := range p.reasons {
		strs[i] = string(r)
	}
	return strings.Join(strs, " and ")
}

// highPriorityLines holds the one-line description prepended for each
// of the "high-priority" reasons (pause, step, choice, end);
// breakpoint and start never contribute a line of their own here —
// breakpoint supplies its message via AddMessage, start is silent
// (the stopped reason string already says "start").
var highPriorityLines = map[Reason]string{
	ReasonPause:  "Execution paused by request.",
	ReasonStep:   "Selected step completed.",
	ReasonChoice: "Multiple steps are available.",
	ReasonEnd:    "Execution reached the end of the program.",
}

// Description joins one line per high-priority reason with the
// aggregated breakpoint messages.
func (p *PauseInformation) Description() string {
	var lines []string
	for _, r := range p.reasons {
		if line, ok := highPriorityLines[r]; ok {
			lines = append(lines, line)
		}
	}
	lines = append(lines, p.messages...)
	return strings.Join(lines, "\n")
}
