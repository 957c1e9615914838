// File: internal/agent/stall.go
package agent

import "fmt"

const stallHintTemplate = "\nWARNING: The action '%s' has been issued %d times in a row without progress. Try a DIFFERENT element ID or approach. Look carefully at the accessibility tree for the correct interactive element (textbox, button, link), not StaticText or InlineTextBox.\n"

// StallDetector tracks consecutive identical commands. Once the hint
// threshold is reached it feeds a warning back into the objective, and at
// the abort threshold the command is skipped outright instead of executed.
type StallDetector struct {
	hintAfter  int
	abortAfter int

	lastCommand string
	repeats     int
}

func NewStallDetector(hintAfter, abortAfter int) *StallDetector {
	if hintAfter <= 0 {
		hintAfter = 3
	}
	if abortAfter <= hintAfter {
		abortAfter = hintAfter * 2
	}
	return &StallDetector{hintAfter: hintAfter, abortAfter: abortAfter}
}

// Hint returns a warning to append to the objective, or the empty string
// when the loop is not stalled. It reflects state as of the previous turn,
// so call it before Record.
func (d *StallDetector) Hint() string {
	if d.repeats >= d.hintAfter && d.lastCommand != "" {
		return fmt.Sprintf(stallHintTemplate, d.lastCommand, d.repeats)
	}
	return ""
}

// Record notes the command chosen this turn and reports whether it should be
// skipped. A skip resets the detector so the next turn starts clean.
func (d *StallDetector) Record(command string) (repeats int, abort bool) {
	if command == d.lastCommand && command != "" {
		d.repeats++
	} else {
		d.lastCommand = command
		d.repeats = 1
	}
	if d.repeats >= d.abortAfter {
		repeats = d.repeats
		d.lastCommand = ""
		d.repeats = 0
		return repeats, true
	}
	return d.repeats, false
}
