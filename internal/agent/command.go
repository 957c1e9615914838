// File: internal/agent/command.go
package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// CommandKind tags the parsed command variant.
type CommandKind string

const (
	KindClick     CommandKind = "click"
	KindType      CommandKind = "type"
	KindHover     CommandKind = "hover"
	KindPress     CommandKind = "press"
	KindScroll    CommandKind = "scroll"
	KindGoto      CommandKind = "goto"
	KindGoBack    CommandKind = "go_back"
	KindGoForward CommandKind = "go_forward"
	KindNewTab    CommandKind = "new_tab"
	KindTabFocus  CommandKind = "tab_focus"
	KindCloseTab  CommandKind = "close_tab"
	KindExtract   CommandKind = "extract"
	KindStop      CommandKind = "stop"
	// KindNoop covers empty commands and recognized keywords with malformed
	// arguments; the loop logs and continues.
	KindNoop CommandKind = "noop"
	// KindUnknown covers unrecognized keywords.
	KindUnknown CommandKind = "unknown"
)

// Command is a validated, tagged instruction parsed from model output. Model
// text is untrusted input: parsing is total and anything that fails the
// grammar degrades to Noop or Unknown, never an error.
type Command struct {
	Kind CommandKind
	Raw  string

	ID         int    // click, type, hover
	Text       string // type content, press combo, goto url, extract label, stop answer
	PressEnter bool   // type
	Direction  string // scroll
	TabIndex   int    // tab_focus
}

var (
	clickRe    = regexp.MustCompile(`^click\s+\[(\d+)\]`)
	typeRe     = regexp.MustCompile(`(?s)^type\s+\[(\d+)\]\s+\[(.+?)\]\s*(?:\[(\d)\])?`)
	hoverRe    = regexp.MustCompile(`^hover\s+\[(\d+)\]`)
	pressRe    = regexp.MustCompile(`^press\s+\[(.+)\]`)
	scrollRe   = regexp.MustCompile(`^scroll\s+\[(down|up)\]`)
	gotoRe     = regexp.MustCompile(`^goto\s+\[(.+)\]`)
	tabFocusRe = regexp.MustCompile(`^tab_focus\s+\[(\d+)\]`)
	extractRe  = regexp.MustCompile(`^extract\s+\[(.+)\]`)
	stopRe     = regexp.MustCompile(`(?s)^stop\s*\[(.+)\]`)
)

// ParseCommand turns raw command text into a Command. It never fails.
func ParseCommand(raw string) Command {
	raw = strings.TrimSpace(raw)
	cmd := Command{Kind: KindNoop, Raw: raw}
	if raw == "" {
		return cmd
	}

	switch {
	case strings.HasPrefix(raw, "stop"):
		cmd.Kind = KindStop
		if m := stopRe.FindStringSubmatch(raw); m != nil {
			cmd.Text = strings.TrimSpace(m[1])
		}

	case strings.HasPrefix(raw, "click"):
		if m := clickRe.FindStringSubmatch(raw); m != nil {
			cmd.Kind = KindClick
			cmd.ID, _ = strconv.Atoi(m[1])
		}

	case strings.HasPrefix(raw, "type"):
		if m := typeRe.FindStringSubmatch(raw); m != nil {
			cmd.Kind = KindType
			cmd.ID, _ = strconv.Atoi(m[1])
			cmd.Text = m[2]
			// Enter is pressed after typing unless the trailing flag is 0.
			cmd.PressEnter = m[3] != "0"
		}

	case strings.HasPrefix(raw, "hover"):
		if m := hoverRe.FindStringSubmatch(raw); m != nil {
			cmd.Kind = KindHover
			cmd.ID, _ = strconv.Atoi(m[1])
		}

	case strings.HasPrefix(raw, "press"):
		if m := pressRe.FindStringSubmatch(raw); m != nil {
			cmd.Kind = KindPress
			cmd.Text = strings.TrimSpace(m[1])
		}

	case strings.HasPrefix(raw, "scroll"):
		cmd.Kind = KindScroll
		cmd.Direction = "down"
		if m := scrollRe.FindStringSubmatch(raw); m != nil {
			cmd.Direction = m[1]
		}

	case strings.HasPrefix(raw, "goto"):
		if m := gotoRe.FindStringSubmatch(raw); m != nil {
			cmd.Kind = KindGoto
			cmd.Text = strings.TrimSpace(m[1])
		}

	case strings.HasPrefix(raw, "go_back"):
		cmd.Kind = KindGoBack

	case strings.HasPrefix(raw, "go_forward"):
		cmd.Kind = KindGoForward

	case strings.HasPrefix(raw, "new_tab"):
		cmd.Kind = KindNewTab

	case strings.HasPrefix(raw, "tab_focus"):
		if m := tabFocusRe.FindStringSubmatch(raw); m != nil {
			cmd.Kind = KindTabFocus
			cmd.TabIndex, _ = strconv.Atoi(m[1])
		}

	case strings.HasPrefix(raw, "close_tab"):
		cmd.Kind = KindCloseTab

	default:
		cmd.Kind = KindUnknown
	}

	return cmd
}
