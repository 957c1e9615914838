// File: internal/agent/prompt.go
package agent

import "fmt"

// SystemPrompt frames every model call. The final action must arrive in a
// fenced code block so ExtractCommand can find it.
const SystemPrompt = `You are an autonomous web browsing agent. You operate a real browser to accomplish an objective.

Each turn you receive:
- Objective: the task to accomplish.
- Observation: the accessibility tree of the current page. Interactive elements carry numeric IDs in square brackets.
- HISTORY_ACTION: the actions you have already issued, oldest first.
- HISTORY_info: your own notes from previous turns, oldest first.

First reason inside <think></think> tags. If you learned something worth remembering for later turns, record it inside <conclusion></conclusion> tags within your reasoning. Then output exactly one action inside a fenced code block.

Available actions:

` + "```" + `click [id]` + "```" + `
Click the element with the given numeric ID.

` + "```" + `type [id] [content] [press_enter_after]` + "```" + `
Click the element, clear it, and type the content. The trailing flag is optional; 1 (the default) presses Enter afterwards, 0 does not.

` + "```" + `hover [id]` + "```" + `
Move the mouse over the element.

` + "```" + `press [key_comb]` + "```" + `
Send a key or key combination, e.g. press [Enter] or press [Ctrl+a].

` + "```" + `scroll [down]` + "```" + ` or ` + "```" + `scroll [up]` + "```" + `
Scroll the page.

` + "```" + `goto [url]` + "```" + `
Navigate to the URL.

` + "```" + `go_back` + "```" + ` and ` + "```" + `go_forward` + "```" + `
Move through the tab history.

` + "```" + `new_tab` + "```" + `, ` + "```" + `tab_focus [index]` + "```" + `, ` + "```" + `close_tab` + "```" + `
Open a new tab, switch to the tab at the zero-based index, or close the current tab.

` + "```" + `extract [label]` + "```" + `
Capture the tabular data on the current page under the given label.

` + "```" + `stop [answer]` + "```" + `
Finish the task and report the answer. Use stop [N/A] if the task is impossible.

Rules:
1. Issue exactly one action per turn, in a fenced code block, as the last thing in your response.
2. Only reference element IDs that appear in the current Observation. IDs change between turns.
3. Interact with textboxes, buttons, links and similar controls. StaticText and InlineTextBox entries are not interactive.
4. If an action did not change the page, do not repeat it. Pick a different element or a different approach.
5. Use type with press_enter_after=1 to submit search forms in one step.
6. Prefer extract when the page shows tabular data relevant to the objective.
7. Record intermediate findings in <conclusion> tags so they survive into later turns.
8. Navigate directly with goto when you know the target URL.
9. When the objective is satisfied, issue stop with the answer.`

const userPromptTemplate = "Objective: %s\nObservation: %s\nHISTORY_ACTION: %s\nHISTORY_info: %s\n"

const (
	// promptOverhead pads the fixed cost estimate for template scaffolding.
	promptOverhead = 500
	// minBudget is the floor for usable prompt space even when the
	// objective is enormous.
	minBudget = 4000
	// observationShare is the fraction of the budget given to the page
	// observation; the histories split the remainder.
	observationShare = 0.7

	truncationMarker = "\n... (truncated)"
)

// Budget fits prompt components into a character allowance. The observation
// keeps its prefix because element IDs appear early in the tree; histories
// keep their suffix because recent turns matter most.
type Budget struct {
	MaxContextChars int
}

// Fit returns the observation and history streams trimmed so the assembled
// prompt stays within the character allowance.
func (b Budget) Fit(objective, observation, histAction, histInfo string) (obs, ha, hi string) {
	fixed := len(SystemPrompt) + len(objective) + promptOverhead
	budget := b.MaxContextChars - fixed
	if budget < minBudget {
		budget = minBudget
	}

	obsBudget := int(float64(budget) * observationShare)
	histBudget := budget - obsBudget

	obs = observation
	if len(obs) > obsBudget {
		obs = obs[:obsBudget] + truncationMarker
	}

	ha, hi = histAction, histInfo
	if len(ha)+len(hi) > histBudget {
		half := histBudget / 2
		ha = tail(ha, half)
		hi = tail(hi, half)
	}
	return obs, ha, hi
}

// tail keeps at most n trailing bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// BuildUserPrompt assembles the per-turn user message.
func BuildUserPrompt(objective, observation, histAction, histInfo string) string {
	return fmt.Sprintf(userPromptTemplate, objective, observation, histAction, histInfo)
}
