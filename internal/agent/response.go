// File: internal/agent/response.go
package agent

import (
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```" + `\s*([^\s].*?[^\s])\s*` + "```")
	conclusionRe  = regexp.MustCompile(`(?s)<conclusion>\s*(.*?)\s*</conclusion>`)
)

// ExtractCommand pulls the command out of a model response. The command is
// the content of the last fenced code block; earlier blocks are treated as
// quoted examples from the prompt. An absent block yields the empty string.
func ExtractCommand(response string) string {
	matches := fencedBlockRe.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return ""
	}
	cmd := matches[len(matches)-1][1]
	cmd = strings.Trim(cmd, "`")
	return strings.TrimSpace(cmd)
}

// ExtractConclusion pulls the last <conclusion> block out of a model
// response, or the empty string when none is present.
func ExtractConclusion(response string) string {
	matches := conclusionRe.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
