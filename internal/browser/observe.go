// File: internal/browser/observe.go
package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
)

// NodeRef is the per-turn locator for one surfaced element: the stable
// backend node identifier for geometry lookup, plus the role and name pair
// used for fallback resolution.
type NodeRef struct {
	ID        int
	Role      string
	Name      string
	BackendID cdp.BackendNodeID
}

// Observation is a turn-stamped snapshot of the active page. The Refs map is
// rebuilt wholesale on every encoding pass; a ref must never be resolved
// against a later turn's page state.
type Observation struct {
	Turn      int
	URL       string
	Title     string
	Tree      string
	Refs      map[int]NodeRef
	Truncated int
}

// propertyWhitelist is the ordered set of semantic properties surfaced per
// node. Everything else the accessibility backend reports is noise for the
// model.
var propertyWhitelist = []string{
	"level", "setsize", "posinset",
	"disabled", "focused", "required", "checked", "selected",
}

// EncodeOptions tunes one encoding pass.
type EncodeOptions struct {
	MaxLines   int
	SkipRoles  []string
	NoiseRoles []string
}

type encoder struct {
	index     map[accessibility.NodeID]*accessibility.Node
	skip      map[string]struct{}
	noise     map[string]struct{}
	whitelist map[string]struct{}
	maxLines  int

	lines     []string
	refs      map[int]NodeRef
	nextID    int
	truncated int
}

// EncodeAXTree flattens a full accessibility tree into a numbered, indented
// text rendering and the ID to locator map for the current turn. Structural
// roles are skipped with their children promoted to the nearest surfaced
// ancestor's depth, so indentation reflects surfaced ancestry only. Output is
// capped at MaxLines; overflow is summarized by a single truncation marker.
func EncodeAXTree(nodes []*accessibility.Node, opts EncodeOptions) (string, map[int]NodeRef, int) {
	enc := &encoder{
		index:     make(map[accessibility.NodeID]*accessibility.Node, len(nodes)),
		skip:      toSet(opts.SkipRoles),
		noise:     toSet(opts.NoiseRoles),
		whitelist: toSet(propertyWhitelist),
		maxLines:  opts.MaxLines,
		refs:      make(map[int]NodeRef),
	}

	var root *accessibility.Node
	for _, n := range nodes {
		enc.index[n.NodeID] = n
		if n.ParentID == "" && root == nil {
			root = n
		}
	}
	if root == nil && len(nodes) > 0 {
		root = nodes[0]
	}
	if root != nil {
		enc.walk(root, 0)
	}

	if enc.truncated > 0 {
		enc.lines = append(enc.lines, fmt.Sprintf("... (%d more elements truncated)", enc.truncated))
	}
	return strings.Join(enc.lines, "\n"), enc.refs, enc.truncated
}

func (e *encoder) walk(n *accessibility.Node, depth int) {
	childDepth := depth
	if e.display(n, depth) {
		childDepth = depth + 1
	}
	for _, childID := range n.ChildIDs {
		if child, ok := e.index[childID]; ok {
			e.walk(child, childDepth)
		}
	}
}

// display renders the node if eligible and returns whether it was surfaced.
func (e *encoder) display(n *accessibility.Node, depth int) bool {
	if n.Ignored {
		return false
	}
	role := axString(n.Role)
	if role == "" {
		return false
	}
	if _, skip := e.skip[role]; skip {
		return false
	}
	name := axString(n.Name)
	if name == "" {
		if _, noisy := e.noise[role]; noisy {
			return false
		}
	}

	id := e.nextID
	e.nextID++
	e.refs[id] = NodeRef{
		ID:        id,
		Role:      role,
		Name:      name,
		BackendID: n.BackendDOMNodeID,
	}

	if e.maxLines > 0 && len(e.lines) >= e.maxLines {
		e.truncated++
		return true
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat("\t", depth))
	fmt.Fprintf(&sb, "[%d] %s %q", id, role, name)
	for _, p := range n.Properties {
		pname := string(p.Name)
		if _, ok := e.whitelist[pname]; !ok {
			continue
		}
		fmt.Fprintf(&sb, " %s: %s", pname, axRaw(p.Value))
	}
	e.lines = append(e.lines, sb.String())
	return true
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// axString extracts a plain string from an AXValue, tolerating the raw JSON
// encoding the protocol layer hands back.
func axString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s
	}
	return strings.Trim(string(v.Value), `"`)
}

// axRaw renders an AXValue as its literal JSON text, unquoting strings.
func axRaw(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	raw := string(v.Value)
	if strings.HasPrefix(raw, `"`) {
		return strings.Trim(raw, `"`)
	}
	return raw
}
