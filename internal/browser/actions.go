// File: internal/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"
	"go.uber.org/zap"
)

// NavigateTo loads a URL in the active tab. When the location actually
// changed an extra settle delay is inserted; the load-state signal alone does
// not cover client-side re-render lag.
func (s *Session) NavigateTo(ctx context.Context, url string) error {
	exec := s.activeExec()

	before, _ := exec.Location(ctx)
	if err := exec.Navigate(ctx, url); err != nil {
		return err
	}
	return s.settleIfMoved(ctx, exec, before)
}

// GoBack navigates one entry back in the active tab's history.
func (s *Session) GoBack(ctx context.Context) error {
	exec := s.activeExec()
	before, _ := exec.Location(ctx)
	if err := exec.NavigateBack(ctx); err != nil {
		return err
	}
	return s.settleIfMoved(ctx, exec, before)
}

// GoForward navigates one entry forward in the active tab's history.
func (s *Session) GoForward(ctx context.Context) error {
	exec := s.activeExec()
	before, _ := exec.Location(ctx)
	if err := exec.NavigateForward(ctx); err != nil {
		return err
	}
	return s.settleIfMoved(ctx, exec, before)
}

func (s *Session) settleIfMoved(ctx context.Context, exec Executor, before string) error {
	after, err := exec.Location(ctx)
	if err != nil {
		return nil
	}
	if after != before && s.cfg.Network.SettleDelay > 0 {
		return exec.Sleep(ctx, s.cfg.Network.SettleDelay)
	}
	return nil
}

// resolveCenter turns an observation ID into viewport coordinates. Primary
// path: bounding geometry via the stable backend node identifier. Fallback:
// re-query the live accessibility tree by the cached role and fuzzy-match on
// name. A ref minted in an earlier turn is refused outright.
func (s *Session) resolveCenter(ctx context.Context, obs *Observation, id int) (float64, float64, ActionResult) {
	if obs == nil || obs.Turn != s.Turn() {
		return 0, 0, Failure(FailStaleObservation, ErrStaleObservation)
	}
	ref, ok := obs.Refs[id]
	if !ok {
		return 0, 0, Failure(FailUnknownID, fmt.Errorf("%w: [%d]", ErrUnknownID, id))
	}

	exec := s.activeExec()

	if ref.BackendID != 0 {
		x, y, err := exec.NodeCenter(ctx, ref.BackendID)
		if err == nil {
			return x, y, Success()
		}
		s.logger.Debug("Geometry lookup failed, trying role+name fallback",
			zap.Int("id", id), zap.String("role", ref.Role), zap.Error(err))
	}

	x, y, err := s.resolveByRoleName(ctx, exec, ref)
	if err != nil {
		return 0, 0, Failure(FailFallbackMiss, err)
	}
	return x, y, Success()
}

// resolveByRoleName re-queries the accessibility tree for nodes with the
// cached role and picks the first whose name fuzzily matches.
func (s *Session) resolveByRoleName(ctx context.Context, exec Executor, ref NodeRef) (float64, float64, error) {
	if ref.Role == "" {
		return 0, 0, fmt.Errorf("no role cached for fallback resolution of [%d]", ref.ID)
	}

	nodes, err := exec.QueryAXTree(ctx, ref.Role)
	if err != nil {
		return 0, 0, fmt.Errorf("fallback query for role %q failed: %w", ref.Role, err)
	}

	want := strings.ToLower(ref.Name)
	for _, n := range nodes {
		if n.BackendDOMNodeID == 0 {
			continue
		}
		got := strings.ToLower(axString(n.Name))
		if want != "" && !strings.Contains(got, want) && !strings.Contains(want, got) {
			continue
		}
		if want == "" && got != "" {
			continue
		}
		x, y, err := exec.NodeCenter(ctx, n.BackendDOMNodeID)
		if err != nil {
			continue
		}
		return x, y, nil
	}
	return 0, 0, fmt.Errorf("no live element matches role %q name %q", ref.Role, ref.Name)
}

// Click resolves the observation ID and clicks the element's center.
func (s *Session) Click(ctx context.Context, obs *Observation, id int) ActionResult {
	x, y, res := s.resolveCenter(ctx, obs, id)
	if !res.OK {
		return res
	}
	if err := s.activeExec().ClickAt(ctx, x, y); err != nil {
		return Failure(FailDriver, err)
	}
	s.logger.Debug("Clicked element", zap.Int("id", id), zap.Float64("x", x), zap.Float64("y", y))
	return Success()
}

// Hover moves the mouse to the element's center without clicking.
func (s *Session) Hover(ctx context.Context, obs *Observation, id int) ActionResult {
	x, y, res := s.resolveCenter(ctx, obs, id)
	if !res.OK {
		return res
	}
	if err := s.activeExec().MoveMouseTo(ctx, x, y); err != nil {
		return Failure(FailDriver, err)
	}
	return Success()
}

// Type clicks the element to focus it, selects any existing content, types
// the replacement text, and optionally submits with Enter.
func (s *Session) Type(ctx context.Context, obs *Observation, id int, text string, submit bool) ActionResult {
	x, y, res := s.resolveCenter(ctx, obs, id)
	if !res.OK {
		return res
	}

	exec := s.activeExec()
	if err := exec.ClickAt(ctx, x, y); err != nil {
		return Failure(FailDriver, err)
	}
	if err := exec.KeyCombo(ctx, input.ModifierCtrl, "a"); err != nil {
		return Failure(FailDriver, err)
	}
	if err := exec.TypeText(ctx, text); err != nil {
		return Failure(FailDriver, err)
	}
	if submit {
		if err := exec.PressKey(ctx, "Enter"); err != nil {
			return Failure(FailDriver, err)
		}
	}
	s.logger.Debug("Typed into element", zap.Int("id", id), zap.Int("chars", len(text)), zap.Bool("submit", submit))
	return Success()
}

// modifierNames maps combo tokens to CDP input modifiers.
var modifierNames = map[string]input.Modifier{
	"alt":     input.ModifierAlt,
	"ctrl":    input.ModifierCtrl,
	"control": input.ModifierCtrl,
	"meta":    input.ModifierMeta,
	"cmd":     input.ModifierMeta,
	"command": input.ModifierMeta,
	"shift":   input.ModifierShift,
}

// Press dispatches a key or a modifier+key chord, e.g. "Enter",
// "Control+a", "ctrl+shift+r".
func (s *Session) Press(ctx context.Context, combo string) ActionResult {
	parts := strings.Split(combo, "+")
	if len(parts) == 0 {
		return Failure(FailBadArgument, fmt.Errorf("empty key combo"))
	}

	var mods input.Modifier
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifierNames[normalizeKeyName(p)]
		if !ok {
			return Failure(FailBadArgument, fmt.Errorf("unknown modifier %q in combo %q", p, combo))
		}
		mods |= m
	}

	key := strings.TrimSpace(parts[len(parts)-1])
	exec := s.activeExec()

	if mods == 0 {
		if err := exec.PressKey(ctx, key); err != nil {
			return Failure(FailDriver, err)
		}
		return Success()
	}

	if err := exec.KeyCombo(ctx, mods, canonicalKeyName(key)); err != nil {
		return Failure(FailDriver, err)
	}
	return Success()
}

// canonicalKeyName upper-cases the first letter of named keys so the CDP key
// field receives "Enter" rather than "enter". Single characters are left
// alone.
func canonicalKeyName(key string) string {
	if len(key) <= 1 {
		return key
	}
	return strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
}

// Scroll moves the viewport roughly 80% of a screen in the given direction.
func (s *Session) Scroll(ctx context.Context, direction string) ActionResult {
	amount := float64(s.cfg.Browser.ViewportHeight) * 0.8
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "down":
	case "up":
		amount = -amount
	default:
		return Failure(FailBadArgument, fmt.Errorf("unknown scroll direction %q", direction))
	}

	if err := s.activeExec().ScrollBy(ctx, 0, amount); err != nil {
		return Failure(FailDriver, err)
	}
	return Success()
}
