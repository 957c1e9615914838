// File: internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfarer-cli/internal/browser"
	"github.com/xkilldash9x/wayfarer-cli/internal/config"
	"github.com/xkilldash9x/wayfarer-cli/internal/extract"
	"github.com/xkilldash9x/wayfarer-cli/internal/llmclient"
)

// ModelClient is the slice of the inference client the loop needs.
type ModelClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Driver is the browser surface the loop drives. *browser.Session satisfies
// it; tests substitute a mock.
type Driver interface {
	Observe(ctx context.Context) (*browser.Observation, error)

	Click(ctx context.Context, obs *browser.Observation, id int) browser.ActionResult
	Hover(ctx context.Context, obs *browser.Observation, id int) browser.ActionResult
	Type(ctx context.Context, obs *browser.Observation, id int, text string, submit bool) browser.ActionResult
	Press(ctx context.Context, combo string) browser.ActionResult
	Scroll(ctx context.Context, direction string) browser.ActionResult

	NavigateTo(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	NewTab(ctx context.Context) error
	FocusTab(ctx context.Context, index int) browser.ActionResult
	CloseTab(ctx context.Context) browser.ActionResult

	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Evaluate(ctx context.Context, expression string, out any) error
}

// Extractor accumulates tabular data across turns and persists it at the end
// of a run.
type Extractor interface {
	Capture(ctx context.Context, page extract.PageReader, label string) (int, error)
	FinalScreenshot(ctx context.Context, page extract.PageReader) (string, error)
	Save() (string, error)
	RowCount() int
}

// failureSeverity decides how loudly an action failure is reported. Every
// failure is recoverable; none of them ends the run.
var failureSeverity = map[browser.FailureReason]zap.Field{
	browser.FailStaleObservation: zap.String("policy", "reobserve next turn"),
	browser.FailUnknownID:        zap.String("policy", "model referenced a missing id"),
	browser.FailNoGeometry:       zap.String("policy", "element not renderable"),
	browser.FailFallbackMiss:     zap.String("policy", "role and name lookup missed"),
	browser.FailDriver:           zap.String("policy", "browser error, continuing"),
	browser.FailTabOutOfRange:    zap.String("policy", "tab index out of range"),
	browser.FailBadArgument:      zap.String("policy", "malformed argument"),
}

// RunResult summarizes a finished agent run.
type RunResult struct {
	Answer   string
	Steps    int
	Stopped  bool
	DataPath string
	Rows     int
}

// Agent runs the perception and action loop: observe the page, ask the model
// for one command, execute it, repeat until stop or the step cap.
type Agent struct {
	cfg     *config.Config
	driver  Driver
	model   ModelClient
	extract Extractor
	logger  *zap.Logger

	history *History
	stall   *StallDetector
	budget  Budget
}

func New(cfg *config.Config, driver Driver, model ModelClient, extractor Extractor, logger *zap.Logger) *Agent {
	return &Agent{
		cfg:     cfg,
		driver:  driver,
		model:   model,
		extract: extractor,
		logger:  logger.Named("agent"),
		history: NewHistory(),
		stall:   NewStallDetector(cfg.Agent.StallHintAfter, cfg.Agent.StallAbortAfter),
		budget:  Budget{MaxContextChars: cfg.Agent.MaxContextChars},
	}
}

// Run drives the loop until the model issues stop, the step cap is reached,
// or the context is cancelled. Per-turn failures are recorded in history and
// the loop continues; only context cancellation is fatal.
func (a *Agent) Run(ctx context.Context, objective string) (*RunResult, error) {
	result := &RunResult{}

	for step := 1; step <= a.cfg.Agent.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Steps = step
		log := a.logger.With(zap.Int("step", step))

		obs, err := a.driver.Observe(ctx)
		if err != nil {
			log.Warn("observation failed", zap.Error(err))
			a.history.AddAction(fmt.Sprintf("(error: %v)", err))
			a.pause(ctx, a.cfg.Agent.TurnPause)
			continue
		}
		log.Info("observed page",
			zap.String("url", obs.URL),
			zap.Int("elements", len(obs.Refs)),
			zap.Int("truncated", obs.Truncated))

		prompt := a.buildPrompt(objective, obs)
		response, err := a.model.Generate(ctx, SystemPrompt, prompt)
		if err != nil {
			log.Warn("model call failed", zap.Error(err))
			a.history.AddAction(fmt.Sprintf("(error: %v)", err))
			if errors.Is(err, llmclient.ErrContextOverflow) {
				a.recoverFromOverflow(ctx, log)
			}
			a.pause(ctx, a.cfg.Agent.TurnPause)
			continue
		}

		raw := ExtractCommand(response)
		conclusion := ExtractConclusion(response)

		repeats, abort := a.stall.Record(raw)
		if abort {
			log.Warn("command repeated past abort threshold, skipping",
				zap.String("command", raw), zap.Int("repeats", repeats))
			a.history.AddAction(fmt.Sprintf("%s (FAILED, repeated %dx, skipping)", raw, repeats))
			a.history.AddFinding(conclusion)
			a.pause(ctx, a.cfg.Agent.TurnPause)
			continue
		}

		a.history.AddAction(raw)
		a.history.AddFinding(conclusion)

		cmd := ParseCommand(raw)
		log.Info("executing command", zap.String("kind", string(cmd.Kind)), zap.String("raw", raw))

		if cmd.Kind == KindStop {
			result.Answer = cmd.Text
			result.Stopped = true
			break
		}

		if err := a.execute(ctx, log, obs, cmd); err != nil {
			a.history.AddAction(fmt.Sprintf("(error: %v)", err))
		}

		// Opportunistic capture so tables seen mid-run are not lost even if
		// the model never issues extract.
		if _, err := a.extract.Capture(ctx, a.driver, ""); err != nil {
			log.Debug("implicit capture failed", zap.Error(err))
		}

		a.pause(ctx, a.cfg.Agent.TurnPause)
	}

	a.finish(ctx, result)
	return result, ctx.Err()
}

// buildPrompt fits the observation and history streams into the context
// budget and assembles the user message, folding in a stall hint when the
// loop is repeating itself.
func (a *Agent) buildPrompt(objective string, obs *browser.Observation) string {
	if hint := a.stall.Hint(); hint != "" {
		objective += hint
	}
	o, ha, hi := a.budget.Fit(objective, obs.Tree, a.history.Actions(), a.history.Findings())
	return BuildUserPrompt(objective, o, ha, hi)
}

// execute dispatches one parsed command against the browser. Action results
// are logged per the severity table and reflected into history; hard errors
// from navigation are returned for the caller to record.
func (a *Agent) execute(ctx context.Context, log *zap.Logger, obs *browser.Observation, cmd Command) error {
	switch cmd.Kind {
	case KindClick:
		return a.settleAround(ctx, func() error {
			return a.reportResult(log, cmd, a.driver.Click(ctx, obs, cmd.ID))
		})
	case KindType:
		return a.settleAround(ctx, func() error {
			return a.reportResult(log, cmd, a.driver.Type(ctx, obs, cmd.ID, cmd.Text, cmd.PressEnter))
		})
	case KindHover:
		return a.reportResult(log, cmd, a.driver.Hover(ctx, obs, cmd.ID))
	case KindPress:
		return a.settleAround(ctx, func() error {
			return a.reportResult(log, cmd, a.driver.Press(ctx, cmd.Text))
		})
	case KindScroll:
		return a.reportResult(log, cmd, a.driver.Scroll(ctx, cmd.Direction))
	case KindGoto:
		return a.driver.NavigateTo(ctx, cmd.Text)
	case KindGoBack:
		return a.driver.GoBack(ctx)
	case KindGoForward:
		return a.driver.GoForward(ctx)
	case KindNewTab:
		return a.driver.NewTab(ctx)
	case KindTabFocus:
		return a.reportResult(log, cmd, a.driver.FocusTab(ctx, cmd.TabIndex))
	case KindCloseTab:
		return a.reportResult(log, cmd, a.driver.CloseTab(ctx))
	case KindExtract:
		added, err := a.extract.Capture(ctx, a.driver, cmd.Text)
		if err != nil {
			return err
		}
		log.Info("extracted rows", zap.String("label", cmd.Text), zap.Int("rows", added))
		return nil
	case KindNoop:
		log.Info("no actionable command this turn", zap.String("raw", cmd.Raw))
		return nil
	case KindUnknown:
		log.Warn("unrecognized command", zap.String("raw", cmd.Raw))
		return nil
	default:
		return nil
	}
}

// reportResult folds an ActionResult into the log and history. Failures are
// surfaced to the model as history lines rather than returned as errors.
func (a *Agent) reportResult(log *zap.Logger, cmd Command, res browser.ActionResult) error {
	if res.OK {
		return nil
	}
	fields := []zap.Field{
		zap.String("command", cmd.Raw),
		zap.String("reason", string(res.Reason)),
	}
	if sev, ok := failureSeverity[res.Reason]; ok {
		fields = append(fields, sev)
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	log.Warn("action failed", fields...)
	a.history.AddAction(fmt.Sprintf("(action failed: %s)", res))
	return nil
}

// settleAround runs an action that may trigger navigation and waits for the
// page to settle when the URL changed underneath it.
func (a *Agent) settleAround(ctx context.Context, fn func() error) error {
	before, _ := a.driver.CurrentURL(ctx)
	if err := fn(); err != nil {
		return err
	}
	after, _ := a.driver.CurrentURL(ctx)
	if before != after && after != "" {
		a.pause(ctx, a.cfg.Network.SettleDelay)
	}
	return nil
}

// recoverFromOverflow backs out of the current page after the model rejected
// the prompt for size. Oversized observations usually come from one
// pathological page, so leaving it restores headroom.
func (a *Agent) recoverFromOverflow(ctx context.Context, log *zap.Logger) {
	log.Info("context overflow, navigating back")
	if err := a.driver.GoBack(ctx); err != nil {
		log.Warn("recovery navigation failed", zap.Error(err))
		return
	}
	a.pause(ctx, 2*time.Second)
}

// finish runs the end-of-run extraction safety net and persists whatever was
// collected. With no tabular data at all, a final screenshot is kept instead
// so the run always leaves evidence behind.
func (a *Agent) finish(ctx context.Context, result *RunResult) {
	if _, err := a.extract.Capture(ctx, a.driver, ""); err != nil {
		a.logger.Debug("final capture failed", zap.Error(err))
	}
	result.Rows = a.extract.RowCount()

	path, err := a.extract.Save()
	if err != nil {
		a.logger.Warn("saving extracted data failed", zap.Error(err))
	}
	if path != "" {
		result.DataPath = path
		a.logger.Info("saved extracted data", zap.String("path", path), zap.Int("rows", result.Rows))
		return
	}

	shot, err := a.extract.FinalScreenshot(ctx, a.driver)
	if err != nil {
		a.logger.Warn("final screenshot failed", zap.Error(err))
		return
	}
	result.DataPath = shot
	a.logger.Info("no tabular data collected, kept final screenshot", zap.String("path", shot))
}

func (a *Agent) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
