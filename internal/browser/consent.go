// File: internal/browser/consent.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// consentSelectors are CSS selectors for common cookie consent accept
// buttons, CMP frameworks included.
var consentSelectors = []string{
	"button[name='agree']",
	"[data-testid='consent-accept']",
	"button.consent-accept",
	".cmp-revoke-consent button",
	"#onetrust-accept-btn-handler",
	".cookie-consent-accept",
	"[aria-label='Accept cookies']",
	"[aria-label='Cookies akzeptieren']",
}

// consentTexts are exact button labels matched case-insensitively when no
// selector hits.
var consentTexts = []string{
	"Accept all",
	"Alle akzeptieren",
	"Akzeptieren",
	"Tout accepter",
	"Agree",
	"I agree",
	"OK",
	"Got it",
}

// DismissConsent waits briefly for consent dialogs to render, then tries to
// click an accept button by selector and by label text. Failure is
// informational; pages without dialogs are the common case.
func (s *Session) DismissConsent(ctx context.Context) {
	exec := s.activeExec()

	if s.cfg.Network.ConsentWait > 0 {
		if err := exec.Sleep(ctx, s.cfg.Network.ConsentWait); err != nil {
			return
		}
	}

	script := fmt.Sprintf(`(function(selectors, texts) {
		function visible(el) {
			if (!el) return false;
			const r = el.getBoundingClientRect();
			return r.width > 0 && r.height > 0;
		}
		for (const sel of selectors) {
			try {
				const el = document.querySelector(sel);
				if (visible(el)) { el.click(); return sel; }
			} catch (e) {}
		}
		const wanted = texts.map(t => t.toLowerCase());
		for (const btn of document.querySelectorAll('button')) {
			const label = (btn.textContent || '').trim().toLowerCase();
			if (wanted.includes(label) && visible(btn)) { btn.click(); return 'text:' + label; }
		}
		return '';
	})(%s, %s)`, jsEncode(consentSelectors), jsEncode(consentTexts))

	var matched string
	if err := exec.Evaluate(ctx, script, &matched); err != nil {
		s.logger.Debug("Consent dismissal script failed", zap.Error(err))
		return
	}
	if matched != "" {
		s.logger.Info("Dismissed cookie consent dialog", zap.String("via", matched))
		_ = exec.Sleep(ctx, s.cfg.Network.SettleDelay)
	}
}

// jsEncode safely embeds a value into generated JavaScript.
func jsEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
