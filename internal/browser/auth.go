// File: internal/browser/auth.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfarer-cli/internal/config"
)

// Bootstrap prepares the session according to the configured authentication
// mode, leaving the browser on the starting URL ready for the agent loop.
// Mode "session" relies on the persistent profile directory wired in at
// allocator level, so it reduces to a plain navigation here.
func (s *Session) Bootstrap(ctx context.Context, auth config.AuthConfig) error {
	switch auth.Mode {
	case config.AuthCredentials:
		return s.bootstrapCredentials(ctx, auth)
	case config.AuthToken:
		return s.bootstrapToken(ctx, auth)
	case config.AuthNone, config.AuthSession, "":
		if auth.URL != "" {
			if err := s.NavigateTo(ctx, auth.URL); err != nil {
				return err
			}
			s.DismissConsent(ctx)
		}
		return nil
	default:
		return fmt.Errorf("unknown auth mode %q", auth.Mode)
	}
}

// bootstrapCredentials loads the login page, fills the username and password
// fields through native value setters (framework-controlled inputs ignore
// direct assignment), submits, and waits for the page to settle.
func (s *Session) bootstrapCredentials(ctx context.Context, auth config.AuthConfig) error {
	if auth.URL == "" {
		return fmt.Errorf("credentials auth requires a login URL")
	}
	if err := s.NavigateTo(ctx, auth.URL); err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}
	s.DismissConsent(ctx)

	script := fmt.Sprintf(`(function(userSel, passSel, submitSel, user, pass) {
		function setValue(sel, val) {
			const el = document.querySelector(sel);
			if (!el) return false;
			const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
			const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
			setter.call(el, val);
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}
		if (!setValue(userSel, user)) return 'username field not found: ' + userSel;
		if (!setValue(passSel, pass)) return 'password field not found: ' + passSel;
		const btn = document.querySelector(submitSel);
		if (!btn) return 'submit button not found: ' + submitSel;
		btn.click();
		return '';
	})(%s, %s, %s, %s, %s)`,
		jsEncode(auth.UsernameSelector), jsEncode(auth.PasswordSelector),
		jsEncode(auth.SubmitSelector), jsEncode(auth.Username), jsEncode(auth.Password))

	var failure string
	exec := s.activeExec()
	if err := exec.Evaluate(ctx, script, &failure); err != nil {
		return fmt.Errorf("login form fill failed: %w", err)
	}
	if failure != "" {
		return fmt.Errorf("login form fill failed: %s", failure)
	}

	s.logger.Info("Login form submitted, waiting for page to settle")
	if s.cfg.Network.SettleDelay > 0 {
		if err := exec.Sleep(ctx, s.cfg.Network.SettleDelay); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapToken injects the token as a cookie or an Authorization header
// before loading the target page.
func (s *Session) bootstrapToken(ctx context.Context, auth config.AuthConfig) error {
	if auth.URL == "" {
		return fmt.Errorf("token auth requires a target URL")
	}
	if auth.Token == "" {
		return fmt.Errorf("token auth requires a token")
	}

	exec := s.activeExec()
	switch auth.TokenType {
	case "header":
		headers := map[string]string{"Authorization": "Bearer " + auth.Token}
		if err := exec.SetExtraHeaders(ctx, headers); err != nil {
			return fmt.Errorf("failed to inject Authorization header: %w", err)
		}
		s.logger.Info("Injected Authorization header")
	case "cookie", "":
		name := auth.CookieName
		if name == "" {
			name = "session"
		}
		if err := exec.SetCookie(ctx, name, auth.Token, auth.URL); err != nil {
			return fmt.Errorf("failed to inject session cookie: %w", err)
		}
		s.logger.Info("Injected session cookie", zap.String("cookie", name))
	default:
		return fmt.Errorf("unknown token type %q", auth.TokenType)
	}

	if err := s.NavigateTo(ctx, auth.URL); err != nil {
		return err
	}
	s.DismissConsent(ctx)
	return nil
}
