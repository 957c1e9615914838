// File: cmd/run.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfarer-cli/internal/agent"
	"github.com/xkilldash9x/wayfarer-cli/internal/browser"
	"github.com/xkilldash9x/wayfarer-cli/internal/config"
	"github.com/xkilldash9x/wayfarer-cli/internal/extract"
	"github.com/xkilldash9x/wayfarer-cli/internal/llmclient"
	"github.com/xkilldash9x/wayfarer-cli/internal/observability"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a browsing task against a target site",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment.
			bindings := map[string]string{
				"browser.headless": "headless",
				"agent.max_steps":  "max-steps",
				"model.endpoint":   "endpoint",
				"model.name":       "model",
				"output.dir":       "output",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := config.NewDefaultConfig()
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}

			auth, err := authFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg.Auth = auth

			// Manual login needs a visible browser window.
			if cfg.Auth.Mode == config.AuthSession {
				cfg.Browser.Headless = false
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			if cfg.Auth.URL == "" {
				cfg.Auth.URL, err = promptLine(in, out, "Target URL: ")
				if err != nil {
					return err
				}
			}

			task, _ := cmd.Flags().GetString("task")
			if task == "" {
				task, err = readMultilineTask(in, out)
				if err != nil {
					return err
				}
			}
			if strings.TrimSpace(task) == "" {
				return errors.New("no task provided")
			}

			return runTask(ctx, cfg, task, in, out, logger)
		},
	}

	runCmd.Flags().String("url", "", "Target URL to start from")
	runCmd.Flags().String("task", "", "Task for the agent; prompted interactively when unset")
	runCmd.Flags().String("auth", "none", "Authentication mode: none, credentials, token, session")
	runCmd.Flags().String("username", "", "Username for credentials auth")
	runCmd.Flags().String("password", "", "Password for credentials auth")
	runCmd.Flags().String("username-selector", "input[name=username]", "CSS selector for the username field")
	runCmd.Flags().String("password-selector", "input[type=password]", "CSS selector for the password field")
	runCmd.Flags().String("submit-selector", "button[type=submit]", "CSS selector for the login submit button")
	runCmd.Flags().String("token", "", "Token for token auth")
	runCmd.Flags().String("token-type", "cookie", "How the token is presented: cookie or header")
	runCmd.Flags().String("cookie-name", "session", "Cookie name for token auth")
	runCmd.Flags().String("profile-dir", "", "Browser profile directory to reuse a logged-in session")

	runCmd.Flags().Bool("headless", false, "Run the browser without a window. (Overrides config/env)")
	runCmd.Flags().Int("max-steps", 0, "Maximum agent steps. (Overrides config/env)")
	runCmd.Flags().String("endpoint", "", "OpenAI-compatible inference endpoint. (Overrides config/env)")
	runCmd.Flags().String("model", "", "Model name; autodetected from the endpoint when unset")
	runCmd.Flags().StringP("output", "o", "", "Directory for collected data. (Overrides config/env)")

	return runCmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

// authFromFlags assembles the AuthConfig from command flags.
func authFromFlags(cmd *cobra.Command) (config.AuthConfig, error) {
	flags := cmd.Flags()
	auth := config.AuthConfig{}

	mode, _ := flags.GetString("auth")
	switch strings.ToLower(mode) {
	case "", "none":
		auth.Mode = config.AuthNone
	case "credentials":
		auth.Mode = config.AuthCredentials
	case "token":
		auth.Mode = config.AuthToken
	case "session":
		auth.Mode = config.AuthSession
	default:
		return auth, fmt.Errorf("unknown auth mode %q", mode)
	}

	auth.URL, _ = flags.GetString("url")
	auth.Username, _ = flags.GetString("username")
	auth.Password, _ = flags.GetString("password")
	auth.UsernameSelector, _ = flags.GetString("username-selector")
	auth.PasswordSelector, _ = flags.GetString("password-selector")
	auth.SubmitSelector, _ = flags.GetString("submit-selector")
	auth.Token, _ = flags.GetString("token")
	auth.TokenType, _ = flags.GetString("token-type")
	auth.CookieName, _ = flags.GetString("cookie-name")
	auth.ProfileDir, _ = flags.GetString("profile-dir")

	if auth.Mode == config.AuthCredentials && (auth.Username == "" || auth.Password == "") {
		return auth, errors.New("credentials auth requires --username and --password")
	}
	if auth.Mode == config.AuthToken && auth.Token == "" {
		return auth, errors.New("token auth requires --token")
	}
	return auth, nil
}

// runTask wires the browser, model client, and extractor together and drives
// the agent to completion.
func runTask(ctx context.Context, cfg *config.Config, task string, in *bufio.Reader, out io.Writer, logger *zap.Logger) error {
	if cfg.Auth.ProfileDir != "" {
		cfg.Browser.UserDataDir = cfg.Auth.ProfileDir
	}

	mgr, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser shutdown reported an error", zap.Error(err))
		}
	}()

	session, err := mgr.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}

	if err := session.Bootstrap(ctx, cfg.Auth); err != nil {
		return fmt.Errorf("authentication bootstrap failed: %w", err)
	}

	if cfg.Auth.Mode == config.AuthSession {
		// The operator logs in by hand; the run continues on ENTER.
		fmt.Fprint(out, "Log in to the site in the opened browser window, then press ENTER to continue... ")
		if _, err := in.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}

	model := llmclient.NewClient(cfg.Model, logger)
	modelName := model.DetectModel(ctx)
	logger.Info("Using model", zap.String("model", modelName))

	store := extract.NewFileStore(cfg.Output.Dir, cfg.Output.CSVName)
	engine := extract.NewEngine(store, logger)

	a := agent.New(cfg, session, model, engine, logger)
	result, err := a.Run(ctx, task)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRun finished after %d steps.\n", result.Steps)
	if result.Stopped {
		fmt.Fprintf(out, "Answer: %s\n", result.Answer)
	} else {
		fmt.Fprintln(out, "Step limit reached without a final answer.")
	}
	if result.DataPath != "" {
		fmt.Fprintf(out, "Collected data: %s\n", result.DataPath)
	}
	return nil
}

// promptLine asks for a single line of input and trims it.
func promptLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no input provided")
	}
	return line, nil
}

// readMultilineTask collects the task description until a blank line.
func readMultilineTask(in *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprintln(out, "Describe the task. Finish with an empty line:")
	var lines []string
	for {
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
		if trimmed == "" || errors.Is(err, io.EOF) {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}
