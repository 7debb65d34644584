package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"promptvc/internal/agent"
	"promptvc/internal/bundle"
	"promptvc/internal/logging"
	"promptvc/internal/repo"
	"promptvc/internal/server"
	"promptvc/internal/watch"

	"github.com/spf13/cobra"
)

func init() {
	var agentCmd = &cobra.Command{
		Use:   "agent [query...]",
		Short: "LLM-powered conversational interface",
		Long: `LLM-powered conversational interface for prompt versioning.

Examples:
  promptvc agent "initialize the project"
  promptvc agent "commit this prompt with message 'improved clarity'"
  promptvc agent --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			backendName, _ := cmd.Flags().GetString("backend")
			model, _ := cmd.Flags().GetString("model")
			interactive, _ := cmd.Flags().GetBool("interactive")
			saveConv, _ := cmd.Flags().GetString("save-conversation")
			loadConv, _ := cmd.Flags().GetString("load-conversation")

			backend, err := selectBackend(backendName, model)
			if err != nil {
				return err
			}

			a := agent.New(backend, repoPath, logger)
			if loadConv != "" {
				if err := a.LoadConversation(loadConv); err != nil {
					return fmt.Errorf("loading conversation: %w", err)
				}
				fmt.Printf("%s Resumed conversation from %s\n", success("✓"), loadConv)
			}
			fmt.Printf("Agent active (using %s)\n\n", backend.Name())

			if saveConv != "" {
				defer func() {
					if err := a.SaveConversation(saveConv); err != nil {
						fmt.Fprintf(os.Stderr, "%s saving conversation: %v\n", fail("✗"), err)
					}
				}()
			}

			ctx := cmd.Context()
			if len(args) > 0 {
				if err := runAgentQuery(ctx, a, strings.Join(args, " ")); err != nil {
					return err
				}
				if !interactive {
					return nil
				}
			}
			if interactive || len(args) == 0 {
				return runAgentREPL(ctx, a)
			}
			return nil
		},
	}
	agentCmd.Flags().String("backend", "auto", "LLM backend (openai, anthropic, ollama, auto)")
	agentCmd.Flags().String("model", "", "Model name")
	agentCmd.Flags().BoolP("interactive", "i", false, "Start interactive REPL mode")
	agentCmd.Flags().String("save-conversation", "", "Save conversation to file on exit")
	agentCmd.Flags().String("load-conversation", "", "Resume conversation from file")

	var serveCmd = &cobra.Command{
		Use:   "mcp-server",
		Short: "Start the tool server over stdio",
		Long: `Start a JSON-RPC tool server over stdio.

The server exposes every repository operation as a tool that MCP-compatible
clients (Claude Desktop, editors) can call.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The CLI logger writes to stdout, which the protocol owns.
			srvLogger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}

			r, err := repo.Open(repoPath, repo.WithLogger(srvLogger))
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(r, srvLogger)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch <file>",
		Short: "Auto-commit a prompt file on every change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			w, err := watch.New(r, args[0], logger, watch.WithAuthor(cfg.Author))
			if err != nil {
				return err
			}
			w.OnCommit = func(hash, message string) {
				fmt.Printf("%s %s (%s)\n", success("✓"), message, hash[:7])
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Watching %s (Ctrl-C to stop)\n", args[0])
			if err := w.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}

	var bundleCmd = &cobra.Command{
		Use:   "bundle",
		Short: "Export or import a repository as a single archive",
	}

	var bundleExportCmd = &cobra.Command{
		Use:   "export <archive>",
		Short: "Pack the repository into a compressed archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating archive: %w", err)
			}
			if err := bundle.Export(r.Store(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("finalizing archive: %w", err)
			}
			fmt.Printf("%s Exported repository to %s\n", success("✓"), args[0])
			return nil
		},
	}

	var bundleImportCmd = &cobra.Command{
		Use:   "import <archive>",
		Short: "Restore a repository from an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening archive: %w", err)
			}
			defer f.Close()

			if err := bundle.Import(repoPath, f); err != nil {
				return err
			}
			fmt.Printf("%s Imported repository into %s\n", success("✓"), repoPath)
			return nil
		},
	}

	bundleCmd.AddCommand(bundleExportCmd)
	bundleCmd.AddCommand(bundleImportCmd)

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(bundleCmd)
}

// selectBackend builds the requested backend, or probes each one in
// order when "auto" is asked for.
func selectBackend(name, model string) (agent.Backend, error) {
	switch name {
	case "openai":
		return agent.NewOpenAIBackend(cfg.OpenAIAPIKey, model), nil
	case "anthropic":
		return agent.NewAnthropicBackend(cfg.AnthropicAPIKey, model), nil
	case "ollama":
		return agent.NewOllamaBackend(cfg.OllamaHost, model), nil
	case "auto", "":
		return agent.DetectBackend(
			agent.NewOpenAIBackend(cfg.OpenAIAPIKey, model),
			agent.NewAnthropicBackend(cfg.AnthropicAPIKey, model),
			agent.NewOllamaBackend(cfg.OllamaHost, model),
		)
	default:
		return nil, fmt.Errorf("unknown backend %q (want openai, anthropic, ollama, or auto)", name)
	}
}

func runAgentQuery(ctx context.Context, a *agent.Agent, query string) error {
	resp, err := a.Process(ctx, query)
	if err != nil {
		return err
	}
	fmt.Printf("Assistant:\n%s\n", resp.Message)

	if resp.Command == "" {
		return nil
	}
	if resp.NeedsConfirmation && !confirm(fmt.Sprintf("Run '%s'?", resp.Command)) {
		fmt.Println("Skipped.")
		return nil
	}
	return runShellCommand(resp.Command)
}

func runAgentREPL(ctx context.Context, a *agent.Agent) error {
	fmt.Println("Interactive mode. Type 'exit' or 'quit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := runAgentQuery(ctx, a, line); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", fail("✗"), err)
		}
	}
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func runShellCommand(command string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %q: %w", command, err)
	}
	return nil
}
