package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"promptvc/internal/audit"
	"promptvc/internal/config"
	"promptvc/internal/logging"
	"promptvc/internal/prompt"
	"promptvc/internal/promptfile"
	"promptvc/internal/repo"
	"promptvc/internal/vcerrors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	repoPath string
	cfgFile  string
	verbose  bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "promptvc",
	Short: "Version control for LLM prompts",
	Long: `promptvc is a git-style version control system for LLM prompts.
It stores every prompt version content-addressed, tracks commit history,
computes semantic diffs between versions, and keeps an append-only audit
trail for compliance.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		logger, err = logging.NewCLI(verbose)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
}

var (
	success = color.New(color.FgGreen).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
	fail    = color.New(color.FgRed).SprintFunc()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&repoPath, "path", ".", "Repository path")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./promptvc.yaml or ~/.promptvc/promptvc.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new prompt repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Init(repoPath, repo.WithLogger(logger))
			if err != nil {
				return err
			}
			defer r.Close()

			abs, err := filepath.Abs(repoPath)
			if err != nil {
				abs = repoPath
			}
			fmt.Printf("%s Initialized prompt repository in %s\n", success("✓"), filepath.Join(abs, ".promptvc"))
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit [file]",
		Short: "Create a new commit with the given prompt",
		Long: `Create a new commit with the given prompt.

The prompt file can be provided as a positional argument or via -f/--file.
YAML and JSON files are accepted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			fileOpt, _ := cmd.Flags().GetString("file")
			author, _ := cmd.Flags().GetString("author")
			if author == "" {
				author = cfg.Author
			}

			file := fileOpt
			if file == "" && len(args) > 0 {
				file = args[0]
			}
			if file == "" {
				return fmt.Errorf("missing prompt file: provide as argument or use -f/--file")
			}

			data, err := promptfile.Load(file)
			if err != nil {
				return err
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			commit, err := r.CommitMap(message, data, author, file)
			if err != nil {
				return err
			}

			fmt.Printf("[main %s] %s\n", commit.ShortHash(), message)
			return nil
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	commitCmd.Flags().StringP("file", "f", "", "Prompt file (YAML or JSON)")
	commitCmd.Flags().String("author", "", "Commit author")
	commitCmd.MarkFlagRequired("message")

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show commit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			maxCount, _ := cmd.Flags().GetInt("max-count")
			oneline, _ := cmd.Flags().GetBool("oneline")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			versions, err := r.Log(maxCount)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Println("No commits yet")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for _, v := range versions {
				if oneline {
					fmt.Printf("%s %s\n", yellow(v.Commit.ShortHash()), v.Commit.Message)
					continue
				}
				fmt.Printf("commit %s\n", yellow(v.Commit.Hash))
				fmt.Printf("Author: %s\n", v.Commit.Author)
				fmt.Printf("Date: %s\n", v.Commit.Timestamp.Format("2006-01-02 15:04:05"))
				if len(v.Commit.Tags) > 0 {
					fmt.Printf("Tags: %s\n", strings.Join(v.Commit.Tags, ", "))
				}
				fmt.Printf("\n    %s\n\n", v.Commit.Message)
			}
			return nil
		},
	}
	logCmd.Flags().IntP("max-count", "n", 0, "Limit number of commits")
	logCmd.Flags().Bool("oneline", false, "Show condensed output")

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show repository status",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(repoPath, repo.WithLogger(logger))
			if err != nil {
				return err
			}
			defer r.Close()

			if !r.Exists() {
				fmt.Printf("%s Not a prompt repository\n", fail("✗"))
				fmt.Println(warn("Run: promptvc init"))
				return nil
			}

			current, err := r.CurrentVersion()
			if err != nil {
				return err
			}
			if current == nil {
				fmt.Println("No commits yet")
				return nil
			}

			fmt.Println("Current version:")
			fmt.Printf("  Commit: %s\n", current.Commit.ShortHash())
			fmt.Printf("  Message: %s\n", current.Commit.Message)
			fmt.Printf("  Author: %s\n", current.Commit.Author)
			fmt.Printf("  Date: %s\n", current.Commit.Timestamp.Format("2006-01-02 15:04:05"))
			if len(current.Commit.Tags) > 0 {
				fmt.Printf("  Tags: %s\n", strings.Join(current.Commit.Tags, ", "))
			}
			return nil
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff <ref1> <ref2>",
		Short: "Show differences between two commits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			summaryOnly, _ := cmd.Flags().GetBool("summary")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.Diff(args[0], args[1])
			if err != nil {
				return err
			}

			if summaryOnly {
				fmt.Println(result.Summary())
				return nil
			}
			printColoredDiff(result.Format(3))
			return nil
		},
	}
	diffCmd.Flags().Bool("summary", false, "Show only summary")

	var checkoutCmd = &cobra.Command{
		Use:   "checkout <ref> [file]",
		Short: "Checkout a specific commit",
		Long: `Checkout a specific commit, moving HEAD to it.

The checked-out prompt is written to FILE (or --output) unless --no-write
is given. The default output file is prompt.yaml.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			noWrite, _ := cmd.Flags().GetBool("no-write")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			version, err := r.Checkout(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s Checked out commit %s\n", success("✓"), version.Commit.ShortHash())
			fmt.Printf("  %s\n", version.Commit.Message)

			if noWrite {
				return nil
			}
			file := output
			if file == "" && len(args) > 1 {
				file = args[1]
			}
			if file == "" {
				file = "prompt.yaml"
			}
			if err := promptfile.Write(file, version.Record); err != nil {
				return err
			}
			fmt.Printf("%s Wrote prompt to %s\n", success("✓"), file)
			return nil
		},
	}
	checkoutCmd.Flags().StringP("output", "o", "", "Write prompt to specific file")
	checkoutCmd.Flags().Bool("no-write", false, "Don't write to file, just move HEAD")

	var tagCmd = &cobra.Command{
		Use:   "tag <name> [ref]",
		Short: "Create a tag for an experiment",
		Long: `Create a tag for an experiment.

REF can be provided as a positional argument or via --commit.
If neither is provided, HEAD is tagged.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			commitOpt, _ := cmd.Flags().GetString("commit")
			metadataStr, _ := cmd.Flags().GetString("metadata")

			ref := commitOpt
			if ref == "" && len(args) > 1 {
				ref = args[1]
			}

			var metadata map[string]any
			if metadataStr != "" {
				if err := json.Unmarshal([]byte(metadataStr), &metadata); err != nil {
					return fmt.Errorf("parsing metadata: %w", err)
				}
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			tag, err := r.Tag(args[0], ref, metadata)
			if err != nil {
				return err
			}

			fmt.Printf("%s Tagged %s as '%s'\n", success("✓"), tag.CommitHash[:7], tag.Name)
			if len(metadata) > 0 {
				pretty, _ := json.MarshalIndent(metadata, "  ", "  ")
				fmt.Printf("  Metadata: %s\n", pretty)
			}
			return nil
		},
	}
	tagCmd.Flags().String("commit", "", "Commit to tag (default: HEAD)")
	tagCmd.Flags().String("metadata", "", "Experiment metadata (JSON string)")

	var tagsCmd = &cobra.Command{
		Use:   "tags",
		Short: "List all tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			tags, err := r.ListTags()
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Println("No tags yet")
				return nil
			}

			sort.Slice(tags, func(i, j int) bool {
				return tags[i].CreatedAt.After(tags[j].CreatedAt)
			})
			for _, t := range tags {
				fmt.Printf("%s -> %s\n", t.Name, t.CommitHash[:7])
				if len(t.Metadata) > 0 {
					pretty, _ := json.MarshalIndent(t.Metadata, "  ", "  ")
					fmt.Printf("  Metadata: %s\n", pretty)
				}
			}
			return nil
		},
	}

	var auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Generate compliance audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			data, err := r.AuditExport(audit.Format(strings.ToLower(format)))
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(data), 0o644); err != nil {
					return fmt.Errorf("writing audit log: %w", err)
				}
				fmt.Printf("%s Exported audit log to %s\n", success("✓"), output)
				return nil
			}
			fmt.Println(data)
			return nil
		},
	}
	auditCmd.Flags().String("format", "json", "Output format (json or csv)")
	auditCmd.Flags().StringP("output", "o", "", "Output file path")

	var createPromptCmd = &cobra.Command{
		Use:   "create-prompt [file]",
		Short: "Create or update a prompt YAML file",
		Long: `Create or update prompt YAML files from flags.

Examples:
  promptvc create-prompt prompts/support-bot.yaml --system "You are helpful"
  promptvc create-prompt my-prompt.yaml --system "You are helpful" --temperature 0.7`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := "prompts/prompt.yaml"
			if len(args) > 0 {
				file = args[0]
			}
			return runCreatePrompt(cmd, file)
		},
	}
	createPromptCmd.Flags().String("system", "", "System message")
	createPromptCmd.Flags().String("user-template", "", "User template message")
	createPromptCmd.Flags().Float64("temperature", 0, "Temperature (0.0-2.0)")
	createPromptCmd.Flags().Int("max-tokens", 0, "Maximum tokens")
	createPromptCmd.Flags().Float64("top-p", 0, "Top-p sampling (0.0-1.0)")
	createPromptCmd.Flags().String("stop-sequences", "", "Stop sequences (comma-separated)")
	createPromptCmd.Flags().Bool("append", false, "Append to existing file instead of creating new")
	createPromptCmd.Flags().Bool("overwrite", false, "Overwrite existing file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(createPromptCmd)
}

func openRepo() (*repo.Repository, error) {
	r, err := repo.Open(repoPath, repo.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if !r.Exists() {
		r.Close()
		return nil, vcerrors.NotInitialized("open")
	}
	return r, nil
}

func runCreatePrompt(cmd *cobra.Command, file string) error {
	data := map[string]any{}

	appendMode, _ := cmd.Flags().GetBool("append")
	overwrite, _ := cmd.Flags().GetBool("overwrite")
	if _, err := os.Stat(file); err == nil {
		switch {
		case appendMode:
			existing, err := promptfile.Load(file)
			if err != nil {
				return err
			}
			data = existing
			fmt.Printf("Appending to existing file: %s\n", file)
		case !overwrite:
			return fmt.Errorf("file %s already exists, use --append or --overwrite", file)
		}
	}

	if v, _ := cmd.Flags().GetString("system"); v != "" {
		data[prompt.FieldSystem] = v
	}
	if v, _ := cmd.Flags().GetString("user-template"); v != "" {
		data[prompt.FieldUserTemplate] = v
	}
	if cmd.Flags().Changed("temperature") {
		v, _ := cmd.Flags().GetFloat64("temperature")
		data[prompt.FieldTemperature] = v
	}
	if cmd.Flags().Changed("max-tokens") {
		v, _ := cmd.Flags().GetInt("max-tokens")
		data[prompt.FieldMaxTokens] = v
	}
	if cmd.Flags().Changed("top-p") {
		v, _ := cmd.Flags().GetFloat64("top-p")
		data[prompt.FieldTopP] = v
	}
	if v, _ := cmd.Flags().GetString("stop-sequences"); v != "" {
		parts := strings.Split(v, ",")
		seqs := make([]string, 0, len(parts))
		for _, p := range parts {
			seqs = append(seqs, strings.TrimSpace(p))
		}
		data[prompt.FieldStopSequences] = seqs
	}

	rec, err := prompt.FromMap(data)
	if err != nil {
		return err
	}
	if !rec.HasContent() {
		return fmt.Errorf("no prompt data provided: use at least --system or --user-template")
	}

	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	if err := promptfile.Write(file, rec); err != nil {
		return err
	}
	fmt.Printf("%s Wrote prompt file %s\n", success("✓"), file)
	return nil
}

func printColoredDiff(text string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		case strings.HasPrefix(line, "~") || strings.HasPrefix(line, "="):
			header.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", fail("✗"), err)
		os.Exit(1)
	}
}
