package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/compliancehq/comply-agent/internal/agent"
	"github.com/compliancehq/comply-agent/internal/comply"
	"github.com/compliancehq/comply-agent/internal/config"
	"github.com/compliancehq/comply-agent/internal/evidence"
	"github.com/compliancehq/comply-agent/internal/events"
	"github.com/compliancehq/comply-agent/internal/providers"
	"github.com/compliancehq/comply-agent/internal/risk"
	"github.com/compliancehq/comply-agent/internal/tools"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	debug        bool
	modelFlag    string
	orgFlag      string
	maxTokenFlag int
)

var rootCmd = &cobra.Command{
	Use:     "comply-agent",
	Short:   "Autonomous compliance agent",
	Long:    `comply-agent operates a compliance management platform through an LLM tool-use loop and correlates security evidence into risks and remediation tasks`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("comply-agent %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive compliance session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		return runInteractive(ctx, a)
	},
}

var taskCmd = &cobra.Command{
	Use:   "task <instruction>",
	Short: "Run a single compliance task to completion",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		return printAnswer(a.RunTask(ctx, strings.Join(args, " ")))
	},
}

var setupFrameworkCmd = &cobra.Command{
	Use:   "setup-framework <framework>",
	Short: "Bootstrap a compliance framework with its standard controls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		return printAnswer(a.SetupComplianceFramework(ctx, args[0]))
	},
}

var assessVendorCmd = &cobra.Command{
	Use:   "assess-vendor <name> <url>",
	Short: "Register a vendor and trigger its security assessment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		return printAnswer(a.AssessVendorSecurity(ctx, args[0], args[1]))
	},
}

var riskAssessmentCmd = &cobra.Command{
	Use:   "risk-assessment <context>",
	Short: "Review the risk register and fill gaps",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		return printAnswer(a.GenerateRiskAssessment(ctx, strings.Join(args, " ")))
	},
}

var createDocumentCmd = &cobra.Command{
	Use:   "create-document <title> <type> <requirements>",
	Short: "Draft and store a compliance document",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, _, err := setup(cmd)
		if err != nil {
			return err
		}
		return printAnswer(a.CreateComplianceDocument(ctx, args[0], args[1], args[2]))
	},
}

var (
	correlateSource string
	correlateDryRun bool
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Correlate security evidence into risks and remediation tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if orgFlag != "" {
			cfg.OrganizationID = orgFlag
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		client := comply.NewClient(cfg.ComplyEndpoint, cfg.ComplyAPIKey, cfg.RequestTimeout)
		store := evidence.NewLogReader(cfg.EvidenceLogPath)
		engine := risk.NewEngine(store, client, risk.DefaultConfig(),
			events.LogSink{Level: zerolog.InfoLevel})

		result, err := engine.Run(ctx, risk.RunRequest{
			OrganizationID: cfg.OrganizationID,
			Source:         evidence.Source(correlateSource),
			DryRun:         correlateDryRun,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Risks created:  %d\n", len(result.Risks))
		fmt.Printf("Tasks created:  %d\n", len(result.Tasks))
		fmt.Printf("Skipped:        %d\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Printf("  - %s\n", s)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "override the completion model")
	rootCmd.PersistentFlags().StringVar(&orgFlag, "org", "", "override the organization id")
	rootCmd.PersistentFlags().IntVar(&maxTokenFlag, "max-tokens", 0, "override the completion token cap")
	correlateCmd.Flags().StringVar(&correlateSource, "source", "",
		"only correlate evidence from this source (github, google, aws)")
	correlateCmd.Flags().BoolVar(&correlateDryRun, "dry-run", false,
		"report findings without creating risks or tasks")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(setupFrameworkCmd)
	rootCmd.AddCommand(assessVendorCmd)
	rootCmd.AddCommand(riskAssessmentCmd)
	rootCmd.AddCommand(createDocumentCmd)
	rootCmd.AddCommand(correlateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup builds a fully wired agent session from the environment.
func setup(cmd *cobra.Command) (context.Context, *agent.Agent, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if orgFlag != "" {
		cfg.OrganizationID = orgFlag
	}
	if maxTokenFlag > 0 {
		cfg.MaxTokens = maxTokenFlag
	}

	ctx, cancel := signalContext(cmd.Context())
	cobra.OnFinalize(cancel)

	provider := providers.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.Model, cfg.RequestTimeout)
	client := comply.NewClient(cfg.ComplyEndpoint, cfg.ComplyAPIKey, cfg.RequestTimeout)
	executor := tools.NewExecutor(client)

	a, err := agent.New(provider, executor, agent.Options{
		OrganizationID: cfg.OrganizationID,
		Model:          cfg.Model,
		MaxTokens:      cfg.MaxTokens,
		Events:         events.LogSink{Level: zerolog.DebugLevel},
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, a, cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printAnswer(answer string, err error) error {
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

// runInteractive reads user turns from stdin until EOF or interrupt.
func runInteractive(ctx context.Context, a *agent.Agent) error {
	fmt.Println("comply-agent interactive session. Type 'exit' to quit, 'clear' to reset the conversation.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case line == "clear":
			a.ClearHistory()
			fmt.Println("conversation cleared")
			continue
		}

		answer, err := a.Chat(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("turn failed")
			continue
		}
		fmt.Println(answer)
	}
	return scanner.Err()
}
