// debatectl drives the adversarial debate pipeline from the command line:
// complexity checks, one-shot and iterative debates, execution gating,
// history queries and the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"dev.helix.debate/internal/analysis"
	"dev.helix.debate/internal/config"
	"dev.helix.debate/internal/engine"
	"dev.helix.debate/internal/gate"
	"dev.helix.debate/internal/history"
	"dev.helix.debate/internal/llm"
	"dev.helix.debate/internal/orchestrator"
	"dev.helix.debate/internal/priority"
	"dev.helix.debate/internal/revision"
	"dev.helix.debate/internal/server"
	"dev.helix.debate/internal/session"
)

const usage = `debatectl - adversarial AI debate pipeline

Usage:
  debatectl check     --request "..." [--files a.go,b.go]
  debatectl debate    --request "..." --file plan.md [--focus security,database] [--pack]
  debatectl analyze   --first a.md --second b.md | --session <id> [--round 1]
  debatectl iterate   --topic "..." --file plan.md [--target 90] [--max 5]
  debatectl status    --session <id> [--override]
  debatectl providers
  debatectl history   [--days 7] [--limit 20]
  debatectl cleanup   [--days 7]
  debatectl serve     [--addr :8085]

Configuration is read from the environment (DEBATE_* variables), optionally
seeded from a .env file in the working directory.
`

var (
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(".env")
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "check":
		err = runCheck(cfg, os.Args[2:])
	case "debate":
		err = runDebate(ctx, cfg, os.Args[2:])
	case "analyze":
		err = runAnalyze(cfg, os.Args[2:])
	case "iterate":
		err = runIterate(ctx, cfg, os.Args[2:])
	case "status":
		err = runStatus(cfg, os.Args[2:])
	case "providers":
		err = runProviders(cfg)
	case "history":
		err = runHistory(cfg, os.Args[2:])
	case "cleanup":
		err = runCleanup(cfg, os.Args[2:])
	case "serve":
		err = runServe(cfg, os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	red.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func runCheck(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	request := fs.String("request", "", "change request to score")
	files := fs.String("files", "", "comma-separated file list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *request == "" {
		return fmt.Errorf("--request is required")
	}

	requirement := gate.CheckDebateRequired(cfg, *request, splitList(*files))
	if requirement.Required {
		yellow.Printf("DEBATE REQUIRED (score %d)\n", requirement.ComplexityScore)
	} else {
		green.Printf("NO DEBATE NEEDED (score %d)\n", requirement.ComplexityScore)
	}
	fmt.Println(requirement.Reason)
	return nil
}

// buildOrchestrator assembles the full debate pipeline from the given
// adapter registry.
func buildOrchestrator(cfg *config.Config, registry *llm.Registry, log *logrus.Logger) (*orchestrator.Orchestrator, error) {
	primary, counter := registry.Pair()
	if primary == nil {
		return nil, fmt.Errorf("no AI adapters available (codex, gemini or copilot CLI required)")
	}

	ocfg := orchestrator.DefaultConfig(cfg.DebateRoot())
	ocfg.EnableHistory = cfg.PersistHistory
	return orchestrator.New(ocfg, primary, counter, log)
}

func runDebate(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("debate", flag.ExitOnError)
	request := fs.String("request", "", "change request to debate")
	file := fs.String("file", "", "plan file under debate")
	focus := fs.String("focus", "", "comma-separated focus areas")
	asJSON := fs.Bool("json", false, "emit the raw result as JSON")
	asPack := fs.Bool("pack", false, "render the full markdown decision pack")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *request == "" || *file == "" {
		return fmt.Errorf("--request and --file are required")
	}

	log := cfg.NewLogger()
	orch, err := buildOrchestrator(cfg, llm.NewDefaultRegistry(log), log)
	if err != nil {
		return err
	}

	result, err := orch.RunDebate(ctx, *request, *file, splitList(*focus))
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(result)
	}
	if *asPack {
		fmt.Println(priority.FormatDecisionPack(priority.PackFromResult(result.DebateResult, result.Stats)))
		return nil
	}

	printConsensus(result.DebateResult.ConsensusScore)
	fmt.Println(result.DebateResult.Interpretation)
	fmt.Println(result.DebateResult.Recommendation)
	fmt.Println()
	fmt.Println(orchestrator.PerformanceReport(result.Stats))
	return nil
}

// runAnalyze compares two proposals directly, without a full debate. The
// proposals come either from two files or from a session's stored round.
func runAnalyze(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	first := fs.String("first", "", "first proposal file")
	second := fs.String("second", "", "second proposal file")
	sessionID := fs.String("session", "", "read both proposals from this session")
	round := fs.Int("round", 1, "session round to compare")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var firstText, secondText string
	switch {
	case *sessionID != "":
		store := session.NewStore(session.Options{
			TempDir:     cfg.EffectiveTempDir(),
			LockTimeout: cfg.LockTimeout,
		})
		var err error
		if firstText, err = store.ReadProposal(*sessionID, "claude", *round); err != nil {
			return err
		}
		if secondText, err = store.ReadProposal(*sessionID, "codex", *round); err != nil {
			return err
		}
	case *first != "" && *second != "":
		a, err := os.ReadFile(*first)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(*second)
		if err != nil {
			return err
		}
		firstText, secondText = string(a), string(b)
	default:
		return fmt.Errorf("either --session or both --first and --second are required")
	}

	analyzer := analysis.NewHybridAnalyzer(
		analysis.NewLLMAnalyzer(analysis.DefaultLLMConfig(), cfg.NewLogger()),
		analysis.NewRuleBasedAnalyzer(),
	)
	verdict := analyzer.Analyze(firstText, secondText)

	if verdict.Sufficient {
		green.Printf("consensus %d/100 (threshold %d, method %s)\n",
			verdict.ConsensusScore, verdict.Threshold, verdict.Method)
	} else {
		yellow.Printf("consensus %d/100 below threshold %d (method %s)\n",
			verdict.ConsensusScore, verdict.Threshold, verdict.Method)
	}
	return printJSON(verdict)
}

func runIterate(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("iterate", flag.ExitOnError)
	topic := fs.String("topic", "", "debate topic")
	file := fs.String("file", "", "plan file to debate and revise")
	focus := fs.String("focus", "", "comma-separated focus areas")
	target := fs.Int("target", 0, "target consensus (default from config)")
	maxIter := fs.Int("max", 0, "maximum iterations (default from config)")
	asJSON := fs.Bool("json", false, "emit the raw result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topic == "" || *file == "" {
		return fmt.Errorf("--topic and --file are required")
	}

	log := cfg.NewLogger()
	registry := llm.NewDefaultRegistry(log)

	orch, err := buildOrchestrator(cfg, registry, log)
	if err != nil {
		return err
	}
	primary, _ := registry.Pair()

	delta, err := revision.NewDeltaTracker(cfg.DebateRoot()+"/delta", log)
	if err != nil {
		return err
	}

	eng := engine.New(orch, revision.NewReviser(primary, log), delta, cfg, log)
	result, err := eng.RunIterativeDebate(ctx, *topic, *file, splitList(*focus), *target, *maxIter)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(result)
	}

	if result.TargetReached {
		green.Printf("TARGET REACHED: %d/100 in %d iteration(s)\n", result.BestConsensus, result.TotalIterations)
	} else {
		yellow.Printf("TARGET MISSED: best %d/100 after %d iteration(s)\n", result.BestConsensus, result.TotalIterations)
	}
	for _, it := range result.Iterations {
		marker := " "
		if it.IsBest {
			marker = "*"
		}
		cyan.Printf("%s iteration %d (%s): %d/100\n", marker, it.Iteration, it.Type, it.ConsensusScore)
	}
	for _, warning := range result.Warnings {
		yellow.Printf("warning: %s\n", warning)
	}
	return nil
}

func runStatus(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	sessionID := fs.String("session", "", "session id to check")
	override := fs.Bool("override", false, "record a user override on the session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID == "" {
		return fmt.Errorf("--session is required")
	}

	store := session.NewStore(session.Options{
		TempDir:     cfg.EffectiveTempDir(),
		LockTimeout: cfg.LockTimeout,
	})
	g := gate.New(cfg, store, cfg.NewLogger())

	if *override {
		if err := g.MarkUserOverride(*sessionID); err != nil {
			return err
		}
		yellow.Printf("user override recorded for session %s\n", *sessionID)
	}

	verdict := g.CheckExecution(*sessionID)
	if verdict.Err != "" {
		return fmt.Errorf("%s", verdict.Err)
	}

	if verdict.CanExecute {
		green.Println("EXECUTION ALLOWED")
		if verdict.UserOverride {
			yellow.Println("(by user override)")
		}
	} else {
		red.Println("EXECUTION BLOCKED")
		if pack := verdict.DecisionPack; pack != nil {
			fmt.Println(pack.Summary)
			if pack.Request != "" {
				fmt.Printf("request: %s\n", pack.Request)
			}
			if pack.MaxRounds > 0 {
				fmt.Printf("round %d of %d\n", pack.CurrentRound, pack.MaxRounds)
			}
		}
	}
	if verdict.ConsensusScore != nil {
		fmt.Printf("consensus: %d/100\n", *verdict.ConsensusScore)
	}
	return nil
}

func runProviders(cfg *config.Config) error {
	registry := llm.NewDefaultRegistry(cfg.NewLogger())
	status := registry.GetStatus()

	for name, s := range status.Providers {
		if s.Available {
			green.Printf("  %-12s available", name)
		} else {
			red.Printf("  %-12s unavailable", name)
		}
		if s.Model != "" {
			fmt.Printf("  model=%s", s.Model)
		}
		if s.Error != "" {
			fmt.Printf("  (%s)", s.Error)
		}
		fmt.Println()
	}
	fmt.Printf("active: %s\n", strings.Join(status.Active, ", "))
	if status.MultiVendor {
		green.Println("multi-vendor debate available")
	} else {
		yellow.Println("single vendor only (dual perspective mode)")
	}
	return nil
}

func runHistory(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	days := fs.Int("days", 7, "lookback window in days")
	limit := fs.Int("limit", 20, "maximum records")
	stats := fs.Bool("stats", false, "print archive statistics instead of records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := history.NewStore(cfg.DebateRoot()+"/history", cfg.NewLogger())
	if err != nil {
		return err
	}

	if *stats {
		statistics, err := store.GetStatistics()
		if err != nil {
			return err
		}
		return printJSON(statistics)
	}

	records, err := store.RecentDebates(*days, *limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no debates recorded")
		return nil
	}
	for _, record := range records {
		printConsensus(record.ConsensusScore)
		fmt.Printf("  %s  %s\n", record.DebateID, record.Request)
	}
	return nil
}

func runCleanup(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	days := fs.Int("days", cfg.CleanupDays, "remove sessions older than this many days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := session.NewStore(session.Options{
		TempDir:     cfg.EffectiveTempDir(),
		LockTimeout: cfg.LockTimeout,
	})
	removed := store.Cleanup(*days)
	fmt.Printf("removed %d stale session(s)\n", removed)
	return nil
}

func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8085", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := cfg.NewLogger()
	registry := llm.NewDefaultRegistry(log)

	var debater server.Debater
	var iterator server.Iterator
	orch, err := buildOrchestrator(cfg, registry, log)
	if err != nil {
		log.WithError(err).Warn("debate endpoints disabled")
	} else {
		debater = orch

		primary, _ := registry.Pair()
		delta, err := revision.NewDeltaTracker(cfg.DebateRoot()+"/delta", log)
		if err != nil {
			return err
		}
		iterator = engine.New(orch, revision.NewReviser(primary, log), delta, cfg, log)
	}

	store, err := history.NewStore(cfg.DebateRoot()+"/history", log)
	if err != nil {
		return err
	}
	sessions := session.NewStore(session.Options{
		TempDir:     cfg.EffectiveTempDir(),
		LockTimeout: cfg.LockTimeout,
	})

	srv := server.New(server.Options{
		Config:   cfg,
		Debater:  debater,
		Iterator: iterator,
		Registry: registry,
		History:  store,
		Gate:     gate.New(cfg, sessions, log),
		Logger:   log,
	})
	return srv.Run(*addr)
}

func printConsensus(score int) {
	switch {
	case score >= 75:
		green.Printf("consensus %d/100", score)
	case score >= 50:
		yellow.Printf("consensus %d/100", score)
	default:
		red.Printf("consensus %d/100", score)
	}
	fmt.Println()
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
