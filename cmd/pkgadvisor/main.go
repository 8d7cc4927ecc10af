package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/pkgadvisor/pkgadvisor/internal/config"
	"github.com/pkgadvisor/pkgadvisor/internal/llm"
	. "github.com/pkgadvisor/pkgadvisor/internal/logging"
	"github.com/pkgadvisor/pkgadvisor/internal/pkgmgr"
	"github.com/pkgadvisor/pkgadvisor/internal/report"
	"github.com/pkgadvisor/pkgadvisor/internal/types"
)

const version = "0.1.0"

var cli struct {
	Config string `short:"c" help:"Config file path." type:"path"`
	Debug  bool   `short:"d" help:"Enable debug logging."`

	List    listCmd    `cmd:"" help:"List packages with an upgrade available."`
	Analyze analyzeCmd `cmd:"" help:"Analyze upgrade candidates with the configured AI providers."`
	Models  modelsCmd  `cmd:"" help:"Show the cloud gateway model catalog."`
	Version versionCmd `cmd:"" help:"Print the pkgadvisor version."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("pkgadvisor"),
		kong.Description("AI-assisted package upgrade advisor."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pkgadvisor: %v\n", err)
		os.Exit(1)
	}

	level := LevelInfo
	if cli.Debug || cfg.Debug {
		level = LevelDebug
	}
	Init(&Config{Level: level})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(cfg)
	if err := kctx.Run(); err != nil {
		L_error("%v", err)
		os.Exit(1)
	}
}

type versionCmd struct{}

func (v *versionCmd) Run() error {
	fmt.Printf("pkgadvisor %s\n", version)
	return nil
}

type listCmd struct{}

func (l *listCmd) Run(ctx context.Context, cfg *config.Config) error {
	subjects, mgr, err := upgradeCandidates(ctx)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Printf("All %s packages are up to date.\n", mgr.Name())
		return nil
	}
	fmt.Printf("%d upgradable package(s) via %s:\n\n", len(subjects), mgr.Name())
	for _, s := range subjects {
		fmt.Printf("  %-30s %s -> %s\n", s.Name, s.CurrentVersion, s.AvailableVersion)
	}
	return nil
}

type analyzeCmd struct {
	Packages    []string `arg:"" optional:"" help:"Analyze only these packages (default: all upgradable)."`
	Concurrency int      `help:"Parallel analyses (overrides config)."`
	NoReport    bool     `help:"Print recommendations to stdout only, skip the report file."`
}

func (a *analyzeCmd) Run(ctx context.Context, cfg *config.Config) error {
	subjects, mgr, err := upgradeCandidates(ctx)
	if err != nil {
		return err
	}
	if len(a.Packages) > 0 {
		subjects = filterSubjects(subjects, a.Packages)
	}
	if len(subjects) == 0 {
		fmt.Printf("Nothing to analyze: all %s packages are up to date.\n", mgr.Name())
		return nil
	}

	concurrency := cfg.Concurrency
	if a.Concurrency > 0 {
		concurrency = a.Concurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}

	runID := uuid.NewString()[:8]
	L_info("analysis run starting", "run", runID, "packages", len(subjects), "concurrency", concurrency)

	dispatcher := llm.NewDispatcher(cfg.LLM)
	entries := make([]report.Entry, len(subjects))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for i, subject := range subjects {
		wg.Add(1)
		go func(i int, subject types.AnalysisSubject) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			entries[i] = report.Entry{
				Subject: subject,
				Text:    dispatcher.Recommend(ctx, subject),
			}
		}(i, subject)
	}
	wg.Wait()

	for _, e := range entries {
		fmt.Printf("\n=== %s ===\n\n%s\n", e.Subject.Label(), e.Text)
	}

	if a.NoReport {
		return nil
	}
	path, err := report.Write(cfg.ReportDir, runID, entries)
	if err != nil {
		return err
	}
	fmt.Printf("\nReport written to %s\n", path)
	return nil
}

type modelsCmd struct {
	Region  string `help:"Gateway region (overrides config)."`
	Refresh bool   `help:"Force a catalog refresh, ignoring the cached entry."`
}

func (m *modelsCmd) Run(ctx context.Context, cfg *config.Config) error {
	region := cfg.LLM.Bedrock.Region
	if m.Region != "" {
		region = m.Region
	}

	dispatcher := llm.NewDispatcher(cfg.LLM)
	catalog := dispatcher.Bedrock().Catalog()

	if m.Refresh {
		catalog.TextModels(ctx, region, true)
	}
	grouped := catalog.ByVendor(ctx, region)

	vendors := make([]string, 0, len(grouped))
	for v := range grouped {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)

	fmt.Printf("Text models available in %s:\n", region)
	for _, v := range vendors {
		fmt.Printf("\n%s:\n", v)
		for _, model := range grouped[v] {
			streaming := ""
			if model.Streaming {
				streaming = " (streaming)"
			}
			fmt.Printf("  %-50s %s%s\n", model.ID, model.Name, streaming)
		}
	}

	if best, ok := catalog.BestModel(ctx, region, llm.UseCaseQuality); ok {
		fmt.Printf("\nRecommended: %s\n", best.ID)
	}
	return nil
}

// upgradeCandidates detects the package manager and lists its upgradable packages.
func upgradeCandidates(ctx context.Context) ([]types.AnalysisSubject, *pkgmgr.Manager, error) {
	mgr, err := pkgmgr.Detect()
	if err != nil {
		return nil, nil, err
	}
	subjects, err := mgr.ListUpgradable(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing upgradable packages: %w", err)
	}
	return subjects, mgr, nil
}

func filterSubjects(subjects []types.AnalysisSubject, names []string) []types.AnalysisSubject {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []types.AnalysisSubject
	for _, s := range subjects {
		if want[s.Name] || want[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
