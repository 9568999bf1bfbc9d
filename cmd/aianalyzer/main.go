package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/AIAnalyzer/internal/config"
	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/database"
	"github.com/TobiSchelling/AIAnalyzer/internal/forum"
	"github.com/TobiSchelling/AIAnalyzer/internal/ingest"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
	"github.com/TobiSchelling/AIAnalyzer/internal/report"
	"github.com/TobiSchelling/AIAnalyzer/internal/search"
	"github.com/TobiSchelling/AIAnalyzer/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	outFormat  string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "aianalyzer",
	Short:         "Multimodal content analysis",
	Long:          "AIAnalyzer analyzes URLs, images, code, text and forum threads with LLM providers and merges the results into one report.",
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadEnv(""); err != nil {
			return err
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logger.Init(level, cfg.Logging.File); err != nil {
			return err
		}
		if outFormat == "" {
			outFormat = cfg.Output.Format
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&outFormat, "format", "f", "", "Output format: text, markdown, html or json")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(forumCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("aianalyzer", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/aianalyzer/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure providers and API keys (or put keys in a .env file).")
		return nil
	},
}

// --- status command ---

var checkProviders bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show provider configuration and history status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := cfg.Status()

		fmt.Println("Providers:")
		if len(st.Providers) == 0 {
			fmt.Println("  (none)")
		}
		for _, p := range st.Providers {
			mark := "missing key"
			if p.Configured {
				mark = "configured"
			}
			vision := ""
			if p.Vision {
				vision = ", vision"
			}
			fmt.Printf("  %-10s %-7s %-20s %s (%d keys%s)\n", p.Role, p.Kind, p.Model, mark, p.Keys, vision)
		}
		fmt.Printf("\nWeb search: %v\n", st.Search)
		fmt.Printf("Max batch:  %d\n", st.MaxBatch)

		if checkProviders {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			fmt.Println("\nReachability:")
			for _, p := range a.gateway.TextRank() {
				fmt.Printf("  %-20s %v\n", p.Name(), p.IsConfigured())
			}
			_, visionNames := a.gateway.ProviderNames()
			fmt.Printf("  vision rank: %s\n", strings.Join(visionNames, " -> "))
		}

		if !st.SaveHistory {
			fmt.Println("\nHistory: disabled")
			return nil
		}
		db, err := database.Open(cfg.HistoryPath())
		if err != nil {
			return err
		}
		defer db.Close()
		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		fmt.Printf("\nHistory (%s):\n", db.Path())
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Results: %d (%d usable)\n", stats.Results, stats.UsableResults)
		for _, t := range content.Types {
			if n := stats.ByType[string(t)]; n > 0 {
				fmt.Printf("    %s: %d\n", t, n)
			}
		}
		if stats.LastRunAt != "" {
			fmt.Printf("  Last run: %s\n", stats.LastRunAt)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&checkProviders, "check", false, "Contact each text provider")
}

// --- analyze command ---

var (
	urlArgs   []string
	imageArgs []string
	codeArgs  []string
	textArgs  []string
	codeLang  string
	hint      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze URLs, images, code and text in one run",
	Example: `  aianalyzer analyze --url https://go.dev/blog
  aianalyzer analyze --image ./diagram.png --code main.go --lang go`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reqs []content.Request
		for _, u := range urlArgs {
			reqs = append(reqs, content.NewRequest(u, content.URL, hint))
		}
		for _, img := range imageArgs {
			reqs = append(reqs, content.NewRequest(img, content.Image, hint))
		}
		for _, c := range codeArgs {
			code, err := readCode(c)
			if err != nil {
				return err
			}
			reqs = append(reqs, content.NewRequest(code, content.Code, codeLang))
		}
		for _, t := range textArgs {
			reqs = append(reqs, content.NewRequest(t, content.Text, hint))
		}
		if len(reqs) == 0 {
			return errors.New("nothing to analyze; use --url, --image, --code or --text")
		}
		return runAndPrint(reqs, nil)
	},
}

func init() {
	analyzeCmd.Flags().StringArrayVar(&urlArgs, "url", nil, "URL to analyze (repeatable)")
	analyzeCmd.Flags().StringArrayVar(&imageArgs, "image", nil, "Image URL or local file (repeatable)")
	analyzeCmd.Flags().StringArrayVar(&codeArgs, "code", nil, "Code snippet or path to a source file (repeatable)")
	analyzeCmd.Flags().StringArrayVar(&textArgs, "text", nil, "Plain text to analyze (repeatable)")
	analyzeCmd.Flags().StringVar(&codeLang, "lang", "", "Programming language of --code")
	analyzeCmd.Flags().StringVar(&hint, "context", "", "Context hint for URLs, images and text")
}

// readCode returns the file contents when arg names a file, else arg itself.
func readCode(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return arg, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", arg, err)
	}
	return string(data), nil
}

// --- batch and forum commands ---

var batchCmd = &cobra.Command{
	Use:   "batch <requests.json>",
	Short: "Analyze a JSON file of requests (optionally with a forum thread)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := ingest.LoadRequests(args[0])
		if err != nil {
			return err
		}
		return runAndPrint(in.Requests, in.Forum)
	},
}

var forumCmd = &cobra.Command{
	Use:   "forum <thread.json>",
	Short: "Analyze a forum thread export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fd, err := forum.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Thread: %s (%d posts)\n\n", fd.TopicTitle, len(fd.Posts))
		return runAndPrint(nil, fd)
	},
}

// --- feed command ---

var feedDays int

var feedCmd = &cobra.Command{
	Use:   "feed <feed-url>",
	Short: "Analyze the latest items of an RSS or Atom feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		items := min(cfg.Fetch.FeedItems, cfg.Analysis.MaxBatch)
		entries, err := ingest.NewFeedReader(items, feedDays, cfg.Fetch.UserAgent).Read(ctx, args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No feed items in range.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("  - %s (%s)\n", e.Title, e.URL)
		}
		fmt.Println()
		return runAndPrint(ingest.Requests(entries), nil)
	},
}

func init() {
	feedCmd.Flags().IntVar(&feedDays, "days", 7, "Only items published within this many days (0 = all)")
}

// --- search command ---

var (
	searchTopic   string
	searchResults int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a web search",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := search.NewTavilyClient(cfg.Search.APIKey(), cfg.Search.Timeout())
		if !client.IsConfigured() {
			return fmt.Errorf("%w: set %s", search.ErrNoAPIKey, cfg.Search.APIKeyEnv)
		}
		n := searchResults
		if n <= 0 {
			n = cfg.Search.MaxResults
		}

		ctx, cancel := signalContext()
		defer cancel()
		resp, err := client.Search(ctx, &search.Request{
			Query:         strings.Join(args, " "),
			Topic:         searchTopic,
			MaxResults:    n,
			IncludeAnswer: true,
		})
		if err != nil {
			return err
		}
		if outFormat == "json" {
			return printJSON(resp)
		}
		if resp.Answer != "" {
			fmt.Printf("%s\n\n", resp.Answer)
		}
		for i, r := range resp.Results {
			fmt.Printf("%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.URL, content.Truncate(r.Content, 200))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchTopic, "topic", "general", "Search topic: general or news")
	searchCmd.Flags().IntVarP(&searchResults, "max", "n", 0, "Maximum results (default from config)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := server.New(server.Options{
			Runner:  a.pipeline,
			DB:      a.db,
			Status:  cfg.Status,
			Version: version,
		})
		if err != nil {
			return err
		}

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		return server.Serve(ctx, srv, cfg.Addr())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- history commands ---

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.HistoryPath())
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs stored yet.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %d/%d usable  [%s]\n", r.ID, r.CreatedAt, r.SuccessCount, r.ItemCount,
				strings.Join(r.ContentTypes, ", "))
			fmt.Printf("    %s\n", content.Truncate(strings.Join(strings.Fields(r.Summary), " "), 100))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 = all)")
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the report of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.HistoryPath())
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}

		in := server.RunInput(run)
		switch outFormat {
		case "markdown":
			fmt.Println(report.Markdown(in))
		case "html":
			html, err := report.HTML(in)
			if err != nil {
				return err
			}
			fmt.Println(html)
		case "json":
			return printJSON(in)
		default:
			if run.Report != "" {
				fmt.Println(run.Report)
			} else {
				fmt.Println(report.Text(in))
			}
		}
		return nil
	},
}
