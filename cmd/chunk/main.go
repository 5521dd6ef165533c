// Command chunk splits local files or URLs into bounded passages and prints
// them.
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

	"github.com/joho/godotenv"

	"github.com/dgallion1/docchunk/internal/chunker"
	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/fetch"
	"github.com/dgallion1/docchunk/internal/logger"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/tokenizer"
)

type output struct {
	Source string `json:"source"`
	*pipeline.Result
	Batches [][]string `json:"batches,omitempty"`
}

func main() {
	defaults := chunker.DefaultConfig()
	maxWords := flag.Int("max-words", defaults.MaxWords, "word budget per chunk")
	granularity := flag.String("granularity", defaults.Granularity.String(), "linear unit: word, sentence, paragraph or page")
	batch := flag.Int("batch", 0, "group chunks into batches of N (0 disables)")
	greedy := flag.Bool("greedy", true, "merge small adjacent HTML siblings")
	excludeTags := flag.String("exclude-tags", "noscript,script,style", "comma-separated HTML tags to skip")
	excludeClasses := flag.String("exclude-classes", "", "comma-separated CSS classes to skip")
	full := flag.Bool("full", false, "print whole chunks instead of one-line previews")
	asJSON := flag.Bool("json", false, "print results as JSON")
	logLevel := flag.String("log-level", "warn", "log level for diagnostics on stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: chunk [flags] <file|url>...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *batch < 0 {
		fmt.Fprintf(os.Stderr, "chunk: -batch must not be negative\n")
		os.Exit(2)
	}

	// Optional .env supplies fetch and tokenizer settings.
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewWithWriter(os.Stderr, *logLevel)

	g, err := chunker.ParseGranularity(*granularity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chunk: %v\n", err)
		os.Exit(2)
	}

	fetcher := fetch.NewClient(cfg.FetchTimeout, cfg.MaxFetchBytes)
	defer fetcher.Close()
	engine := pipeline.NewEngine(
		parser.NewRegistry(parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}),
		fetcher,
		tokenizer.NewCounter(cfg.TokenEncoding, log),
		nil,
		log,
		chunker.Config{MaxWords: *maxWords, Granularity: g},
		chunker.WithGreedySiblingMerge(*greedy),
		chunker.WithExcludedTags(splitList(*excludeTags)...),
		chunker.WithExcludedClasses(splitList(*excludeClasses)...),
	)
	engine.SetRetryPolicy(pipeline.RetryPolicy{
		Attempts:  cfg.FetchAttempts,
		BaseDelay: cfg.FetchBaseDelay,
		MaxDelay:  cfg.FetchMaxDelay,
	})
	if _, err := engine.Chunker(pipeline.Settings{}); err != nil {
		fmt.Fprintf(os.Stderr, "chunk: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := printer{w: os.Stdout, width: terminalWidth(os.Stdout), full: *full}
	var results []output
	failed := false
	for _, src := range flag.Args() {
		res, err := run(ctx, engine, src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chunk: %s: %v\n", src, err)
			failed = true
			continue
		}
		out := output{Source: src, Result: res}
		if *batch > 0 {
			if out.Batches, err = chunker.Batch(res.Texts(), *batch); err != nil {
				fmt.Fprintf(os.Stderr, "chunk: %s: %v\n", src, err)
				failed = true
				continue
			}
		}
		if *asJSON {
			results = append(results, out)
			continue
		}
		p.print(out)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "chunk: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func run(ctx context.Context, engine *pipeline.Engine, src string) (*pipeline.Result, error) {
	if isURL(src) {
		return engine.RunURL(ctx, src, pipeline.Settings{})
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	return engine.Run(data, src, "", pipeline.Settings{})
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
