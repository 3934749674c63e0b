// Command crawler runs one breadth-first crawl from a start URL and prints a
// summary, optionally writing the full report as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/lgraba/crawler/internal/config"
	"github.com/lgraba/crawler/internal/crawler"
	"github.com/lgraba/crawler/pkg/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crawler: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath     = flag.String("config", "", "Path to optional YAML configuration file")
		maxDepth    = flag.Int("max-depth", 1, "Maximum crawl depth (0 means only the start URL)")
		domains     = flag.String("domains", "", "Comma-separated list of allowed domains")
		blacklist   = flag.String("blacklist", "", "Comma-separated extensions (e.g. '.jpg,.png') or path to a file containing them")
		concurrency = flag.Int("concurrency", 10, "Maximum number of concurrent requests")
		timeout     = flag.Duration("timeout", 10*time.Second, "Request timeout")
		userAgent   = flag.String("user-agent", "", "Custom User-Agent string")
		outputJSON  = flag.String("output-json", "", "File path to save the report as JSON")
		noVerifySSL = flag.Bool("no-verify-ssl", false, "Disable TLS certificate verification (use with caution)")
		verbose     = flag.Bool("v", false, "Log at info level")
		veryVerbose = flag.Bool("vv", false, "Log at debug level")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <start-url>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	if flag.NArg() > 1 {
		return fmt.Errorf("expected a single start URL, got %d arguments", flag.NArg())
	}
	if flag.NArg() == 1 {
		cfg.Crawl.StartURL = flag.Arg(0)
	}
	if cfg.Crawl.StartURL == "" {
		flag.Usage()
		return errors.New("a start URL is required")
	}

	// Explicit flags override whatever the config file set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-depth":
			cfg.Crawl.MaxDepth = *maxDepth
		case "domains":
			cfg.Crawl.AllowedDomains = splitCommaList(*domains)
		case "concurrency":
			cfg.Crawl.Concurrency = *concurrency
		case "timeout":
			cfg.Fetch.Timeout = config.DurationFrom(*timeout)
		case "user-agent":
			cfg.Fetch.UserAgent = *userAgent
		case "output-json":
			cfg.Output.JSONPath = *outputJSON
		case "no-verify-ssl":
			cfg.Fetch.VerifySSL = !*noVerifySSL
		}
	})

	if *blacklist != "" {
		extensions, err := config.ParseBlacklistArg(*blacklist)
		if err != nil {
			return err
		}
		cfg.Crawl.BlacklistExtensions = extensions
	}

	switch {
	case *veryVerbose:
		cfg.Logging.Level = "debug"
	case *verbose:
		cfg.Logging.Level = "info"
	}

	engine, err := crawler.NewEngine(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, runErr := engine.Run(ctx)
	printSummary(os.Stdout, report)

	if cfg.Output.JSONPath != "" {
		if err := writeReport(cfg.Output.JSONPath, report); err != nil {
			return err
		}
		fmt.Printf("Report saved to %s\n", cfg.Output.JSONPath)
	}
	return runErr
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}

func printSummary(w *os.File, report *types.Report) {
	line := strings.Repeat("=", 30)
	fmt.Fprintf(w, "\n%s Crawl Summary %s\n", line, line)
	fmt.Fprintf(w, "Start URL:         %s\n", report.StartURL)
	fmt.Fprintf(w, "Max Depth:         %d\n", report.MaxDepth)
	if len(report.AllowedDomains) > 0 {
		fmt.Fprintf(w, "Allowed Domains:   %s\n", strings.Join(report.AllowedDomains, ", "))
	}
	fmt.Fprintf(w, "Duration:          %.2f seconds\n", report.Stats.DurationSeconds)
	fmt.Fprintf(w, "URLs Processed:    %d\n", report.Stats.TotalURLsProcessed)
	fmt.Fprintf(w, "Request Errors:    %d\n", report.Stats.TotalErrorsRequest)
	fmt.Fprintf(w, "Processing Errors: %d\n", report.Stats.TotalErrorsProcessing)

	fmt.Fprintln(w, "\nStatus Code Counts:")
	if len(report.Stats.StatusCodeCounts) == 0 {
		fmt.Fprintln(w, "  None")
	} else {
		codes := make([]int, 0, len(report.Stats.StatusCodeCounts))
		for code := range report.Stats.StatusCodeCounts {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, report.Stats.StatusCodeCounts[code])
		}
	}

	fmt.Fprintln(w, "\nDomain Counts (Top 10):")
	if len(report.Stats.DomainCounts) == 0 {
		fmt.Fprintln(w, "  None")
	} else {
		type domainCount struct {
			domain string
			count  int
		}
		counts := make([]domainCount, 0, len(report.Stats.DomainCounts))
		for domain, n := range report.Stats.DomainCounts {
			counts = append(counts, domainCount{domain, n})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count != counts[j].count {
				return counts[i].count > counts[j].count
			}
			return counts[i].domain < counts[j].domain
		})
		for i, dc := range counts {
			if i == 10 {
				fmt.Fprintln(w, "  ...")
				break
			}
			fmt.Fprintf(w, "  %s: %d\n", dc.domain, dc.count)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 75))
}

func writeReport(path string, report *types.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
