// Command sourcecheck reads every file in a directory the way the server
// loads its legal library and prints how each one was classified.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/zhouzirui/jr-studio/backend/internal/config"
	"github.com/zhouzirui/jr-studio/backend/internal/model/source"
	"github.com/zhouzirui/jr-studio/backend/internal/service/reader"
)

type options struct {
	Dir      string
	MaxBytes int64
	Preview  int
}

type entry struct {
	Name     string
	Category source.Category
	Chars    int
	Preview  string
	Err      error
}

func main() {
	_ = godotenv.Load()

	opts := parseFlags()
	if err := run(context.Background(), opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() options {
	var opts options
	defaultDir := ""
	var defaultMax int64 = reader.DefaultMaxBytes
	if cfg, err := config.Load(); err == nil {
		defaultDir = cfg.Sources.Dir
		defaultMax = cfg.Sources.MaxFileBytes
	}

	flag.StringVar(&opts.Dir, "dir", defaultDir, "Directory of legal sources (defaults to SOURCE_DIR)")
	flag.Int64Var(&opts.MaxBytes, "max-bytes", defaultMax, "Maximum size of a single file")
	flag.IntVar(&opts.Preview, "preview", 60, "Characters of extracted text to show per file")
	flag.Parse()
	return opts
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
	)
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.Dir == "" {
		return fmt.Errorf("no directory given: pass -dir or set SOURCE_DIR")
	}

	files, err := collect(opts.Dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(out, color.YellowString("No source files found in %s", opts.Dir))
		return nil
	}

	r := reader.New(opts.MaxBytes)
	bar := getProgressBar(len(files), "Reading sources")
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		text, err := r.Read(ctx, f)
		entries = append(entries, entry{
			Name:     f.Name,
			Category: source.Classify(f.Name),
			Chars:    len([]rune(text)),
			Preview:  preview(text, opts.Preview),
			Err:      err,
		})
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	printReport(out, entries)
	return nil
}

// collect mirrors Registry.LoadDir: regular, non-hidden files in name order.
func collect(dir string) ([]reader.File, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}
	sort.Slice(dirEntries, func(i, j int) bool { return dirEntries[i].Name() < dirEntries[j].Name() })

	var files []reader.File
	for _, e := range dirEntries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		f, err := reader.FromPath(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

func printReport(out io.Writer, entries []entry) {
	counts := make(map[source.Category]int)
	failed := 0

	for _, e := range entries {
		if e.Err != nil {
			failed++
			fmt.Fprintf(out, "%s %s: %v\n", color.RedString("✗"), e.Name, e.Err)
			continue
		}
		counts[e.Category]++
		fmt.Fprintf(out, "%s %-40s %-9s %6d chars  %s\n",
			color.GreenString("✓"), source.DisplayName(e.Name), categoryLabel(e.Category), e.Chars, color.HiBlackString(e.Preview))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s law=%d circular=%d decree=%d template=%d\n",
		color.CyanString("Loaded %d/%d:", len(entries)-failed, len(entries)),
		counts[source.Law], counts[source.Circular], counts[source.Decree], counts[source.Template])
	if failed > 0 {
		fmt.Fprintln(out, color.RedString("%d file(s) could not be read", failed))
	}
}

func categoryLabel(c source.Category) string {
	switch c {
	case source.Law:
		return color.MagentaString(string(c))
	case source.Circular:
		return color.BlueString(string(c))
	case source.Decree:
		return color.YellowString(string(c))
	default:
		return string(c)
	}
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
