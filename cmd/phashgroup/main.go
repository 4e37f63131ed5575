// Command phashgroup hashes every image under the given directories (and any
// http(s) URLs) and prints groups of perceptually identical images.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"

	phash "github.com/anatolykoptev/go-phash"
	"github.com/anatolykoptev/go-phash/boltcache"
)

type options struct {
	concurrency int
	resizedSize int
	dctSize     int
	maxDistance int
	provider    string
	cachePath   string
	autoOrient  bool
	additiveDC  bool
	all         bool
	jsonOut     bool
	quiet       bool
	debug       bool
}

func main() {
	var opts options
	pflag.IntVarP(&opts.concurrency, "concurrency", "c", runtime.NumCPU(), "max images hashed at once")
	pflag.IntVar(&opts.resizedSize, "resized-size", phash.DefaultResizedSize, "side of the luminance grid")
	pflag.IntVar(&opts.dctSize, "dct-size", phash.DefaultDCTSize, "side of the retained DCT block")
	pflag.IntVarP(&opts.maxDistance, "max-distance", "d", 0, "merge groups whose tokens differ in at most this many bits")
	pflag.StringVar(&opts.provider, "provider", "draw", "resize provider: draw or resize")
	pflag.StringVar(&opts.cachePath, "cache", "", "bbolt file used to cache tokens between runs")
	pflag.BoolVar(&opts.autoOrient, "auto-orient", false, "apply EXIF orientation before hashing")
	pflag.BoolVar(&opts.additiveDC, "additive-dc", false, "use the legacy additive DC normalisation")
	pflag.BoolVarP(&opts.all, "all", "a", false, "print singleton groups too")
	pflag.BoolVar(&opts.jsonOut, "json", false, "print groups as JSON")
	pflag.BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress bar")
	pflag.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <dir|file|url>...\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, pflag.Args(), os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("phashgroup: failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, args []string, out io.Writer) error {
	cfg := phash.Config{
		ResizedSize: opts.resizedSize,
		DCTSize:     opts.dctSize,
		Concurrency: opts.concurrency,
		AutoOrient:  opts.autoOrient,
		AdditiveDC:  opts.additiveDC,
	}
	switch opts.provider {
	case "draw":
		cfg.Provider = phash.DrawProvider{}
	case "resize":
		cfg.Provider = phash.ResizeProvider{}
	default:
		return fmt.Errorf("unknown provider %q", opts.provider)
	}

	if opts.cachePath != "" {
		cache, err := boltcache.Open(opts.cachePath)
		if err != nil {
			return err
		}
		defer cache.Close()
		cfg.Cache = cache
	}

	// bar is assigned before the batch starts, so workers never see it change.
	var bar *progressbar.ProgressBar
	cfg.OnResult = func(phash.HashResult) {
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	engine, err := phash.NewEngine(cfg)
	if err != nil {
		return err
	}
	sources, err := collectSources(engine, args)
	if err != nil {
		return err
	}
	slog.Debug("phashgroup: sources collected", "count", len(sources))

	if !opts.quiet {
		bar = progressbar.Default(int64(len(sources)), "hashing")
	}

	res, runErr := engine.HashBatch(ctx, sources)
	for _, f := range res.Failures {
		slog.Warn("phashgroup: skipped unreadable image", "id", f.ID, "kind", f.Kind.String(), "error", f.Err.Error())
	}

	clusters := res.Table.Cluster(opts.maxDistance)
	if err := printClusters(out, res.Table, clusters, opts); err != nil {
		return err
	}

	dups := 0
	for _, c := range clusters {
		if len(c.Members) > 1 {
			dups++
		}
	}
	fmt.Fprintf(os.Stderr, "\n%s images hashed, %s failed, %s duplicate groups\n",
		humanize.Comma(int64(res.Table.Members())), humanize.Comma(int64(len(res.Failures))), humanize.Comma(int64(dups)))
	if res.Cancelled {
		fmt.Fprintf(os.Stderr, "cancelled: %s images not hashed\n", humanize.Comma(int64(len(res.Skipped))))
	}
	return runErr
}

// collectSources expands directories into image files and keeps files and
// URLs as given.
func collectSources(engine *phash.Engine, args []string) ([]phash.Source, error) {
	var sources []phash.Source
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			sources = append(sources, engine.URLSource(arg))
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			sources = append(sources, phash.FileSource(arg))
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("phashgroup: walk failed", "path", path, "error", err.Error())
				return nil
			}
			if d.Type().IsRegular() && isImageFile(path) {
				sources = append(sources, phash.FileSource(path))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// isImageFile checks if a file has an extension one of the registered decoders handles.
func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	default:
		return false
	}
}

type jsonGroup struct {
	Token   string   `json:"token"`
	Hex     string   `json:"hex"`
	Members []string `json:"members"`
}

func printClusters(out io.Writer, table *phash.GroupingTable, clusters []phash.Cluster, opts options) error {
	var groups []jsonGroup
	for _, c := range clusters {
		if len(c.Members) < 2 && !opts.all {
			continue
		}
		tok, _ := table.Token(c.Keys[0])
		groups = append(groups, jsonGroup{Token: c.Keys[0], Hex: tok.Hex(), Members: c.Members})
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}
	for _, g := range groups {
		fmt.Fprintf(out, "# %s (%d)\n", g.Token, len(g.Members))
		for _, m := range g.Members {
			fmt.Fprintln(out, m)
		}
		fmt.Fprintln(out)
	}
	return nil
}
