package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rmmh/blockmesh/go/pipeline"
	"github.com/rmmh/blockmesh/go/schematic"
)

var version = "dev"

// packList collects repeated -t flags, highest priority first.
type packList []string

func (p *packList) String() string { return strings.Join(*p, ",") }

func (p *packList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

type options struct {
	packs       packList
	config      string
	cache       string
	workers     int
	vanilla     string
	prune       bool
	verbose     bool
	showVersion bool
}

func newFlagSet(name string, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Var(&o.packs, "t", "resource pack, jar, directory or definitions file (repeatable, first wins)")
	fs.StringVar(&o.config, "config", "", "YAML or TOML config file")
	fs.StringVar(&o.cache, "cache", "", "directory for the resolved model cache")
	fs.IntVar(&o.workers, "workers", 0, "meshing workers (default one per CPU)")
	fs.StringVar(&o.vanilla, "vanilla", "", "vanilla client version to fetch as the lowest priority pack")
	fs.BoolVar(&o.prune, "prune", false, "skip blocks that cannot be seen from outside")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	fs.BoolVar(&o.showVersion, "version", false, "print the version and exit")
	fs.Usage = func() { usage(fs) }
	return fs
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: blockmesh [flags] <schematic> <output.zip|output.obj|output.json>")
	fmt.Fprintln(out, "       blockmesh concat [flags] <schematic> <outdir>")
	fmt.Fprintln(out, "       blockmesh showcase [flags] <output.zip>")
	fmt.Fprintln(out, "       blockmesh serve -config <cfg.yaml>")
	fs.PrintDefaults()
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// load reads the config file, then applies whichever flags were given.
func (o *options) load() (*pipeline.Config, error) {
	cfg, err := pipeline.LoadConfig(o.config)
	if err != nil {
		return nil, err
	}
	if len(o.packs) > 0 {
		cfg.Packs = o.packs
	}
	if o.cache != "" {
		cfg.CacheDir = o.cache
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.vanilla != "" {
		cfg.VanillaVersion = o.vanilla
	}
	if o.prune {
		cfg.PruneEnclosed = true
	}
	return cfg, nil
}

func checkInput(p string) error {
	st, err := os.Stat(p)
	if err != nil {
		return errors.Wrap(err, "input")
	}
	if st.IsDir() || !schematic.HasSchematicExt(p) {
		return errors.Errorf("%s: input must be one of %s", p, strings.Join(schematic.Extensions, ", "))
	}
	return nil
}

func run(ctx context.Context, args []string) error {
	cmd := "convert"
	if len(args) > 0 {
		switch args[0] {
		case "concat", "showcase", "serve":
			cmd, args = args[0], args[1:]
		}
	}

	o := &options{}
	fs := newFlagSet(cmd, o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if o.showVersion {
		fmt.Println("blockmesh", version)
		return nil
	}
	setupLogging(o.verbose)
	cfg, err := o.load()
	if err != nil {
		return err
	}
	rest := fs.Args()

	switch cmd {
	case "serve":
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		return serve(ctx, cfg)
	case "showcase":
		if len(rest) != 1 {
			usage(fs)
			return errors.New("showcase takes one output path")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		_, err := pipeline.Showcase(ctx, cfg, rest[0])
		return err
	case "concat":
		if len(rest) != 2 {
			usage(fs)
			return errors.New("concat takes a schematic and an output directory")
		}
		if err := checkInput(rest[0]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		_, err := pipeline.Concat(ctx, cfg, rest[0], rest[1])
		return err
	}

	if len(rest) != 2 {
		usage(fs)
		return errors.New("expected a schematic and an output path")
	}
	input, output := rest[0], rest[1]
	if err := checkInput(input); err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".json":
		return pipeline.ConvertJSON(cfg, input, output)
	case ".obj", ".zip":
		if err := cfg.Validate(); err != nil {
			return err
		}
		_, err := pipeline.ConvertOBJ(ctx, cfg, input, output)
		return err
	}
	return errors.Errorf("%s: output must end in .zip, .obj or .json", output)
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("blockmesh failed", "err", err)
		os.Exit(1)
	}
}
