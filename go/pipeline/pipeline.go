// Package pipeline wires decoding, resolution, meshing and export into
// whole conversions.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rmmh/blockmesh/go/export"
	"github.com/rmmh/blockmesh/go/mesh"
	"github.com/rmmh/blockmesh/go/render"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
	"github.com/rmmh/blockmesh/go/schematic"
	"github.com/samber/lo"
)

// Result summarizes a finished conversion.
type Result struct {
	Output   string
	Faces    int
	Textures int
	Warnings []render.Warning
}

var warningSummaries = map[render.WarningKind]string{
	render.WarnMissingDefinition: "%d blocks had no blockstate definition",
	render.WarnInvalidAsset:      "%d assets could not be parsed",
	render.WarnNoVariant:         "%d block states used the placeholder model",
	render.WarnMissingModel:      "%d models were missing",
	render.WarnUnresolvedTexture: "%d models referenced unbound texture variables",
	render.WarnMissingTexture:    "%d textures were missing",
	render.WarnUnreadableTexture: "%d textures could not be decoded",
}

func logSummary(w *render.Warnings) {
	summary := w.Summary()
	kinds := lo.Keys(summary)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, kind := range kinds {
		format, ok := warningSummaries[kind]
		if !ok {
			format = "%d " + string(kind) + " warnings"
		}
		slog.Warn(fmt.Sprintf(format, summary[kind]))
	}
}

// OpenStack opens the configured packs, appending the vanilla client jar
// (downloaded if needed) as the lowest priority source.
func OpenStack(ctx context.Context, cfg *Config) (*rp.Stack, error) {
	paths := append([]string(nil), cfg.Packs...)
	if cfg.VanillaVersion != "" {
		jar := filepath.Join(cfg.JarCacheDir, cfg.VanillaVersion+".jar")
		if err := rp.FetchClientJar(ctx, jar, cfg.VanillaVersion); err != nil {
			return nil, errors.Wrap(err, "fetching client jar")
		}
		paths = append(paths, jar)
	}
	if len(paths) == 0 {
		return nil, errors.New("no resource packs given")
	}
	return rp.Build(ctx, paths...)
}

// newResolver builds a resolver for the stack, backed by the on-disk
// cache when one is configured. The returned func releases the cache.
func newResolver(cfg *Config, stack *rp.Stack) (*render.Resolver, func(), error) {
	opts := render.Options{
		MaxParentDepth:    cfg.MaxParentDepth,
		TransparentBlocks: cfg.TransparentBlocks,
	}
	done := func() {}
	if cfg.CacheDir != "" {
		disk, err := render.OpenDiskCache(cfg.CacheDir, opts.CacheKey(stack.Fingerprint()))
		if err != nil {
			return nil, nil, err
		}
		opts.Disk = disk
		done = func() { disk.Close() }
	}
	return render.NewResolver(stack, opts), done, nil
}

func decode(cfg *Config, input string) (*schematic.Grid, error) {
	g, err := schematic.DecodeFile(input)
	if err != nil {
		return nil, err
	}
	if n := schematic.Migrate(g, cfg.TargetDataVersion); n > 0 {
		slog.Info("migrated palette", "renamed", n, "from", g.Meta.DataVersion, "to", cfg.TargetDataVersion)
	}
	slog.Debug("decoded schematic", "file", input, "format", g.Meta.Format,
		"size", g.Size, "palette", len(g.Palette))
	return g, nil
}

// BundlePath is where a bundle for output is written: the same name
// with a .zip extension.
func BundlePath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".zip"
}

func bundleName(output string) string {
	base := filepath.Base(output)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// writeAtomic writes to a temp file next to dest and renames it into
// place, so readers never see a partial file.
func writeAtomic(dest string, write func(io.Writer) error) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &export.ExportIOError{Op: "mkdir", Err: err}
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return &export.ExportIOError{Op: "create", Err: err}
	}
	tmp := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &export.ExportIOError{Op: "close", Err: err}
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return &export.ExportIOError{Op: "rename", Err: err}
	}
	return nil
}

func meshAndWrite(ctx context.Context, cfg *Config, g *schematic.Grid, stack *rp.Stack, output string) (*Result, error) {
	r, done, err := newResolver(cfg, stack)
	if err != nil {
		return nil, err
	}
	defer done()

	m, err := mesh.Build(g, r, mesh.Options{Workers: cfg.Workers, PruneEnclosed: cfg.PruneEnclosed})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := export.NewBundle(bundleName(output), m, stack, r)
	if err != nil {
		return nil, err
	}
	dest := BundlePath(output)
	if err := writeAtomic(dest, func(w io.Writer) error { return export.WriteBundle(w, b) }); err != nil {
		return nil, err
	}
	logSummary(r.Warnings())
	res := &Result{
		Output:   dest,
		Faces:    m.FaceCount(),
		Textures: len(b.Textures),
		Warnings: r.Warnings().List(),
	}
	slog.Info("wrote bundle", "file", dest, "faces", res.Faces, "textures", res.Textures, "warnings", len(res.Warnings))
	return res, nil
}

// ConvertOBJ converts a schematic into a zipped OBJ bundle at
// BundlePath(output).
func ConvertOBJ(ctx context.Context, cfg *Config, input, output string) (*Result, error) {
	g, err := decode(cfg, input)
	if err != nil {
		return nil, err
	}
	stack, err := OpenStack(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer stack.Close()
	return meshAndWrite(ctx, cfg, g, stack, output)
}

// ConvertOBJWithStack is ConvertOBJ against a stack the caller keeps open
// across conversions.
func ConvertOBJWithStack(ctx context.Context, cfg *Config, stack *rp.Stack, input, output string) (*Result, error) {
	g, err := decode(cfg, input)
	if err != nil {
		return nil, err
	}
	return meshAndWrite(ctx, cfg, g, stack, output)
}

// ConvertJSON writes the decoded grid of a schematic as JSON. No resource
// packs are needed.
func ConvertJSON(cfg *Config, input, output string) error {
	g, err := decode(cfg, input)
	if err != nil {
		return err
	}
	return writeAtomic(output, func(w io.Writer) error { return export.WriteJSON(w, g) })
}

// usedBlocks lists the distinct non-air block ids a grid references.
func usedBlocks(g *schematic.Grid) []string {
	used := lo.FilterMap(g.Used(), func(ref uint32, _ int) (string, bool) {
		st := g.Palette[ref]
		return st.Name, !st.IsAir()
	})
	return lo.Uniq(used)
}

// Concat writes the blockstates, models and textures a schematic needs
// into outDir as one self-contained definitions file plus textures.
func Concat(ctx context.Context, cfg *Config, input, outDir string) (*rp.Definitions, error) {
	g, err := decode(cfg, input)
	if err != nil {
		return nil, err
	}
	stack, err := OpenStack(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer stack.Close()

	opts := rp.ConcatOptions{CheckRoundTrip: slog.Default().Enabled(ctx, slog.LevelDebug)}
	defs, err := rp.Concatenate(stack, usedBlocks(g), opts)
	if err != nil {
		return nil, err
	}
	if err := defs.WriteDir(outDir); err != nil {
		return nil, &export.ExportIOError{Op: "concat", Err: err}
	}
	slog.Info("wrote definitions", "dir", outDir, "blockstates", len(defs.BlockStates),
		"models", len(defs.Models), "textures", len(defs.Textures))
	return defs, nil
}
