package pipeline

import (
	"context"
	"log/slog"
	"sort"

	"github.com/rmmh/blockmesh/go/render"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
	"github.com/rmmh/blockmesh/go/schematic"
)

// showcaseStates caps how many states of one block are laid out.
const showcaseStates = 256

var (
	multiStateMarker  = schematic.NewBlockState("gold_block", nil)
	singleStateMarker = schematic.NewBlockState("iron_block", nil)
)

// ShowcaseGrid lays out every state of every block with a definition in
// the stack: block i at x = 2i, its states along z with a gap between
// each, standing on a marker row that is gold for blocks with more than
// one state and iron otherwise.
func ShowcaseGrid(stack *rp.Stack) *schematic.Grid {
	blocks := stack.BlockNames()
	sort.Strings(blocks)

	columns := make([][]schematic.BlockState, 0, len(blocks))
	depth := 1
	for _, block := range blocks {
		def, err := stack.BlockStateDefinition(block)
		if err != nil {
			slog.Warn("skipping block", "block", block, "err", err)
			continue
		}
		states := render.EnumerateStates(block, render.StateList(def), showcaseStates)
		columns = append(columns, states)
		depth = max(depth, len(states))
	}

	b := schematic.NewBuilder(max(1, 2*len(columns)-1), 2, 2*depth-1)
	for i, states := range columns {
		marker := singleStateMarker
		if len(states) > 1 {
			marker = multiStateMarker
		}
		for j, st := range states {
			b.Set(2*i, 0, 2*j, marker)
			b.Set(2*i, 1, 2*j, st)
		}
	}
	b.SetMeta(schematic.Metadata{Name: "showcase"})
	return b.Grid()
}

// Showcase writes a bundle of ShowcaseGrid for the configured stack.
func Showcase(ctx context.Context, cfg *Config, output string) (*Result, error) {
	stack, err := OpenStack(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer stack.Close()
	g := ShowcaseGrid(stack)
	slog.Info("laid out showcase", "size", g.Size, "palette", len(g.Palette))
	return meshAndWrite(ctx, cfg, g, stack, output)
}
