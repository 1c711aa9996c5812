package export

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/rmmh/blockmesh/go/schematic"
)

type jsonState struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

type jsonBlock struct {
	Pos [3]int `json:"pos"`
	jsonState
}

type jsonDocument struct {
	Format      string                 `json:"format"`
	Name        string                 `json:"name"`
	Author      string                 `json:"author"`
	Description string                 `json:"description"`
	DataVersion int                    `json:"data_version"`
	Size        [3]int                 `json:"size"`
	Origin      [3]int                 `json:"origin"`
	Regions     []schematic.RegionInfo `json:"regions,omitempty"`
	Palette     []jsonState            `json:"palette"`
	Blocks      []jsonBlock            `json:"blocks"`
}

// WriteJSON writes the decoded grid: metadata, the palette, and every
// non-air cell in y, z, x order.
func WriteJSON(w io.Writer, g *schematic.Grid) error {
	doc := jsonDocument{
		Format:      g.Meta.Format,
		Name:        g.Meta.Name,
		Author:      g.Meta.Author,
		Description: g.Meta.Description,
		DataVersion: g.Meta.DataVersion,
		Size:        g.Size,
		Origin:      g.Origin,
		Regions:     g.Meta.Regions,
		Palette:     make([]jsonState, len(g.Palette)),
		Blocks:      []jsonBlock{},
	}
	for i, st := range g.Palette {
		doc.Palette[i] = jsonState{Name: st.Name, Properties: st.Properties}
	}
	g.Each(func(x, y, z int, ref uint32) {
		st := g.Palette[ref]
		if st.IsAir() {
			return
		}
		doc.Blocks = append(doc.Blocks, jsonBlock{Pos: [3]int{x, y, z}, jsonState: doc.Palette[ref]})
	})

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return &ExportIOError{Op: "json", Err: err}
	}
	if err := bw.Flush(); err != nil {
		return &ExportIOError{Op: "json", Err: err}
	}
	return nil
}
