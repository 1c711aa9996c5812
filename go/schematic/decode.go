// Package schematic decodes Litematica and Sponge schematic files into a
// dense block grid.
package schematic

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Extensions accepted as schematic input.
var Extensions = []string{".litematic", ".litematica", ".schematic", ".schem"}

func HasSchematicExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Decode turns schematic bytes into a Grid. Either the whole grid is
// returned or an error; a partially decoded grid is never exposed.
func Decode(data []byte) (*Grid, error) {
	buf, err := decompress(data)
	if err != nil {
		return nil, err
	}
	scan, err := scanRoot(buf)
	if err != nil {
		return nil, err
	}
	switch {
	case scan.isLitematic():
		return decodeLitematic(scan)
	case scan.isSponge():
		return decodeSponge(buf)
	}
	return nil, corrupt(-1, "unrecognized schematic format")
}

func DecodeFile(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	g, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	if g.Meta.Name == "" {
		g.Meta.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return g, nil
}

// decompress inflates gzip input; raw NBT starting with a compound tag
// passes through unchanged.
func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &TruncatedDataError{Offset: 0, Field: "header"}
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, &TruncatedDataError{Offset: 0, Field: "gzip header"}
			}
			return nil, corrupt(0, "bad gzip header: %v", err)
		}
		defer zr.Close()
		buf, err := io.ReadAll(zr)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, &TruncatedDataError{Offset: len(data), Field: "gzip stream"}
			}
			return nil, corrupt(-1, "gzip stream: %v", err)
		}
		return buf, nil
	}
	if data[0] == byte(TagCompound) {
		return data, nil
	}
	return nil, corrupt(0, "unrecognized header byte 0x%02x", data[0])
}
