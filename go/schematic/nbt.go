package schematic

import (
	"encoding/binary"
	"strconv"
)

type TagType int

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

type nbtList struct {
	depth  int
	ty     TagType
	length int
	idx    int
}

// WalkFunc receives every value in document order. path excludes the root
// name; list elements appear as their decimal index. Primitive lists are
// delivered whole with a negated element type. Lists of compounds or
// arrays are announced once as TagList before their elements. value
// aliases the input.
type WalkFunc func(path []string, ty TagType, value []byte)

type nbtReader struct {
	buf []byte
	o   int
}

func (r *nbtReader) take(n int, field string) ([]byte, error) {
	if n < 0 || r.o+n > len(r.buf) {
		return nil, &TruncatedDataError{Offset: r.o, Field: field}
	}
	v := r.buf[r.o : r.o+n]
	r.o += n
	return v, nil
}

func (r *nbtReader) length(width int, field string) (int, error) {
	b, err := r.take(width, field)
	if err != nil {
		return 0, err
	}
	var n int
	if width == 2 {
		n = int(binary.BigEndian.Uint16(b))
	} else {
		n = int(int32(binary.BigEndian.Uint32(b)))
	}
	if n < 0 {
		return 0, corrupt(r.o-width, "negative length %d for %s", n, field)
	}
	return n, nil
}

var primitiveWidth = map[TagType]int{
	TagByte:   1,
	TagShort:  2,
	TagInt:    4,
	TagLong:   8,
	TagFloat:  4,
	TagDouble: 8,
}

// NbtWalk is a stream-oriented zero-copy parser for uncompressed big-endian NBT.
// Reading past the end of buf yields a TruncatedDataError; structurally
// invalid input yields a CorruptContainerError.
func NbtWalk(buf []byte, cb WalkFunc) error {
	r := &nbtReader{buf: buf}
	path := []string{}
	listStack := []nbtList{}
	depth := 0
	started := false
	var ty TagType
	for r.o < len(buf) || (started && depth > 0) {
		if len(listStack) > 0 && listStack[len(listStack)-1].depth == depth {
			lt := &listStack[len(listStack)-1]
			lt.idx++
			if lt.idx > lt.length {
				listStack = listStack[:len(listStack)-1]
				depth--
				continue
			}
			ty = lt.ty
			path = append(path[:depth], strconv.Itoa(lt.idx-1))
		} else {
			tb, err := r.take(1, "tag type")
			if err != nil {
				return err
			}
			ty = TagType(tb[0])
			if ty == TagEnd {
				depth--
				if depth < 0 {
					return corrupt(r.o-1, "unexpected end tag")
				}
				if depth == 0 {
					// root compound closed; trailing bytes are ignored
					return nil
				}
				continue
			}
			if !started && ty != TagCompound {
				return corrupt(0, "root tag is type %d, not a compound", ty)
			}
			started = true
			tagLen, err := r.length(2, "tag name length")
			if err != nil {
				return err
			}
			tag, err := r.take(tagLen, "tag name")
			if err != nil {
				return err
			}
			path = append(path[:depth], string(tag))
		}
		field := joinPath(path)
		rel := path[1:]
		switch ty {
		case TagCompound:
			cb(rel, ty, nil)
			depth++
		case TagByte, TagShort, TagInt, TagLong, TagFloat, TagDouble:
			v, err := r.take(primitiveWidth[ty], field)
			if err != nil {
				return err
			}
			cb(rel, ty, v)
		case TagByteArray, TagIntArray, TagLongArray:
			n, err := r.length(4, field)
			if err != nil {
				return err
			}
			width := map[TagType]int{TagByteArray: 1, TagIntArray: 4, TagLongArray: 8}[ty]
			v, err := r.take(n*width, field)
			if err != nil {
				return err
			}
			cb(rel, ty, v)
		case TagString:
			n, err := r.length(2, field)
			if err != nil {
				return err
			}
			v, err := r.take(n, field)
			if err != nil {
				return err
			}
			cb(rel, ty, v)
		case TagList:
			lb, err := r.take(1, field)
			if err != nil {
				return err
			}
			lty := TagType(lb[0])
			n, err := r.length(4, field)
			if err != nil {
				return err
			}
			switch {
			case n == 0:
				cb(rel, -lty, nil)
			case primitiveWidth[lty] > 0:
				v, err := r.take(n*primitiveWidth[lty], field)
				if err != nil {
					return err
				}
				cb(rel, -lty, v)
			case lty == TagString:
				// delivered whole, as length-prefixed strings
				start := r.o
				for i := 0; i < n; i++ {
					sl, err := r.length(2, field)
					if err != nil {
						return err
					}
					if _, err := r.take(sl, field); err != nil {
						return err
					}
				}
				cb(rel, -lty, buf[start:r.o])
			case lty >= TagByteArray && lty <= TagLongArray:
				cb(rel, TagList, nil)
				depth++
				listStack = append(listStack, nbtList{depth: depth, ty: lty, length: n})
			default:
				return corrupt(r.o-5, "unhandled list element type %d at %s", lty, field)
			}
		default:
			return corrupt(r.o, "unhandled nbt tag type %d at %s", ty, field)
		}
	}
	if !started {
		return &TruncatedDataError{Offset: r.o, Field: "root tag"}
	}
	if depth > 0 {
		return &TruncatedDataError{Offset: r.o, Field: "compound end"}
	}
	return nil
}

func joinPath(path []string) string {
	if len(path) <= 1 {
		return "<root>"
	}
	out := path[1]
	for _, p := range path[2:] {
		out += "." + p
	}
	return out
}

func nbtInt(ty TagType, v []byte) (int, bool) {
	switch ty {
	case TagByte:
		return int(int8(v[0])), true
	case TagShort:
		return int(int16(binary.BigEndian.Uint16(v))), true
	case TagInt:
		return int(int32(binary.BigEndian.Uint32(v))), true
	case TagLong:
		return int(int64(binary.BigEndian.Uint64(v))), true
	}
	return 0, false
}
