package text

import "unicode/utf16"

// Unit selects which of the three position-indexing units (spec.md
// §4.3.1) an offset is expressed in.
type Unit int

const (
	UnitUnicode Unit = iota
	UnitUTF16
	UnitUTF8
)

// ToUnit converts a Unicode-scalar offset (the unit List/Text natively
// index by) into the requested Unit.
//
// This walks the visible rune sequence in O(n); there is no balanced tree
// carrying the three length aggregates per node.
func (t *Text) ToUnit(unicodeOffset int, unit Unit) int {
	if unit == UnitUnicode {
		return unicodeOffset
	}
	vals := t.runes.Values()
	if unicodeOffset > len(vals) {
		unicodeOffset = len(vals)
	}
	n := 0
	for i := 0; i < unicodeOffset; i++ {
		r := vals[i].(rune)
		switch unit {
		case UnitUTF16:
			n += utf16RuneLen(r)
		case UnitUTF8:
			n += utf8RuneLen(r)
		}
	}
	return n
}

// FromUnit converts an offset expressed in unit back to a Unicode-scalar
// offset.
func (t *Text) FromUnit(offset int, unit Unit) int {
	if unit == UnitUnicode {
		return offset
	}
	vals := t.runes.Values()
	n := 0
	for i, v := range vals {
		if n >= offset {
			return i
		}
		r := v.(rune)
		switch unit {
		case UnitUTF16:
			n += utf16RuneLen(r)
		case UnitUTF8:
			n += utf8RuneLen(r)
		}
	}
	return len(vals)
}

func utf16RuneLen(r rune) int {
	return len(utf16.Encode([]rune{r}))
}

func utf8RuneLen(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	default:
		return 4
	}
}
