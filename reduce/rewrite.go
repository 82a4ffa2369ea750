package reduce

import (
	"fmt"
	"slices"
	"strings"
)

// splice replaces length bytes at offset of a base string with text.
type splice struct {
	offset int
	length int
	text   string
}

// applySplices applies the splices to base in one left to right pass. Offsets refer to the
// original base; the cumulative length delta of earlier splices corrects every later one.
func applySplices(base string, splices []splice) (string, error) {
	sorted := slices.Clone(splices)
	slices.SortStableFunc(sorted, func(a, b splice) int {
		return a.offset - b.offset
	})

	out := []byte(base)
	var delta, prevEnd int
	for _, s := range sorted {
		if s.offset < prevEnd || s.length < 0 || s.offset+s.length > len(base) {
			return "", fmt.Errorf("%w: splice %d+%d overlaps or exceeds %d bytes",
				ErrOffsetResolution, s.offset, s.length, len(base))
		}
		start := s.offset + delta
		out = slices.Replace(out, start, start+s.length, []byte(s.text)...)
		delta += len(s.text) - s.length
		prevEnd = s.offset + s.length
	}
	return string(out), nil
}

// ReplacementText computes the text that replaces the candidate's call: the callee's return
// expression with every parameter reference substituted by the matching argument text.
// Arguments of unreferenced parameters are dropped, and arguments of parameters referenced
// more than once are duplicated verbatim.
func ReplacementText(ts TextSource, c Candidate) (string, error) {
	if c.Unresolved {
		return "", fmt.Errorf("%w: candidate for %s", ErrOffsetResolution, c.Callee)
	}
	base, err := ts.TextRange(c.Return)
	if err != nil {
		return "", err
	}

	splices := make([]splice, 0, len(c.Refs))
	for _, ref := range c.Refs {
		if ref.Param < 0 || ref.Param >= len(c.Args) {
			return "", fmt.Errorf("%w: reference to parameter %d of %d", ErrOffsetResolution, ref.Param, len(c.Args))
		}
		argText, err := ts.TextRange(c.Args[ref.Param])
		if err != nil {
			return "", err
		}
		splices = append(splices, splice{offset: ref.Offset, length: ref.Length, text: argText})
	}
	return applySplices(base, splices)
}

// Rewrite returns a copy of src with the candidate's call range replaced by its replacement
// text. src is never modified.
func Rewrite(src []byte, c Candidate) ([]byte, error) {
	text, err := ReplacementText(Buffer(src), c)
	if err != nil {
		return nil, err
	} else if !c.Call.within(len(src)) {
		return nil, fmt.Errorf("%w: call range %d:%d", ErrOffsetResolution, c.Call.Start, c.Call.End)
	}

	var sb strings.Builder
	sb.Grow(len(src) - c.Call.Len() + len(text))
	sb.Write(src[:c.Call.Start])
	sb.WriteString(text)
	sb.Write(src[c.Call.End:])
	return []byte(sb.String()), nil
}
