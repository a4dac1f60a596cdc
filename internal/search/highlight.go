package search

import "sort"

// Span is a contiguous highlight range over the original field text,
// expressed as a closed interval of rune offsets.
type Span struct {
	Start int
	End   int
}

// Len is the number of characters the span covers.
func (s Span) Len() int { return s.End - s.Start + 1 }

// MergeSpans turns raw matched character positions into contiguous
// spans, joining two runs when they are separated by at most gap
// characters. This keeps highlighting from fragmenting into
// single-character confetti.
func MergeSpans(positions []int, gap int) []Span {
	if len(positions) == 0 {
		return nil
	}
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)

	spans := []Span{{Start: sorted[0], End: sorted[0]}}
	for _, pos := range sorted[1:] {
		last := &spans[len(spans)-1]
		if pos <= last.End {
			continue
		}
		if pos-last.End <= gap+1 {
			last.End = pos
			continue
		}
		spans = append(spans, Span{Start: pos, End: pos})
	}
	return spans
}

// FilterSpans drops spans shorter than minLen characters.
func FilterSpans(spans []Span, minLen int) []Span {
	var out []Span
	for _, span := range spans {
		if span.Len() >= minLen {
			out = append(out, span)
		}
	}
	return out
}
