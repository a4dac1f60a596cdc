// Package search ranks and highlights approximate matches across the
// article collection. It operates on a read-only projection of the
// library and never mutates it.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/glabrego/feedhaven/internal/library"
	"github.com/glabrego/feedhaven/internal/snippet"
)

// Field names a searchable article field.
type Field string

const (
	FieldTitle     Field = "title"
	FieldFeedTitle Field = "feed_title"
	FieldSnippet   Field = "snippet"
	FieldAuthor    Field = "author"
)

// Weighted match contribution per field; title counts most, author
// least. searchFields fixes the accumulation order so a doc's score is
// bit-identical from run to run.
var searchFields = []Field{FieldTitle, FieldFeedTitle, FieldSnippet, FieldAuthor}

var fieldWeights = map[Field]float64{
	FieldTitle:     3.0,
	FieldFeedTitle: 2.0,
	FieldSnippet:   1.5,
	FieldAuthor:    1.0,
}

func primaryField(f Field) bool {
	return f == FieldTitle || f == FieldFeedTitle
}

const snippetRunes = 200

// Doc is the flattened, read-only projection one article presents to
// the engine.
type Doc struct {
	ItemID      int64
	FeedID      int64
	Title       string
	FeedTitle   string
	Snippet     string
	Author      string
	PublishedAt time.Time
	CreatedAt   time.Time
}

func (d Doc) fieldText(f Field) string {
	switch f {
	case FieldTitle:
		return d.Title
	case FieldFeedTitle:
		return d.FeedTitle
	case FieldSnippet:
		return d.Snippet
	default:
		return d.Author
	}
}

func (d Doc) effectiveTime() time.Time {
	if !d.PublishedAt.IsZero() {
		return d.PublishedAt
	}
	return d.CreatedAt
}

// BuildDocs flattens the library's subscriptions into search docs.
func BuildDocs(feeds []*library.Subscription) []Doc {
	var docs []Doc
	for _, feed := range feeds {
		for _, item := range feed.Items {
			docs = append(docs, Doc{
				ItemID:      item.ID,
				FeedID:      feed.ID,
				Title:       item.Title,
				FeedTitle:   feed.DisplayTitle(),
				Snippet:     snippet.Text(item.Content, snippetRunes),
				Author:      item.Author,
				PublishedAt: item.PublishedAt,
				CreatedAt:   item.CreatedAt,
			})
		}
	}
	return docs
}

// Result is one matched article with its relevance score (lower is
// better) and per-field highlight spans. Fields listed in
// MatchedElsewhere matched the query but produced only noise-level
// spans; they should be hinted at, not inline-highlighted.
type Result struct {
	Doc              Doc
	Score            float64
	Highlights       map[Field][]Span
	MatchedElsewhere []Field
}

type Options struct {
	// MinQueryLength gates the engine; shorter queries return an
	// inactive outcome without scanning. Defaults to 2.
	MinQueryLength int
	// MaxResults caps the returned slice. Defaults to 50.
	MaxResults int
	// FilterNoise drops merged highlight spans below a proportional
	// minimum length and demotes fields whose spans all fail.
	FilterNoise bool
}

func (o Options) withDefaults() Options {
	if o.MinQueryLength <= 0 {
		o.MinQueryLength = 2
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 50
	}
	return o
}

// Outcome is the full answer to one query. TotalMatchCount always
// reflects every match even when Results is capped, so callers can
// report "showing top N of M" accurately.
type Outcome struct {
	IsActive        bool
	TotalMatchCount int
	IsCapped        bool
	Results         []Result
}

var matchSlab = util.MakeSlab(100*1024, 2048)

// Search runs an approximate whole-field match of query against every
// doc. Matching tolerates missing characters in the query (the match
// is a subsequence match with proximity scoring); position within the
// field does not matter.
func Search(docs []Doc, query string, opts Options) Outcome {
	opts = opts.withDefaults()

	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < opts.MinQueryLength {
		return Outcome{}
	}

	pattern := []rune(strings.ToLower(trimmed))
	var results []Result

	for _, doc := range docs {
		result, ok := matchDoc(doc, pattern, opts)
		if ok {
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		return results[i].Doc.effectiveTime().After(results[j].Doc.effectiveTime())
	})

	total := len(results)
	capped := total > opts.MaxResults
	if capped {
		results = results[:opts.MaxResults]
	}
	return Outcome{
		IsActive:        true,
		TotalMatchCount: total,
		IsCapped:        capped,
		Results:         results,
	}
}

func matchDoc(doc Doc, pattern []rune, opts Options) (Result, bool) {
	result := Result{Doc: doc, Highlights: make(map[Field][]Span)}
	weighted := 0.0
	matched := false

	for _, field := range searchFields {
		weight := fieldWeights[field]
		text := doc.fieldText(field)
		if text == "" {
			continue
		}
		score, positions := matchField(text, pattern)
		if score <= 0 {
			continue
		}
		matched = true
		weighted += weight * float64(score)

		spans := MergeSpans(positions, 1)
		if opts.FilterNoise {
			minLen := minSpanLength(field, len(pattern))
			spans = FilterSpans(spans, minLen)
			if len(spans) == 0 {
				result.MatchedElsewhere = append(result.MatchedElsewhere, field)
				continue
			}
		}
		result.Highlights[field] = spans
	}

	if !matched {
		return Result{}, false
	}
	// Lower is better: a perfect, heavily weighted match approaches
	// zero, weak matches approach one.
	result.Score = 1.0 / (1.0 + weighted)
	sort.Slice(result.MatchedElsewhere, func(i, j int) bool {
		return result.MatchedElsewhere[i] < result.MatchedElsewhere[j]
	})
	return result, true
}

// matchField runs fzf's V2 matcher over the whole field. Positions
// are rune offsets into the original text.
func matchField(text string, pattern []rune) (int, []int) {
	chars := util.ToChars([]byte(strings.ToLower(text)))
	matchResult, positions := algo.FuzzyMatchV2(false, true, true, &chars, pattern, true, matchSlab)
	if matchResult.Score <= 0 {
		return 0, nil
	}
	if positions == nil {
		return matchResult.Score, nil
	}
	return matchResult.Score, *positions
}

// minSpanLength is the noise threshold for merged spans: roughly 80%
// of the query for the primary fields, a small 2-4 character floor for
// the secondary ones, never below 2.
func minSpanLength(field Field, queryLen int) int {
	if primaryField(field) {
		minLen := (queryLen*4 + 4) / 5
		if minLen < 2 {
			minLen = 2
		}
		return minLen
	}
	minLen := queryLen / 2
	if minLen < 2 {
		minLen = 2
	}
	if minLen > 4 {
		minLen = 4
	}
	return minLen
}
