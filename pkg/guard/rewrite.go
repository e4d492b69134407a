package guard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// textEdit replaces the source between Pos and EndPos with NewText.
type textEdit struct {
	Pos     token.Position
	EndPos  token.Position
	NewText string
}

func (r *run) replace(span token.Span, text string) {
	r.edits = append(r.edits, textEdit{Pos: span.Start, EndPos: span.End, NewText: text})
}

// appendLimit adds a LIMIT clause. It goes in front of a trailing OFFSET
// clause, otherwise after the last token; trailing semicolons and comments
// are dropped.
func (r *run) appendLimit(n int) {
	tokens := r.stmt.Script().Tokens
	if off := r.stmt.Root().Offset; off != nil {
		for i := 1; i < len(tokens); i++ {
			if tokens[i].Pos.Offset == off.Pos().Offset && tokens[i-1].Type == token.OFFSET {
				at := tokens[i-1].Pos
				r.edits = append(r.edits, textEdit{Pos: at, EndPos: at, NewText: fmt.Sprintf("LIMIT %d ", n)})
				return
			}
		}
	}

	last := len(tokens) - 1
	for last > 0 && tokens[last].Type == token.SEMICOLON {
		last--
	}
	end := token.Position{Offset: tokens[last].End}
	r.edits = append(r.edits, textEdit{
		Pos:     end,
		EndPos:  token.Position{Offset: len(r.sql)},
		NewText: fmt.Sprintf(" LIMIT %d", n),
	})
}

// applyEdits applies non-overlapping edits to src.
func applyEdits(src string, edits []textEdit) string {
	if len(edits) == 0 {
		return src
	}
	sorted := make([]textEdit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos.Offset < sorted[j].Pos.Offset })

	var b strings.Builder
	prev := 0
	for _, e := range sorted {
		b.WriteString(src[prev:e.Pos.Offset])
		b.WriteString(e.NewText)
		prev = e.EndPos.Offset
	}
	b.WriteString(src[prev:])
	return b.String()
}

// quoteIdent double-quotes an identifier unless it is a plain lower-case
// name that is not a keyword.
func quoteIdent(name string) string {
	plain := name != "" && token.LookupIdent(name) == token.IDENT
	for i, c := range name {
		if !(c == '_' || (c >= 'a' && c <= 'z') || (i > 0 && c >= '0' && c <= '9')) {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
