// Package search parses full-text queries and renders them for the
// SQLite FTS5 and PostgreSQL tsquery dialects.
//
// The syntax follows the classic document-store text search: whitespace
// separated terms are OR'ed, "quoted phrases" are required, and a leading
// minus excludes a term.
package search

import (
	"strings"
	"unicode"
)

type Query struct {
	Terms    []string
	Phrases  [][]string
	Excluded []string
}

func Parse(input string) Query {
	var q Query
	seen := map[string]bool{}
	addTerm := func(w string) {
		if !seen[w] {
			seen[w] = true
			q.Terms = append(q.Terms, w)
		}
	}

	rest := input
	for {
		open := strings.IndexByte(rest, '"')
		if open < 0 {
			break
		}
		for _, tok := range strings.Fields(rest[:open]) {
			q.addToken(tok, addTerm)
		}
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '"')
		phrase := rest
		if end >= 0 {
			phrase, rest = rest[:end], rest[end+1:]
		} else {
			rest = ""
		}
		if w := words(phrase); len(w) > 0 {
			q.Phrases = append(q.Phrases, w)
		}
	}
	for _, tok := range strings.Fields(rest) {
		q.addToken(tok, addTerm)
	}
	return q
}

func (q *Query) addToken(tok string, addTerm func(string)) {
	if strings.HasPrefix(tok, "-") {
		q.Excluded = append(q.Excluded, words(tok)...)
		return
	}
	for _, w := range words(tok) {
		addTerm(w)
	}
}

// Empty reports whether the query has nothing to match on.
func (q Query) Empty() bool {
	return len(q.Terms) == 0 && len(q.Phrases) == 0
}

// FTS5 renders the query as an FTS5 MATCH expression. Every operand is a
// double-quoted string of letters and digits, so user input cannot inject
// FTS5 syntax.
func (q Query) FTS5() string {
	if q.Empty() {
		return ""
	}
	var alts []string
	for _, p := range q.Phrases {
		alts = append(alts, quote(strings.Join(p, " ")))
	}
	for _, t := range q.Terms {
		alts = append(alts, quote(t))
	}
	expr := "(" + strings.Join(alts, " OR ") + ")"
	for i := len(q.Phrases) - 1; i >= 0; i-- {
		expr = quote(strings.Join(q.Phrases[i], " ")) + " AND " + expr
	}
	for _, x := range q.Excluded {
		expr += " NOT " + quote(x)
	}
	return expr
}

// TSQuery renders the query for to_tsquery. Operands are plain words so
// the configured dictionary still stems them.
func (q Query) TSQuery() string {
	if q.Empty() {
		return ""
	}
	var alts []string
	var required []string
	for _, p := range q.Phrases {
		ph := "(" + strings.Join(p, " <-> ") + ")"
		alts = append(alts, ph)
		required = append(required, ph)
	}
	alts = append(alts, q.Terms...)
	parts := append(required, "("+strings.Join(alts, " | ")+")")
	for _, x := range q.Excluded {
		parts = append(parts, "!"+x)
	}
	return strings.Join(parts, " & ")
}

func quote(s string) string {
	return `"` + s + `"`
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
