package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Query
	}{
		{"empty", "   ", Query{}},
		{"terms lowercased and deduplicated", "Go go Rust", Query{Terms: []string{"go", "rust"}}},
		{"punctuation splits words", "c++/wasm", Query{Terms: []string{"c", "wasm"}}},
		{"phrase", `"hello world" again`, Query{Terms: []string{"again"}, Phrases: [][]string{{"hello", "world"}}}},
		{"unterminated phrase", `go "big data`, Query{Terms: []string{"go"}, Phrases: [][]string{{"big", "data"}}}},
		{"exclusion", "cats -dogs", Query{Terms: []string{"cats"}, Excluded: []string{"dogs"}}},
		{"only exclusion", "-dogs", Query{Excluded: []string{"dogs"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestEmpty(t *testing.T) {
	assert.True(t, Parse("").Empty())
	assert.True(t, Parse("-only -negatives").Empty())
	assert.False(t, Parse(`"a phrase"`).Empty())
}

func TestFTS5(t *testing.T) {
	assert.Equal(t, "", Parse("-x").FTS5())
	assert.Equal(t, `("go" OR "rust")`, Parse("go rust").FTS5())
	assert.Equal(t, `"big data" AND ("big data" OR "spark")`, Parse(`spark "big data"`).FTS5())
	assert.Equal(t, `("cats") NOT "dogs" NOT "birds"`, Parse("cats -dogs -birds").FTS5())
}

func TestFTS5QuotesHostileInput(t *testing.T) {
	got := Parse(`title:"x" OR NEAR(a b) *`).FTS5()
	assert.Equal(t, `"x" AND ("x" OR "title" OR "or" OR "near" OR "a" OR "b")`, got)
}

func TestTSQuery(t *testing.T) {
	assert.Equal(t, "", Parse("").TSQuery())
	assert.Equal(t, "(go | rust)", Parse("go rust").TSQuery())
	assert.Equal(t, "(big <-> data) & ((big <-> data) | spark)", Parse(`spark "big data"`).TSQuery())
	assert.Equal(t, "(cats) & !dogs", Parse("cats -dogs").TSQuery())
}
