// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package memory

import (
	"math"
	"strings"
	"unicode"
)

// BM25 ranking parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Index scores documents against a query. Not safe for concurrent
// use; the owning store serializes access.
type bm25Index struct {
	docs     map[string][]string // doc id -> tokens
	docFreq  map[string]int      // term -> documents containing it
	totalLen int
}

func newBM25Index() *bm25Index {
	return &bm25Index{
		docs:    make(map[string][]string),
		docFreq: make(map[string]int),
	}
}

// tokenize lowercases and splits on non-alphanumeric runes. Slash and
// hyphen separated category paths fall apart into their tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (x *bm25Index) add(id string, tokens []string) {
	x.remove(id)
	x.docs[id] = tokens
	x.totalLen += len(tokens)
	for _, term := range uniqueTerms(tokens) {
		x.docFreq[term]++
	}
}

func (x *bm25Index) remove(id string) {
	tokens, ok := x.docs[id]
	if !ok {
		return
	}
	x.totalLen -= len(tokens)
	for _, term := range uniqueTerms(tokens) {
		if x.docFreq[term] <= 1 {
			delete(x.docFreq, term)
		} else {
			x.docFreq[term]--
		}
	}
	delete(x.docs, id)
}

// score returns the BM25 score of one document for the query tokens.
// Zero means no query term occurs in the document.
func (x *bm25Index) score(id string, query []string) float64 {
	tokens, ok := x.docs[id]
	if !ok || len(x.docs) == 0 {
		return 0
	}
	avgLen := float64(x.totalLen) / float64(len(x.docs))
	if avgLen == 0 {
		return 0
	}

	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}

	var score float64
	n := float64(len(x.docs))
	for _, term := range query {
		tf := float64(counts[term])
		if tf == 0 {
			continue
		}
		df := float64(x.docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(len(tokens))/avgLen))
		score += idf * norm
	}
	return score
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
