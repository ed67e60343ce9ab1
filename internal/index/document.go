package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index/tokenizer"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// Document is one corpus record: an external id and its field texts.
type Document struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// FieldTerms is the tokenized form of one field: term positions and the
// field length, stopwords included.
type FieldTerms struct {
	Terms  map[string][]int
	Length int
}

// Analyze tokenizes every field of doc. Store adapters index the result, so
// all of them see identical terms and lengths.
func Analyze(doc Document) map[string]FieldTerms {
	out := make(map[string]FieldTerms, len(doc.Fields))
	for field, text := range doc.Fields {
		tokens := tokenizer.Tokenize(text)
		terms := make(map[string][]int)
		for _, token := range tokens {
			terms[token.Term] = append(terms[token.Term], token.Position)
		}
		out[field] = FieldTerms{Terms: terms, Length: len(tokens)}
	}
	return out
}

// ReadJSONL decodes one Document per line and passes it to fn, stopping at
// the first error. Blank lines are skipped. It returns the number of
// documents fn accepted.
func ReadJSONL(r io.Reader, fn func(Document) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	count := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return count, fmt.Errorf("%w: corpus line %d: %v", qerrors.ErrInvalidInput, line, err)
		}
		if err := fn(doc); err != nil {
			return count, fmt.Errorf("corpus line %d: %w", line, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading corpus: %w", err)
	}
	return count, nil
}
