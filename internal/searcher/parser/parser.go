// Package parser turns Indri-style structured query strings into query
// operator trees.
//
// Supported operators are #and, #or, #sum, #wand, #wsum, #near/n and
// #window/n. A term may name its field with a suffix ("apple.title");
// otherwise the default field is used. Terms are normalized with the same
// tokenizer the index uses, and stopwords are dropped along with any weight
// attached to them.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/query"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// QueryPlan is a parsed query ready for evaluation.
type QueryPlan struct {
	RawQuery string
	// Root is nil when no term survived normalization.
	Root query.ScoreNode
}

// Empty reports whether the plan has nothing to evaluate.
func (p *QueryPlan) Empty() bool {
	return p.Root == nil
}

// Parser holds the settings shared by every parse.
type Parser struct {
	defaultField string
}

func New(defaultField string) *Parser {
	return &Parser{defaultField: defaultField}
}

// Parse wraps raw in the model's default operator and builds its tree. A
// fresh tree is returned on every call.
func (p *Parser) Parse(raw string, m model.Model) (*QueryPlan, error) {
	plan := &QueryPlan{RawQuery: raw}
	if strings.TrimSpace(raw) == "" {
		return plan, nil
	}
	s := &state{
		tokens:       lex(m.DefaultOperator() + "(" + raw + ")"),
		defaultField: p.defaultField,
	}
	nodes, err := s.parseArg()
	if err != nil {
		return nil, err
	}
	if s.pos != len(s.tokens) {
		return nil, fmt.Errorf("%w: unexpected %q after end of query", qerrors.ErrInvalidQuery, s.tokens[s.pos])
	}
	if len(nodes) == 1 {
		plan.Root = asScore(nodes[0])
	}
	return plan, nil
}

type state struct {
	tokens       []string
	pos          int
	defaultField string
}

func (s *state) peek() string {
	if s.pos < len(s.tokens) {
		return s.tokens[s.pos]
	}
	return ""
}

func (s *state) next() (string, error) {
	if s.pos >= len(s.tokens) {
		return "", fmt.Errorf("%w: unexpected end of query", qerrors.ErrInvalidQuery)
	}
	tok := s.tokens[s.pos]
	s.pos++
	return tok, nil
}

// parseArg parses one argument. A term can expand to several nodes or to
// none when it is a stopword; an operator left without arguments vanishes.
func (s *state) parseArg() ([]query.Node, error) {
	tok, err := s.next()
	if err != nil {
		return nil, err
	}
	switch {
	case tok == "(" || tok == ")":
		return nil, fmt.Errorf("%w: unexpected %q", qerrors.ErrInvalidQuery, tok)
	case strings.HasPrefix(tok, "#"):
		n, err := s.parseOperator(tok)
		if err != nil || n == nil {
			return nil, err
		}
		return []query.Node{n}, nil
	default:
		return s.terms(tok), nil
	}
}

func (s *state) parseOperator(tok string) (query.Node, error) {
	name, distance, err := splitOperator(tok)
	if err != nil {
		return nil, err
	}
	if open, err := s.next(); err != nil || open != "(" {
		return nil, fmt.Errorf("%w: %s must be followed by '('", qerrors.ErrInvalidQuery, tok)
	}

	weightedOp := name == "#wand" || name == "#wsum"
	var args []query.Node
	var weights []float64
	for s.peek() != ")" {
		if s.peek() == "" {
			return nil, fmt.Errorf("%w: missing ')' for %s", qerrors.ErrInvalidQuery, tok)
		}
		var w float64
		if weightedOp {
			wtok, _ := s.next()
			w, err = strconv.ParseFloat(wtok, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects a weight, got %q", qerrors.ErrInvalidQuery, name, wtok)
			}
		}
		nodes, err := s.parseArg()
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			args = append(args, n)
			weights = append(weights, w)
		}
	}
	s.pos++ // ')'

	if len(args) == 0 {
		return nil, nil
	}
	switch name {
	case "#and":
		return query.NewAnd(scoreArgs(args)...), nil
	case "#or":
		return query.NewOr(scoreArgs(args)...), nil
	case "#sum":
		return query.NewSum(scoreArgs(args)...), nil
	case "#wand":
		return query.NewWAnd(scoreArgs(args), weights)
	case "#wsum":
		return query.NewWSum(scoreArgs(args), weights)
	case "#near", "#window":
		lists, err := listArgs(name, args)
		if err != nil {
			return nil, err
		}
		if name == "#near" {
			return query.NewNear(distance, lists...)
		}
		return query.NewWindow(distance, lists...)
	}
	return nil, fmt.Errorf("%w: unknown operator %s", qerrors.ErrInvalidQuery, tok)
}

// terms normalizes a query word, honouring a trailing ".field" suffix.
func (s *state) terms(tok string) []query.Node {
	word, field := tok, s.defaultField
	if i := strings.LastIndexByte(tok, '.'); i > 0 && index.IsField(strings.ToLower(tok[i+1:])) {
		word, field = tok[:i], strings.ToLower(tok[i+1:])
	}
	tokens := tokenizer.Tokenize(word)
	nodes := make([]query.Node, 0, len(tokens))
	for _, t := range tokens {
		nodes = append(nodes, query.NewTerm(t.Term, field))
	}
	return nodes
}

// splitOperator separates "#near/3" into its name and distance.
func splitOperator(tok string) (string, int, error) {
	name := strings.ToLower(tok)
	switch name {
	case "#and", "#or", "#sum", "#wand", "#wsum":
		return name, 0, nil
	}
	base, arg, found := strings.Cut(name, "/")
	if base != "#near" && base != "#window" {
		return "", 0, fmt.Errorf("%w: unknown operator %s", qerrors.ErrInvalidQuery, tok)
	}
	if !found {
		return "", 0, fmt.Errorf("%w: %s needs a distance, as in %s/3", qerrors.ErrInvalidQuery, tok, base)
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("%w: bad distance in %s", qerrors.ErrInvalidQuery, tok)
	}
	return base, n, nil
}

func scoreArgs(args []query.Node) []query.ScoreNode {
	out := make([]query.ScoreNode, len(args))
	for i, a := range args {
		out[i] = asScore(a)
	}
	return out
}

// asScore wraps inverted-list operators in a Score so a score operator can
// combine them.
func asScore(n query.Node) query.ScoreNode {
	switch v := n.(type) {
	case query.ScoreNode:
		return v
	case query.ListNode:
		return query.NewScore(v)
	}
	return nil
}

func listArgs(name string, args []query.Node) ([]query.ListNode, error) {
	out := make([]query.ListNode, len(args))
	for i, a := range args {
		l, ok := a.(query.ListNode)
		if !ok {
			return nil, fmt.Errorf("%w: %s arguments must be terms or proximity operators, got %s",
				qerrors.ErrInvalidQuery, name, a)
		}
		out[i] = l
	}
	return out, nil
}

// lex splits a query into words and single-character parentheses.
func lex(q string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range q {
		switch {
		case r == '(' || r == ')':
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
