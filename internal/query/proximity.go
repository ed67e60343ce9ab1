package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/model"
	"github.com/Adithya-Monish-Kumar-K/qryeval/internal/postings"
	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// proximity is the shared half of Near and Window: both align their
// arguments on common documents and then scan positions within each one.
type proximity struct {
	listCursor
	name     string
	distance int
	args     []ListNode
}

func newProximity(name string, distance int, args []ListNode) (proximity, error) {
	if distance < 0 {
		return proximity{}, fmt.Errorf("%w: %s distance must be >= 0, got %d",
			qerrors.ErrInvalidQuery, name, distance)
	}
	if len(args) == 0 {
		return proximity{}, fmt.Errorf("%w: %s needs at least one argument", qerrors.ErrInvalidQuery, name)
	}
	field := args[0].Field()
	for _, arg := range args[1:] {
		if arg.Field() != field {
			return proximity{}, fmt.Errorf("%w: %s arguments span fields %s and %s",
				qerrors.ErrInvalidQuery, name, field, arg.Field())
		}
	}
	return proximity{
		listCursor: listCursor{field: field},
		name:       name,
		distance:   distance,
		args:       args,
	}, nil
}

func (p *proximity) Distance() int {
	return p.distance
}

func (p *proximity) Args() []ListNode {
	return p.args
}

// build walks the arguments' documents in lockstep and appends a posting
// for every document where scan emits at least one location.
func (p *proximity) build(ctx context.Context, store index.Store, scan func([]*postings.Cursor) []int) error {
	if err := initializeAll(ctx, store, p.args); err != nil {
		return err
	}
	cursors := make([]*postings.Cursor, len(p.args))
	for i, arg := range p.args {
		cursors[i] = arg.cursor()
	}

	list := postings.NewInvertedList(p.String(), p.field)
	for {
		docID, ok := matchAll(model.Model{}, p.args)
		if !ok {
			break
		}
		if locs := scan(cursors); len(locs) > 0 {
			if err := list.Append(docID, locs); err != nil {
				return fmt.Errorf("building %s: %w", p, err)
			}
		}
		p.args[0].AdvancePast(docID)
	}
	p.attach(list)
	return nil
}

func (p *proximity) String() string {
	parts := make([]string, len(p.args))
	for i, arg := range p.args {
		parts[i] = arg.String()
	}
	return fmt.Sprintf("#%s/%d(%s)", p.name, p.distance, strings.Join(parts, " "))
}

// Near matches when its arguments occur in order with each one at most
// distance positions after the previous. It emits the location of the last
// argument of every match.
type Near struct {
	proximity
}

func NewNear(distance int, args ...ListNode) (*Near, error) {
	p, err := newProximity("near", distance, args)
	if err != nil {
		return nil, err
	}
	return &Near{proximity: p}, nil
}

func (n *Near) Initialize(ctx context.Context, store index.Store) error {
	return n.build(ctx, store, n.scan)
}

func (n *Near) scan(cursors []*postings.Cursor) []int {
	var locs []int
	first := cursors[0]
	for first.LocHasMatch() {
		prev := first.Loc()
		matched := true
		exhausted := false
		for _, c := range cursors[1:] {
			c.LocAdvancePast(prev)
			if !c.LocHasMatch() {
				matched, exhausted = false, true
				break
			}
			if c.Loc() > prev+n.distance {
				matched = false
				break
			}
			prev = c.Loc()
		}
		if exhausted {
			break
		}
		if matched {
			locs = append(locs, prev)
			for _, c := range cursors[1:] {
				c.LocAdvance()
			}
		}
		first.LocAdvance()
	}
	return locs
}

// Window matches when all arguments occur, in any order, inside a span
// narrower than distance. It emits the largest location of every match.
type Window struct {
	proximity
}

func NewWindow(distance int, args ...ListNode) (*Window, error) {
	p, err := newProximity("window", distance, args)
	if err != nil {
		return nil, err
	}
	return &Window{proximity: p}, nil
}

func (w *Window) Initialize(ctx context.Context, store index.Store) error {
	return w.build(ctx, store, w.scan)
}

func (w *Window) scan(cursors []*postings.Cursor) []int {
	var locs []int
	for allLocsMatch(cursors) {
		lo, hi := cursors[0].Loc(), cursors[0].Loc()
		for _, c := range cursors[1:] {
			lo = min(lo, c.Loc())
			hi = max(hi, c.Loc())
		}
		if hi-lo < w.distance {
			locs = append(locs, hi)
			for _, c := range cursors {
				c.LocAdvance()
			}
			continue
		}
		for _, c := range cursors {
			if c.Loc() == lo {
				c.LocAdvancePast(hi - w.distance)
			}
		}
	}
	return locs
}

func allLocsMatch(cursors []*postings.Cursor) bool {
	for _, c := range cursors {
		if !c.LocHasMatch() {
			return false
		}
	}
	return true
}
