package results

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// IDMapper translates between internal docids and external document ids.
// index.Store satisfies it.
type IDMapper interface {
	ExternalID(docID int) (string, error)
	InternalID(externalID string) (int, error)
}

// WriteTREC writes up to limit entries of a sorted list in TREC rank-file
// format. An empty list produces a single placeholder row so that every
// query appears in the run.
func WriteTREC(w io.Writer, qid string, list *List, ids IDMapper, limit int, runID string) error {
	if list == nil || list.Len() == 0 || limit == 0 {
		_, err := fmt.Fprintf(w, "%s Q0 dummy 1 0 %s\n", qid, runID)
		return err
	}
	n := list.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		e := list.At(i)
		ext, err := ids.ExternalID(e.DocID)
		if err != nil {
			return fmt.Errorf("query %s rank %d: %w", qid, i+1, err)
		}
		if _, err := fmt.Fprintf(w, "%s Q0 %s %d %.18f %s\n", qid, ext, i+1, e.Score, runID); err != nil {
			return err
		}
	}
	return nil
}

// ReadTREC parses a TREC rank file into one sorted List per query id.
// Placeholder "dummy" rows are skipped. The order of first appearance of each
// query id is returned alongside the lists.
func ReadTREC(r io.Reader, ids IDMapper) (map[string]*List, []string, error) {
	lists := make(map[string]*List)
	order := make([]string, 0)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 6 {
			return nil, nil, fmt.Errorf("%w: rank file line %d: expected 6 fields, got %d",
				qerrors.ErrInvalidInput, line, len(fields))
		}
		qid, ext := fields[0], fields[2]
		l, ok := lists[qid]
		if !ok {
			l = NewList()
			lists[qid] = l
			order = append(order, qid)
		}
		if ext == "dummy" {
			continue
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: rank file line %d: bad score %q",
				qerrors.ErrInvalidInput, line, fields[4])
		}
		docID, err := ids.InternalID(ext)
		if err != nil {
			return nil, nil, fmt.Errorf("rank file line %d: %w", line, err)
		}
		l.Add(docID, score)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading rank file: %w", err)
	}
	for _, l := range lists {
		l.Sort()
	}
	return lists, order, nil
}
