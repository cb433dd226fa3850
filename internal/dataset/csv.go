// Package dataset loads customer baskets from CSV and synthesizes them when no
// dataset is supplied.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Basket is one customer's set of item ids, sorted ascending without
// duplicates.
type Basket struct {
	CustomerID string `json:"customer_id"`
	Items      []int  `json:"items"`
}

// DatasetError reports a malformed row.
type DatasetError struct {
	Line int
	Err  error
}

func (e *DatasetError) Error() string {
	return fmt.Sprintf("dataset line %d: %v", e.Line, e.Err)
}

func (e *DatasetError) Unwrap() error {
	return e.Err
}

// LoadFile reads baskets from a CSV file.
func LoadFile(path string) ([]Basket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV reads rows of customer_id,items where items is a set literal such
// as "{1, 5, 23}". "[]", "{}" and "set()" are empty baskets. A header row is
// allowed on the first line.
func LoadCSV(r io.Reader) ([]Basket, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var baskets []Basket
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			return nil, &DatasetError{Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			return nil, &DatasetError{Line: line, Err: fmt.Errorf("want 2 fields, got %d", len(rec))}
		}

		// An unquoted literal is split on its commas; glue it back.
		raw := strings.Join(rec[1:], ",")
		items, err := ParseItemSet(raw)
		if err != nil {
			if line == 1 && !looksLikeSet(raw) {
				continue // header
			}
			return nil, &DatasetError{Line: line, Err: err}
		}
		baskets = append(baskets, Basket{CustomerID: strings.TrimSpace(rec[0]), Items: items})
	}
	return baskets, nil
}

func looksLikeSet(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, "set(")
}

// ParseItemSet parses a set literal of positive item ids.
func ParseItemSet(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	var body string
	switch {
	case s == "set()":
		return []int{}, nil
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"),
		strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		body = s[1 : len(s)-1]
	default:
		return nil, fmt.Errorf("not a set literal: %q", s)
	}

	items := []int{}
	for _, field := range strings.Split(body, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", field, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("item %d: ids start at 1", n)
		}
		items = append(items, n)
	}
	items = lo.Uniq(items)
	slices.Sort(items)
	return items, nil
}

// Items returns the item lists of baskets, in order.
func Items(baskets []Basket) [][]int {
	return lo.Map(baskets, func(b Basket, _ int) []int { return b.Items })
}
