// Package http provides HTTP server and handler implementations.
//
// This file turns query strings and JSON bodies into validated domain
// values. Every failure wraps a core sentinel so the error mapper can
// answer 400.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdash/internal/core"
)

const maxJSONBody = 1 << 20

// ParseRange reads the optional start and end query parameters.
func ParseRange(query url.Values, loc *time.Location) (core.Range, error) {
	var r core.Range
	var err error
	if r.Start, err = parseOptionalDate(query.Get("start"), loc); err != nil {
		return core.Range{}, fmt.Errorf("start: %w", err)
	}
	if r.End, err = parseOptionalDate(query.Get("end"), loc); err != nil {
		return core.Range{}, fmt.Errorf("end: %w", err)
	}
	if err := r.Validate(); err != nil {
		return core.Range{}, err
	}
	return r, nil
}

func parseOptionalDate(s string, loc *time.Location) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s, loc)
}

// ParseKinds reads a comma separated kind list. Empty input means the
// default order.
func ParseKinds(s string) ([]core.Kind, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var kinds []core.Kind
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k := core.ParseKind(part)
		if !k.IsValid() {
			return nil, fmt.Errorf("%w: unknown kind %q", core.ErrInvalidArgument, part)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// ParseThreshold reads an optional percentage. nil means the configured
// default.
func ParseThreshold(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("%w: threshold %q must be a non-negative number", core.ErrInvalidArgument, s)
	}
	return &d, nil
}

// flexNumber accepts a JSON number or a string holding one, with either
// decimal separator.
type flexNumber struct {
	raw string
	set bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	n.set = true
	if bytes.Equal(b, []byte("null")) {
		n.set = false
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.raw = s
		return nil
	}
	n.raw = string(b)
	return nil
}

func (n flexNumber) decimal() (decimal.Decimal, error) {
	if !n.set {
		return decimal.Zero, fmt.Errorf("%w: missing", core.ErrInvalidAmount)
	}
	d, err := core.ParseAmount(n.raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", core.ErrInvalidAmount, n.raw)
	}
	return d, nil
}

// EntryRequest is the JSON shape of a new ledger entry.
type EntryRequest struct {
	Date        string     `json:"date"`
	Kind        string     `json:"kind"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	Item        string     `json:"item"`
	Description string     `json:"description"`
	Account     string     `json:"account"`
	Amount      flexNumber `json:"amount"`
}

// ToEntry validates the request into a ledger entry.
func (e EntryRequest) ToEntry(loc *time.Location) (core.LedgerEntry, error) {
	date, err := core.ParseDate(e.Date, loc)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	kind := core.ParseKind(e.Kind)
	if !kind.IsValid() {
		return core.LedgerEntry{}, fmt.Errorf("%w: %q", core.ErrInvalidKind, e.Kind)
	}
	amount, err := e.Amount.decimal()
	if err != nil {
		return core.LedgerEntry{}, err
	}
	entry := core.LedgerEntry{
		Date:        date,
		Kind:        kind,
		Category:    sanitizeInput(e.Category),
		Subcategory: sanitizeInput(e.Subcategory),
		Item:        sanitizeInput(e.Item),
		Description: sanitizeInput(e.Description),
		Account:     sanitizeInput(e.Account),
		Amount:      amount.InexactFloat64(),
	}
	if err := entry.Validate(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	return entry, nil
}

// DecodeEntries reads one entry object or an array of them.
func DecodeEntries(r *http.Request, loc *time.Location) ([]core.LedgerEntry, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	var reqs []EntryRequest
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		err = decodeStrict(trimmed, &reqs)
	} else {
		var one EntryRequest
		err = decodeStrict(body, &one)
		reqs = []EntryRequest{one}
	}
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no entries", core.ErrInvalidArgument)
	}

	entries := make([]core.LedgerEntry, len(reqs))
	for i, req := range reqs {
		e, err := req.ToEntry(loc)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries[i] = e
	}
	return entries, nil
}

// DecodeEntry reads exactly one entry object.
func DecodeEntry(r *http.Request, loc *time.Location) (core.LedgerEntry, error) {
	body, err := readBody(r)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	var req EntryRequest
	if err := decodeStrict(body, &req); err != nil {
		return core.LedgerEntry{}, err
	}
	return req.ToEntry(loc)
}

// ParseYearMonth reads the year and month path segments of an index value.
func ParseYearMonth(year, month string) (int, int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: year %q", core.ErrInvalidArgument, year)
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month %q", core.ErrInvalidArgument, month)
	}
	if err := core.ValidateMonth(m); err != nil {
		return 0, 0, err
	}
	return y, m, nil
}

// IndexValueRequest is the JSON shape of an index upsert.
type IndexValueRequest struct {
	Year  int        `json:"year"`
	Month int        `json:"month"`
	Value flexNumber `json:"value"`
}

func DecodeIndexValue(r *http.Request) (core.IndexValue, error) {
	body, err := readBody(r)
	if err != nil {
		return core.IndexValue{}, err
	}
	var req IndexValueRequest
	if err := decodeStrict(body, &req); err != nil {
		return core.IndexValue{}, err
	}
	value, err := req.Value.decimal()
	if err != nil {
		return core.IndexValue{}, fmt.Errorf("%w: %v", core.ErrInvalidIndexValue, err)
	}
	v := core.IndexValue{Year: req.Year, Month: req.Month, Value: value}
	if err := v.Validate(); err != nil {
		return core.IndexValue{}, err
	}
	return v, nil
}

// SyncRequest is the optional body of POST /api/sync.
type SyncRequest struct {
	Target string `json:"target"`
}

func DecodeSyncRequest(r *http.Request) (SyncRequest, error) {
	req := SyncRequest{Target: strings.TrimSpace(r.URL.Query().Get("target"))}
	body, err := readBody(r)
	if err != nil {
		return SyncRequest{}, err
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := decodeStrict(body, &req); err != nil {
			return SyncRequest{}, err
		}
	}
	return req, nil
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", core.ErrInvalidArgument, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON value", core.ErrInvalidArgument)
	}
	return nil
}
