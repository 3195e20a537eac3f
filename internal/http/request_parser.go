// Package http serves the credit ledger's JSON API.
//
// This file implements utilities for parsing and validating HTTP request data:
// bounded JSON object bodies and year/month parameters.

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

	"creditledger/internal/core"
)

// MaxBodyBytes bounds every request body.
const MaxBodyBytes = 64 << 10

var (
	errBodyTooLarge = errors.New("request body too large")
	errBodyNotJSON  = errors.New("request body must be a JSON object")
)

// ParseJSONObject reads the body as a single JSON object. Numbers stay
// json.Number so amounts are never routed through float64.
func ParseJSONObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errBodyNotJSON
	}
	if dec.More() {
		return nil, errBodyNotJSON
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errBodyNotJSON
	}
	return obj, nil
}

// bodyErrorResponse maps a ParseJSONObject failure to a response.
func bodyErrorResponse(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, errBodyNotJSON):
		return BadRequestError("Request body must be a JSON object")
	default:
		return BadRequestError("Could not read request body")
	}
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

var errInvalidMonth = fmt.Errorf("%w: invalid year or month", core.ErrInvalidArgument)

// ParseMonth parses year and month strings, rejecting anything outside 1..12.
func ParseMonth(yearStr, monthStr string) (MonthParams, error) {
	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil {
		return MonthParams{}, errInvalidMonth
	}
	month, err := strconv.Atoi(strings.TrimSpace(monthStr))
	if err != nil {
		return MonthParams{}, errInvalidMonth
	}
	q := core.MonthQuery{Year: year, Month: month}
	if err := q.Validate(); err != nil {
		return MonthParams{}, errInvalidMonth
	}
	return MonthParams{Year: year, Month: month}, nil
}

// ParseMonthQuery reads ?year=&month=. present is false when neither is set.
func ParseMonthQuery(query url.Values) (params MonthParams, present bool, err error) {
	if !query.Has("year") && !query.Has("month") {
		return MonthParams{}, false, nil
	}
	params, err = ParseMonth(query.Get("year"), query.Get("month"))
	return params, true, err
}
