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

	"github.com/shopspring/decimal"

	"tablero/internal/core"
	"tablero/internal/views"
)

// maxBodyBytes bounds request bodies; an append is a handful of fields.
const maxBodyBytes = 64 << 10

var (
	errMissingFields = errors.New("missing required fields")
	errInvalidBody   = errors.New("invalid request body")
)

// RequestBodyParser reads a JSON object or a form-encoded body once and
// exposes every field as a trimmed string. JSON numbers and booleans keep
// their literal text, so "importe": 12.5 and "importe": "12.5" read alike.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]json.RawMessage
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := bytes.TrimSpace(p.body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if body[0] == '{' {
		p.jsonData = make(map[string]json.RawMessage)
		if err := json.Unmarshal(body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}
	if body[0] == '[' {
		p.err = errors.New("body must be a JSON object")
		return p.err
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue renders a raw JSON value as text. Strings are unquoted,
// numbers and booleans keep their literal form, null and composites are
// empty.
func stringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't', 'f':
		return string(raw)
	case 'n', '{', '[':
		return ""
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	}
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// appendFields are the body keys of POST /sheets/append.
const (
	fieldDate     = "fecha"
	fieldKind     = "tipo"
	fieldCategory = "categoria"
	fieldAmount   = "importe"
	fieldPaid     = "estadoPago"
	fieldNote     = "descripcionAdicional"
)

// ParseEntry builds the entry described by an append body. It returns
// errMissingFields when a required field is absent and a *core.ParseError
// for a value that cannot be read. The entry is not validated.
func ParseEntry(p *RequestBodyParser) (core.Entry, error) {
	rawDate := p.Get(fieldDate)
	rawKind := p.Get(fieldKind)
	category := p.Get(fieldCategory)
	rawAmount := p.Get(fieldAmount)
	if rawDate == "" || rawKind == "" || category == "" || rawAmount == "" {
		return core.Entry{}, errMissingFields
	}

	date, err := core.ParseDate(rawDate)
	if err != nil {
		return core.Entry{}, err
	}
	kind, err := core.ParseKind(rawKind)
	if err != nil {
		return core.Entry{}, err
	}
	amount, err := parseAmountInput(rawAmount)
	if err != nil {
		return core.Entry{}, err
	}

	return core.Entry{
		Date:     date,
		Kind:     kind,
		Category: core.NormalizeCategory(category),
		Amount:   amount,
		Paid:     core.ParsePaidStatus(p.Get(fieldPaid)),
		Note:     p.Get(fieldNote),
	}, nil
}

// parseAmountInput accepts a plain decimal first and falls back to the
// lenient sheet format, e.g. "1.234,56" or "100 €".
func parseAmountInput(raw string) (decimal.Decimal, error) {
	if d, err := decimal.NewFromString(raw); err == nil {
		return d, nil
	}
	f := core.ParseAmount(raw)
	if !core.IsFinite(f) || (f == 0 && !startsWithNumber(raw)) {
		return decimal.Zero, &core.ParseError{Field: "amount", Value: raw, Err: core.ErrInvalidAmount}
	}
	return decimal.NewFromFloat(f), nil
}

// startsWithNumber tells a written zero ("0", "0,00 €") from text that
// ParseAmount could not read at all.
func startsWithNumber(raw string) bool {
	s := strings.TrimLeft(strings.TrimSpace(raw), "+-")
	s = strings.TrimPrefix(s, ",")
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// ParseMonthParam reads the optional month filter ("2006-01").
func ParseMonthParam(query url.Values) (string, error) {
	month := strings.TrimSpace(query.Get("month"))
	if month == "" {
		return "", nil
	}
	if !views.ValidMonth(month) {
		return "", fmt.Errorf("invalid month %q: expected YYYY-MM", month)
	}
	return month, nil
}

// parseIntParam reads an optional integer query parameter.
func parseIntParam(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, v)
	}
	return n, nil
}

// ParseTableQuery reads the filters, sort and page of the transaction table.
// A toggle column is applied to the sort given by sort and dir, the way a
// header click flips the table.
func ParseTableQuery(query url.Values) (views.TableQuery, error) {
	q := views.TableQuery{Search: strings.TrimSpace(query.Get("q"))}

	if raw := strings.TrimSpace(query.Get("kind")); raw != "" && raw != "all" {
		kind, err := core.ParseKind(raw)
		if err != nil {
			return q, err
		}
		q.Kind = kind
	}

	paid, err := views.ParsePaidFilter(query.Get("paid"))
	if err != nil {
		return q, err
	}
	q.Paid = paid

	order, err := views.ParseSort(query.Get("sort"), query.Get("dir"))
	if err != nil {
		return q, err
	}
	if raw := strings.TrimSpace(query.Get("toggle")); raw != "" {
		field, err := views.ParseSortField(raw)
		if err != nil {
			return q, err
		}
		order = views.ToggleSort(order, field)
	}
	q.Sort = order

	if q.Page, err = parseIntParam(query, "page", 1); err != nil {
		return q, err
	}
	return q, nil
}
