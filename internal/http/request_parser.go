// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing request bodies. Write endpoints
// accept JSON from the page scripts and API clients, and form-encoded bodies
// from plain HTML forms.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgerdesk/internal/core"
)

// maxBodyBytes bounds request bodies on write endpoints.
const maxBodyBytes = 1 << 20

// Field messages produced while parsing, before facade validation runs.
const (
	msgTypeInvalid = "Transaction type must be Auto-refill or Push order."
	msgTimeInvalid = "Time must be an ISO-8601 timestamp."
	msgRateInvalid = "Commission rate must be a number."
	msgDateInvalid = "Date must be YYYY-MM-DD."
)

var errEmptyBody = errors.New("empty request body")

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data. Numbers in JSON
// bodies keep their exact text so amounts are not routed through float64.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.err = errEmptyBody
		return p.err
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Has reports whether key was present in the body, even if blank.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
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

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// fieldErrors accumulates parse failures keyed by JSON field name.
type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &core.ValidationError{Fields: f}
}

// with folds the draft's own validation result into f so a single 422
// lists every bad field. Parse messages win when both name the same field.
func (f fieldErrors) with(validationErr error) error {
	if validationErr == nil {
		return f.err()
	}
	ve, ok := core.AsValidationError(validationErr)
	if !ok {
		return validationErr
	}
	for field, msg := range ve.Fields {
		if _, seen := f[field]; !seen {
			f[field] = msg
		}
	}
	return f.err()
}

// retailerDraft reads a retailer from the body. An unparseable pending
// balance is left nil so validation reports it as missing.
func (p *RequestBodyParser) retailerDraft(id string) (core.RetailerDraft, error) {
	d := core.RetailerDraft{
		ID:        id,
		Name:      p.Get("name"),
		PartnerID: p.Get("partnerId"),
	}
	if v := p.Get("pendingBalance"); v != "" {
		if amt, err := core.ParseAmount(v); err == nil {
			d.PendingBalance = &amt
		}
	}
	errs := fieldErrors{}
	if v := p.Get("lastCollectionDate"); v != "" {
		lc, err := core.ParseDate(v)
		if err != nil {
			errs["lastCollectionDate"] = msgDateInvalid
		} else {
			d.LastCollectionDate = &lc
		}
	}
	return d, errs.with(d.Validate())
}

// transactionDraft reads a transaction from the body. Time defaults to now
// and the commission rate to zero when omitted.
func (p *RequestBodyParser) transactionDraft(id string, now time.Time) (core.TransactionDraft, error) {
	d := core.TransactionDraft{
		ID:         id,
		RetailerID: p.Get("retailerId"),
		Time:       now.UTC(),
	}
	errs := fieldErrors{}

	amt, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		errs["amount"] = core.MsgAmountPositive
	}
	d.Amount = amt

	if v := p.Get("commissionRate"); v != "" {
		rate, err := core.ParseAmount(v)
		if err != nil {
			errs["commissionRate"] = msgRateInvalid
		}
		d.CommissionRate = rate
	} else {
		d.CommissionRate = decimal.Zero
	}

	t, err := core.ParseTransactionType(p.Get("type"))
	if err != nil {
		errs["type"] = msgTypeInvalid
	}
	d.Type = t

	if v := p.Get("time"); v != "" {
		ts, err := core.ParseTime(v)
		if err != nil {
			errs["time"] = msgTimeInvalid
		}
		d.Time = ts
	}
	return d, errs.with(d.Validate())
}

// userPatch reads the profile fields present in the body.
func (p *RequestBodyParser) userPatch() core.UserPatch {
	var patch core.UserPatch
	field := func(key string) *string {
		if !p.Has(key) {
			return nil
		}
		v := p.Get(key)
		return &v
	}
	patch.Name = field("name")
	patch.Email = field("email")
	patch.ProfilePictureURL = field("profilePictureUrl")
	patch.CompanyLogoURL = field("companyLogoUrl")
	return patch
}
