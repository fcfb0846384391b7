// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies checked with struct tags, path ids and list query parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"wealthwise/internal/core"
	"wealthwise/internal/cycle"
	"wealthwise/internal/ledger"
)

const (
	maxBodyBytes = 1 << 20

	defaultListLimit = 100
	maxListLimit     = 500
)

// errBadRequest marks malformed requests, answered with 400 rather than 422.
var errBadRequest = errors.New("bad request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Money validates as its cents so tags like gt=0 apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if m, ok := field.Interface().(core.Money); ok {
			return m.Cents
		}
		return nil
	}, core.Money{})

	// Report JSON names in messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads one JSON object into dst and validates it. Syntax errors
// wrap errBadRequest; tag violations come back as a readable message.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must hold a single JSON object", errBadRequest)
	}

	if err := validate.Struct(dst); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Field() + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		parts = append(parts, msg)
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

// writeDecodeError answers a decodeJSON failure.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadRequest) {
		BadRequestError(err.Error()).Write(w)
		return
	}
	UnprocessableEntityError(err.Error()).Write(w)
}

// pathID reads a positive integer mux variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// parseCycleParam reads an optional YYYY-MM query parameter; absent means
// the zero key.
func parseCycleParam(r *http.Request, name string) (cycle.Key, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return cycle.Key{}, nil
	}
	return cycle.Parse(raw)
}

// parseIntParam reads an optional integer query parameter.
func parseIntParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

// parseEntryFilter builds the listing filter from cycle, category, kind, q
// and limit query parameters.
func parseEntryFilter(r *http.Request) (ledger.EntryFilter, error) {
	var f ledger.EntryFilter
	q := r.URL.Query()

	c, err := parseCycleParam(r, "cycle")
	if err != nil {
		return f, err
	}
	f.Cycle = c

	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, fmt.Errorf("invalid category %q", raw)
		}
		f.CategoryID = id
	}

	if raw := strings.TrimSpace(q.Get("kind")); raw != "" {
		k, err := core.ParseKind(raw)
		if err != nil {
			return f, err
		}
		f.Kind = k
	}

	if term := sanitizeInput(q.Get("q")); term != "" {
		f.DescriptionLike = "%" + term + "%"
	}

	limit, err := parseIntParam(r, "limit", defaultListLimit)
	if err != nil {
		return f, err
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	f.Limit = limit
	return f, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
