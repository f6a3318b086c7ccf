package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"github.com/hupe1980/pointcount"
	"github.com/hupe1980/pointcount/geom"
)

// clientError carries a user-facing message together with the sentinel
// that selects its status code.
type clientError struct {
	kind error
	msg  string
}

func (e *clientError) Error() string { return e.msg }

func (e *clientError) Unwrap() error { return e.kind }

func badRequest(format string, args ...any) error {
	return &clientError{kind: pointcount.ErrInvalidQuery, msg: "Bad request. " + fmt.Sprintf(format, args...)}
}

func userNotFound(id any) error {
	return &clientError{kind: pointcount.ErrNotFound, msg: fmt.Sprintf("User %v not found", id)}
}

// queryInt reads an optional integer query argument.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer.", name)
	}
	return v, nil
}

func pathID(r *http.Request) (geom.ID, error) {
	raw := r.PathValue("id")
	v, err := cast.ToUint64E(raw)
	if err != nil || v == 0 {
		return 0, userNotFound(raw)
	}
	return geom.ID(v), nil
}

// decodeBody reads a JSON object. Numbers keep their textual form so that
// cast can convert them without float rounding surprises.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		if err == io.EOF {
			return nil, badRequest("JSON body is required.")
		}
		return nil, badRequest("Invalid JSON body: %v.", err)
	}
	if body == nil {
		return nil, badRequest("JSON object is required.")
	}
	return body, nil
}

func coordinate(body map[string]any, key string) (float64, bool, error) {
	raw, present := body[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil || !geom.Finite(v) {
		return 0, true, badRequest("%s must be a finite number.", key)
	}
	return v, true, nil
}

// countQuery parses R (radius), U (center id) and dist/mode.
func countQuery(r *http.Request) (pointcount.Query, error) {
	args := r.URL.Query()

	rawR := strings.TrimSpace(args.Get("R"))
	if rawR == "" {
		return pointcount.Query{}, badRequest("R argument is required.")
	}
	radius, err := cast.ToFloat64E(rawR)
	if err != nil {
		return pointcount.Query{}, badRequest("R must be a number.")
	}

	rawU := strings.TrimSpace(args.Get("U"))
	if rawU == "" {
		return pointcount.Query{}, badRequest("U argument is required.")
	}
	center, err := cast.ToUint64E(rawU)
	if err != nil || center == 0 {
		return pointcount.Query{}, badRequest("U must be a positive integer.")
	}

	mode := pointcount.ModeRecursive
	if strings.EqualFold(args.Get("dist"), "Y") {
		mode = pointcount.ModeBruteForce
	} else if raw := args.Get("mode"); raw != "" {
		if mode, err = pointcount.ParseMode(raw); err != nil {
			return pointcount.Query{}, err
		}
	}

	return pointcount.NewQuery(geom.ID(center), radius, mode)
}
