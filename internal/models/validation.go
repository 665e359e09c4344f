package models

import "strings"

// FieldError mirrors the shape the browser client already renders.
type FieldError struct {
	Param    string `json:"param"`
	Msg      string `json:"msg"`
	Location string `json:"location"`
}

// ValidationError collects every field problem found in one pass.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Add(param, msg string) {
	e.Fields = append(e.Fields, FieldError{Param: param, Msg: msg, Location: "body"})
}

// Has reports whether param already failed.
func (e *ValidationError) Has(param string) bool {
	for _, f := range e.Fields {
		if f.Param == param {
			return true
		}
	}
	return false
}

// Merge appends the fields of other that are not already present.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for _, f := range other.Fields {
		if !e.Has(f.Param) {
			e.Fields = append(e.Fields, f)
		}
	}
}

// OrNil returns nil when nothing was recorded, so callers can compare the
// result against nil without a typed-nil surprise.
func (e *ValidationError) OrNil() *ValidationError {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Param+": "+f.Msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
