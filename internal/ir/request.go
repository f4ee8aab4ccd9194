package ir

import (
	"errors"
	"strings"
)

// Source records which parser tier produced a request's identifier.
type Source string

const (
	SourceStructured Source = "structured"
	SourceField      Source = "field"
	SourceVerb       Source = "verb"
	SourceFallback   Source = "fallback"
)

// ErrMissingIdentifier is returned by Validate when no identifier was extracted.
var ErrMissingIdentifier = errors.New("no resource identifier in request")

// ActionRequest is a single parsed instruction.
type ActionRequest struct {
	Raw        string         `json:"raw"`
	Structured map[string]any `json:"structured,omitempty"`

	Identifier string            `json:"identifier"`
	Region     string            `json:"region,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Source     Source            `json:"source"`
}

// Param returns a named auxiliary parameter, matched case-insensitively.
func (r *ActionRequest) Param(name string) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Params[name]; ok {
		return v
	}
	for k, v := range r.Params {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// RegionOr returns the request region, falling back to def.
func (r *ActionRequest) RegionOr(def string) string {
	if r == nil || r.Region == "" {
		return def
	}
	return r.Region
}

// Validate checks the request carries an identifier.
func (r *ActionRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.Identifier) == "" {
		return ErrMissingIdentifier
	}
	return nil
}
