// Package parse extracts structured fields from a free-text or JSON
// instruction.
//
// Extraction is best-effort: an ordered list of strategies is tried and the
// first one that yields an identifier wins. Identifiers from different
// strategies are never merged.
package parse

import (
	"regexp"
	"strings"

	"github.com/infrapilot/infrapilot/internal/ir"
)

// Strategy extracts a request from raw text, or reports that it cannot.
type Strategy struct {
	Source ir.Source
	Apply  func(raw string) (*ir.ActionRequest, bool)
}

// Parser runs strategies in priority order.
type Parser struct {
	strategies []Strategy
}

// DefaultStrategies returns the built-in strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Source: ir.SourceStructured, Apply: Structured},
		{Source: ir.SourceField, Apply: Field},
		{Source: ir.SourceVerb, Apply: Verb},
		{Source: ir.SourceFallback, Apply: Fallback},
	}
}

// New returns a parser using the given strategies, or the defaults.
func New(strategies ...Strategy) *Parser {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Parser{strategies: strategies}
}

// Parse returns the first successful extraction. It never fails loudly: when
// no strategy finds an identifier the second return value is false.
func (p *Parser) Parse(raw string) (*ir.ActionRequest, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	object := isObject(raw)
	for _, s := range p.strategies {
		// A decodable object is never re-read as prose.
		if object && s.Source != ir.SourceStructured {
			continue
		}
		req, ok := s.Apply(raw)
		if !ok || req == nil || req.Validate() != nil {
			continue
		}
		req.Raw = raw
		req.Source = s.Source
		return req, true
	}
	return nil, false
}

// ParseOrEmpty is like Parse but always returns a request carrying whatever
// auxiliary fields could be read, so callers can fall back to defaults for
// the identifier.
func (p *Parser) ParseOrEmpty(raw string) *ir.ActionRequest {
	if req, ok := p.Parse(raw); ok {
		return req
	}
	raw = strings.TrimSpace(raw)
	if req, ok := decodeObject(raw); ok {
		req.Raw = raw
		return req
	}
	return &ir.ActionRequest{Raw: raw, Region: extractRegion(raw), Params: extractParams(raw)}
}

const namePattern = `['"]?([A-Za-z0-9][A-Za-z0-9._:/@-]*)`

var (
	regionFieldRe = regexp.MustCompile(`(?i)(?:--)?\bregion\b[\s:="']+([a-z]{2}(?:-gov)?-[a-z]+-\d)`)
	regionBareRe  = regexp.MustCompile(`\b([a-z]{2}(?:-gov)?-(?:north|south|east|west|central|northeast|southeast|northwest|southwest)-\d)\b`)

	nounFieldRe = regexp.MustCompile(`(?i)\b(?:stack|bucket|table|instance|container|volume|image|resource)[-_ ]?(?:name|id)(?:\s*[:=]\s*|\s+)` + namePattern)
	bareFieldRe = regexp.MustCompile(`(?i)(?:^|[\s,{"])(?:name|id|identifier)"?\s*[:=]\s*` + namePattern)

	verbRe = regexp.MustCompile(`(?i)\b(?:delete|remove|destroy|drop|terminate|rm|deploy|create|run|launch|start|stop|inspect|describe)\s+` +
		`(?:(?:the|my|a|an)\s+)?` +
		`(?:(?:cloudformation|cfn|s3|ec2|dynamodb|docker)\s+)?` +
		`(?:(?:stack|bucket|instance|table|container|volume|image)s?\s+)?` +
		`(?:(?:named|called|with\s+name|with\s+id)\s+)?` + namePattern)

	paramRe    = regexp.MustCompile(`(?i)(?:^|[\s,;])([a-z][a-z_-]*)(?:\s*=\s*|\s*:\s+)("[^"]*"|'[^']*'|[^\s,;]+(?:,[^\s,;]+)*)`)
	publishRe  = regexp.MustCompile(`(?:^|\s)(?:-p|--publish)[\s=]+(\S+)`)
	platformRe = regexp.MustCompile(`(?i)\b(?:--)?platform[\s:=]+([a-z0-9]+/[a-z0-9_]+(?:/[a-z0-9]+)?)`)
	imageRe    = regexp.MustCompile(`(?i)(?:\bfrom\s+image\s+|(?:^|\s)--image[\s=]+)['"]?([a-z0-9][\w./:@-]*)`)
)

// Field matches an explicit "field: value" style identifier.
func Field(raw string) (*ir.ActionRequest, bool) {
	for _, re := range []*regexp.Regexp{nounFieldRe, bareFieldRe} {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		id := cleanName(m[1])
		if id == "" || isStopWord(id) {
			continue
		}
		return textRequest(raw, id), true
	}
	return nil, false
}

// Verb matches a verb-object phrase such as "delete stack named demo".
func Verb(raw string) (*ir.ActionRequest, bool) {
	m := verbRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	id := cleanName(m[1])
	if id == "" || isStopWord(id) || isRegion(id) {
		return nil, false
	}
	return textRequest(raw, id), true
}

// Fallback takes the first token that is not a stop word or a region.
func Fallback(raw string) (*ir.ActionRequest, bool) {
	for _, tok := range tokenize(raw) {
		tok = cleanName(tok)
		if tok == "" || strings.HasPrefix(tok, "-") || isStopWord(tok) || isRegion(tok) {
			continue
		}
		return textRequest(raw, tok), true
	}
	return nil, false
}

func textRequest(raw, id string) *ir.ActionRequest {
	return &ir.ActionRequest{
		Identifier: id,
		Region:     extractRegion(raw),
		Params:     extractParams(raw),
	}
}

func extractRegion(raw string) string {
	if m := regionFieldRe.FindStringSubmatch(raw); m != nil {
		return strings.ToLower(m[1])
	}
	if m := regionBareRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func extractParams(raw string) map[string]string {
	params := make(map[string]string)
	for _, m := range paramRe.FindAllStringSubmatch(raw, -1) {
		key := strings.ToLower(strings.ReplaceAll(m[1], "-", "_"))
		params[key] = strings.Trim(m[2], `"'`)
	}

	var ports []string
	for _, m := range publishRe.FindAllStringSubmatch(raw, -1) {
		ports = append(ports, m[1])
	}
	if len(ports) > 0 {
		params["ports"] = strings.Join(ports, ",")
	}
	if m := platformRe.FindStringSubmatch(raw); m != nil {
		params["platform"] = strings.ToLower(m[1])
	}
	if m := imageRe.FindStringSubmatch(raw); m != nil {
		params["image"] = m[1]
	}

	if len(params) == 0 {
		return nil
	}
	return params
}

func tokenize(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '-', r == '_', r == '.', r == ':', r == '/', r == '@':
			return false
		}
		return true
	})
}

func cleanName(s string) string {
	return strings.TrimRight(strings.Trim(s, `"'`), ".,;:/")
}

func isRegion(s string) bool {
	return regionBareRe.MatchString(s) && regionBareRe.FindString(s) == s
}
