// Package fields decomposes the compound text cells of a metadata row into
// structured subfields.
package fields

import "strings"

// Role is the teaching role attached to a teacher entry.
type Role string

const (
	RoleTheory   Role = "theory"
	RolePractice Role = "practice"
)

// RoleRule maps a lexical marker found in a teacher entry to a role. The
// teacher's name is the text before the marker.
type RoleRule struct {
	Marker string `json:"marker" yaml:"marker"`
	Role   Role   `json:"role" yaml:"role"`
}

// DefaultRoleRules are the markers used by the Spanish-language template:
// "Nombre (Titular)" for theory and "Nombre (Jefe de Practica)" for practice.
func DefaultRoleRules() []RoleRule {
	return []RoleRule{
		{Marker: "(Titular", Role: RoleTheory},
		{Marker: "(Jefe", Role: RolePractice},
	}
}

// DefaultDelimiter separates entries in a teacher-list cell.
const DefaultDelimiter = ", "

// TeacherRoleEntry is one parsed entry of a teacher-list cell.
type TeacherRoleEntry struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// SplitGroupType splits a "group type" token on its first space. When the
// token has no space the type is empty.
func SplitGroupType(token string) (group, courseType string) {
	token = strings.TrimSpace(token)
	group, courseType, _ = strings.Cut(token, " ")
	return strings.TrimSpace(group), strings.TrimSpace(courseType)
}

// Parser splits teacher-list cells using a configurable rule table.
type Parser struct {
	rules     []RoleRule
	delimiter string
}

// NewParser returns a Parser. Empty rules or delimiter fall back to the
// defaults.
func NewParser(rules []RoleRule, delimiter string) *Parser {
	if len(rules) == 0 {
		rules = DefaultRoleRules()
	}
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return &Parser{rules: rules, delimiter: delimiter}
}

// Entries parses a teacher-list cell into role-tagged entries, in cell
// order. Entries matching no rule are dropped.
func (p *Parser) Entries(cell string) []TeacherRoleEntry {
	cell = normalizeSpace(cell)
	if cell == "" {
		return nil
	}

	var out []TeacherRoleEntry
	for _, entry := range strings.Split(cell, p.delimiter) {
		for _, rule := range p.rules {
			if rule.Marker == "" {
				continue
			}
			idx := strings.Index(entry, rule.Marker)
			if idx < 0 {
				continue
			}
			name := strings.TrimSpace(entry[:idx])
			if name != "" {
				out = append(out, TeacherRoleEntry{Name: name, Role: rule.Role})
			}
			break
		}
	}
	return out
}

// SplitTeachers returns the theory and practice teacher names of a cell,
// each in cell order.
func (p *Parser) SplitTeachers(cell string) (theory, practice []string) {
	for _, e := range p.Entries(cell) {
		switch e.Role {
		case RoleTheory:
			theory = append(theory, e.Name)
		case RolePractice:
			practice = append(practice, e.Name)
		}
	}
	return theory, practice
}

// SplitTeachers parses a cell with the default rules and delimiter.
func SplitTeachers(cell string) (theory, practice []string) {
	return NewParser(nil, "").SplitTeachers(cell)
}

// normalizeSpace collapses line breaks and repeated blanks left by
// multi-line cells.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
