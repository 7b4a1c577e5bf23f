package pipeline

import (
	"fmt"

	"github.com/brunobiangulo/goschedule/fields"
	"github.com/brunobiangulo/goschedule/parser"
)

// Config describes the fixed visual layout of the source documents.
type Config struct {
	// Regions, in points from the page's top-left corner.
	ScheduleArea      parser.Region `json:"schedule_area" yaml:"schedule_area"`
	DataAreaPrimary   parser.Region `json:"data_area_primary" yaml:"data_area_primary"`
	DataAreaAlternate parser.Region `json:"data_area_alternate" yaml:"data_area_alternate"`

	ScheduleMode parser.Mode `json:"schedule_mode" yaml:"schedule_mode"`
	DataMode     parser.Mode `json:"data_mode" yaml:"data_mode"`

	// Sentinel is the text of the first cell of every schedule grid.
	Sentinel string `json:"sentinel" yaml:"sentinel"`
	// SeparatorColumns are the raw grid columns removed from every schedule.
	SeparatorColumns []int `json:"separator_columns" yaml:"separator_columns"`

	// HeaderRows is the number of leading metadata rows dropped.
	HeaderRows int     `json:"header_rows" yaml:"header_rows"`
	Columns    Columns `json:"columns" yaml:"columns"`

	TeacherDelimiter string            `json:"teacher_delimiter" yaml:"teacher_delimiter"`
	RoleRules        []fields.RoleRule `json:"role_rules" yaml:"role_rules"`

	// Concurrency bounds parallel per-page schedule extraction (1 = serial).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// Columns locates the metadata fields after header and empty-column removal.
type Columns struct {
	Course    int `json:"course" yaml:"course"`
	GroupType int `json:"group_type" yaml:"group_type"`
	Teachers  int `json:"teachers" yaml:"teachers"`
}

// DefaultConfig returns the layout of the Spanish-language term schedules:
// a ruled weekly grid in the upper band of a landscape page and a
// whitespace-aligned group table below it, or alone on a following page
// when it does not fit.
func DefaultConfig() Config {
	return Config{
		ScheduleArea:      parser.Region{Top: 6.833, Left: 70.959, Bottom: 424.179, Right: 824.706},
		DataAreaPrimary:   parser.Region{Top: 421.551, Left: 7.884, Bottom: 582.393, Right: 808.937},
		DataAreaAlternate: parser.Region{Top: 5.256, Left: 7.884, Bottom: 404.731, Right: 808.937},
		ScheduleMode:      parser.ModeGrid,
		DataMode:          parser.ModeStream,
		Sentinel:          "LUNES",
		SeparatorColumns:  []int{1, 3, 5, 7, 9, 11},
		HeaderRows:        1,
		Columns:           Columns{Course: 0, GroupType: 1, Teachers: 4},
		TeacherDelimiter:  fields.DefaultDelimiter,
		RoleRules:         fields.DefaultRoleRules(),
		Concurrency:       1,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	for name, r := range map[string]parser.Region{
		"schedule_area":       c.ScheduleArea,
		"data_area_primary":   c.DataAreaPrimary,
		"data_area_alternate": c.DataAreaAlternate,
	} {
		if !r.Valid() {
			return fmt.Errorf("%s: region %s has no area", name, r)
		}
	}
	if !c.ScheduleMode.Valid() {
		return fmt.Errorf("schedule_mode: unknown mode %q", c.ScheduleMode)
	}
	if !c.DataMode.Valid() {
		return fmt.Errorf("data_mode: unknown mode %q", c.DataMode)
	}
	if c.Sentinel == "" {
		return fmt.Errorf("sentinel must not be empty")
	}
	if c.HeaderRows < 0 {
		return fmt.Errorf("header_rows must not be negative")
	}
	if c.Columns.Course < 0 || c.Columns.GroupType < 0 || c.Columns.Teachers < 0 {
		return fmt.Errorf("columns must not be negative")
	}
	for _, col := range c.SeparatorColumns {
		if col <= 0 {
			return fmt.Errorf("separator_columns: column %d would remove the row label", col)
		}
	}
	for _, r := range c.RoleRules {
		if r.Marker == "" {
			return fmt.Errorf("role_rules: empty marker")
		}
		if r.Role != fields.RoleTheory && r.Role != fields.RolePractice {
			return fmt.Errorf("role_rules: unknown role %q", r.Role)
		}
	}
	return nil
}
