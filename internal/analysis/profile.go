// Package analysis infers column semantics for a loaded spreadsheet and
// derives summary, financial and commission reports from it.
package analysis

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/sells-group/microfinance-cli/internal/sheet"
)

// ColumnType is the inferred storage type of a column.
type ColumnType string

const (
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeDatetime ColumnType = "datetime"
	TypeString   ColumnType = "string"
)

// Numeric reports whether the type holds numbers.
func (ct ColumnType) Numeric() bool {
	return ct == TypeInteger || ct == TypeFloat
}

// Role is a semantic tag assigned from the column name.
type Role uint8

const (
	RoleAmount Role = 1 << iota
	RoleDate
	RoleAgent
	RoleCommission
)

// RoleNone is the empty role set.
const RoleNone RoleSet = 0

var roleNames = []struct {
	role Role
	name string
}{
	{RoleAmount, "amount"},
	{RoleDate, "date"},
	{RoleAgent, "agent"},
	{RoleCommission, "commission"},
}

func (r Role) String() string {
	for _, rn := range roleNames {
		if rn.role == r {
			return rn.name
		}
	}
	return "none"
}

// RoleSet holds every role a column satisfies.
type RoleSet uint8

// Has reports whether the set contains r.
func (s RoleSet) Has(r Role) bool { return s&RoleSet(r) != 0 }

// With returns the set with r added.
func (s RoleSet) With(r Role) RoleSet { return s | RoleSet(r) }

// Names returns the role names in a fixed order, or ["none"].
func (s RoleSet) Names() []string {
	if s == RoleNone {
		return []string{"none"}
	}
	var out []string
	for _, rn := range roleNames {
		if s.Has(rn.role) {
			out = append(out, rn.name)
		}
	}
	return out
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// Keyword sets matched case-insensitively against column names.
var (
	amountKeywords     = []string{"amount", "price", "cost", "fee", "payment", "loan", "principal", "interest"}
	dateKeywords       = []string{"date", "time", "period", "day", "month", "year"}
	agentKeywords      = []string{"agent", "employee", "staff", "name"}
	commissionKeywords = []string{"commission", "bonus", "incentive", "payout"}
)

func nameMatches(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ColumnProfile describes one column of a table.
type ColumnProfile struct {
	Name  string     `json:"name"`
	Type  ColumnType `json:"inferred_type"`
	Roles RoleSet    `json:"roles"`
}

// Profile holds the inferred type and roles of every column, in table order.
// It is computed once per table and passed to each analysis.
type Profile struct {
	Columns []ColumnProfile
}

// NewProfile infers types and roles for every column of t.
func NewProfile(t *sheet.Table) *Profile {
	p := &Profile{Columns: make([]ColumnProfile, len(t.Columns))}
	for i, col := range t.Columns {
		ct := inferType(col)
		p.Columns[i] = ColumnProfile{
			Name:  col.Name,
			Type:  ct,
			Roles: inferRoles(col, ct),
		}
	}
	return p
}

// Types returns column name to inferred type.
func (p *Profile) Types() map[string]ColumnType {
	out := make(map[string]ColumnType, len(p.Columns))
	for _, c := range p.Columns {
		out[c.Name] = c.Type
	}
	return out
}

// Roles returns column name to role set.
func (p *Profile) Roles() map[string]RoleSet {
	out := make(map[string]RoleSet, len(p.Columns))
	for _, c := range p.Columns {
		out[c.Name] = c.Roles
	}
	return out
}

// WithRole returns the names of columns holding r, in table order.
func (p *Profile) WithRole(r Role) []string {
	var out []string
	for _, c := range p.Columns {
		if c.Roles.Has(r) {
			out = append(out, c.Name)
		}
	}
	return out
}

// First returns the first column in table order holding r.
//
// When several columns match, the leftmost always wins regardless of how
// well its data fits the role.
func (p *Profile) First(r Role) (string, bool) {
	for _, c := range p.Columns {
		if c.Roles.Has(r) {
			return c.Name, true
		}
	}
	return "", false
}

// Numeric returns the names of integer and float columns in table order.
func (p *Profile) Numeric() []string {
	var out []string
	for _, c := range p.Columns {
		if c.Type.Numeric() {
			out = append(out, c.Name)
		}
	}
	return out
}

// InferTypes classifies every column of t.
func InferTypes(t *sheet.Table) map[string]ColumnType {
	return NewProfile(t).Types()
}

// InferRoles assigns roles to every column of t.
func InferRoles(t *sheet.Table) map[string]RoleSet {
	return NewProfile(t).Roles()
}

// inferType follows the rules a dataframe library applies to a loaded sheet:
// a column of only numbers (or only missing cells) is numeric, a column of
// only dates is datetime, anything mixed is string.
func inferType(col *sheet.Column) ColumnType {
	var numbers, dates, other int
	integral := true
	for _, v := range col.Values {
		switch v.Kind() {
		case sheet.KindMissing:
		case sheet.KindNumber:
			numbers++
			f, _ := v.Float()
			if f != math.Trunc(f) {
				integral = false
			}
		case sheet.KindDate:
			dates++
		default:
			other++
		}
	}

	switch {
	case other == 0 && dates == 0:
		// An all-missing column lands here and is reported as integer.
		if integral {
			return TypeInteger
		}
		return TypeFloat
	case other == 0 && numbers == 0:
		return TypeDatetime
	default:
		return TypeString
	}
}

func inferRoles(col *sheet.Column, ct ColumnType) RoleSet {
	var rs RoleSet
	if ct.Numeric() && nameMatches(col.Name, amountKeywords) {
		rs = rs.With(RoleAmount)
	}
	if nameMatches(col.Name, dateKeywords) && hasTimestamp(col) {
		rs = rs.With(RoleDate)
	}
	if nameMatches(col.Name, agentKeywords) {
		rs = rs.With(RoleAgent)
	}
	if ct.Numeric() && nameMatches(col.Name, commissionKeywords) {
		rs = rs.With(RoleCommission)
	}
	return rs
}

func hasTimestamp(col *sheet.Column) bool {
	for _, v := range col.Values {
		if _, ok := v.Timestamp(); ok {
			return true
		}
	}
	return false
}
