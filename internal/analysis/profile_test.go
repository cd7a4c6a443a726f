package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferTypes(t *testing.T) {
	tbl := newTable(
		[]string{"count", "rate", "opened", "client", "empty", "mixed", "sparse"},
		[]any{1, 1.5, day(2024, 1, 1), "Ann", nil, 1, nil},
		[]any{2, 2.0, day(2024, 2, 1), "Ben", nil, "x", 3.0},
		[]any{nil, nil, nil, nil, nil, nil, 4.0},
	)

	types := InferTypes(tbl)
	assert.Equal(t, TypeInteger, types["count"])
	assert.Equal(t, TypeFloat, types["rate"])
	assert.Equal(t, TypeDatetime, types["opened"])
	assert.Equal(t, TypeString, types["client"])
	assert.Equal(t, TypeInteger, types["empty"], "all-missing column is vacuously integer")
	assert.Equal(t, TypeString, types["mixed"])
	assert.Equal(t, TypeInteger, types["sparse"], "integral floats count as integer")
}

func TestInferTypes_IntegerIffIntegral(t *testing.T) {
	cases := []struct {
		vals []any
		want ColumnType
	}{
		{[]any{1.0, 2.0, -3.0}, TypeInteger},
		{[]any{1.0, 2.0000001}, TypeFloat},
		{[]any{0.5}, TypeFloat},
		{[]any{nil, 1e6}, TypeInteger},
	}
	for _, c := range cases {
		rows := make([][]any, len(c.vals))
		for i, v := range c.vals {
			rows[i] = []any{v}
		}
		tbl := newTable([]string{"x"}, rows...)
		assert.Equal(t, c.want, InferTypes(tbl)["x"], "values %v", c.vals)
	}
}

func TestInferRoles(t *testing.T) {
	tbl := newTable(
		[]string{"Loan Amount", "Disbursement Date", "Agent Name", "Commission Paid", "Notes", "Fee Notes", "Payday"},
		[]any{100, "2024-01-15", "Ann", 10, "ok", "waived", "soon"},
		[]any{200, "not a date", "Ben", 20, "late", "n/a", "later"},
	)

	roles := InferRoles(tbl)
	assert.True(t, roles["Loan Amount"].Has(RoleAmount))
	assert.False(t, roles["Loan Amount"].Has(RoleDate))

	assert.True(t, roles["Disbursement Date"].Has(RoleDate))
	assert.True(t, roles["Agent Name"].Has(RoleAgent))

	assert.True(t, roles["Commission Paid"].Has(RoleCommission))
	assert.False(t, roles["Commission Paid"].Has(RoleAmount))

	assert.Equal(t, RoleNone, roles["Notes"])
	assert.False(t, roles["Fee Notes"].Has(RoleAmount), "amount requires a numeric column")
	assert.False(t, roles["Payday"].Has(RoleDate), "date requires a parseable value")
}

func TestInferRoles_MultipleRoles(t *testing.T) {
	tbl := newTable([]string{"Staff Bonus Payment"}, []any{5})
	rs := InferRoles(tbl)["Staff Bonus Payment"]
	assert.Equal(t, []string{"amount", "agent", "commission"}, rs.Names())
}

func TestProfile_FirstMatchWins(t *testing.T) {
	tbl := newTable(
		[]string{"Notes", "Agent", "Employee Name", "Bonus", "Payout"},
		[]any{"", "Ann", "A. Smith", 1, 2},
	)
	p := NewProfile(tbl)

	agent, ok := p.First(RoleAgent)
	require.True(t, ok)
	assert.Equal(t, "Agent", agent)
	assert.Equal(t, []string{"Agent", "Employee Name"}, p.WithRole(RoleAgent))

	comm, ok := p.First(RoleCommission)
	require.True(t, ok)
	assert.Equal(t, "Bonus", comm)

	_, ok = p.First(RoleDate)
	assert.False(t, ok)
}

func TestRoleSet_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(RoleNone.With(RoleDate).With(RoleAmount))
	require.NoError(t, err)
	assert.JSONEq(t, `["amount","date"]`, string(b))

	b, err = json.Marshal(RoleNone)
	require.NoError(t, err)
	assert.JSONEq(t, `["none"]`, string(b))
}
