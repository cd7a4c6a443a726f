package analysis

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/microfinance-cli/internal/sheet"
)

// topPerformers is the number of agents ranked in a commission report.
const topPerformers = 5

// AgentCommission aggregates one agent's commission values.
type AgentCommission struct {
	Total   float64 `json:"total_commission"`
	Average float64 `json:"average_commission"`
	Count   int     `json:"commission_count"`
	Max     float64 `json:"max_commission"`
	Min     float64 `json:"min_commission"`
}

// Performer is one entry of the top-performer ranking.
type Performer struct {
	Agent   string  `json:"agent"`
	Total   float64 `json:"total_commission"`
	Average float64 `json:"average_commission"`
}

// CommissionReport groups commission values by agent.
type CommissionReport struct {
	AgentColumn      string                     `json:"agent_column"`
	CommissionColumn string                     `json:"commission_column"`
	AgentCommissions map[string]AgentCommission `json:"agent_commissions"`
	TopPerformers    []Performer                `json:"top_performers"`
	TotalCommissions float64                    `json:"total_commissions"`
}

// ExtractCommissions groups the first commission column by the first agent
// column. It returns ErrNotApplicable when either column is absent.
func ExtractCommissions(t *sheet.Table, p *Profile) (*CommissionReport, error) {
	agentName, ok := p.First(RoleAgent)
	if !ok {
		return nil, eris.Wrap(ErrNotApplicable, "could not identify agent column")
	}
	commName, ok := p.First(RoleCommission)
	if !ok {
		return nil, eris.Wrap(ErrNotApplicable, "could not identify commission column")
	}

	agents := t.Column(agentName)
	comms := t.Column(commName)

	// Groups keep the order in which each agent first appears.
	var order []string
	groups := make(map[string][]float64)
	for r, av := range agents.Values {
		if av.IsMissing() {
			continue
		}
		key := av.String()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			groups[key] = nil
		}
		if f, ok := comms.Values[r].Float(); ok {
			groups[key] = append(groups[key], f)
		}
	}

	rep := &CommissionReport{
		AgentColumn:      agentName,
		CommissionColumn: commName,
		AgentCommissions: make(map[string]AgentCommission, len(order)),
		TopPerformers:    []Performer{},
	}

	ranked := make([]Performer, 0, len(order))
	for _, agent := range order {
		vals := groups[agent]
		lo, hi := minMax(vals)
		ac := AgentCommission{
			Total:   sum(vals),
			Average: mean(vals),
			Count:   len(vals),
			Max:     hi,
			Min:     lo,
		}
		rep.AgentCommissions[agent] = ac
		rep.TotalCommissions += ac.Total
		ranked = append(ranked, Performer{Agent: agent, Total: ac.Total, Average: ac.Average})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total > ranked[j].Total
	})
	if len(ranked) > topPerformers {
		ranked = ranked[:topPerformers]
	}
	rep.TopPerformers = append(rep.TopPerformers, ranked...)

	return rep, nil
}
