package output

import (
	"fmt"
	"strings"

	"github.com/danpilch/kpstk/pkg/callgraph"
	"github.com/danpilch/kpstk/pkg/query"
)

// Suggestion represents a follow-up query.
type Suggestion struct {
	Command string
	Reason  string
}

// DrillDown suggests the next queries for the top row of a result.
func DrillDown(res *query.Result) []Suggestion {
	if len(res.Rows) == 0 {
		return nil
	}
	top := res.Rows[0]

	var suggestions []Suggestion
	switch res.Kind {
	case query.KindInclusive, query.KindExclusive, query.KindCombined:
		fn := top.Key
		suggestions = append(suggestions,
			Suggestion{"caller " + fn, "Who calls the top function"},
			Suggestion{"callee " + fn, "Where the top function spends its time"},
			Suggestion{"func " + fn, "Hottest instructions in the top function"},
		)

	case query.KindCallers:
		// The first frame of the path is the furthest caller.
		if len(top.Path) > 1 && top.Path[0] != string(callgraph.BottomOfStack) {
			suggestions = append(suggestions,
				Suggestion{"caller " + top.Path[0], "Walk further up the hottest path"},
			)
		}
		suggestions = append(suggestions,
			Suggestion{fmt.Sprintf("caller -s %d %s", res.Depth+1, res.Function), "Show one more calling frame"},
		)

	case query.KindCallees:
		if n := len(top.Path); n > 0 && top.Path[n-1] != string(callgraph.TopOfStack) {
			callee := top.Path[n-1]
			suggestions = append(suggestions,
				Suggestion{"callee " + callee, "Walk down the hottest callee"},
			)
		}
		suggestions = append(suggestions,
			Suggestion{"func " + res.Function, "Hottest instructions in the function itself"},
		)
	}
	return suggestions
}

func (f *Formatter) renderSuggestions(res *query.Result) {
	suggestions := DrillDown(res)
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(f.writer)
	fmt.Fprintln(f.writer, titleStyle.Render("Suggested next steps"))
	for _, s := range suggestions {
		fmt.Fprintf(f.writer, "  %-40s %s\n", strings.TrimSpace(s.Command), dimStyle.Render(s.Reason))
	}
}
