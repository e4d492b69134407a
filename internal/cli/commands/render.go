package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/pkg/guard"
)

// validation pairs a result with where its SQL came from.
type validation struct {
	Source string `json:"source"`
	*guard.Result
}

func renderValidations(w io.Writer, format string, vs []validation) error {
	switch format {
	case config.OutputJSON:
		if len(vs) == 1 {
			return renderJSON(w, vs[0].Result)
		}
		return renderJSON(w, vs)
	case config.OutputMarkdown:
		renderValidationsMarkdown(w, vs)
	default:
		renderValidationsText(w, vs)
	}
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func status(r *guard.Result) string {
	if r.Accepted {
		return "accepted"
	}
	return "rejected"
}

func renderValidationsText(w io.Writer, vs []validation) {
	for i, v := range vs {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		if len(vs) > 1 {
			_, _ = fmt.Fprintf(w, "%s: ", v.Source)
		}
		renderResultText(w, v.Result)
	}
	if len(vs) > 1 {
		_, _ = fmt.Fprintln(w)
		renderSummaryTable(w, vs, false)
	}
}

func renderResultText(w io.Writer, r *guard.Result) {
	_, _ = fmt.Fprintf(w, "%s (rule set v%d, join depth %d)\n", strings.ToUpper(status(r)), r.RuleSetVersion, r.JoinDepth)
	if r.Error != nil {
		_, _ = fmt.Fprintf(w, "  error [%s] %s: %s\n", r.Error.Stage, r.Error.Kind, r.Error.Message)
	} else {
		_, _ = fmt.Fprintf(w, "  %s\n", r.FinalSQL)
	}
	for _, warn := range r.Warnings {
		_, _ = fmt.Fprintf(w, "  warning [%s]: %s\n", warn.Stage, warn.Message)
	}
	for _, line := range r.Explanation {
		_, _ = fmt.Fprintf(w, "  - %s\n", line)
	}
}

func renderValidationsMarkdown(w io.Writer, vs []validation) {
	for i, v := range vs {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		r := v.Result
		_, _ = fmt.Fprintf(w, "### %s: %s\n\n", v.Source, status(r))
		if r.Error != nil {
			_, _ = fmt.Fprintf(w, "**%s** at stage `%s`: %s\n\n", r.Error.Kind, r.Error.Stage, r.Error.Message)
		}
		_, _ = fmt.Fprintf(w, "```sql\n%s\n```\n", r.FinalSQL)
		if len(r.Warnings) > 0 {
			_, _ = fmt.Fprintln(w)
			for _, warn := range r.Warnings {
				_, _ = fmt.Fprintf(w, "- warning (`%s`): %s\n", warn.Stage, warn.Message)
			}
		}
		if len(r.Explanation) > 0 {
			_, _ = fmt.Fprintln(w)
			for _, line := range r.Explanation {
				_, _ = fmt.Fprintf(w, "- %s\n", line)
			}
		}
	}
	if len(vs) > 1 {
		_, _ = fmt.Fprintln(w)
		renderSummaryTable(w, vs, true)
	}
}

func renderSummaryTable(w io.Writer, vs []validation, markdown bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Status", "Depth", "Warnings", "Reason"})

	accepted := 0
	for _, v := range vs {
		reason := ""
		if v.Error != nil {
			reason = string(v.Error.Kind)
		} else {
			accepted++
		}
		t.AppendRow(table.Row{v.Source, status(v.Result), v.JoinDepth, len(v.Warnings), reason})
	}
	t.AppendFooter(table.Row{"Total", fmt.Sprintf("%d/%d accepted", accepted, len(vs)), "", "", ""})

	if markdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}
