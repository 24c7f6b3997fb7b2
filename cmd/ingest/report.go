package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/okian/athletegraph/internal/adapters/csvsource"
	service "github.com/okian/athletegraph/internal/app"
	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/internal/domain/validate"
)

var identityOrder = []string{model.FieldAthleteID, model.FieldSessionID, model.FieldTS, model.FieldName}

func printReport(w io.Writer, table *csvsource.Table, r service.TableReport) {
	fmt.Fprintf(w, "[ok] rows=%d written=%d rejected=%d failed=%d\n",
		r.Rows, r.Write.Written, len(r.Rejected), len(r.Write.Failed))
	printRejected(w, table, r.Rejected)
	for _, f := range r.Write.Failed {
		fmt.Fprintf(w, "[failed] %s: %v\n", identity(f.Record.Identity()), f.Err)
	}
}

func printDryRun(w io.Writer, table *csvsource.Table, b validate.Batch) {
	fmt.Fprintf(w, "[dry-run] rows=%d valid=%d rejected=%d\n",
		len(table.Rows), len(b.Records), len(b.Rejected))
	printRejected(w, table, b.Rejected)
}

func printRejected(w io.Writer, table *csvsource.Table, rejected []validate.RowError) {
	for _, r := range rejected {
		fmt.Fprintf(w, "[rejected] line %d %s: %v\n", table.Line(r.Index), identity(r.Fields), r.Err)
	}
}

// identity renders the identifying fields in a fixed order, skipping blanks.
func identity(fields map[string]string) string {
	parts := make([]string, 0, len(identityOrder))
	for _, k := range identityOrder {
		if v := fields[k]; v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
