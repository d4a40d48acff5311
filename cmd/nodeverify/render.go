package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/models"
	"github.com/mfreeman451/nodeverify/pkg/verifier"
)

const timeLayout = "2006-01-02 15:04:05"

func render(w io.Writer, view *verifier.View) error {
	if jsonOutput {
		return writeJSON(w, view)
	}

	if view.Notice != "" {
		fmt.Fprintln(w, view.Notice)
	}

	if view.Capture != nil {
		fmt.Fprintf(w, "Baseline: %d nodes at %s\n", view.Capture.Rows, view.Capture.CapturedAt.Format(timeLayout))
	}

	if view.LastRefresh != nil {
		fmt.Fprintf(w, "Last refresh (%s): %s\n", view.ModeLabel, view.LastRefresh.Format(timeLayout))
	}

	if view.State == verifier.ViewDashboard || view.Page.TotalRows > 0 {
		writeTotalsLine(w, view.Totals, view.RefreshMode)
	}

	if view.Message != "" {
		fmt.Fprintln(w, view.Message)
	}

	if len(view.Nodes) > 0 {
		if err := writeNodes(w, view.Nodes); err != nil {
			return err
		}

		fmt.Fprintf(w, "Page %d of %d (%d matching nodes)\n",
			view.Page.Offset/max(view.Page.Limit, 1)+1, view.Page.TotalPages, view.Page.TotalRows)
	}

	switch {
	case view.StatsWarning != "":
		fmt.Fprintln(w, view.StatsWarning)
	case view.Stats != nil:
		return renderStats(w, view.Stats)
	}

	return nil
}

func writeNodes(w io.Writer, nodes []verifier.NodeView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "NODE\tVERSION\tINSTALLATION\tFSUE OLD\tFSUE NEW\tFSUE\tUFA OLD\tUFA NEW\tUFA\tUFH OLD\tUFH NEW\tUFH\tSTATUS")

	for i := range nodes {
		n := &nodes[i]

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n.NumeroNodo, n.VersionSoftware, n.InstallationName,
			formatTime(n.FSUEOld), formatTime(n.FSUENew), formatFlag(n.OKFSUE),
			formatTime(n.UFAOld), formatTime(n.UFANew), formatFlag(n.OKUFA),
			formatTime(n.UFHOld), formatTime(n.UFHNew), formatFlag(n.OKUFH),
			n.Status)
	}

	return tw.Flush()
}

func writeTotalsLine(w io.Writer, t models.Totals, mode models.RefreshMode) {
	if mode == models.RefreshFSUE {
		fmt.Fprintf(w, "Nodes: %d  FSUE ok: %d\n", t.TotalNodos, t.TotalFSUEOK)
		return
	}

	fmt.Fprintf(w, "Nodes: %d  FSUE ok: %d  UFA ok: %d  UFH ok: %d\n",
		t.TotalNodos, t.TotalFSUEOK, t.TotalUFAOK, t.TotalUFHOK)
}

func renderTotals(w io.Writer, totals *models.Totals, mode models.RefreshMode) error {
	if jsonOutput {
		return writeJSON(w, totals)
	}

	writeTotalsLine(w, *totals, mode)

	return nil
}

func renderStats(w io.Writer, stats *models.StoreStats) error {
	if jsonOutput {
		return writeJSON(w, stats)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Store (%s) at %s\n", stats.Source, stats.ObservedAt.Format(timeLayout))

	for _, c := range []struct {
		name  string
		value *int64
	}{
		{"Threads connected", stats.ConnectedThreads},
		{"Threads running", stats.RunningThreads},
		{"Threads created", stats.CreatedThreads},
		{"Threads cached", stats.CachedThreads},
		{"Connections", stats.Connections},
		{"Aborted connects", stats.AbortedConnects},
	} {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, formatCounter(c.value))
	}

	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}

	return t.Format(timeLayout)
}

func formatFlag(ok bool) string {
	if ok {
		return "yes"
	}

	return "no"
}

func formatCounter(v *int64) string {
	if v == nil {
		return "n/a"
	}

	return strconv.FormatInt(*v, 10)
}
