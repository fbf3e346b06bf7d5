package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/danpilch/kpstk/pkg/session"
)

// FileInfo is one line of the open-file table.
type FileInfo struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	Active  int    `json:"active,omitempty"`
	Samples int    `json:"samples"`
	Total   int64  `json:"total"`
	Dropped int    `json:"dropped"`
	Stacks  int    `json:"stacks"`
	LoadMS  int64  `json:"load_ms"`
}

// Files describes the opened traces. Active holds the 1-based position in
// the active pair, or 0.
func Files(entries, active []*session.Entry) []FileInfo {
	pos := make(map[*session.Entry]int, len(active))
	for i, e := range active {
		pos[e] = i + 1
	}
	out := make([]FileInfo, len(entries))
	for i, e := range entries {
		out[i] = FileInfo{
			Index:   e.Index,
			Path:    e.Path,
			Active:  pos[e],
			Samples: e.Profile.Samples(),
			Total:   e.Profile.Total(),
			Dropped: e.Profile.Dropped(),
			Stacks:  e.Profile.NumStacks(),
			LoadMS:  e.Elapsed.Milliseconds(),
		}
	}
	return out
}

// RenderFiles outputs the open-file table.
func (f *Formatter) RenderFiles(files []FileInfo) error {
	switch f.format {
	case FormatJSON:
		return f.renderJSON(files)
	case FormatTSV:
		fmt.Fprintln(f.writer, strings.Join([]string{"INDEX", "ACTIVE", "SAMPLES", "TOTAL", "DROPPED", "STACKS", "LOAD_MS", "PATH"}, "\t"))
		for _, fi := range files {
			fmt.Fprintln(f.writer, strings.Join([]string{
				strconv.Itoa(fi.Index),
				strconv.Itoa(fi.Active),
				strconv.Itoa(fi.Samples),
				strconv.FormatInt(fi.Total, 10),
				strconv.Itoa(fi.Dropped),
				strconv.Itoa(fi.Stacks),
				strconv.FormatInt(fi.LoadMS, 10),
				fi.Path,
			}, "\t"))
		}
		return nil
	}

	if len(files) == 0 {
		fmt.Fprintln(f.writer, dimStyle.Render("no files open"))
		return nil
	}

	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true).Padding(0, 1)
	rows := make([][]string, len(files))
	for i, fi := range files {
		marker := ""
		switch fi.Active {
		case 1:
			marker = "*"
		case 2:
			marker = "**"
		}
		rows[i] = []string{
			strconv.Itoa(fi.Index),
			marker,
			humanize.Comma(int64(fi.Samples)),
			humanize.Comma(fi.Total),
			humanize.Comma(int64(fi.Dropped)),
			humanize.Comma(int64(fi.Stacks)),
			fmt.Sprintf("%dms", fi.LoadMS),
			Truncate(fi.Path, f.nameWidth(8)),
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return activeStyle
			}
			return cellStyle
		}).
		Headers("#", "ACTIVE", "SAMPLES", "TOTAL", "DROPPED", "STACKS", "LOAD", "PATH").
		Rows(rows...)

	fmt.Fprintln(f.writer, t)
	return nil
}
