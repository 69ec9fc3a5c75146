// Package view renders the vote board and page templates. RenderBoard is a
// pure function; the realtime layer treats its output as an opaque payload.
package view

import (
	"embed"
	"html/template"
	"strconv"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Templates returns the parsed page and fragment templates for the gin
// router.
func Templates() *template.Template {
	return pageTemplates
}

// Member is one row of the board as it should be displayed.
type Member struct {
	Name           string
	Vote           float64
	EffectiveShown bool
}

type boardData struct {
	RoomName    string
	Rows        []boardRow
	ToggleLabel string
	NextShow    string
}

type boardRow struct {
	Name string
	Vote string
}

// RenderBoard renders the full-state board fragment: every member's row plus
// the reveal toggle labeled with the next action. Votes are masked while the
// board is effectively hidden.
func RenderBoard(roomName string, members []Member) string {
	data := boardData{RoomName: roomName, ToggleLabel: "Show", NextShow: "true"}
	for _, m := range members {
		row := boardRow{Name: m.Name, Vote: "?"}
		if m.EffectiveShown {
			row.Vote = formatVote(m.Vote)
			data.ToggleLabel = "Hide"
			data.NextShow = "false"
		}
		data.Rows = append(data.Rows, row)
	}
	var b strings.Builder
	if err := pageTemplates.ExecuteTemplate(&b, "board.html", data); err != nil {
		return ""
	}
	return b.String()
}

// formatVote prints a vote without a trailing ".0" so "3" stays "3" and
// "0.5" stays "0.5".
func formatVote(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
