package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/charmbracelet/bubbles/table"
)

const (
	dateWidth   = 10
	typeWidth   = 7
	amountWidth = 12
	flagWidth   = 4
)

// View renders the review screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.loaded {
		return m.theme.Subtitle.Render("Loading review candidates...")
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Review transactions"))
	b.WriteString("\n")

	if len(m.transactions) == 0 && m.lastError == nil {
		b.WriteString(m.theme.StatusSuccess.Render("Nothing to review."))
	} else {
		b.WriteString(m.theme.Box.Render(m.table.View()))
	}
	b.WriteString("\n")

	switch {
	case m.lastError != nil:
		b.WriteString(m.theme.StatusError.Render("Error: " + m.lastError.Error()))
	case m.status != "":
		b.WriteString(m.theme.StatusInfo.Render(m.status))
	}
	if txn, ok := m.selected(); ok && txn.ReviewNote != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.Flagged.Render(txn.ReviewNote))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

// columns sizes the description and note columns to fill width.
func columns(width int) []table.Column {
	fixed := dateWidth + typeWidth + amountWidth + flagWidth + 12
	flexible := max(30, width-fixed)
	descWidth := flexible * 3 / 5

	return []table.Column{
		{Title: "Date", Width: dateWidth},
		{Title: "Type", Width: typeWidth},
		{Title: "Amount", Width: amountWidth},
		{Title: "Flag", Width: flagWidth},
		{Title: "Description", Width: descWidth},
		{Title: "Note", Width: flexible - descWidth},
	}
}

func rows(txns []model.Transaction) []table.Row {
	out := make([]table.Row, len(txns))
	for i, txn := range txns {
		flag := ""
		switch {
		case txn.NeedsReview:
			flag = "!"
		case txn.IsInternalTransfer:
			flag = "xfer"
		}
		out[i] = table.Row{
			txn.Date.Format(time.DateOnly),
			string(txn.Type),
			fmt.Sprintf("%*s", amountWidth, "$"+txn.Amount.StringFixed(2)),
			flag,
			txn.Description,
			txn.ReviewNote,
		}
	}
	return out
}
