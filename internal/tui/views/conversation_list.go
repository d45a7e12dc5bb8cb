package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/brightpath-hq/inbox/internal/adapter"
	"github.com/brightpath-hq/inbox/internal/tui/ui"
)

// ConversationList is the inbox list view (k9s-inspired table).
type ConversationList struct {
	*tview.Table
	theme      *ui.Theme
	convos     []adapter.ConversationView
	selectedFn func() (int, int)
}

// NewConversationList creates the inbox table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Inbox ").SetBorderColor(theme.BorderColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	cl := &ConversationList{Table: table, theme: theme}
	cl.selectedFn = table.GetSelection
	return cl
}

// Update refreshes the list with new data.
func (cl *ConversationList) Update(convos []adapter.ConversationView) {
	cl.convos = convos
	cl.Clear()

	// Header row.
	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(cl.theme.TableHeaderFg))
	cl.SetCell(0, 1, tview.NewTableCell(" Ch").SetSelectable(false).SetTextColor(cl.theme.TableHeaderFg))
	cl.SetCell(0, 2, tview.NewTableCell(" Preview").SetSelectable(false).SetTextColor(cl.theme.TableHeaderFg))
	cl.SetCell(0, 3, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(cl.theme.TableHeaderFg))

	for i, cv := range convos {
		row := i + 1
		name := cv.Name
		if cv.Starred {
			name = "* " + name
		}

		nameCell := tview.NewTableCell(" " + sanitizeForTerminal(name)).SetMaxWidth(30).SetExpansion(1)
		if cv.UnreadCount > 0 {
			nameCell.SetText(fmt.Sprintf(" %s (%d)", sanitizeForTerminal(name), cv.UnreadCount))
			nameCell.SetTextColor(cl.theme.UnreadColor)
		}
		cl.SetCell(row, 0, nameCell)
		cl.SetCell(row, 1, tview.NewTableCell(" "+string(cv.Channel)).SetMaxWidth(6))

		preview := ""
		if len(cv.Messages) > 0 {
			preview = cv.Messages[0].Body
		}
		cl.SetCell(row, 2, tview.NewTableCell(" "+sanitizeForTerminal(preview)).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 3, tview.NewTableCell(" "+formatTimestamp(cv.LastMessageAt)).SetMaxWidth(12))
	}
}

// SelectedConversation returns the sid of the highlighted row, empty when the
// cursor is on the header or the list is empty.
func (cl *ConversationList) SelectedConversation() string {
	row, _ := cl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.convos) {
		return cl.convos[idx].Sid
	}
	return ""
}

func formatTimestamp(iso string) string {
	if iso == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
