package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/brightpath-hq/inbox/internal/adapter"
	"github.com/brightpath-hq/inbox/internal/tui/ui"
)

// Thread displays the messages of the active conversation.
type Thread struct {
	*tview.TextView
	theme *ui.Theme
}

// NewThread creates the message thread view.
func NewThread(theme *ui.Theme) *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ").SetBorderColor(theme.BorderColor)

	return &Thread{TextView: tv, theme: theme}
}

// SetConversationName updates the title.
func (th *Thread) SetConversationName(name string) {
	if name == "" {
		th.SetTitle(" Messages ")
		return
	}
	th.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(name)))
}

// Update redraws the thread. Messages arrive oldest first; a trailing typing
// indicator is appended when the remote party is composing.
func (th *Thread) Update(msgs []adapter.MessageView, typing bool) {
	th.Clear()

	for _, m := range msgs {
		ts := formatTimestamp(m.Timestamp)
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s %s[-:-:-]\n%s\n\n",
			sanitizeForTerminal(m.Sender), ts, m.Channel, sanitizeForTerminal(m.Body))
		_, _ = fmt.Fprint(th, line)
	}

	if typing {
		_, _ = fmt.Fprint(th, "[::d]typing...[-:-:-]\n")
	}

	th.ScrollToEnd()
}
