package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/brightpath-hq/inbox/internal/channel"
	"github.com/brightpath-hq/inbox/internal/status"
)

// StatusBar displays persistent profile, link, and channel status.
type StatusBar struct {
	*tview.TextView
	profile string
	link    status.State
	channel channel.Display
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, link: status.Booting, channel: channel.Default}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetLink updates the realtime link state display.
func (sb *StatusBar) SetLink(s status.State) {
	sb.link = s
	sb.render()
}

// SetChannel updates the active channel display.
func (sb *StatusBar) SetChannel(ch channel.Display) {
	sb.channel = ch
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	linkColor := "green"
	switch sb.link {
	case status.Reconnecting, status.Connecting, status.Booting:
		linkColor = "yellow"
	case status.Degraded, status.Error:
		linkColor = "red"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-] | %s | %s",
		sb.profile, linkColor, sb.link, sb.channel, clock)
	if sb.flash != "" {
		line += fmt.Sprintf(" | [red]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
