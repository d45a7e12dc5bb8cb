// Package tui is the interactive inbox client built on tview. It renders the
// synchronizer's derived state and redraws whenever the bus signals a change,
// so the widgets never own conversation state of their own.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/brightpath-hq/inbox/internal/bus"
	"github.com/brightpath-hq/inbox/internal/channel"
	"github.com/brightpath-hq/inbox/internal/status"
	intsync "github.com/brightpath-hq/inbox/internal/sync"
	"github.com/brightpath-hq/inbox/internal/tui/model"
	"github.com/brightpath-hq/inbox/internal/tui/ui"
	"github.com/brightpath-hq/inbox/internal/tui/views"
)

// App is the main TUI application shell.
type App struct {
	app    *tview.Application
	sync   *intsync.Synchronizer
	bus    *bus.Bus
	logger *zap.Logger
	flash  *model.Flash

	list      *views.ConversationList
	thread    *views.Thread
	composer  *views.Composer
	statusBar *views.StatusBar

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(s *intsync.Synchronizer, b *bus.Bus, logger *zap.Logger, profileName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		sync:      s,
		bus:       b,
		logger:    logger,
		flash:     &model.Flash{},
		list:      views.NewConversationList(theme),
		thread:    views.NewThread(theme),
		composer:  views.NewComposer(),
		statusBar: views.NewStatusBar(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, col int) {
		sid := a.list.SelectedConversation()
		if sid != "" {
			a.sync.SelectConversation(a.ctx, sid)
			a.app.SetFocus(a.composer.InputField)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.sync.SendMessage(a.ctx, text, ""); err != nil {
				a.flash.Set("Send failed: "+err.Error(), 5*time.Second)
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetFlash(a.flash.Get())
				})
			}
		}()
	})
}

func (a *App) setupLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	columns := tview.NewFlex().
		AddItem(a.list, 0, 1, true).
		AddItem(right, 0, 2, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(columns, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			a.sync.ClearSelection()
			a.app.SetFocus(a.list)
			return nil
		}
		if event.Key() == tcell.KeyTab {
			if a.app.GetFocus() == a.composer.InputField {
				a.app.SetFocus(a.list)
			} else {
				a.app.SetFocus(a.composer.InputField)
			}
			return nil
		}

		// Text input owns every other key while focused.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}

		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'q':
				a.app.Stop()
				return nil
			case 'c':
				a.toggleChannel()
				return nil
			case 'i':
				a.app.SetFocus(a.composer.InputField)
				return nil
			case 'r':
				go a.sync.LoadConversations(a.ctx)
				return nil
			}
		}
		return event
	})
}

func (a *App) toggleChannel() {
	next := channel.Email
	if a.sync.ActiveChannel() == channel.Email {
		next = channel.SMS
	}
	a.sync.SetActiveChannel(a.ctx, next)
}

// Run starts the redraw loop and blocks in the tview event loop.
func (a *App) Run() error {
	changes, unsubChanges := a.bus.Subscribe("convo.", 64)
	links, unsubLinks := a.bus.Subscribe("link.", 16)

	go func() {
		defer unsubChanges()
		defer unsubLinks()
		for {
			select {
			case <-changes:
				a.app.QueueUpdateDraw(a.refresh)
			case evt := <-links:
				if sc, ok := evt.Payload.(status.StatusChange); ok {
					a.app.QueueUpdateDraw(func() {
						a.statusBar.SetLink(sc.To)
					})
				}
			case <-a.ctx.Done():
				return
			}
		}
	}()

	a.refresh()
	return a.app.Run()
}

// refresh re-reads the synchronizer's derived state into the widgets. Must
// run on the tview event loop.
func (a *App) refresh() {
	convos := a.sync.Conversations()
	a.list.Update(convos)

	selected := a.sync.Selected()
	name := ""
	for _, cv := range convos {
		if cv.Sid == selected {
			name = cv.Name
			break
		}
	}
	a.thread.SetConversationName(name)
	a.thread.Update(a.sync.Messages(), a.sync.Typing())

	a.statusBar.SetChannel(a.sync.ActiveChannel())
	if err := a.sync.Err(); err != "" {
		a.flash.Set(err, 5*time.Second)
	}
	a.statusBar.SetFlash(a.flash.Get())
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
