package ui

import (
	"context"
	"errors"

	"chat-widget/utils"
	chatwidget "chat-widget/widget"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const (
	panelWidth  = 400
	panelHeight = 560
)

// ChatWidget is the floating support chat: a round toggle button in the
// bottom-right corner and the panel it opens.
type ChatWidget struct {
	controller *chatwidget.Controller
	window     fyne.Window
	logger     *utils.Logger
	ctx        context.Context

	toggleButton *widget.Button
	panel        fyne.CanvasObject
	messages     *messageList
	input        *inputBox

	unsubscribe func()
}

// NewChatWidget creates the widget views for controller. Dialogs open on window.
func NewChatWidget(ctx context.Context, controller *chatwidget.Controller, window fyne.Window, logger *utils.Logger) *ChatWidget {
	return &ChatWidget{
		controller: controller,
		window:     window,
		logger:     logger,
		ctx:        ctx,
	}
}

// Build creates the overlay. It is meant to be stacked above the page content.
func (cw *ChatWidget) Build() fyne.CanvasObject {
	settings := cw.controller.Settings()

	cw.messages = newMessageList(settings.Welcome, settings.QuickReplies, cw.quickReply)
	cw.input = newInputBox(cw.send, cw.controller.Close, func(text string) {
		cw.controller.SetInput(text)
		cw.input.sync(text, cw.controller.CanSubmit())
	})

	cw.panel = cw.buildPanel(settings.Title)

	cw.toggleButton = widget.NewButton("💬", cw.controller.Toggle)
	cw.toggleButton.Importance = widget.HighImportance

	cw.unsubscribe = cw.controller.Subscribe(func() {
		fyne.Do(cw.refresh)
	})
	cw.refresh()

	column := container.NewVBox(
		cw.panel,
		container.NewHBox(layout.NewSpacer(), cw.toggleButton),
	)
	return container.NewVBox(
		layout.NewSpacer(),
		container.NewHBox(layout.NewSpacer(), container.NewPadded(column)),
	)
}

func (cw *ChatWidget) buildPanel(title string) fyne.CanvasObject {
	heading := widget.NewLabelWithStyle(title, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	resetButton := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), cw.reset)
	resetButton.Importance = widget.LowImportance
	closeButton := widget.NewButtonWithIcon("", theme.CancelIcon(), cw.controller.Close)
	closeButton.Importance = widget.LowImportance

	header := container.NewBorder(nil, nil, nil, container.NewHBox(resetButton, closeButton), heading)

	body := container.NewBorder(
		container.NewVBox(header, widget.NewSeparator()),
		container.NewVBox(widget.NewSeparator(), cw.input.content),
		nil,
		nil,
		cw.messages.scroll,
	)

	background := canvas.NewRectangle(panelColor)
	background.CornerRadius = 10
	background.StrokeColor = bubbleColor
	background.StrokeWidth = 1

	return container.NewGridWrap(fyne.NewSize(panelWidth, panelHeight), container.NewStack(background, container.NewPadded(body)))
}

// refresh repaints everything from the controller; call it on the UI goroutine
func (cw *ChatWidget) refresh() {
	if cw.controller.IsOpen() {
		cw.toggleButton.SetText("✕")
		cw.panel.Show()
	} else {
		cw.toggleButton.SetText("💬")
		cw.panel.Hide()
	}

	sending := cw.controller.State() == chatwidget.StateSending
	cw.messages.render(cw.controller.Messages(), cw.controller.ShowWelcome(), sending)
	cw.input.sync(cw.controller.Input(), cw.controller.CanSubmit())
}

func (cw *ChatWidget) send() {
	cw.handleSendError(cw.controller.SendInput(cw.ctx))
}

func (cw *ChatWidget) quickReply(label string) {
	cw.handleSendError(cw.controller.QuickReply(cw.ctx, label))
}

func (cw *ChatWidget) handleSendError(err error) {
	switch {
	case err == nil:
		cw.window.Canvas().Focus(cw.input.entry)
	case errors.Is(err, utils.ErrConfigurationMissing):
		dialog.ShowInformation("Configuration missing", err.Error(), cw.window)
	case errors.Is(err, chatwidget.ErrBusy), errors.Is(err, chatwidget.ErrEmptyMessage):
		cw.logger.Debug("Send ignored: %v", err)
	default:
		cw.logger.Error("Send failed: %v", err)
	}
}

func (cw *ChatWidget) reset() {
	if err := cw.controller.Reset(); err != nil {
		dialog.ShowError(err, cw.window)
	}
}

// Detach stops repainting from controller notifications
func (cw *ChatWidget) Detach() {
	if cw.unsubscribe != nil {
		cw.unsubscribe()
		cw.unsubscribe = nil
	}
}
