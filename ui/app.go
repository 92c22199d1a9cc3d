package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"chat-widget/utils"
	chatwidget "chat-widget/widget"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

const (
	appID        = "chat-widget"
	windowWidth  = 1100
	windowHeight = 760
	fontSize     = 14
)

// App is the desktop host: a store page with the support chat floating above it
type App struct {
	fyneApp    fyne.App
	window     fyne.Window
	settings   utils.Settings
	controller *chatwidget.Controller
	logger     *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc

	chatWidget *ChatWidget
}

// NewApp creates a new application instance
func NewApp(settings utils.Settings, controller *chatwidget.Controller, logger *utils.Logger) *App {
	return newApp(app.NewWithID(appID), settings, controller, logger)
}

func newApp(fyneApp fyne.App, settings utils.Settings, controller *chatwidget.Controller, logger *utils.Logger) *App {
	window := fyneApp.NewWindow(settings.Title)
	window.Resize(fyne.NewSize(windowWidth, windowHeight))

	ctx, cancel := context.WithCancel(context.Background())
	application := &App{
		fyneApp:    fyneApp,
		window:     window,
		settings:   settings,
		controller: controller,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	fyneApp.Settings().SetTheme(newCustomTheme(fontSize, true))

	// Closing the host window ends any reply still streaming
	window.SetOnClosed(func() {
		application.logger.Info("Window closed, shutting down")
		application.Cleanup()
	})

	application.buildUI()
	return application
}

func (a *App) buildUI() {
	a.chatWidget = NewChatWidget(a.ctx, a.controller, a.window, a.logger)
	overlay := a.chatWidget.Build()

	a.window.SetContent(container.NewStack(buildStorePage(), overlay))
	a.setupKeyboardShortcuts()
}

// buildStorePage is the host page the widget floats over
func buildStorePage() fyne.CanvasObject {
	heading := widget.NewLabelWithStyle("Demo Store", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	intro := widget.NewLabel("Browse the catalogue, track an order or ask the support assistant in the corner.")
	intro.Wrapping = fyne.TextWrapWord

	products := container.NewGridWithColumns(3,
		widget.NewCard("Canvas Tote", "€24", widget.NewLabel("Organic cotton, 12 L")),
		widget.NewCard("Enamel Mug", "€14", widget.NewLabel("350 ml, dishwasher safe")),
		widget.NewCard("Linen Apron", "€38", widget.NewLabel("Adjustable straps")),
	)

	return container.NewPadded(container.NewVBox(heading, intro, widget.NewSeparator(), products))
}

// setupKeyboardShortcuts sets up global keyboard shortcuts
func (a *App) setupKeyboardShortcuts() {
	a.window.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		if key.Name == fyne.KeyEscape && a.controller.IsOpen() {
			a.controller.Close()
		}
	})
}

// exportTranscript saves the conversation as Markdown in the default export folder
func (a *App) exportTranscript() (string, error) {
	dir, err := utils.GetDefaultExportPath()
	if err != nil {
		a.logger.Error("Failed to prepare export folder: %v", err)
		dialog.ShowError(err, a.window)
		return "", err
	}

	path := filepath.Join(dir, utils.GenerateExportFilename(a.settings.Title, utils.FormatMarkdown))
	if err := utils.ExportTranscript(a.controller.Messages(), a.settings.Title, utils.FormatMarkdown, path); err != nil {
		if errors.Is(err, utils.ErrNothingToExport) {
			dialog.ShowInformation("Export transcript", "There is nothing to export yet.", a.window)
		} else {
			a.logger.Error("Failed to export transcript: %v", err)
			dialog.ShowError(err, a.window)
		}
		return "", err
	}

	a.logger.Info("Transcript exported to %s", path)
	dialog.ShowInformation("Export transcript", fmt.Sprintf("Saved to %s", path), a.window)
	return path, nil
}

// Run shows the window with the tray icon and blocks until the app quits
func (a *App) Run() {
	a.SetupSystemTray()
	a.window.ShowAndRun()
}

// Cleanup cancels the outstanding request and detaches the views
func (a *App) Cleanup() {
	a.cancel()
	a.controller.Shutdown()
	if a.chatWidget != nil {
		a.chatWidget.Detach()
	}
}
