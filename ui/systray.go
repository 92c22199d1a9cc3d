package ui

import (
	"bytes"
	"image"
	"image/png"

	"fyne.io/fyne/v2"
	"fyne.io/systray"
)

// SetupSystemTray sets up the system tray icon and menu
func (a *App) SetupSystemTray() {
	go systray.Run(a.onTrayReady, a.onTrayExit)
	a.logger.Info("System tray initialized")
}

func (a *App) onTrayReady() {
	systray.SetIcon(trayIcon())
	systray.SetTitle(a.settings.Title)
	systray.SetTooltip(a.settings.Title)

	mOpen := systray.AddMenuItem("Open chat", "Show the window with the chat open")
	mReset := systray.AddMenuItem("Reset conversation", "Clear the conversation history")
	mExport := systray.AddMenuItem("Export transcript", "Save the conversation as Markdown")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	go func() {
		for {
			select {
			case <-mOpen.ClickedCh:
				fyne.Do(func() {
					a.window.Show()
					a.controller.Open()
				})
				a.logger.Info("Chat opened from system tray")
			case <-mReset.ClickedCh:
				if err := a.controller.Reset(); err != nil {
					a.logger.Error("Reset from system tray failed: %v", err)
				}
			case <-mExport.ClickedCh:
				fyne.Do(func() {
					a.exportTranscript()
				})
			case <-mQuit.ClickedCh:
				a.logger.Info("Quit from system tray")
				fyne.Do(a.fyneApp.Quit)
				systray.Quit()
				return
			}
		}
	}()
}

func (a *App) onTrayExit() {
	a.logger.Info("System tray exited")
}

// trayIcon draws a 16x16 accent-coloured dot
func trayIcon() []byte {
	const size = 16
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	center := float64(size-1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			if dx*dx+dy*dy <= center*center {
				img.Set(x, y, accentColor)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
