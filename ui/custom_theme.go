package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

var (
	accentColor    = color.NRGBA{R: 0xdb, G: 0x27, B: 0x77, A: 0xff} // pink-600
	focusColor     = color.NRGBA{R: 0xec, G: 0x48, B: 0x99, A: 0xff}
	panelColor     = color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}
	bubbleColor    = color.NRGBA{R: 0x37, G: 0x41, B: 0x51, A: 0xff}
	mutedTextColor = color.NRGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
)

// customTheme wraps a base theme with the widget accent and font size
type customTheme struct {
	baseFontSize float32
	baseTheme    fyne.Theme
}

// newCustomTheme creates the widget theme on top of the light or dark default
func newCustomTheme(baseFontSize int, isDark bool) fyne.Theme {
	var base fyne.Theme
	if isDark {
		base = theme.DarkTheme()
	} else {
		base = theme.LightTheme()
	}

	return &customTheme{
		baseFontSize: float32(baseFontSize),
		baseTheme:    base,
	}
}

func (t *customTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return accentColor
	case theme.ColorNameFocus, theme.ColorNameSelection:
		return focusColor
	}
	return t.baseTheme.Color(name, variant)
}

func (t *customTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.baseTheme.Font(style)
}

func (t *customTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.baseTheme.Icon(name)
}

func (t *customTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return t.baseFontSize
	case theme.SizeNameHeadingText:
		return t.baseFontSize * 1.5
	case theme.SizeNameSubHeadingText:
		return t.baseFontSize * 1.2
	case theme.SizeNameCaptionText:
		return t.baseFontSize * 0.85
	default:
		return t.baseTheme.Size(name)
	}
}
