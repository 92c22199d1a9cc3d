package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const inputPlaceholder = "Type your message... (Enter to send, Shift+Enter for newline)"

// messageEntry is a multi-line entry where Enter submits and Shift+Enter breaks the line.
// The canvas key handler never sees keys while the entry has focus, so Escape is handled here too.
type messageEntry struct {
	widget.Entry
	onSubmit func()
	onEscape func()
	shift    bool
}

func newMessageEntry(onSubmit, onEscape func()) *messageEntry {
	e := &messageEntry{onSubmit: onSubmit, onEscape: onEscape}
	e.MultiLine = true
	e.Wrapping = fyne.TextWrapWord
	e.SetMinRowsVisible(2)
	e.SetPlaceHolder(inputPlaceholder)
	e.ExtendBaseWidget(e)
	return e
}

// KeyDown tracks the shift modifier on desktop drivers
func (e *messageEntry) KeyDown(key *fyne.KeyEvent) {
	if key.Name == desktop.KeyShiftLeft || key.Name == desktop.KeyShiftRight {
		e.shift = true
	}
	e.Entry.KeyDown(key)
}

// KeyUp tracks the shift modifier on desktop drivers
func (e *messageEntry) KeyUp(key *fyne.KeyEvent) {
	if key.Name == desktop.KeyShiftLeft || key.Name == desktop.KeyShiftRight {
		e.shift = false
	}
	e.Entry.KeyUp(key)
}

// TypedKey submits on a bare Enter and dismisses on Escape
func (e *messageEntry) TypedKey(key *fyne.KeyEvent) {
	if key.Name == fyne.KeyEscape && e.onEscape != nil {
		e.onEscape()
		return
	}
	if (key.Name == fyne.KeyReturn || key.Name == fyne.KeyEnter) && !e.shift {
		if e.onSubmit != nil {
			e.onSubmit()
		}
		return
	}
	e.Entry.TypedKey(key)
}

// inputBox is the entry plus the send button along the bottom of the panel
type inputBox struct {
	entry      *messageEntry
	sendButton *widget.Button
	content    fyne.CanvasObject
}

func newInputBox(onSubmit, onEscape func(), onChanged func(string)) *inputBox {
	box := &inputBox{}
	box.entry = newMessageEntry(onSubmit, onEscape)
	box.entry.OnChanged = onChanged

	box.sendButton = widget.NewButtonWithIcon("", theme.MailSendIcon(), onSubmit)
	box.sendButton.Importance = widget.HighImportance
	box.sendButton.Disable()

	box.content = container.NewBorder(nil, nil, nil, box.sendButton, box.entry)
	return box
}

// sync brings the entry and button in line with the controller
func (b *inputBox) sync(text string, canSubmit bool) {
	if b.entry.Text != text {
		b.entry.SetText(text)
	}
	if canSubmit {
		b.sendButton.Enable()
	} else {
		b.sendButton.Disable()
	}
}
