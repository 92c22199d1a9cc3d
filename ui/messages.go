package ui

import (
	"chat-widget/chat"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const loadingText = "●  ●  ●"

// messageList renders the conversation, the welcome block and the loading indicator
type messageList struct {
	welcome      string
	quickReplies []string
	onQuickReply func(label string)

	box    *fyne.Container
	scroll *container.Scroll

	// what the box currently shows
	shown        []chat.Message
	labels       []*widget.Label
	shownWelcome bool
	shownLoading bool
}

func newMessageList(welcome string, quickReplies []string, onQuickReply func(string)) *messageList {
	l := &messageList{
		welcome:      welcome,
		quickReplies: quickReplies,
		onQuickReply: onQuickReply,
		box:          container.NewVBox(),
	}
	l.scroll = container.NewVScroll(l.box)
	return l
}

// render brings the list in line with messages. A streamed delta only grows the
// last message, so that case updates its label in place.
func (l *messageList) render(messages []chat.Message, showWelcome, loading bool) {
	welcome := showWelcome && len(messages) == 0

	if l.onlyLastChanged(messages, welcome, loading) {
		last := len(messages) - 1
		if messages[last].Content != l.shown[last].Content {
			l.shown[last] = messages[last]
			l.labels[last].SetText(messages[last].Content)
			l.scroll.ScrollToBottom()
		}
		return
	}

	objects := make([]fyne.CanvasObject, 0, len(messages)+2)
	labels := make([]*widget.Label, 0, len(messages))

	if welcome {
		objects = append(objects, l.buildWelcome())
	}
	for _, msg := range messages {
		bubble, label := buildBubble(msg)
		objects = append(objects, bubble)
		labels = append(labels, label)
	}
	if loading {
		objects = append(objects, buildLoading())
	}

	l.shown = append(l.shown[:0], messages...)
	l.labels = labels
	l.shownWelcome = welcome
	l.shownLoading = loading

	l.box.Objects = objects
	l.box.Refresh()
	l.scroll.ScrollToBottom()
}

// onlyLastChanged reports whether the box already holds the same messages,
// apart from the content of the final one
func (l *messageList) onlyLastChanged(messages []chat.Message, welcome, loading bool) bool {
	if len(messages) == 0 || len(messages) != len(l.shown) {
		return false
	}
	if welcome != l.shownWelcome || loading != l.shownLoading {
		return false
	}
	last := len(messages) - 1
	for i := 0; i < last; i++ {
		if messages[i].ID != l.shown[i].ID || messages[i].Content != l.shown[i].Content {
			return false
		}
	}
	return messages[last].ID == l.shown[last].ID && messages[last].Role == l.shown[last].Role
}

func (l *messageList) buildWelcome() fyne.CanvasObject {
	greeting := widget.NewLabel(l.welcome)
	greeting.Wrapping = fyne.TextWrapWord

	chips := make([]fyne.CanvasObject, 0, len(l.quickReplies))
	for _, label := range l.quickReplies {
		chip := widget.NewButton(label, func() {
			if l.onQuickReply != nil {
				l.onQuickReply(label)
			}
		})
		chip.Importance = widget.LowImportance
		chips = append(chips, chip)
	}

	return container.NewVBox(
		greeting,
		container.NewGridWrap(fyne.NewSize(170, 36), chips...),
	)
}

// buildBubble draws one message; user messages sit on the accent colour and align right
func buildBubble(msg chat.Message) (fyne.CanvasObject, *widget.Label) {
	text := widget.NewLabel(msg.Content)
	text.Wrapping = fyne.TextWrapWord

	background := canvas.NewRectangle(bubbleColor)
	background.CornerRadius = 8

	caption := canvas.NewText("Assistant", mutedTextColor)
	caption.TextSize = 11
	if msg.Role == chat.RoleUser {
		background.FillColor = accentColor
		text.Alignment = fyne.TextAlignTrailing
		caption.Text = "You"
		caption.Alignment = fyne.TextAlignTrailing
	}

	return container.NewVBox(
		caption,
		container.NewStack(background, container.NewPadded(text)),
	), text
}

func buildLoading() fyne.CanvasObject {
	dots := canvas.NewText(loadingText, mutedTextColor)
	background := canvas.NewRectangle(bubbleColor)
	background.CornerRadius = 8
	return container.NewHBox(container.NewStack(background, container.NewPadded(dots)))
}
