package ui

import (
	"testing"

	"chat-widget/chat"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageList_StreamedDeltaUpdatesLastBubbleInPlace(t *testing.T) {
	test.NewApp()
	list := newMessageList("Hello!", nil, nil)

	question := chat.NewMessage(chat.RoleUser, "Where's my order?")
	reply := chat.NewMessage(chat.RoleAssistant, "Hi")
	list.render([]chat.Message{question, reply}, true, true)
	require.Len(t, list.box.Objects, 3)

	firstBubble := list.box.Objects[0]
	replyLabel := list.labels[1]

	reply.Content = "Hi there"
	list.render([]chat.Message{question, reply}, true, true)

	assert.Same(t, firstBubble, list.box.Objects[0])
	assert.Same(t, replyLabel, list.labels[1])
	assert.Equal(t, "Hi there", replyLabel.Text)
	assert.Len(t, list.box.Objects, 3)
}

func TestMessageList_RebuildsWhenThreadChanges(t *testing.T) {
	test.NewApp()
	list := newMessageList("Hello!", []string{"Returns policy?"}, nil)

	list.render(nil, true, false)
	require.Len(t, list.box.Objects, 1, "welcome block only")

	question := chat.NewMessage(chat.RoleUser, "Returns policy?")
	list.render([]chat.Message{question}, true, true)
	require.Len(t, list.box.Objects, 2, "bubble plus loading dots")
	label := list.labels[0]

	reply := chat.NewMessage(chat.RoleAssistant, "30 days")
	list.render([]chat.Message{question, reply}, true, false)
	require.Len(t, list.box.Objects, 2)
	assert.NotSame(t, label, list.labels[0])
	assert.Equal(t, "30 days", list.labels[1].Text)
}
