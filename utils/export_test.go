package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chat-widget/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcript() []chat.Message {
	return []chat.Message{
		chat.NewMessage(chat.RoleUser, "Returns policy?"),
		chat.NewMessage(chat.RoleAssistant, "You can return items within 30 days."),
	}
}

func TestExportTranscript_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.md")
	require.NoError(t, ExportTranscript(transcript(), "Support Assistant", FormatMarkdown, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(data)

	assert.True(t, strings.HasPrefix(md, "# Support Assistant\n"))
	assert.Contains(t, md, "## 👤 Customer")
	assert.Contains(t, md, "## 🤖 Assistant")
	assert.Less(t, strings.Index(md, "Returns policy?"), strings.Index(md, "within 30 days"))
}

func TestExportTranscript_JSON(t *testing.T) {
	msgs := transcript()
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, ExportTranscript(msgs, "Support Assistant", FormatJSON, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export TranscriptExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "Support Assistant", export.Title)
	require.Len(t, export.Messages, 2)
	assert.Equal(t, msgs[1].Content, export.Messages[1].Content)
	assert.Equal(t, msgs[1].ID, export.Messages[1].ID)
}

func TestExportTranscript_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, ExportTranscript(nil, "x", FormatJSON, filepath.Join(dir, "a.json")), ErrNothingToExport)
	assert.Error(t, ExportTranscript(transcript(), "x", ExportFormat("pdf"), filepath.Join(dir, "a.pdf")))
}

func TestGenerateExportFilename(t *testing.T) {
	name := GenerateExportFilename("Support: Assistant?", FormatMarkdown)
	assert.True(t, strings.HasPrefix(name, "Support__Assistant__"), name)
	assert.True(t, strings.HasSuffix(name, ".md"))

	assert.True(t, strings.HasPrefix(GenerateExportFilename("", FormatJSON), "transcript_"))
}
