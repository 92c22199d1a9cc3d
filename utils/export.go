package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chat-widget/chat"
)

// ExportFormat represents the export format
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
)

// ErrNothingToExport is returned for an empty conversation
var ErrNothingToExport = errors.New("conversation is empty")

// TranscriptExport is the JSON shape of an exported conversation
type TranscriptExport struct {
	Title      string         `json:"title"`
	ExportedAt time.Time      `json:"exportedAt"`
	Messages   []chat.Message `json:"messages"`
}

// ExportTranscript writes messages to path in the given format
func ExportTranscript(messages []chat.Message, title string, format ExportFormat, path string) error {
	if len(messages) == 0 {
		return ErrNothingToExport
	}

	var data []byte
	switch format {
	case FormatJSON:
		var err error
		data, err = json.MarshalIndent(TranscriptExport{
			Title:      title,
			ExportedAt: time.Now(),
			Messages:   messages,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal transcript: %w", err)
		}
	case FormatMarkdown:
		data = []byte(transcriptMarkdown(messages, title))
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func transcriptMarkdown(messages []chat.Message, title string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("**Started**: %s\n\n", messages[0].CreatedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString("---\n\n")

	for i, msg := range messages {
		roleIcon, roleName := "👤", "Customer"
		switch msg.Role {
		case chat.RoleAssistant:
			roleIcon, roleName = "🤖", "Assistant"
		case chat.RoleSystem:
			roleIcon, roleName = "⚙️", "System"
		}

		sb.WriteString(fmt.Sprintf("## %s %s\n\n", roleIcon, roleName))
		sb.WriteString(fmt.Sprintf("*%s*\n\n", msg.CreatedAt.Format("15:04:05")))
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")

		if i < len(messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString(fmt.Sprintf("\n*Exported: %s*\n", time.Now().Format("2006-01-02 15:04:05")))
	return sb.String()
}

// GenerateExportFilename generates a filename for export
func GenerateExportFilename(title string, format ExportFormat) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, title)

	if runes := []rune(sanitized); len(runes) > 50 {
		sanitized = string(runes[:50])
	}
	if sanitized == "" {
		sanitized = "transcript"
	}

	ext := string(format)
	if format == FormatMarkdown {
		ext = "md"
	}
	return fmt.Sprintf("%s_%s.%s", sanitized, time.Now().Format("20060102_150405"), ext)
}

// GetDefaultExportPath returns the default export directory, creating it if needed
func GetDefaultExportPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	exportDir := filepath.Join(homeDir, "Documents", "ChatWidget_Exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return "", err
	}
	return exportDir, nil
}
