package storage

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"chat-widget/chat"
	"chat-widget/db"
	"chat-widget/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessages() []chat.Message {
	base := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)
	return []chat.Message{
		{ID: base.UnixMilli(), Role: chat.RoleUser, Content: "Where's my order?", CreatedAt: base},
		{ID: base.UnixMilli() + 1, Role: chat.RoleAssistant, Content: "It ships tomorrow.\nTracking follows.", CreatedAt: base.Add(time.Second)},
	}
}

func assertSameMessages(t *testing.T, want, got []chat.Message) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Role, got[i].Role)
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt), "createdAt of message %d", i)
	}
}

func openDurable(t *testing.T, path string) *db.DB {
	t.Helper()
	database, err := db.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestStore_RoundTripPerMode(t *testing.T) {
	durable := openDurable(t, filepath.Join(t.TempDir(), "chat.db"))

	stores := map[string]*Store{
		"session": NewStore(utils.StorageSession, NewSessionBackend(), nil),
		"durable": NewStore(utils.StorageDurable, NewDurableBackend(durable), nil),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			msgs := sampleMessages()
			require.NoError(t, store.Save(msgs))
			assertSameMessages(t, msgs, store.Load())
		})
	}
}

func TestStore_MemoryModeNeverPersists(t *testing.T) {
	backend := NewSessionBackend()
	store := NewStore(utils.StorageMemory, backend, nil)

	require.NoError(t, store.Save(sampleMessages()))
	assert.Empty(t, store.Load())

	_, ok, _ := backend.Read(ConversationKey)
	assert.False(t, ok, "memory mode must not touch any backend")
}

func TestStore_EmptySaveRemovesEntry(t *testing.T) {
	backend := NewSessionBackend()
	store := NewStore(utils.StorageSession, backend, nil)

	require.NoError(t, store.Save(sampleMessages()))
	_, ok, _ := backend.Read(ConversationKey)
	require.True(t, ok)

	require.NoError(t, store.Save(nil))
	_, ok, _ = backend.Read(ConversationKey)
	assert.False(t, ok)
}

func TestStore_ClearRemovesEntry(t *testing.T) {
	database := openDurable(t, filepath.Join(t.TempDir(), "chat.db"))
	store := NewStore(utils.StorageDurable, NewDurableBackend(database), nil)

	require.NoError(t, store.Save(sampleMessages()))
	require.NoError(t, store.Clear())

	count, err := database.CountEntries()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.Load())
}

func TestStore_MalformedStateDegradesToEmpty(t *testing.T) {
	cases := map[string]string{
		"not json":        "not json",
		"future version":  `{"version":2,"messages":[]}`,
		"bad role":        `{"messages":[{"id":1,"role":"tool","content":"x","createdAt":"2025-01-01T00:00:00Z"}]}`,
		"messages string": `{"messages":"nope"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			backend := NewSessionBackend()
			require.NoError(t, backend.Write(ConversationKey, raw))

			store := NewStore(utils.StorageSession, backend, utils.NewWriterLogger(&logs))
			assert.Empty(t, store.Load())
			assert.Contains(t, logs.String(), "Failed to load conversation")
		})
	}
}

func TestStore_LoadsUnversionedEnvelope(t *testing.T) {
	backend := NewSessionBackend()
	raw := `{"messages":[{"id":1700000000000,"role":"user","content":"Returns policy?","createdAt":"2023-11-14T22:13:20Z"}]}`
	require.NoError(t, backend.Write(ConversationKey, raw))

	msgs := NewStore(utils.StorageSession, backend, nil).Load()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1700000000000), msgs[0].ID)
	assert.Equal(t, "Returns policy?", msgs[0].Content)
}

func TestStore_DurableSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	msgs := sampleMessages()

	first, err := db.New(path)
	require.NoError(t, err)
	require.NoError(t, NewStore(utils.StorageDurable, NewDurableBackend(first), nil).Save(msgs))
	require.NoError(t, first.Close())

	second := openDurable(t, path)
	assertSameMessages(t, msgs, NewStore(utils.StorageDurable, NewDurableBackend(second), nil).Load())
}

func TestBackendFor(t *testing.T) {
	backend, err := BackendFor(utils.StorageMemory, nil)
	require.NoError(t, err)
	assert.IsType(t, MemoryBackend{}, backend)

	backend, err = BackendFor(utils.StorageSession, nil)
	require.NoError(t, err)
	assert.Same(t, ProcessSession(), backend)

	_, err = BackendFor(utils.StorageDurable, nil)
	assert.Error(t, err)

	_, err = BackendFor("cookies", nil)
	assert.Error(t, err)
}
