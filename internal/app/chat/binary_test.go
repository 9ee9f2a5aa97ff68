package chat

import (
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"relaychat/internal/app/history"
)

func TestDecodeBinaryFrame(t *testing.T) {
	frame, err := EncodeBinaryFrame(UploadMetadata{Type: TypeFileMessage, Filename: "a.txt", Message: "caption"}, []byte("body"))
	require.NoError(t, err)

	meta, body, err := DecodeBinaryFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeFileMessage, meta.Type)
	assert.Equal(t, "a.txt", meta.Filename)
	assert.Equal(t, "caption", meta.Message)
	assert.Equal(t, "body", string(body))
}

func TestDecodeBinaryFrameRejectsMalformed(t *testing.T) {
	overrun := make([]byte, 4, 10)
	binary.BigEndian.PutUint32(overrun, 100)
	overrun = append(overrun, []byte(`{"type":"x"}`)...)

	notJSON := make([]byte, 4)
	binary.BigEndian.PutUint32(notJSON, 3)
	notJSON = append(notJSON, []byte("abcbody")...)

	for name, frame := range map[string][]byte{
		"empty":     {},
		"short":     {0, 0, 1},
		"overrun":   overrun,
		"not json":  notJSON,
		"max len":   {0xff, 0xff, 0xff, 0xff, '{', '}'},
		"zero meta": {0, 0, 0, 0, 'x'},
	} {
		_, _, err := DecodeBinaryFrame(frame)
		assert.Error(t, err, name)
	}
}

func TestDecodeBinaryFrameNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frame := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "frame")
		_, body, err := DecodeBinaryFrame(frame)
		if err == nil && len(body) > len(frame) {
			t.Fatalf("body longer than frame")
		}
	})
}

func TestBinaryFrameBodyIsPreserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		meta := UploadMetadata{
			Type:     TypeFileMessage,
			Filename: rapid.String().Draw(t, "filename"),
			Message:  rapid.String().Draw(t, "message"),
		}
		body := rapid.SliceOf(rapid.Byte()).Draw(t, "body")

		frame, err := EncodeBinaryFrame(meta, body)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		_, gotBody, err := DecodeBinaryFrame(frame)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(gotBody) != string(body) {
			t.Fatalf("body changed: got %d bytes, want %d", len(gotBody), len(body))
		}
	})
}

func TestMalformedBinaryFrameIsDropped(t *testing.T) {
	env := newTestEnv(t)
	observer := env.connect()
	alice := env.connect()
	env.login(t, alice, "alice", observer)

	env.hub.HandleFrame(alice, []byte{0, 0, 0, 50, '{'})
	env.hub.HandleFrame(alice, []byte{0, 0, 0, 2, 'n', 'o', 'p', 'e'})

	unknown, err := EncodeBinaryFrame(UploadMetadata{Type: "sticker", Filename: "x.png"}, []byte("x"))
	require.NoError(t, err)
	env.hub.HandleFrame(alice, unknown)

	assert.Empty(t, drain(alice))
	assert.Empty(t, drain(observer))
	assert.NotNil(t, env.hub.Session(alice), "the connection keeps its session")
}

func TestAvatarUpload(t *testing.T) {
	env := newTestEnv(t)
	observer := env.connect()
	alice := env.connect()
	second := env.connect()
	u := env.login(t, alice, "alice", observer, second)
	env.send(t, second, TypeLogin, LoginPayload{Email: u.Email, Password: testPassword})
	drain(alice)
	drain(second)
	drain(observer)

	frame, err := EncodeBinaryFrame(UploadMetadata{
		Type:     TypeAvatarUpload,
		UserID:   u.ID,
		Email:    u.Email,
		Filename: "Me.PNG",
	}, []byte("png-bytes"))
	require.NoError(t, err)

	env.hub.HandleFrame(alice, frame)

	events := drain(alice)
	require.Equal(t, []MessageType{TypeAvatarUploadResponse, TypeUsers}, eventTypes(events))
	resp := decode[AvatarUploadResponse](t, events[0])
	require.True(t, resp.Success)
	assert.True(t, strings.HasSuffix(resp.Avatar, ".png"))

	stored, ok := env.blobs.get("avatars/" + resp.Avatar)
	require.True(t, ok)
	assert.Equal(t, "png-bytes", string(stored))

	record, err := env.users.ByEmail(t.Context(), u.Email)
	require.NoError(t, err)
	require.NotNil(t, record.Avatar)
	assert.Equal(t, resp.Avatar, *record.Avatar)

	for _, c := range []*Client{alice, second} {
		s := env.hub.Session(c)
		require.NotNil(t, s.Avatar)
		assert.Equal(t, resp.Avatar, *s.Avatar, "every live session of the account is updated")
	}

	presence := decode[[]PresenceEntry](t, drain(observer)[0])
	require.Len(t, presence, 2)
	require.NotNil(t, presence[0].Avatar)
	assert.Equal(t, resp.Avatar, *presence[0].Avatar)

	env.send(t, alice, TypeMessage, ChatPayload{Message: "new look"})
	msg := decode[history.Message](t, drain(observer)[0])
	require.NotNil(t, msg.AuthorAvatar)
	assert.Equal(t, resp.Avatar, *msg.AuthorAvatar)
}

func TestAvatarUploadRejections(t *testing.T) {
	env := newTestEnv(t)
	observer := env.connect()
	alice := env.connect()
	u := env.login(t, alice, "alice", observer)

	cases := []struct {
		name    string
		meta    UploadMetadata
		body    []byte
		message string
	}{
		{
			"another account",
			UploadMetadata{Type: TypeAvatarUpload, Email: "bob@example.com", Filename: "a.png"},
			[]byte("png"),
			"You can only change your own avatar.",
		},
		{
			"not an image",
			UploadMetadata{Type: TypeAvatarUpload, Email: u.Email, Filename: "a.exe"},
			[]byte("MZ"),
			"File type is not allowed.",
		},
		{
			"empty body",
			UploadMetadata{Type: TypeAvatarUpload, Email: u.Email, Filename: "a.png"},
			nil,
			"Invalid request parameters.",
		},
		{
			"too large",
			UploadMetadata{Type: TypeAvatarUpload, Email: u.Email, Filename: "a.png"},
			make([]byte, MaxUploadSize+1),
			"File is too large (max 10 MB).",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := EncodeBinaryFrame(tc.meta, tc.body)
			require.NoError(t, err)

			env.hub.HandleFrame(alice, frame)

			events := drain(alice)
			require.Equal(t, []MessageType{TypeAvatarUploadResponse}, eventTypes(events))
			resp := decode[AvatarUploadResponse](t, events[0])
			assert.False(t, resp.Success)
			assert.Equal(t, tc.message, resp.Message)
			assert.Empty(t, drain(observer))
		})
	}

	assert.Empty(t, env.blobs.objects)
}

func TestAvatarUploadStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	alice := env.connect()
	u := env.login(t, alice, "alice")
	env.blobs.failing = true

	frame, err := EncodeBinaryFrame(UploadMetadata{Type: TypeAvatarUpload, Email: u.Email, Filename: "a.png"}, []byte("png"))
	require.NoError(t, err)
	env.hub.HandleFrame(alice, frame)

	resp := decode[AvatarUploadResponse](t, drain(alice)[0])
	assert.False(t, resp.Success)
	assert.Equal(t, "File upload failed. Please try again.", resp.Message)
	assert.Nil(t, env.hub.Session(alice).Avatar)
}

func TestFileMessage(t *testing.T) {
	env := newTestEnv(t)
	observer := env.connect()
	alice := env.connect()
	env.login(t, alice, "alice", observer)

	frame, err := EncodeBinaryFrame(UploadMetadata{
		Type:     TypeFileMessage,
		Filename: "../../Quarterly Report.PDF",
		FileType: "application/pdf",
		Message:  "  numbers  ",
	}, []byte("%PDF-1.7"))
	require.NoError(t, err)

	env.hub.HandleFrame(alice, frame)

	events := drain(observer)
	require.Equal(t, []MessageType{TypeMessage}, eventTypes(events))
	msg := decode[history.Message](t, events[0])

	require.NotNil(t, msg.Text)
	assert.Equal(t, "numbers", *msg.Text)
	assert.Equal(t, "alice", msg.Author)
	require.NotNil(t, msg.File)
	assert.Equal(t, "Quarterly Report.PDF", msg.File.OriginalName)
	assert.Equal(t, "application/pdf", msg.File.MimeType)
	assert.EqualValues(t, len("%PDF-1.7"), msg.File.Size)
	assert.True(t, strings.HasSuffix(msg.File.StorageFilename, ".pdf"))
	assert.Equal(t, "/uploads/files/"+msg.File.StorageFilename, msg.File.RelativePath)

	stored, ok := env.blobs.get("files/" + msg.File.StorageFilename)
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.7", string(stored))

	assert.Equal(t, []history.Message{msg}, env.history.Snapshot())
}

func TestFileMessageWithoutCaption(t *testing.T) {
	env := newTestEnv(t)
	alice := env.connect()
	env.login(t, alice, "alice")

	frame, err := EncodeBinaryFrame(UploadMetadata{Type: TypeFileMessage, Filename: "notes.txt"}, []byte("hello"))
	require.NoError(t, err)
	env.hub.HandleFrame(alice, frame)

	events := drain(alice)
	require.Equal(t, []MessageType{TypeMessage}, eventTypes(events))
	assert.Contains(t, string(events[0].Payload), `"message":null`)

	msg := decode[history.Message](t, events[0])
	assert.Nil(t, msg.Text)
	assert.Equal(t, "text/plain; charset=utf-8", msg.File.MimeType)
}

func TestFileMessagePersistFailureRemovesBlob(t *testing.T) {
	env := newTestEnv(t)
	alice := env.connect()
	env.login(t, alice, "alice")
	env.store.setFailing(true)

	frame, err := EncodeBinaryFrame(UploadMetadata{Type: TypeFileMessage, Filename: "notes.txt"}, []byte("hello"))
	require.NoError(t, err)
	env.hub.HandleFrame(alice, frame)

	events := drain(alice)
	require.Equal(t, []MessageType{TypeError}, eventTypes(events))
	assert.Empty(t, env.blobs.objects)
}

func TestFileMessageCleanupOutlivesTimedOutSave(t *testing.T) {
	env := newTestEnv(t)
	alice := env.connect()
	env.login(t, alice, "alice")
	env.hub.storeTimeout = 30 * time.Millisecond
	env.store.setBlocking(true)

	frame, err := EncodeBinaryFrame(UploadMetadata{Type: TypeFileMessage, Filename: "notes.txt"}, []byte("hello"))
	require.NoError(t, err)
	env.hub.HandleFrame(alice, frame)

	assert.Equal(t, []MessageType{TypeError}, eventTypes(drain(alice)))
	assert.Empty(t, env.blobs.objects, "the attachment is removed although the save timed out")
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "b.txt", SanitizeFileName(`C:\temp\b.txt`))
	assert.Equal(t, "file", SanitizeFileName(".."))
	assert.Equal(t, "file", SanitizeFileName(""))
	assert.Equal(t, "ab.txt", SanitizeFileName("a\x00b.txt"))
}
