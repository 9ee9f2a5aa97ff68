package chat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"relaychat/internal/app/history"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/randx"
)

const (
	// binaryHeaderSize is the big-endian metadata length prefix.
	binaryHeaderSize = 4

	avatarPrefix = "avatars"
	filePrefix   = "files"

	// uploadsPath is where the HTTP router serves stored blobs.
	uploadsPath = "/uploads/"
)

var (
	errFrameTooShort   = errors.New("binary frame shorter than its length prefix")
	errMetadataOverrun = errors.New("metadata length exceeds frame size")
)

// UploadMetadata is the JSON header of a binary frame. Fields not used by a type stay empty.
type UploadMetadata struct {
	Type MessageType `json:"type"`

	// avatar_upload
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`

	Filename string `json:"filename"`

	// file_message
	FileType string `json:"fileType,omitempty"`
	Message  string `json:"message,omitempty"`
}

// DecodeBinaryFrame splits a frame into its metadata and body:
// [4-byte big-endian length L][L bytes of JSON metadata][body].
func DecodeBinaryFrame(frame []byte) (UploadMetadata, []byte, error) {
	var meta UploadMetadata

	if len(frame) < binaryHeaderSize {
		return meta, nil, errFrameTooShort
	}

	metaLen := binary.BigEndian.Uint32(frame[:binaryHeaderSize])
	if uint64(metaLen) > uint64(len(frame)-binaryHeaderSize) {
		return meta, nil, errMetadataOverrun
	}

	end := binaryHeaderSize + int(metaLen)
	if err := json.Unmarshal(frame[binaryHeaderSize:end], &meta); err != nil {
		return meta, nil, fmt.Errorf("decode upload metadata: %w", err)
	}

	return meta, frame[end:], nil
}

// EncodeBinaryFrame builds a frame in the layout DecodeBinaryFrame reads.
func EncodeBinaryFrame(meta UploadMetadata, body []byte) ([]byte, error) {
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, binaryHeaderSize, binaryHeaderSize+len(metaBytes)+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(metaBytes)))
	frame = append(frame, metaBytes...)
	return append(frame, body...), nil
}

// handleBinary routes an upload frame. Malformed frames are logged and dropped without a reply.
func (h *Hub) handleBinary(c *Client, frame []byte) {
	meta, body, err := DecodeBinaryFrame(frame)
	if err != nil {
		c.logger.Warn().Err(err).Int("frame_size", len(frame)).Msg("Dropping malformed binary frame")
		return
	}

	switch meta.Type {
	case TypeAvatarUpload:
		h.metrics.recordFrame(meta.Type)
		s := h.Session(c)
		if s == nil {
			c.SendError(errs.NewError(errs.ErrNotAuthenticated))
			return
		}
		h.handleAvatarUpload(c, s, meta, body)

	case TypeFileMessage:
		h.metrics.recordFrame(meta.Type)
		s := h.Session(c)
		if s == nil {
			c.SendError(errs.NewError(errs.ErrNotAuthenticated))
			return
		}
		h.handleFileMessage(c, s, meta, body)

	default:
		h.metrics.recordFrame(unknownFrameType)
		c.logger.Warn().Str("msg_type", string(meta.Type)).Msg("Dropping binary frame with unknown metadata type")
	}
}

// handleAvatarUpload stores a new avatar for the session's own account, updates every live
// session of that account and broadcasts presence.
func (h *Hub) handleAvatarUpload(c *Client, s *Session, meta UploadMetadata, body []byte) {
	fail := func(e *errs.CustomError) {
		c.sendEvent(TypeAvatarUploadResponse, AvatarUploadResponse{Success: false, Message: e.Message})
	}

	if user.NormalizeEmail(meta.Email) != s.Email || (meta.UserID != "" && meta.UserID != s.UserID) {
		c.logger.Warn().Str("username", s.Username).Msg("Rejected avatar upload for another account")
		fail(errs.NewError(errs.ErrAvatarForbidden))
		return
	}
	if e := ValidateUploadSize(len(body)); e != nil {
		fail(e)
		return
	}
	mimeType, e := ValidateImageName(meta.Filename)
	if e != nil {
		fail(e)
		return
	}

	filename := randx.StorageKey("", meta.Filename)
	key := path.Join(avatarPrefix, filename)

	ctx, cancel := h.storeContext()
	defer cancel()

	if err := h.blobs.Put(ctx, key, body, mimeType); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to store avatar")
		fail(errs.NewError(errs.ErrFileStorageFailed))
		return
	}

	if err := h.users.UpdateAvatar(ctx, s.Email, filename); err != nil {
		c.logger.Error().Err(err).Msg("Failed to record avatar")
		if delErr := h.blobs.Delete(ctx, key); delErr != nil {
			c.logger.Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphaned avatar")
		}
		fail(errs.NewError(errs.ErrUnknown))
		return
	}

	h.metrics.recordUpload(avatarPrefix, len(body))
	updated := h.replaceAvatar(s.Email, filename)
	c.logger.Info().Str("username", s.Username).Str("avatar", filename).Int("sessions", updated).Msg("Avatar updated")

	c.sendEvent(TypeAvatarUploadResponse, AvatarUploadResponse{Success: true, Avatar: filename})
	h.broadcastPresence()
}

// handleFileMessage stores an attachment and posts it as a chat message with an optional caption.
func (h *Hub) handleFileMessage(c *Client, s *Session, meta UploadMetadata, body []byte) {
	if e := ValidateUploadSize(len(body)); e != nil {
		c.SendError(e)
		return
	}

	var caption *string
	if text := strings.TrimSpace(meta.Message); text != "" {
		if len(text) > MaxContentBytes {
			c.SendError(errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes))
			return
		}
		caption = &text
	}

	originalName := SanitizeFileName(meta.Filename)
	key := randx.StorageKey(filePrefix, originalName)
	mimeType := attachmentMIME(meta.FileType, key)

	ctx, cancel := h.storeContext()
	defer cancel()

	if err := h.blobs.Put(ctx, key, body, mimeType); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to store attachment")
		c.SendError(errs.NewError(errs.ErrFileStorageFailed))
		return
	}
	h.metrics.recordUpload(filePrefix, len(body))

	attachment := &history.Attachment{
		StorageFilename: path.Base(key),
		OriginalName:    originalName,
		RelativePath:    uploadsPath + key,
		Size:            int64(len(body)),
		MimeType:        mimeType,
	}

	if !h.postMessage(c, s, caption, attachment) {
		cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancelCleanup()

		if err := h.blobs.Delete(cleanupCtx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to remove orphaned attachment")
		}
	}
}
