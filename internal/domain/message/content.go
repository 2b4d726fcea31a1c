package message

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Gopher0727/ChatCore/internal/domain"
)

const (
	MaxContentLength = 4000
	MaxEmojiLength   = 10

	// DeletedPlaceholder replaces the text of a deleted message on reads.
	DeletedPlaceholder = "[message deleted]"
)

// Content is message text: non-empty after trimming, at most MaxContentLength runes.
type Content string

func NewContent(raw string) (Content, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(text) > MaxContentLength {
		return "", domain.Validationf("content_too_long", "message content must be at most %d characters", MaxContentLength)
	}
	return Content(text), nil
}

func (c Content) String() string { return string(c) }

// Emoji is a reaction symbol of 1..MaxEmojiLength runes without whitespace.
type Emoji string

func NewEmoji(raw string) (Emoji, error) {
	e := strings.TrimSpace(raw)
	if e == "" {
		return "", ErrInvalidEmoji
	}
	if utf8.RuneCountInString(e) > MaxEmojiLength {
		return "", ErrInvalidEmoji
	}
	if strings.IndexFunc(e, unicode.IsSpace) >= 0 {
		return "", ErrInvalidEmoji
	}
	return Emoji(e), nil
}

func (e Emoji) String() string { return string(e) }
