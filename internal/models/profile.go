package models

import "strings"

// Profile is the public directory record for a user.
// The id is opaque and immutable; the tag is globally unique and
// compared case-insensitively.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"nickname"`
	Tag         string `json:"tag"`
	Email       string `json:"email,omitempty"`
	AvatarRef   string `json:"avatar,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

// NormalizeTag returns the canonical lookup form of a tag: trimmed,
// lower-cased, with the leading "@" guaranteed.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return tag
	}
	if !strings.HasPrefix(tag, "@") {
		tag = "@" + tag
	}
	return tag
}
