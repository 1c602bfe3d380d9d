package models

import "time"

// AttachmentKind classifies a media attachment on a feed item.
type AttachmentKind string

const (
	AttachmentImage       AttachmentKind = "image"
	AttachmentVideo       AttachmentKind = "video"
	AttachmentLinkPreview AttachmentKind = "link-preview"
)

// OriginKind tells whether an item is an original post, a repost/retweet
// or a reply. Reposts are rendered differently so readers can tell them
// apart from the author's own posts.
type OriginKind string

const (
	OriginOriginal OriginKind = "original"
	OriginRepost   OriginKind = "repost"
	OriginReply    OriginKind = "reply"
)

// Author identifies the account a post was published under.
type Author struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
	URL    string `json:"url"`
}

// Attachment is a single media entity attached to a post. URL is always
// set; ThumbnailURL and Caption are optional.
type Attachment struct {
	Kind         AttachmentKind `json:"kind"`
	URL          string         `json:"url"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Caption      string         `json:"caption,omitempty"`
}

// Origin carries the provenance of an item. SourceAuthor is set for
// reposts and points at the account that wrote the original post.
type Origin struct {
	Kind         OriginKind `json:"kind"`
	SourceAuthor *Author    `json:"sourceAuthor,omitempty"`
}

// Item is the provider-agnostic representation of one social network
// post. Every provider normalizes its raw payloads into this model.
type Item struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Author      Author       `json:"author"`
	Text        string       `json:"text"`
	Link        string       `json:"link"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Origin      Origin       `json:"origin"`
}
