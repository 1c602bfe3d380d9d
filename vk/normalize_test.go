package vk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialrss/models"
	"socialrss/vk"
)

func users() ([]vk.Profile, []vk.Group) {
	profiles := []vk.Profile{
		{ID: 1, FirstName: "Pavel", LastName: "Durov", ScreenName: "durov"},
		{ID: 2, FirstName: "Ivan", LastName: "Petrov"},
	}
	groups := []vk.Group{
		{ID: 30, Name: "Habr", ScreenName: "habr"},
	}
	return profiles, groups
}

func TestNormalizeWallPost(t *testing.T) {
	profiles, groups := users()
	payload := &vk.Payload{
		Items: []vk.Post{
			{
				Type:     "post",
				SourceID: 1,
				PostID:   10,
				Date:     1714557600,
				Text:     "Check out [id2|Ivan Petrov] &amp; friends",
			},
		},
		Profiles: profiles,
		Groups:   groups,
	}

	items := vk.Normalize(payload)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "1_10", item.ID)
	assert.Equal(t, time.Unix(1714557600, 0).UTC(), item.Timestamp)
	assert.Equal(t, "Pavel Durov", item.Author.Name)
	assert.Equal(t, "https://vk.com/durov", item.Author.URL)
	assert.Equal(t, "https://vk.com/wall1_10", item.Link)
	assert.Equal(t, models.OriginOriginal, item.Origin.Kind)
	// Mention markup rewritten, HTML entities unescaped.
	assert.Equal(t, "Check out Ivan Petrov (https://vk.com/id2) & friends", item.Text)
}

func TestNormalizeGroupPost(t *testing.T) {
	profiles, groups := users()
	payload := &vk.Payload{
		Items: []vk.Post{
			{Type: "post", SourceID: -30, PostID: 7, Date: 1714557600, Text: "From the community"},
		},
		Profiles: profiles,
		Groups:   groups,
	}

	items := vk.Normalize(payload)
	require.Len(t, items, 1)
	assert.Equal(t, "Habr", items[0].Author.Name)
	assert.Equal(t, "-30_7", items[0].ID)
}

func TestNormalizeRepost(t *testing.T) {
	profiles, groups := users()
	payload := &vk.Payload{
		Items: []vk.Post{
			{
				Type:     "post",
				SourceID: 1,
				PostID:   11,
				Date:     1714557700,
				Text:     "",
				CopyHistory: []vk.Post{
					{
						OwnerID: -30,
						ID:      99,
						Date:    1714550000,
						Text:    "Original community post",
						Attachments: []vk.Attachment{
							{
								Type: "photo",
								Photo: &vk.Photo{Sizes: []vk.PhotoSize{
									{Type: "m", URL: "https://img.vk.com/m.jpg", Width: 130},
									{Type: "x", URL: "https://img.vk.com/x.jpg", Width: 604},
								}},
							},
						},
					},
				},
			},
		},
		Profiles: profiles,
		Groups:   groups,
	}

	items := vk.Normalize(payload)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, models.OriginRepost, item.Origin.Kind)
	require.NotNil(t, item.Origin.SourceAuthor)
	assert.Equal(t, "Habr", item.Origin.SourceAuthor.Name)
	// Empty own text falls back to the copied post's text.
	assert.Equal(t, "Original community post", item.Text)
	// The repost carries the original's attachments, largest photo wins.
	require.Len(t, item.Attachments, 1)
	assert.Equal(t, models.AttachmentImage, item.Attachments[0].Kind)
	assert.Equal(t, "https://img.vk.com/x.jpg", item.Attachments[0].URL)
}

func TestNormalizePhotoOnlyPost(t *testing.T) {
	profiles, groups := users()
	payload := &vk.Payload{
		Items: []vk.Post{
			{
				Type:     "post",
				SourceID: 1,
				PostID:   12,
				Date:     1714557800,
				Text:     "",
				Attachments: []vk.Attachment{
					{
						Type: "photo",
						Photo: &vk.Photo{Sizes: []vk.PhotoSize{
							{Type: "x", URL: "https://img.vk.com/only.jpg", Width: 604},
						}},
					},
				},
			},
		},
		Profiles: profiles,
		Groups:   groups,
	}

	items := vk.Normalize(payload)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "", item.Text)
	require.Len(t, item.Attachments, 1)
	assert.Equal(t, models.AttachmentImage, item.Attachments[0].Kind)
	assert.Equal(t, "https://img.vk.com/only.jpg", item.Attachments[0].URL)
}

func TestNormalizeVideoAndLinkAttachments(t *testing.T) {
	profiles, groups := users()
	payload := &vk.Payload{
		Items: []vk.Post{
			{
				Type:     "post",
				SourceID: 1,
				PostID:   13,
				Date:     1714557900,
				Text:     "Mixed media",
				Attachments: []vk.Attachment{
					{
						Type: "video",
						Video: &vk.Video{
							ID:      5,
							OwnerID: 1,
							Title:   "Demo",
							Image:   []vk.VideoImage{{URL: "https://img.vk.com/video.jpg", Width: 800}},
						},
					},
					{
						Type: "link",
						Link: &vk.Link{URL: "https://example.com", Title: "Example"},
					},
					{Type: "poll"},
				},
			},
		},
		Profiles: profiles,
		Groups:   groups,
	}

	items := vk.Normalize(payload)
	require.Len(t, items, 1)

	attachments := items[0].Attachments
	// The poll attachment is unknown and dropped, not fatal.
	require.Len(t, attachments, 2)

	assert.Equal(t, models.AttachmentVideo, attachments[0].Kind)
	assert.Equal(t, "https://vk.com/video1_5", attachments[0].URL)
	assert.Equal(t, "https://img.vk.com/video.jpg", attachments[0].ThumbnailURL)
	assert.Equal(t, "Demo", attachments[0].Caption)

	assert.Equal(t, models.AttachmentLinkPreview, attachments[1].Kind)
	assert.Equal(t, "https://example.com", attachments[1].URL)
	assert.Equal(t, "Example", attachments[1].Caption)
}

func TestNormalizeSkipsMalformedEntries(t *testing.T) {
	profiles, groups := users()
	payload := &vk.Payload{
		Items: []vk.Post{
			{Type: "post", SourceID: 1, PostID: 14, Date: 1714558000, Text: "ok"},
			{Type: "post", SourceID: 1, PostID: 0, Date: 1714558001, Text: "no post id"},
			{Type: "post", SourceID: 555, PostID: 15, Date: 1714558002, Text: "unknown source"},
			{Type: "friend", SourceID: 1, Date: 1714558003},
			{Type: "post", SourceID: 1, PostID: 16, Date: 1714558004, Text: "also ok"},
		},
		Profiles: profiles,
		Groups:   groups,
	}

	items := vk.Normalize(payload)
	require.Len(t, items, 2)
	assert.Equal(t, "1_14", items[0].ID)
	assert.Equal(t, "1_16", items[1].ID)
}
