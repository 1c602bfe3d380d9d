package vk

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"socialrss/models"
)

// Matches a user/community link in a post text, e.g. [id1|Pavel Durov].
var userLinkRe = regexp.MustCompile(`\[(id|club)(\d+)\|([^\]]+)\]`)

// Payload is the raw newsfeed.get response body (the "response" object).
type Payload struct {
	Items    []Post    `json:"items"`
	Profiles []Profile `json:"profiles"`
	Groups   []Group   `json:"groups"`
	NextFrom string    `json:"next_from"`
}

type Profile struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ScreenName string `json:"screen_name"`
}

type Group struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

type Post struct {
	Type        string       `json:"type"`
	SourceID    int64        `json:"source_id"`
	OwnerID     int64        `json:"owner_id"`
	FromID      int64        `json:"from_id"`
	PostID      int64        `json:"post_id"`
	ID          int64        `json:"id"`
	Date        int64        `json:"date"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
	CopyHistory []Post       `json:"copy_history"`
}

type Attachment struct {
	Type  string `json:"type"`
	Photo *Photo `json:"photo"`
	Video *Video `json:"video"`
	Link  *Link  `json:"link"`
}

type Photo struct {
	ID      int64       `json:"id"`
	OwnerID int64       `json:"owner_id"`
	Text    string      `json:"text"`
	Sizes   []PhotoSize `json:"sizes"`
}

type PhotoSize struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Video struct {
	ID      int64        `json:"id"`
	OwnerID int64        `json:"owner_id"`
	Title   string       `json:"title"`
	Image   []VideoImage `json:"image"`
}

type VideoImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Link struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Photo       *Photo `json:"photo"`
}

// Normalize maps a raw newsfeed payload into feed items. Malformed
// posts are logged and skipped individually; one corrupt entry never
// loses the rest of the page.
func Normalize(payload *Payload) []models.Item {
	users := usersByID(payload.Profiles, payload.Groups)

	items := make([]models.Item, 0, len(payload.Items))
	for _, post := range payload.Items {
		item, err := normalizePost(post, users)
		if err != nil {
			log.Warnf("Skipping malformed vk post from source %d: %s", post.SourceID, err)
			continue
		}
		if item == nil {
			continue
		}
		items = append(items, *item)
	}
	return items
}

// usersByID maps profiles and groups to their signed IDs: positive for
// users, negative for communities, following the VK convention.
func usersByID(profiles []Profile, groups []Group) map[int64]models.Author {
	users := make(map[int64]models.Author, len(profiles)+len(groups))

	for _, p := range profiles {
		handle := p.ScreenName
		if handle == "" {
			handle = fmt.Sprintf("id%d", p.ID)
		}
		users[p.ID] = models.Author{
			Name:   strings.TrimSpace(p.FirstName + " " + p.LastName),
			Handle: handle,
			URL:    "https://vk.com/" + handle,
		}
	}

	for _, g := range groups {
		handle := g.ScreenName
		if handle == "" {
			handle = fmt.Sprintf("club%d", g.ID)
		}
		users[-g.ID] = models.Author{
			Name:   g.Name,
			Handle: handle,
			URL:    "https://vk.com/" + handle,
		}
	}

	return users
}

func normalizePost(post Post, users map[int64]models.Author) (*models.Item, error) {
	if post.Type != "" && post.Type != "post" {
		// newsfeed.get is filtered to posts, anything else is noise.
		log.Debugf("Ignoring vk newsfeed item of type %q", post.Type)
		return nil, nil
	}
	if post.Date == 0 {
		return nil, fmt.Errorf("post has no date")
	}
	if post.PostID == 0 {
		return nil, fmt.Errorf("post has no id")
	}

	author, ok := users[post.SourceID]
	if !ok {
		return nil, fmt.Errorf("source %d not present in profiles/groups", post.SourceID)
	}

	item := &models.Item{
		ID:        fmt.Sprintf("%d_%d", post.SourceID, post.PostID),
		Timestamp: time.Unix(post.Date, 0).UTC(),
		Author:    author,
		Text:      normalizeText(post.Text),
		Link:      fmt.Sprintf("https://vk.com/wall%d_%d", post.SourceID, post.PostID),
		Origin:    models.Origin{Kind: models.OriginOriginal},
	}

	attachments := post.Attachments

	if len(post.CopyHistory) > 0 {
		copied := post.CopyHistory[0]
		item.Origin.Kind = models.OriginRepost
		if source, ok := users[copiedAuthorID(copied)]; ok {
			item.Origin.SourceAuthor = &source
		}
		if item.Text == "" {
			item.Text = normalizeText(copied.Text)
		}
		// A repost carries the original's attachments.
		attachments = append(attachments, copied.Attachments...)
	}

	item.Attachments = normalizeAttachments(attachments)

	return item, nil
}

func copiedAuthorID(post Post) int64 {
	if post.FromID != 0 {
		return post.FromID
	}
	return post.OwnerID
}

// normalizeText unescapes the HTML entities VK sends and rewrites
// [id123|Name] mention markup into a plain "Name (url)" form.
func normalizeText(text string) string {
	text = html.UnescapeString(text)
	text = userLinkRe.ReplaceAllString(text, "$3 (https://vk.com/$1$2)")
	return strings.TrimSpace(text)
}

func normalizeAttachments(attachments []Attachment) []models.Attachment {
	var out []models.Attachment
	for _, a := range attachments {
		attachment, ok := normalizeAttachment(a)
		if !ok {
			continue
		}
		out = append(out, attachment)
	}
	return out
}

// normalizeAttachment maps one VK attachment. Entries with no resolvable
// URL and unknown attachment types are dropped, never fatal.
func normalizeAttachment(a Attachment) (models.Attachment, bool) {
	switch a.Type {
	case "photo":
		if a.Photo == nil {
			return models.Attachment{}, false
		}
		url := largestPhotoURL(a.Photo.Sizes)
		if url == "" {
			return models.Attachment{}, false
		}
		return models.Attachment{
			Kind:    models.AttachmentImage,
			URL:     url,
			Caption: html.UnescapeString(a.Photo.Text),
		}, true
	case "video":
		if a.Video == nil {
			return models.Attachment{}, false
		}
		attachment := models.Attachment{
			Kind:    models.AttachmentVideo,
			URL:     fmt.Sprintf("https://vk.com/video%d_%d", a.Video.OwnerID, a.Video.ID),
			Caption: html.UnescapeString(a.Video.Title),
		}
		if thumb := largestVideoImageURL(a.Video.Image); thumb != "" {
			attachment.ThumbnailURL = thumb
		}
		return attachment, true
	case "link":
		if a.Link == nil || a.Link.URL == "" {
			return models.Attachment{}, false
		}
		attachment := models.Attachment{
			Kind:    models.AttachmentLinkPreview,
			URL:     a.Link.URL,
			Caption: html.UnescapeString(a.Link.Title),
		}
		if a.Link.Photo != nil {
			attachment.ThumbnailURL = largestPhotoURL(a.Link.Photo.Sizes)
		}
		return attachment, true
	default:
		log.Debugf("Ignoring vk attachment of type %q", a.Type)
		return models.Attachment{}, false
	}
}

func largestPhotoURL(sizes []PhotoSize) string {
	var url string
	var width int
	for _, s := range sizes {
		if s.URL != "" && s.Width >= width {
			url = s.URL
			width = s.Width
		}
	}
	return url
}

func largestVideoImageURL(images []VideoImage) string {
	var url string
	var width int
	for _, img := range images {
		if img.URL != "" && img.Width >= width {
			url = img.URL
			width = img.Width
		}
	}
	return url
}
