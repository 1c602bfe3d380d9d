package twitter

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"socialrss/models"
)

// Payload is the raw timeline response from the Twitter API v2.
type Payload struct {
	Data     []Tweet  `json:"data"`
	Includes Includes `json:"includes"`
	Meta     Meta     `json:"meta"`
}

type Includes struct {
	Users  []User  `json:"users"`
	Media  []Media `json:"media"`
	Tweets []Tweet `json:"tweets"`
}

type Meta struct {
	NextToken string `json:"next_token"`
}

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type Media struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

type Tweet struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	AuthorID         string            `json:"author_id"`
	CreatedAt        string            `json:"created_at"`
	InReplyToUserID  string            `json:"in_reply_to_user_id"`
	Entities         *Entities         `json:"entities"`
	Attachments      *TweetAttachments `json:"attachments"`
	ReferencedTweets []ReferencedTweet `json:"referenced_tweets"`
}

type Entities struct {
	URLs []URLEntity `json:"urls"`
}

type URLEntity struct {
	URL         string       `json:"url"`
	ExpandedURL string       `json:"expanded_url"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Images      []EntityImage `json:"images"`
}

type EntityImage struct {
	URL string `json:"url"`
}

type TweetAttachments struct {
	MediaKeys []string `json:"media_keys"`
}

type ReferencedTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Normalize maps a raw timeline payload into feed items. Malformed
// tweets are logged and skipped individually; one corrupt entry never
// loses the rest of the page.
func Normalize(payload *Payload) []models.Item {
	users := make(map[string]User, len(payload.Includes.Users))
	for _, u := range payload.Includes.Users {
		users[u.ID] = u
	}
	media := make(map[string]Media, len(payload.Includes.Media))
	for _, m := range payload.Includes.Media {
		media[m.MediaKey] = m
	}
	referenced := make(map[string]Tweet, len(payload.Includes.Tweets))
	for _, t := range payload.Includes.Tweets {
		referenced[t.ID] = t
	}

	items := make([]models.Item, 0, len(payload.Data))
	for _, tweet := range payload.Data {
		item, err := normalizeTweet(tweet, users, media, referenced)
		if err != nil {
			log.WithFields(log.Fields{
				"provider": "twitter",
				"tweet":    tweet.ID,
				"error":    err,
			}).Warn("Skipping malformed tweet")
			continue
		}
		items = append(items, *item)
	}
	return items
}

func normalizeTweet(tweet Tweet, users map[string]User, media map[string]Media, referenced map[string]Tweet) (*models.Item, error) {
	if tweet.ID == "" {
		return nil, fmt.Errorf("tweet has no id")
	}

	timestamp, err := time.Parse(time.RFC3339, tweet.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", tweet.CreatedAt, err)
	}

	user, ok := users[tweet.AuthorID]
	if !ok {
		return nil, fmt.Errorf("author %q not present in includes", tweet.AuthorID)
	}

	item := &models.Item{
		ID:        tweet.ID,
		Timestamp: timestamp.UTC(),
		Author:    authorFromUser(user),
		Link:      fmt.Sprintf("https://twitter.com/%s/status/%s", user.Username, tweet.ID),
		Origin:    models.Origin{Kind: models.OriginOriginal},
	}

	source := tweet
	if ref, ok := retweetOf(tweet, referenced); ok {
		item.Origin.Kind = models.OriginRepost
		if original, ok := users[ref.AuthorID]; ok {
			author := authorFromUser(original)
			item.Origin.SourceAuthor = &author
		}
		// The retweet's own text is truncated by the API; prefer the
		// referenced tweet's full text and entities when present.
		source = ref
	} else if tweet.InReplyToUserID != "" {
		item.Origin.Kind = models.OriginReply
	}

	item.Text = expandURLs(source.Text, source.Entities)
	item.Attachments = normalizeAttachments(source, media)

	return item, nil
}

func authorFromUser(user User) models.Author {
	return models.Author{
		Name:   user.Name,
		Handle: "@" + user.Username,
		URL:    "https://twitter.com/" + user.Username,
	}
}

// retweetOf resolves the original tweet of a retweet from the includes.
func retweetOf(tweet Tweet, referenced map[string]Tweet) (Tweet, bool) {
	for _, ref := range tweet.ReferencedTweets {
		if ref.Type != "retweeted" {
			continue
		}
		if original, ok := referenced[ref.ID]; ok {
			return original, true
		}
		// Original missing from includes: keep the retweet body.
		return tweet, true
	}
	return Tweet{}, false
}

// expandURLs replaces t.co shortened links in the text with their
// resolved targets where the payload provides them.
func expandURLs(text string, entities *Entities) string {
	if entities == nil {
		return text
	}
	for _, u := range entities.URLs {
		if u.URL != "" && u.ExpandedURL != "" {
			text = strings.ReplaceAll(text, u.URL, u.ExpandedURL)
		}
	}
	return text
}

func normalizeAttachments(tweet Tweet, media map[string]Media) []models.Attachment {
	var attachments []models.Attachment

	if tweet.Attachments != nil {
		for _, key := range tweet.Attachments.MediaKeys {
			m, ok := media[key]
			if !ok {
				log.WithFields(log.Fields{
					"provider":  "twitter",
					"tweet":     tweet.ID,
					"media_key": key,
				}).Debug("Media key not present in includes")
				continue
			}
			attachment, ok := normalizeMedia(m)
			if !ok {
				continue
			}
			attachments = append(attachments, attachment)
		}
	}

	if tweet.Entities != nil {
		for _, u := range tweet.Entities.URLs {
			// Only URL entities unwound into a preview card become
			// attachments; plain links stay in the text.
			if u.Title == "" || u.ExpandedURL == "" {
				continue
			}
			preview := models.Attachment{
				Kind:    models.AttachmentLinkPreview,
				URL:     u.ExpandedURL,
				Caption: u.Title,
			}
			if len(u.Images) > 0 {
				preview.ThumbnailURL = u.Images[0].URL
			}
			attachments = append(attachments, preview)
		}
	}

	return attachments
}

// normalizeMedia maps one media entity to an attachment. Entities with
// no resolvable URL are dropped to keep the attachment invariant.
func normalizeMedia(m Media) (models.Attachment, bool) {
	switch m.Type {
	case "photo":
		if m.URL == "" {
			return models.Attachment{}, false
		}
		return models.Attachment{Kind: models.AttachmentImage, URL: m.URL}, true
	case "video", "animated_gif":
		url := m.URL
		if url == "" {
			url = m.PreviewImageURL
		}
		if url == "" {
			return models.Attachment{}, false
		}
		return models.Attachment{
			Kind:         models.AttachmentVideo,
			URL:          url,
			ThumbnailURL: m.PreviewImageURL,
		}, true
	default:
		return models.Attachment{}, false
	}
}
