package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"socialrss/models"
	"socialrss/provider"
)

// Channel holds the RSS channel metadata for one provider feed.
type Channel struct {
	Title       string
	Link        string
	Description string
}

// ChannelFor returns the channel metadata for a provider name.
func ChannelFor(name string) Channel {
	switch name {
	case provider.Twitter:
		return Channel{
			Title:       "Twitter: Timeline",
			Link:        "https://twitter.com/home",
			Description: "Twitter timeline as RSS",
		}
	case provider.VK:
		return Channel{
			Title:       "VK: Newsfeed",
			Link:        "https://vk.com/feed",
			Description: "VK newsfeed as RSS",
		}
	}
	return Channel{
		Title:       name,
		Description: name + " feed",
	}
}

// Render generates an RSS 2.0 document from an assembled item sequence.
func Render(channel Channel, items []models.Item) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", channel.Title, 4)
	writeElement(&buf, "link", channel.Link, 4)
	writeElement(&buf, "description", channel.Description, 4)
	writeElement(&buf, "lastBuildDate", time.Now().UTC().Format(time.RFC1123Z), 4)
	writeElement(&buf, "generator", "socialrss", 4)

	for _, item := range items {
		writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	return buf.String()
}

func writeItem(buf *bytes.Buffer, item models.Item) {
	buf.WriteString("    <item>\n")

	buf.WriteString(`      <guid isPermaLink="false">`)
	xml.EscapeText(buf, []byte(item.ID))
	buf.WriteString("</guid>\n")

	writeElement(buf, "title", itemTitle(item), 6)
	writeElement(buf, "link", item.Link, 6)
	writeElement(buf, "pubDate", item.Timestamp.Format(time.RFC1123Z), 6)
	writeElement(buf, "author", item.Author.Handle, 6)
	writeElement(buf, "category", "type/"+string(item.Origin.Kind), 6)
	writeElement(buf, "description", itemDescription(item), 6)

	buf.WriteString("    </item>\n")
}

func itemTitle(item models.Item) string {
	if item.Origin.Kind == models.OriginRepost && item.Origin.SourceAuthor != nil {
		return fmt.Sprintf("%s reposted %s", item.Author.Name, item.Origin.SourceAuthor.Name)
	}
	return item.Author.Name
}

// itemDescription builds the HTML body: provenance line for reposts,
// the post text, then attachments rendered in order.
func itemDescription(item models.Item) string {
	var b strings.Builder

	if item.Origin.Kind == models.OriginRepost {
		source := "another author"
		if item.Origin.SourceAuthor != nil {
			source = fmt.Sprintf(`<a href="%s">%s</a>`,
				html.EscapeString(item.Origin.SourceAuthor.URL),
				html.EscapeString(item.Origin.SourceAuthor.Name))
		}
		b.WriteString("<p><em>Reposted from " + source + "</em></p>")
	}

	if item.Text != "" {
		text := html.EscapeString(item.Text)
		text = strings.ReplaceAll(text, "\n", "<br/>")
		b.WriteString("<p>" + text + "</p>")
	}

	for _, a := range item.Attachments {
		writeAttachment(&b, a)
	}

	return b.String()
}

func writeAttachment(b *strings.Builder, a models.Attachment) {
	url := html.EscapeString(a.URL)
	caption := html.EscapeString(a.Caption)

	switch a.Kind {
	case models.AttachmentImage:
		b.WriteString(fmt.Sprintf(`<p><img src="%s"/></p>`, url))
		if caption != "" {
			b.WriteString("<p>" + caption + "</p>")
		}
	case models.AttachmentVideo:
		if a.ThumbnailURL != "" {
			b.WriteString(fmt.Sprintf(`<p><a href="%s"><img src="%s"/></a></p>`,
				url, html.EscapeString(a.ThumbnailURL)))
		}
		label := caption
		if label == "" {
			label = url
		}
		b.WriteString(fmt.Sprintf(`<p><em>Video: <a href="%s">%s</a></em></p>`, url, label))
	case models.AttachmentLinkPreview:
		label := caption
		if label == "" {
			label = url
		}
		b.WriteString(fmt.Sprintf(`<p><em>Link: <a href="%s">%s</a></em></p>`, url, label))
		if a.ThumbnailURL != "" {
			b.WriteString(fmt.Sprintf(`<p><a href="%s"><img src="%s"/></a></p>`,
				url, html.EscapeString(a.ThumbnailURL)))
		}
	}
}

// writeElement writes an indented XML element with proper escaping.
func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
