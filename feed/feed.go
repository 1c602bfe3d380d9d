// Package feed assembles normalized timeline pages into the final
// ordered item sequence and renders it as RSS.
package feed

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"socialrss/models"
	"socialrss/provider"
)

// DefaultMaxItems caps a feed when the configuration does not say
// otherwise.
const DefaultMaxItems = 30

// Assemble runs one request through the pipeline: fetch pages until
// maxItems is satisfied or the provider runs out, deduplicate by id,
// sort newest first (id ascending on timestamp ties) and truncate.
// Provider errors are propagated unchanged; there is no silent
// empty-feed fallback.
func Assemble(ctx context.Context, client provider.Client, maxItems int) ([]models.Item, error) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	var items []models.Item
	cursor := ""
	for {
		page, err := client.FetchTimeline(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s timeline: %w", client.Name(), err)
		}
		items = append(items, page.Items...)

		if len(items) >= maxItems || page.NextCursor == "" || len(page.Items) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	items = lo.UniqBy(items, func(item models.Item) string {
		return item.ID
	})

	sort.Slice(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.After(items[j].Timestamp)
		}
		return items[i].ID < items[j].ID
	})

	if len(items) > maxItems {
		items = items[:maxItems]
	}

	log.WithFields(log.Fields{
		"provider": client.Name(),
		"count":    len(items),
	}).Info("Assembled feed")

	return items, nil
}
