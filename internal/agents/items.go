package agents

import (
	"fmt"

	"github.com/talgya/aislesim/internal/config"
	"github.com/talgya/aislesim/internal/store"
)

// ItemsToVisits maps item ids to the shelf locations holding them. Items are
// numbered from 1 and stocked ItemsPerSection to a shelf, filling each
// section's shelves before moving to the next section. Two items on the same
// shelf produce two visits, in item order.
func ItemsToVisits(items []int, sc config.StoreConfig) ([]store.Location, error) {
	visits := make([]store.Location, 0, len(items))
	for _, item := range items {
		if item < 1 || item > sc.NItems {
			return nil, fmt.Errorf("%w: item %d outside [1, %d]", store.ErrInvalidLocation, item, sc.NItems)
		}
		group := (item - 1) / sc.ItemsPerSection
		visits = append(visits, store.Location{
			Section: group / sc.NShelves,
			Shelf:   group % sc.NShelves,
		})
	}
	return visits, nil
}
