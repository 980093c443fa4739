package demand

import (
	"sort"

	"github.com/andresuchdata/freshflow-go/internal/domain"
)

// Popularity counts distinct orders per item over counted lines and keeps
// the first non-empty item name seen. Sorted by order count descending.
func Popularity(lines []OrderLine, opts Options) []domain.ItemPopularity {
	closed := closedSet(opts.ClosedStatuses)

	orders := make(map[int64]map[int64]struct{})
	names := make(map[int64]string)
	for _, line := range lines {
		if !opts.IgnoreStatus {
			if _, ok := closed[normalizeStatus(line.Status)]; !ok {
				continue
			}
		}
		if _, ok := orders[line.ItemID]; !ok {
			orders[line.ItemID] = make(map[int64]struct{})
		}
		orders[line.ItemID][line.OrderID] = struct{}{}
		if names[line.ItemID] == "" && line.ItemName != "" {
			names[line.ItemID] = line.ItemName
		}
	}

	out := make([]domain.ItemPopularity, 0, len(orders))
	for item, set := range orders {
		out = append(out, domain.ItemPopularity{
			ItemID:     item,
			ItemName:   names[item],
			OrderCount: int64(len(set)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderCount != out[j].OrderCount {
			return out[i].OrderCount > out[j].OrderCount
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

// OrderPairs returns the distinct (order, item) memberships of counted lines,
// sorted by order then item.
func OrderPairs(lines []OrderLine, opts Options) []domain.OrderItemPair {
	closed := closedSet(opts.ClosedStatuses)

	seen := make(map[domain.OrderItemPair]struct{})
	out := make([]domain.OrderItemPair, 0)
	for _, line := range lines {
		if !opts.IgnoreStatus {
			if _, ok := closed[normalizeStatus(line.Status)]; !ok {
				continue
			}
		}
		pair := domain.OrderItemPair{OrderID: line.OrderID, ItemID: line.ItemID}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}
