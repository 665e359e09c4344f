package models

import "strings"

// CategoryAll disables the category filter.
const CategoryAll = "all"

// MatchesFilter reports whether item passes the list view's search box and
// category selector. Search is a case-insensitive substring match over title
// and description; category is a case-insensitive exact match. Both must hold.
func (i *Item) MatchesFilter(search, category string) bool {
	needle := strings.ToLower(search)
	matchesSearch := strings.Contains(strings.ToLower(i.Title), needle) ||
		strings.Contains(strings.ToLower(i.Description), needle)

	category = strings.TrimSpace(category)
	matchesCategory := category == "" || strings.EqualFold(category, CategoryAll) ||
		strings.EqualFold(string(i.Category), category)

	return matchesSearch && matchesCategory
}

// FilterItems keeps the order of items and returns those matching.
func FilterItems(items []Item, search, category string) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.MatchesFilter(search, category) {
			out = append(out, it)
		}
	}
	return out
}
