package model

import "time"

// Category is a user-defined income or expense category.
type Category struct {
	CreatedAt time.Time       `json:"created_at"`
	Name      string          `json:"name"`
	Type      TransactionType `json:"type"`
	Icon      string          `json:"icon,omitempty"`
	ID        int             `json:"id"`
}

// IconFor returns the icon of the named category of the given type, or "".
func IconFor(categories []Category, name string, typ TransactionType) string {
	for _, c := range categories {
		if c.Name == name && c.Type == typ {
			return c.Icon
		}
	}
	return ""
}
