package alerting

// DefaultHistorySize caps the in-memory recent alert list.
const DefaultHistorySize = 50

// History keeps the most recent conditions, oldest first.
type History struct {
	limit int
	items []Condition
}

// NewHistory returns a History holding at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit, items: make([]Condition, 0, limit)}
}

// Add appends conditions and drops the oldest beyond the cap.
func (h *History) Add(conds ...Condition) {
	h.items = append(h.items, conds...)
	if len(h.items) > h.limit {
		trimmed := make([]Condition, h.limit)
		copy(trimmed, h.items[len(h.items)-h.limit:])
		h.items = trimmed
	}
}

// Recent returns up to n conditions, newest first. n <= 0 returns all of them.
func (h *History) Recent(n int) []Condition {
	if n <= 0 || n > len(h.items) {
		n = len(h.items)
	}
	out := make([]Condition, 0, n)
	for i := len(h.items) - 1; i >= len(h.items)-n; i-- {
		out = append(out, h.items[i])
	}
	return out
}

// Len returns the number of retained conditions.
func (h *History) Len() int {
	return len(h.items)
}
