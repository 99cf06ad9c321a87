package feed

// Row is one entry in a client's tab view: either a request or an offer,
// flattened to what a list rendering needs.
type Row struct {
	Kind         string  `json:"kind"` // "request" or "offer"
	ID           uint    `json:"id"`
	RequestID    uint    `json:"requestId"`
	Status       string  `json:"status"`
	QuotedAmount float64 `json:"quotedAmount,omitempty"`
	FareEstimate float64 `json:"fareEstimate,omitempty"`
	PickupAddr   string  `json:"pickupAddress,omitempty"`
	DestAddr     string  `json:"destAddress,omitempty"`
}

// LocalEdit is an optimistic mutation applied to the local list right after
// a local action succeeded, ahead of the authoritative round trip.
type LocalEdit struct {
	EditID string
	Insert *Row
	Remove uint // row ID to drop, zero if unused
	Patch  *RowPatch
}

type RowPatch struct {
	ID     uint
	Status string
}

type cacheState int

const (
	stateConfirmed cacheState = iota
	statePendingLocalEdit
)

// ListCache holds one tab's rows as a tagged variant: Confirmed rows straight
// from an authoritative fetch, or rows carrying a pending local edit. The
// variant exists so an optimistic edit can never silently become permanent
// truth: the next Confirm discards the local rows wholesale.
type ListCache struct {
	state  cacheState
	rows   []Row
	editID string
}

func NewListCache() *ListCache {
	return &ListCache{state: stateConfirmed}
}

// Confirm replaces the entire list with an authoritative result and clears
// any pending edit.
func (c *ListCache) Confirm(rows []Row) {
	c.rows = append(c.rows[:0:0], rows...)
	c.state = stateConfirmed
	c.editID = ""
}

// ApplyLocal layers an optimistic edit onto the current rows.
func (c *ListCache) ApplyLocal(edit LocalEdit) {
	switch {
	case edit.Insert != nil:
		c.rows = append([]Row{*edit.Insert}, c.rows...)
	case edit.Remove != 0:
		kept := c.rows[:0]
		for _, r := range c.rows {
			if r.ID != edit.Remove {
				kept = append(kept, r)
			}
		}
		c.rows = kept
	case edit.Patch != nil:
		for i := range c.rows {
			if c.rows[i].ID == edit.Patch.ID {
				c.rows[i].Status = edit.Patch.Status
			}
		}
	}
	c.state = statePendingLocalEdit
	c.editID = edit.EditID
}

// Rows returns a copy of the current view.
func (c *ListCache) Rows() []Row {
	return append([]Row(nil), c.rows...)
}

// Pending reports the edit ID of an unconfirmed local mutation, if any.
func (c *ListCache) Pending() (string, bool) {
	if c.state == statePendingLocalEdit {
		return c.editID, true
	}
	return "", false
}
