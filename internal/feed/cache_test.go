package feed

import "testing"

func confirmedRows() []Row {
	return []Row{
		{Kind: "request", ID: 1, RequestID: 1, Status: "pending"},
		{Kind: "request", ID: 2, RequestID: 2, Status: "pending"},
	}
}

func TestConfirmReplacesWholesale(t *testing.T) {
	c := NewListCache()
	c.Confirm(confirmedRows())

	if got := len(c.Rows()); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	if _, pending := c.Pending(); pending {
		t.Error("confirmed cache must not report a pending edit")
	}
}

func TestApplyLocalInsert(t *testing.T) {
	c := NewListCache()
	c.Confirm(confirmedRows())

	c.ApplyLocal(LocalEdit{
		EditID: "edit-1",
		Insert: &Row{Kind: "request", ID: 3, RequestID: 3, Status: "pending"},
	})

	rows := c.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].ID != 3 {
		t.Errorf("optimistic insert should lead the list, got row %d first", rows[0].ID)
	}
	if editID, pending := c.Pending(); !pending || editID != "edit-1" {
		t.Errorf("Pending() = %q, %v; want edit-1, true", editID, pending)
	}
}

func TestApplyLocalRemoveAndPatch(t *testing.T) {
	c := NewListCache()
	c.Confirm(confirmedRows())

	c.ApplyLocal(LocalEdit{EditID: "edit-2", Remove: 1})
	rows := c.Rows()
	if len(rows) != 1 || rows[0].ID != 2 {
		t.Fatalf("after remove, rows = %+v", rows)
	}

	c.ApplyLocal(LocalEdit{EditID: "edit-3", Patch: &RowPatch{ID: 2, Status: "cancelled"}})
	rows = c.Rows()
	if rows[0].Status != "cancelled" {
		t.Errorf("patched status = %q, want cancelled", rows[0].Status)
	}
}

// The authoritative response wins over any optimistic edit: Confirm discards
// local rows wholesale, so an edit the server rejected simply vanishes.
func TestConfirmSupersedesLocalEdit(t *testing.T) {
	c := NewListCache()
	c.Confirm(confirmedRows())
	c.ApplyLocal(LocalEdit{EditID: "edit-4", Remove: 2})

	c.Confirm(confirmedRows())

	rows := c.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows after confirm = %d, want 2", len(rows))
	}
	if _, pending := c.Pending(); pending {
		t.Error("confirm must clear the pending edit")
	}
}

func TestRowsReturnsCopy(t *testing.T) {
	c := NewListCache()
	c.Confirm(confirmedRows())

	rows := c.Rows()
	rows[0].Status = "mutated"

	if c.Rows()[0].Status == "mutated" {
		t.Error("Rows() must not expose the cache's backing slice")
	}
}
