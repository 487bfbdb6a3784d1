package app

import "testing"

func TestSeedStageRows(t *testing.T) {
	rows := seedStageRows("h1")
	if len(rows) != len(defaultStages) {
		t.Fatalf("want %d rows, got %d", len(defaultStages), len(rows))
	}
	keys := make(map[string]bool)
	ids := make(map[string]bool)
	for i, st := range rows {
		if st.HostID != "h1" {
			t.Errorf("row %d: host not set: %+v", i, st)
		}
		if st.ID == "" || ids[st.ID] {
			t.Errorf("row %d: missing or duplicate id %q", i, st.ID)
		}
		ids[st.ID] = true
		if keys[st.Key] {
			t.Errorf("duplicate key %q would trip the (host_id, key) constraint", st.Key)
		}
		keys[st.Key] = true
		if st.Order != i {
			t.Errorf("row %d: want order %d, got %d", i, i, st.Order)
		}
		if !st.Enabled {
			t.Errorf("row %d: seeded stage should start enabled", i)
		}
	}
	if rows[0].Key != "APPLIED" || rows[len(rows)-1].Key != "REJECTED" {
		t.Errorf("unexpected column order: %v", rows)
	}
}

// Seeding twice must not mutate the shared defaults.
func TestSeedStageRowsDoesNotAliasDefaults(t *testing.T) {
	seedStageRows("h1")
	seedStageRows("h2")
	for _, st := range defaultStages {
		if st.ID != "" || st.HostID != "" {
			t.Fatalf("defaults mutated: %+v", st)
		}
	}
}
