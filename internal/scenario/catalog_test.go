package scenario

import "testing"

func TestGet(t *testing.T) {
	t.Parallel()

	tmpl, ok := Get("cold_call")
	if !ok {
		t.Fatal("cold_call scenario missing from catalog")
	}
	if tmpl.Key != "cold_call" || tmpl.Title == "" || tmpl.SystemPrompt == "" {
		t.Errorf("incomplete template %+v", tmpl)
	}

	if _, ok := Get("no_such_scenario"); ok {
		t.Error("unknown key should not resolve")
	}
}

func TestAllIsStable(t *testing.T) {
	t.Parallel()

	first := All()
	second := All()
	if len(first) == 0 {
		t.Fatal("catalog is empty")
	}
	for i := range first {
		if first[i].Key != second[i].Key {
			t.Fatalf("catalog order is not stable: %q vs %q", first[i].Key, second[i].Key)
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Key >= first[i].Key {
			t.Errorf("catalog not sorted: %q before %q", first[i-1].Key, first[i].Key)
		}
	}
}

func TestRow(t *testing.T) {
	t.Parallel()

	tmpl, _ := Get("cold_call")
	row := tmpl.Row()
	if row.Name != tmpl.Key || row.SystemPrompt != tmpl.SystemPrompt {
		t.Errorf("row mismatch: %+v", row)
	}
}
