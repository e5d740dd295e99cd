package changes

import (
	"encoding/json"
	"reflect"
	"testing"
)

func sampleChangeSet() ChangeSet {
	return ChangeSet{
		"a.elm": Insert{Content: []byte("a"), Hash: "aaaaaaaaaaaaaaaa"},
		"b.elm": Update{Content: []byte("b2"), Hash: "bbbbbbbbbbbbbbb2", Previous: "bbbbbbbbbbbbbbb1"},
		"c.elm": Delete{Previous: "cccccccccccccccc"},
		"d.elm": Unchanged{Hash: "dddddddddddddddd"},
	}
}

func TestStats(t *testing.T) {
	stats := sampleChangeSet().Stats()
	want := Stats{Inserted: 1, Updated: 1, Deleted: 1, Unchanged: 1}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
	if !stats.HasChanges() {
		t.Error("HasChanges() = false, want true")
	}
	if stats.Total() != 4 {
		t.Errorf("Total() = %d, want 4", stats.Total())
	}

	if (Stats{Unchanged: 3}).HasChanges() {
		t.Error("HasChanges() with only unchanged entries = true, want false")
	}
	if (Stats{Deleted: 1}).HasChanges() != true {
		t.Error("HasChanges() with a delete = false, want true")
	}
}

func TestStatsString(t *testing.T) {
	got := Stats{Inserted: 2, Updated: 1, Deleted: 0, Unchanged: 7}.String()
	want := "- inserted:  2\n  - updated:   1\n  - deleted:   0\n  - unchanged: 7"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestContentHashes(t *testing.T) {
	got := sampleChangeSet().ContentHashes()
	want := Hashes{
		"a.elm": "aaaaaaaaaaaaaaaa",
		"b.elm": "bbbbbbbbbbbbbbb2",
		"d.elm": "dddddddddddddddd",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ContentHashes() = %v, want %v", got, want)
	}
}

func TestSnapshot(t *testing.T) {
	got := sampleChangeSet().Snapshot()
	want := map[Path]string{"a.elm": "a", "b.elm": "b2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
}

func TestPathsOf(t *testing.T) {
	cs := sampleChangeSet()
	cs["e.elm"] = Insert{Content: []byte("e"), Hash: "eeeeeeeeeeeeeeee"}

	got := cs.PathsOf(KindInsert)
	want := []Path{"a.elm", "e.elm"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PathsOf(Insert) = %v, want %v", got, want)
	}
	if got := cs.PathsOf(KindDelete); !reflect.DeepEqual(got, []Path{"c.elm"}) {
		t.Errorf("PathsOf(Delete) = %v, want [c.elm]", got)
	}
}

func TestChangeSetJSON(t *testing.T) {
	cs := sampleChangeSet()

	data, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["b.elm"]["kind"] != "Update" || raw["b.elm"]["previousHash"] != "bbbbbbbbbbbbbbb1" {
		t.Errorf("update encoded as %v", raw["b.elm"])
	}
	if _, ok := raw["c.elm"]["content"]; ok {
		t.Errorf("delete should not carry content: %v", raw["c.elm"])
	}
	if _, ok := raw["d.elm"]["content"]; ok {
		t.Errorf("unchanged should not carry content: %v", raw["d.elm"])
	}

	var decoded ChangeSet
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, cs) {
		t.Errorf("Unmarshal() = %#v, want %#v", decoded, cs)
	}
}

func TestChangeSetJSONEmptyContent(t *testing.T) {
	cs := ChangeSet{"empty.elm": Insert{Content: []byte{}, Hash: HashBytes(nil)}}

	data, err := json.Marshal(cs)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if content, ok := raw["empty.elm"]["content"]; !ok || content != "" {
		t.Errorf("empty insert should carry empty content, got %v", raw["empty.elm"])
	}
}

func TestChangeSetUnmarshalUnknownKind(t *testing.T) {
	var cs ChangeSet
	if err := json.Unmarshal([]byte(`{"a.elm":{"kind":"Rename"}}`), &cs); err == nil {
		t.Error("Unmarshal() expected error for unknown kind")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"a.elm", "a.elm"},
		{"./a.elm", "a.elm"},
		{"src//Lib/../Main.elm", "src/Main.elm"},
		{"src/Main.elm", "src/Main.elm"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
