package picker

import (
	"testing"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	t.Parallel()
	st := NewState()
	st.Cooldowns["sonarr_missing"] = map[string]int64{"12": 1700000000, "34": 1700000100}
	st.Shuffle["sonarr_missing"] = &CycleState{Bag: []int64{56, 78}, Seen: []int64{12, 34}}

	data, err := EncodeState(st)
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	got, err := DecodeState(data)
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}

	if got.Cooldowns["sonarr_missing"]["12"] != 1700000000 {
		t.Fatalf("cooldown lost in round trip: %+v", got.Cooldowns)
	}
	cs := got.Shuffle["sonarr_missing"]
	if cs == nil || len(cs.Bag) != 2 || len(cs.Seen) != 2 {
		t.Fatalf("shuffle state lost in round trip: %+v", cs)
	}
	if cs.Bag[0] != 56 || cs.Bag[1] != 78 {
		t.Fatalf("bag order not preserved: %v", cs.Bag)
	}
}

func TestEncodeStateDeterministic(t *testing.T) {
	t.Parallel()
	st := NewState()
	st.Cooldowns["b"] = map[string]int64{"2": 20, "1": 10, "3": 30}

	a, err := EncodeState(st)
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	b, err := EncodeState(st)
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("encoding not deterministic:\n%s\nvs\n%s", a, b)
	}
}

func TestDecodeLegacyFlatDocument(t *testing.T) {
	t.Parallel()
	doc := `{"sonarr_missing": {"12": 1700000000, "34": 1700000100}, "radarr_upgrades": {"7": 1690000000}}`

	st, err := DecodeState([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeState(legacy): %v", err)
	}
	if st.Cooldowns["sonarr_missing"]["12"] != 1700000000 {
		t.Fatalf("legacy cooldowns not restored: %+v", st.Cooldowns)
	}
	if st.Cooldowns["radarr_upgrades"]["7"] != 1690000000 {
		t.Fatalf("legacy cooldowns not restored: %+v", st.Cooldowns)
	}
	if len(st.Shuffle) != 0 {
		t.Fatalf("legacy document produced shuffle state: %+v", st.Shuffle)
	}
}

func TestDecodeDropsMalformedEntries(t *testing.T) {
	t.Parallel()
	doc := `{
	  "cooldowns": {
	    "b": {"12": 1700000000, "not-an-id": 1, "-5": 2, "34": "1700000100", "56": "soon"}
	  },
	  "shuffle": {
	    "b": {"bag": [1, "2", 3.0, "x", -4, 2.5], "seen": [null]}
	  }
	}`

	st, err := DecodeState([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	cd := st.Cooldowns["b"]
	if len(cd) != 2 || cd["12"] != 1700000000 || cd["34"] != 1700000100 {
		t.Fatalf("cooldowns = %+v, want only the two parseable entries", cd)
	}
	bag := st.Shuffle["b"].Bag
	if len(bag) != 3 || bag[0] != 1 || bag[1] != 2 || bag[2] != 3 {
		t.Fatalf("bag = %v, want [1 2 3]", bag)
	}
	if len(st.Shuffle["b"].Seen) != 0 {
		t.Fatalf("seen = %v, want empty", st.Shuffle["b"].Seen)
	}
}

func TestDecodeCollapsesDuplicateIDs(t *testing.T) {
	t.Parallel()
	doc := `{"cooldowns": {}, "shuffle": {"b": {"bag": [5, 6, 5, 7, 6], "seen": [8, 8]}}}`

	st, err := DecodeState([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	cs := st.Shuffle["b"]
	if len(cs.Bag) != 3 || cs.Bag[0] != 5 || cs.Bag[1] != 6 || cs.Bag[2] != 7 {
		t.Fatalf("bag = %v, want first occurrences [5 6 7]", cs.Bag)
	}
	if len(cs.Seen) != 1 || cs.Seen[0] != 8 {
		t.Fatalf("seen = %v, want [8]", cs.Seen)
	}
}

func TestDecodeEmptyAndNullDocuments(t *testing.T) {
	t.Parallel()
	for _, doc := range []string{`{}`, `null`} {
		st, err := DecodeState([]byte(doc))
		if err != nil {
			t.Fatalf("DecodeState(%s): %v", doc, err)
		}
		if len(st.Cooldowns) != 0 || len(st.Shuffle) != 0 {
			t.Fatalf("DecodeState(%s) = %+v, want empty state", doc, st)
		}
	}
}

func TestDecodeRejectsUnrecognizedShapes(t *testing.T) {
	t.Parallel()
	for _, doc := range []string{`[1,2,3]`, `"hello"`, `{"a": 1, "b": "x"}`, `{not json`} {
		if _, err := DecodeState([]byte(doc)); err == nil {
			t.Fatalf("DecodeState(%s): expected error", doc)
		}
	}
}

func TestDecodeLegacySkipsNonBucketValues(t *testing.T) {
	t.Parallel()
	// A scalar alongside a real bucket map is tolerated.
	doc := `{"version": 1, "b": {"9": 1700000000}}`
	st, err := DecodeState([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	if st.Cooldowns["b"]["9"] != 1700000000 {
		t.Fatalf("bucket lost: %+v", st.Cooldowns)
	}
	if _, ok := st.Cooldowns["version"]; ok {
		t.Fatal("scalar value decoded as a bucket")
	}
}
