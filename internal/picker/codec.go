package picker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// The on-disk document comes in two historical shapes:
//
//	canonical: {"cooldowns": {bucket: {"12": 1700000000}}, "shuffle": {bucket: {"bag": [..], "seen": [..]}}}
//	legacy:    {bucket: {"12": 1700000000}}   (cooldowns only, no shuffle data)
//
// DecodeState tries them in that order. Entries that do not parse as
// non-negative integer ids (or integer timestamps) are dropped silently;
// only a document that matches neither shape is an error.

type rawCanonical struct {
	Cooldowns map[string]map[string]json.RawMessage `json:"cooldowns"`
	Shuffle   map[string]rawCycle                   `json:"shuffle"`
}

type rawCycle struct {
	Bag  []json.RawMessage `json:"bag"`
	Seen []json.RawMessage `json:"seen"`
}

// DecodeState parses a persisted state document.
func DecodeState(data []byte) (*State, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("state document: %w", err)
	}
	if top == nil {
		return NewState(), nil
	}

	_, hasCD := top["cooldowns"]
	_, hasSH := top["shuffle"]
	if hasCD || hasSH {
		return decodeCanonical(data)
	}
	return decodeLegacy(top)
}

func decodeCanonical(data []byte) (*State, error) {
	var doc rawCanonical
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("canonical state: %w", err)
	}

	st := NewState()
	for bucket, m := range doc.Cooldowns {
		if m == nil {
			continue
		}
		out := map[string]int64{}
		for key, raw := range m {
			id, ok := parseID([]byte(key))
			if !ok {
				continue
			}
			ts, ok := parseEpoch(raw)
			if !ok {
				continue
			}
			out[strconv.FormatInt(id, 10)] = ts
		}
		st.Cooldowns[bucket] = out
	}
	for bucket, rc := range doc.Shuffle {
		st.Shuffle[bucket] = &CycleState{
			Bag:  parseIDList(rc.Bag),
			Seen: parseIDList(rc.Seen),
		}
	}
	st.normalize()
	return st, nil
}

// decodeLegacy handles the flat {bucket: {id: timestamp}} shape. Shuffle
// state starts empty; every bucket begins a fresh cycle on first draw.
func decodeLegacy(top map[string]json.RawMessage) (*State, error) {
	st := NewState()
	matched := false
	for bucket, raw := range top {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			// Not a bucket map; skip rather than fail the whole load.
			continue
		}
		matched = true
		out := map[string]int64{}
		for key, v := range m {
			id, ok := parseID([]byte(key))
			if !ok {
				continue
			}
			ts, ok := parseEpoch(v)
			if !ok {
				continue
			}
			out[strconv.FormatInt(id, 10)] = ts
		}
		st.Cooldowns[bucket] = out
	}
	if len(top) > 0 && !matched {
		return nil, errors.New("state document matches neither canonical nor legacy shape")
	}
	return st, nil
}

// EncodeState serializes deterministically (encoding/json sorts object keys)
// with an indent, for diffable state files.
func EncodeState(st *State) ([]byte, error) {
	if st == nil {
		st = NewState()
	}
	st.normalize()
	return json.MarshalIndent(st, "", "  ")
}

// parseID accepts a bare integer, an integer-valued float, or a (quoted)
// digit string. Negative or non-numeric values are rejected.
func parseID(raw []byte) (int64, bool) {
	s := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id < 0 {
			return 0, false
		}
		return id, true
	}
	// JSON numbers may arrive as floats ("12.0").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		id := int64(f)
		if id < 0 || float64(id) != f {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

func parseEpoch(raw json.RawMessage) (int64, bool) {
	s := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	if s == "" {
		return 0, false
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func parseIDList(raw []json.RawMessage) []int64 {
	out := make([]int64, 0, len(raw))
	for _, r := range raw {
		if id, ok := parseID(r); ok {
			out = append(out, id)
		}
	}
	return out
}
