package model

import "encoding/json"

// Filter is a relay query. Zero-valued fields are omitted on the wire;
// tag filters serialize under "#"+key field names.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Tags    map[string][]string
	Since   *int64
	Until   *int64
	Limit   int
}

// MarshalJSON emits only the fields that are set.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 7)
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	for key, values := range f.Tags {
		if len(values) > 0 {
			m["#"+key] = values
		}
	}
	if f.Since != nil {
		m["since"] = *f.Since
	}
	if f.Until != nil {
		m["until"] = *f.Until
	}
	if f.Limit > 0 {
		m["limit"] = f.Limit
	}
	return json.Marshal(m)
}
