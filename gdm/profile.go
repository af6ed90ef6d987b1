package gdm

import (
	"context"
	"io"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AttributeProfile summarizes one metadata attribute across samples.
type AttributeProfile struct {
	// Samples counts the samples carrying the attribute at least once.
	Samples int `json:"samples"`

	// Values counts occurrences of each distinct value.
	Values map[string]int `json:"values"`
}

// MetaProfile summarizes the metadata of a dataset.
type MetaProfile struct {
	Samples    int                          `json:"samples"`
	Attributes map[string]*AttributeProfile `json:"attributes"`
}

// AttributeNames returns the profiled attribute names in sorted order.
func (p *MetaProfile) AttributeNames() []string {
	names := make([]string, 0, len(p.Attributes))
	for name := range p.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteJSON writes the profile as a JSON document.
func (p *MetaProfile) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// ProfileMeta builds the profile of an in-memory metadata table.
func ProfileMeta(table *MetaTable) *MetaProfile {
	profile := &MetaProfile{
		Samples:    table.Len(),
		Attributes: make(map[string]*AttributeProfile),
	}
	for _, s := range table.Samples {
		seen := make(map[string]bool)
		for _, a := range s.Attributes {
			ap, ok := profile.Attributes[a.Name]
			if !ok {
				ap = &AttributeProfile{Values: make(map[string]int)}
				profile.Attributes[a.Name] = ap
			}
			ap.Values[a.Value]++
			if !seen[a.Name] {
				seen[a.Name] = true
				ap.Samples++
			}
		}
	}
	return profile
}

// BuildMetaProfile reads and profiles the metadata of a canonical directory.
func BuildMetaProfile(ctx context.Context, store Store, dir string) (*MetaProfile, error) {
	table, err := ReadMeta(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	return ProfileMeta(table), nil
}

// metaRecord is the JSON Lines shape of one sample.
type metaRecord struct {
	Sample     string              `json:"sample"`
	Attributes map[string][]string `json:"attributes"`
}

// WriteJSONL writes one JSON object per sample.
func (t *MetaTable) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, s := range t.Samples {
		rec := metaRecord{Sample: s.Sample, Attributes: make(map[string][]string)}
		for _, a := range s.Attributes {
			rec.Attributes[a.Name] = append(rec.Attributes[a.Name], a.Value)
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
