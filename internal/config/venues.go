package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"venuecal/internal/apperr"
)

// Colors is a venue's branding palette (CSS color values).
type Colors struct {
	Primary   string `yaml:"primary" json:"primary"`
	Secondary string `yaml:"secondary" json:"secondary"`
	Text      string `yaml:"text" json:"text"`
}

// Venue is one registry entry. Field names follow the pubs.json layout.
type Venue struct {
	Name   string `yaml:"name" json:"name"`
	Logo   string `yaml:"logo,omitempty" json:"logo,omitempty"`
	Colors Colors `yaml:"colors" json:"colors"`

	// ICal is the active feed: an http(s) URL or a path relative to the
	// registry file.
	ICal string `yaml:"ical,omitempty" json:"ical,omitempty"`

	// SourceICal is the upstream URL kept after the feed was mirrored
	// locally.
	SourceICal string `yaml:"sourceIcal,omitempty" json:"sourceIcal,omitempty"`
}

// Source returns the upstream feed URL: SourceICal when present, else ICal.
func (v Venue) Source() string {
	if v.SourceICal != "" {
		return v.SourceICal
	}
	return v.ICal
}

// Venues is the loaded venue registry.
type Venues struct {
	// Path is the file the registry was loaded from. Relative feed paths
	// resolve against its directory.
	Path    string
	Entries map[string]Venue

	// raw is the registry document as read, in file order. Save merges
	// Entries into it so keys Venue does not declare survive a rewrite.
	raw *yaml.Node
}

// LoadVenues reads a registry file. Files ending in .json are decoded as
// JSON, everything else as YAML.
func LoadVenues(path string) (*Venues, error) {
	if path == "" {
		return nil, errors.New("venues path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var (
		entries map[string]Venue
		raw     *yaml.Node
	)
	if isJSON(path) {
		entries, raw, err = decodeVenuesJSON(data)
	} else {
		entries, raw, err = decodeVenuesYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse venues %s: %w", path, err)
	}
	if entries == nil {
		entries = make(map[string]Venue)
	}

	return &Venues{Path: path, Entries: entries, raw: raw}, nil
}

// SetFeed points venue id at the local feed ical and records source as its
// upstream URL.
func (v *Venues) SetFeed(id, ical, source string) {
	venue := v.Entries[id]
	venue.ICal = ical
	venue.SourceICal = source
	v.Entries[id] = venue
}

// Save writes the registry back to v.Path in the format it was read in.
// Entry order and keys outside Venue are kept as they were in the file.
func (v *Venues) Save() error {
	if v.Path == "" {
		return errors.New("venues path is empty")
	}
	if err := v.syncRaw(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isJSON(v.Path) {
		data, err = encodeJSONNode(v.raw)
	} else {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(v.raw); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	}
	if err != nil {
		return err
	}
	return writeFileAtomic(v.Path, data)
}

// Lookup returns the venue registered under id.
func (v *Venues) Lookup(id string) (Venue, error) {
	venue, ok := v.Entries[id]
	if !ok {
		return Venue{}, fmt.Errorf("%w: %q", apperr.ErrVenueNotFound, id)
	}
	return venue, nil
}

// IDs returns the registered venue ids in sorted order.
func (v *Venues) IDs() []string {
	ids := make([]string, 0, len(v.Entries))
	for id := range v.Entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Dir is the directory relative feed paths resolve against.
func (v *Venues) Dir() string {
	return filepath.Dir(v.Path)
}

// ResolveFeed returns the active feed location of venue: remote URLs
// unchanged, relative paths joined to the registry directory.
func (v *Venues) ResolveFeed(venue Venue) string {
	feed := venue.ICal
	if feed == "" {
		feed = venue.SourceICal
	}
	lower := strings.ToLower(feed)
	if feed == "" || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "file://") || filepath.IsAbs(feed) {
		return feed
	}
	return filepath.Join(v.Dir(), filepath.FromSlash(feed))
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
