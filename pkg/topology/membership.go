package topology

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Member is one entry of the peer relation data: a unit that published its
// address.
type Member struct {
	Ordinal int    `yaml:"ordinal"`
	Address string `yaml:"address"`
	Ready   bool   `yaml:"ready"`
}

// Membership is the platform-published peer view. The platform maintains the
// file; redkeeper only reads it.
type Membership struct {
	// Leader is the ordinal of the platform-elected leader unit, or -1.
	Leader int `yaml:"leader"`

	Units []Member `yaml:"units"`
}

// LoadMembership reads the peers file. A missing file is a fresh deployment
// with no peer data published yet: an empty membership is returned.
func LoadMembership(path string) (*Membership, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Membership{Leader: -1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read peers file: %w", err)
	}

	m := &Membership{Leader: -1}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse peers file %s: %w", path, err)
	}

	seen := make(map[int]bool, len(m.Units))
	seenAddr := make(map[string]bool, len(m.Units))
	for _, u := range m.Units {
		if u.Address == "" {
			return nil, fmt.Errorf("peers file %s: unit %d has no address", path, u.Ordinal)
		}
		if seen[u.Ordinal] {
			return nil, fmt.Errorf("peers file %s: duplicate ordinal %d", path, u.Ordinal)
		}
		// Two units sharing an address would both match a sentinel's primary
		// opinion and break the at-most-one-primary guarantee downstream.
		if seenAddr[u.Address] {
			return nil, fmt.Errorf("peers file %s: duplicate address %s", path, u.Address)
		}
		seen[u.Ordinal] = true
		seenAddr[u.Address] = true
	}

	sort.Slice(m.Units, func(i, j int) bool { return m.Units[i].Ordinal < m.Units[j].Ordinal })
	return m, nil
}

// member returns the entry for ordinal, or nil.
func (m *Membership) member(ordinal int) *Member {
	for i := range m.Units {
		if m.Units[i].Ordinal == ordinal {
			return &m.Units[i]
		}
	}
	return nil
}

// ensureSelf adds this unit when the platform has not published its entry
// yet, which happens before the first peer-relation event on a fresh deploy.
func (m *Membership) ensureSelf(ordinal int, address string) {
	if m.member(ordinal) != nil {
		return
	}
	m.Units = append(m.Units, Member{Ordinal: ordinal, Address: address, Ready: true})
	sort.Slice(m.Units, func(i, j int) bool { return m.Units[i].Ordinal < m.Units[j].Ordinal })
}
