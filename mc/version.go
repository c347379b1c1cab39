package mc

import (
	"fmt"
	"sort"
)

// ProtocolVersion is a protocol number together with the game releases
// that speak it. Versions are ordered by ID only.
type ProtocolVersion struct {
	ID    int
	Names []string
}

var (
	Unknown = ProtocolVersion{ID: -1, Names: []string{"Unknown"}}
	Legacy  = ProtocolVersion{ID: -2, Names: []string{"Legacy"}}

	Minecraft_1_7_2  = ProtocolVersion{4, []string{"1.7.2", "1.7.3", "1.7.4", "1.7.5"}}
	Minecraft_1_7_6  = ProtocolVersion{5, []string{"1.7.6", "1.7.7", "1.7.8", "1.7.9", "1.7.10"}}
	Minecraft_1_8    = ProtocolVersion{47, []string{"1.8", "1.8.1", "1.8.2", "1.8.3", "1.8.4", "1.8.5", "1.8.6", "1.8.7", "1.8.8", "1.8.9"}}
	Minecraft_1_9    = ProtocolVersion{107, []string{"1.9"}}
	Minecraft_1_9_1  = ProtocolVersion{108, []string{"1.9.1"}}
	Minecraft_1_9_2  = ProtocolVersion{109, []string{"1.9.2"}}
	Minecraft_1_9_4  = ProtocolVersion{110, []string{"1.9.3", "1.9.4"}}
	Minecraft_1_10   = ProtocolVersion{210, []string{"1.10", "1.10.1", "1.10.2"}}
	Minecraft_1_11   = ProtocolVersion{315, []string{"1.11"}}
	Minecraft_1_11_1 = ProtocolVersion{316, []string{"1.11.1", "1.11.2"}}
	Minecraft_1_12   = ProtocolVersion{335, []string{"1.12"}}
	Minecraft_1_12_1 = ProtocolVersion{338, []string{"1.12.1"}}
	Minecraft_1_12_2 = ProtocolVersion{340, []string{"1.12.2"}}
	Minecraft_1_13   = ProtocolVersion{393, []string{"1.13"}}
	Minecraft_1_13_1 = ProtocolVersion{401, []string{"1.13.1"}}
	Minecraft_1_13_2 = ProtocolVersion{404, []string{"1.13.2"}}
	Minecraft_1_14   = ProtocolVersion{477, []string{"1.14"}}
	Minecraft_1_14_1 = ProtocolVersion{480, []string{"1.14.1"}}
	Minecraft_1_14_2 = ProtocolVersion{485, []string{"1.14.2"}}
	Minecraft_1_14_3 = ProtocolVersion{490, []string{"1.14.3"}}
	Minecraft_1_14_4 = ProtocolVersion{498, []string{"1.14.4"}}
	Minecraft_1_15   = ProtocolVersion{573, []string{"1.15"}}
	Minecraft_1_15_1 = ProtocolVersion{575, []string{"1.15.1"}}
	Minecraft_1_15_2 = ProtocolVersion{578, []string{"1.15.2"}}
	Minecraft_1_16   = ProtocolVersion{735, []string{"1.16"}}
	Minecraft_1_16_1 = ProtocolVersion{736, []string{"1.16.1"}}
	Minecraft_1_16_2 = ProtocolVersion{751, []string{"1.16.2"}}
	Minecraft_1_16_3 = ProtocolVersion{753, []string{"1.16.3"}}
	Minecraft_1_16_4 = ProtocolVersion{754, []string{"1.16.4", "1.16.5"}}
	Minecraft_1_17   = ProtocolVersion{755, []string{"1.17"}}
	Minecraft_1_17_1 = ProtocolVersion{756, []string{"1.17.1"}}
	Minecraft_1_18   = ProtocolVersion{757, []string{"1.18", "1.18.1"}}
	Minecraft_1_18_2 = ProtocolVersion{758, []string{"1.18.2"}}
	Minecraft_1_19   = ProtocolVersion{759, []string{"1.19"}}
	Minecraft_1_19_1 = ProtocolVersion{760, []string{"1.19.1", "1.19.2"}}
	Minecraft_1_19_3 = ProtocolVersion{761, []string{"1.19.3"}}
	Minecraft_1_19_4 = ProtocolVersion{762, []string{"1.19.4"}}
	Minecraft_1_20   = ProtocolVersion{763, []string{"1.20", "1.20.1"}}
	Minecraft_1_20_2 = ProtocolVersion{764, []string{"1.20.2"}}
	Minecraft_1_20_3 = ProtocolVersion{765, []string{"1.20.3", "1.20.4"}}
)

// KnownVersions lists every version the proxy understands, oldest first.
var KnownVersions = []ProtocolVersion{
	Minecraft_1_7_2, Minecraft_1_7_6, Minecraft_1_8,
	Minecraft_1_9, Minecraft_1_9_1, Minecraft_1_9_2, Minecraft_1_9_4,
	Minecraft_1_10, Minecraft_1_11, Minecraft_1_11_1,
	Minecraft_1_12, Minecraft_1_12_1, Minecraft_1_12_2,
	Minecraft_1_13, Minecraft_1_13_1, Minecraft_1_13_2,
	Minecraft_1_14, Minecraft_1_14_1, Minecraft_1_14_2, Minecraft_1_14_3, Minecraft_1_14_4,
	Minecraft_1_15, Minecraft_1_15_1, Minecraft_1_15_2,
	Minecraft_1_16, Minecraft_1_16_1, Minecraft_1_16_2, Minecraft_1_16_3, Minecraft_1_16_4,
	Minecraft_1_17, Minecraft_1_17_1, Minecraft_1_18, Minecraft_1_18_2,
	Minecraft_1_19, Minecraft_1_19_1, Minecraft_1_19_3, Minecraft_1_19_4,
	Minecraft_1_20, Minecraft_1_20_2, Minecraft_1_20_3,
}

// String returns the first release that introduced this version.
func (v ProtocolVersion) String() string {
	if len(v.Names) == 0 {
		return fmt.Sprintf("protocol %d", v.ID)
	}
	return v.Names[0]
}

// LastName returns the most recent release speaking this version.
func (v ProtocolVersion) LastName() string {
	if len(v.Names) == 0 {
		return v.String()
	}
	return v.Names[len(v.Names)-1]
}

func (v ProtocolVersion) Compare(other ProtocolVersion) int {
	switch {
	case v.ID < other.ID:
		return -1
	case v.ID > other.ID:
		return 1
	}
	return 0
}

func (v ProtocolVersion) Equal(other ProtocolVersion) bool {
	return v.ID == other.ID
}

// AtLeast reports v >= other.
func (v ProtocolVersion) AtLeast(other ProtocolVersion) bool {
	return v.ID >= other.ID
}

// Below reports v < other.
func (v ProtocolVersion) Below(other ProtocolVersion) bool {
	return v.ID < other.ID
}

// InRange reports from <= v < until.
func (v ProtocolVersion) InRange(from, until ProtocolVersion) bool {
	return v.AtLeast(from) && v.Below(until)
}

// VersionTable is an immutable set of protocol versions, built once at
// startup and shared by reference.
type VersionTable struct {
	byID   map[int]ProtocolVersion
	sorted []ProtocolVersion
}

// NewVersionTable builds a table. Registering the same id twice is an error.
func NewVersionTable(versions ...ProtocolVersion) (*VersionTable, error) {
	table := &VersionTable{
		byID: make(map[int]ProtocolVersion, len(versions)),
	}
	for _, v := range versions {
		if _, ok := table.byID[v.ID]; ok {
			return nil, fmt.Errorf("%w: %d (%s)", ErrDuplicateVersion, v.ID, v)
		}
		table.byID[v.ID] = v
		table.sorted = append(table.sorted, v)
	}
	sort.Slice(table.sorted, func(i, j int) bool {
		return table.sorted[i].ID < table.sorted[j].ID
	})
	return table, nil
}

// DefaultVersionTable returns a table with all KnownVersions.
func DefaultVersionTable() *VersionTable {
	table, err := NewVersionTable(KnownVersions...)
	if err != nil {
		panic(err)
	}
	return table
}

// Get returns the version with the given protocol number.
func (t *VersionTable) Get(id int) (ProtocolVersion, bool) {
	v, ok := t.byID[id]
	return v, ok
}

func (t *VersionTable) Len() int {
	return len(t.sorted)
}

// All returns every version, oldest first.
func (t *VersionTable) All() []ProtocolVersion {
	return append([]ProtocolVersion(nil), t.sorted...)
}

func (t *VersionTable) Latest() ProtocolVersion {
	if len(t.sorted) == 0 {
		return Unknown
	}
	return t.sorted[len(t.sorted)-1]
}

func (t *VersionTable) Oldest() ProtocolVersion {
	if len(t.sorted) == 0 {
		return Unknown
	}
	return t.sorted[0]
}
