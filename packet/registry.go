package packet

import (
	"fmt"

	"github.com/realDragonium/Umbra/mc"
	"github.com/valyala/bytebufferpool"
)

// State is a phase of the connection, each with its own packet set. The
// values of Status and Login match the handshake's next state field.
type State byte

const (
	HandshakeState State = iota
	StatusState
	LoginState
	ConfigurationState
	PlayState
)

func (s State) String() string {
	switch s {
	case HandshakeState:
		return "handshake"
	case StatusState:
		return "status"
	case LoginState:
		return "login"
	case ConfigurationState:
		return "configuration"
	case PlayState:
		return "play"
	}
	return fmt.Sprintf("State(%d)", s)
}

// Mapping assigns a packet id from Since onwards. The mapping ends right
// before the next mapping of the same packet, at Last when Last is set, or
// at the newest known version.
type Mapping struct {
	ID    int32
	Since mc.ProtocolVersion
	Last  mc.ProtocolVersion
}

// Map is shorthand for an open ended Mapping.
func Map(id int32, since mc.ProtocolVersion) Mapping {
	return Mapping{ID: id, Since: since}
}

// MapUntil is shorthand for a Mapping that stops after last (inclusive).
func MapUntil(id int32, since, last mc.ProtocolVersion) Mapping {
	return Mapping{ID: id, Since: since, Last: last}
}

type Factory func() Packet

type versionRegistry struct {
	byID   map[int32]Factory
	byKind map[Kind]int32
}

// DirectionRegistry maps packet ids to packets for one state and direction.
type DirectionRegistry struct {
	State     State
	Direction Direction
	// Fallback marks registries whose unknown packets are relayed untouched
	// instead of ending the connection.
	Fallback bool

	table    *mc.VersionTable
	versions map[int]*versionRegistry
}

func NewDirectionRegistry(state State, dir Direction, table *mc.VersionTable) *DirectionRegistry {
	versions := make(map[int]*versionRegistry, table.Len())
	for _, v := range table.All() {
		versions[v.ID] = &versionRegistry{
			byID:   make(map[int32]Factory),
			byKind: make(map[Kind]int32),
		}
	}
	return &DirectionRegistry{
		State:     state,
		Direction: dir,
		table:     table,
		versions:  versions,
	}
}

// Register adds a packet for every version covered by the mappings. Within
// a single version ids and packets must stay one to one.
func (r *DirectionRegistry) Register(factory Factory, mappings ...Mapping) error {
	if len(mappings) == 0 {
		return fmt.Errorf("no mappings given")
	}
	kind := factory().Kind()
	for i, m := range mappings {
		if i > 0 && !mappings[i-1].Since.Below(m.Since) {
			return fmt.Errorf("mappings of %v are not in ascending version order", kind)
		}
		for _, v := range r.table.All() {
			if !r.covers(mappings, i, v) {
				continue
			}
			reg := r.versions[v.ID]
			if other, ok := reg.byID[m.ID]; ok {
				return fmt.Errorf("%w: %v id 0x%02x in %v is taken by %v", ErrDuplicatePacketID, r.Direction, m.ID, v, other().Kind())
			}
			if id, ok := reg.byKind[kind]; ok {
				return fmt.Errorf("%w: %v %v in %v already has id 0x%02x", ErrDuplicatePacketKind, r.Direction, kind, v, id)
			}
			reg.byID[m.ID] = factory
			reg.byKind[kind] = m.ID
		}
	}
	return nil
}

func (r *DirectionRegistry) covers(mappings []Mapping, i int, v mc.ProtocolVersion) bool {
	m := mappings[i]
	if v.Below(m.Since) {
		return false
	}
	if m.Last.ID != 0 && v.Compare(m.Last) > 0 {
		return false
	}
	if i+1 < len(mappings) && !v.Below(mappings[i+1].Since) {
		return false
	}
	return true
}

// MustRegister is Register for the static tables, it panics on error.
func (r *DirectionRegistry) MustRegister(factory Factory, mappings ...Mapping) {
	if err := r.Register(factory, mappings...); err != nil {
		panic(err)
	}
}

// Lookup creates an empty packet for the id under the given version.
func (r *DirectionRegistry) Lookup(v mc.ProtocolVersion, id int32) (Packet, error) {
	reg, ok := r.versions[v.ID]
	if !ok {
		return nil, fmt.Errorf("%w: version %v is not supported", ErrUnknownPacket, v)
	}
	factory, ok := reg.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v %v id 0x%02x in %v", ErrUnknownPacket, r.State, r.Direction, id, v)
	}
	return factory(), nil
}

// PacketID returns the wire id of a packet kind under the given version.
func (r *DirectionRegistry) PacketID(v mc.ProtocolVersion, kind Kind) (int32, bool) {
	reg, ok := r.versions[v.ID]
	if !ok {
		return 0, false
	}
	id, ok := reg.byKind[kind]
	return id, ok
}

// Decode resolves and decodes a message. The payload has to be consumed
// exactly, anything else means both sides disagree on the packet layout.
// The message stays owned by the caller.
func (r *DirectionRegistry) Decode(v mc.ProtocolVersion, msg *mc.Message) (Packet, error) {
	pk, err := r.Lookup(v, msg.ID)
	if err != nil {
		return nil, err
	}
	buf := mc.NewBuffer(msg.Payload())
	if err := pk.Decode(buf, v); err != nil {
		return nil, fmt.Errorf("%w: decoding %v: %w", ErrProtocolDesync, pk.Kind(), err)
	}
	if buf.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %v left %d of %d bytes unread", ErrProtocolDesync, pk.Kind(), buf.Remaining(), buf.Len())
	}
	return pk, nil
}

// Encode turns a packet into a message with a pooled payload.
func (r *DirectionRegistry) Encode(v mc.ProtocolVersion, pk Packet) (*mc.Message, error) {
	id, ok := r.PacketID(v, pk.Kind())
	if !ok {
		return nil, fmt.Errorf("%w: %v is not registered %v in %v", ErrUnknownPacket, pk.Kind(), r.Direction, v)
	}
	bb := bytebufferpool.Get()
	buf := mc.NewBuffer(bb.B[:0])
	if err := pk.Encode(buf, v); err != nil {
		bytebufferpool.Put(bb)
		return nil, fmt.Errorf("encoding %v: %w", pk.Kind(), err)
	}
	bb.B = buf.Bytes()
	return mc.NewMessageFromBuffer(id, bb, 0), nil
}

// StateRegistry holds both directions of one state.
type StateRegistry struct {
	State       State
	Serverbound *DirectionRegistry
	Clientbound *DirectionRegistry
}

func NewStateRegistry(state State, table *mc.VersionTable) *StateRegistry {
	return &StateRegistry{
		State:       state,
		Serverbound: NewDirectionRegistry(state, Serverbound, table),
		Clientbound: NewDirectionRegistry(state, Clientbound, table),
	}
}

func (r *StateRegistry) Direction(dir Direction) *DirectionRegistry {
	if dir == Serverbound {
		return r.Serverbound
	}
	return r.Clientbound
}
