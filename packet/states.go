package packet

import (
	"github.com/realDragonium/Umbra/mc"
)

// Registries are the packet tables of every state for one version table.
// Build them once at startup and share them between connections.
type Registries struct {
	Versions      *mc.VersionTable
	Handshake     *StateRegistry
	Status        *StateRegistry
	Login         *StateRegistry
	Configuration *StateRegistry
	Play          *StateRegistry
}

func (r *Registries) State(s State) *StateRegistry {
	switch s {
	case StatusState:
		return r.Status
	case LoginState:
		return r.Login
	case ConfigurationState:
		return r.Configuration
	case PlayState:
		return r.Play
	}
	return r.Handshake
}

func NewRegistries(table *mc.VersionTable) (*Registries, error) {
	r := &Registries{
		Versions:      table,
		Handshake:     NewStateRegistry(HandshakeState, table),
		Status:        NewStateRegistry(StatusState, table),
		Login:         NewStateRegistry(LoginState, table),
		Configuration: NewStateRegistry(ConfigurationState, table),
		Play:          NewStateRegistry(PlayState, table),
	}
	r.Configuration.Serverbound.Fallback = true
	r.Configuration.Clientbound.Fallback = true
	r.Play.Serverbound.Fallback = true
	r.Play.Clientbound.Fallback = true

	regs := []struct {
		dir      *DirectionRegistry
		factory  Factory
		mappings []Mapping
	}{
		{r.Handshake.Serverbound, func() Packet { return &Handshake{} }, []Mapping{Map(0x00, mc.Minecraft_1_7_2)}},

		{r.Status.Serverbound, func() Packet { return &StatusRequest{} }, []Mapping{Map(0x00, mc.Minecraft_1_7_2)}},
		{r.Status.Serverbound, func() Packet { return &StatusPing{} }, []Mapping{Map(0x01, mc.Minecraft_1_7_2)}},
		{r.Status.Clientbound, func() Packet { return &StatusResponse{} }, []Mapping{Map(0x00, mc.Minecraft_1_7_2)}},
		{r.Status.Clientbound, func() Packet { return &StatusPing{} }, []Mapping{Map(0x01, mc.Minecraft_1_7_2)}},

		{r.Login.Serverbound, func() Packet { return &LoginStart{} }, []Mapping{Map(0x00, mc.Minecraft_1_7_2)}},
		{r.Login.Serverbound, func() Packet { return &EncryptionResponse{} }, []Mapping{Map(0x01, mc.Minecraft_1_7_2)}},
		{r.Login.Serverbound, func() Packet { return &LoginPluginResponse{} }, []Mapping{Map(0x02, mc.Minecraft_1_13)}},
		{r.Login.Serverbound, func() Packet { return &LoginAcknowledged{} }, []Mapping{Map(0x03, mc.Minecraft_1_20_2)}},

		{r.Login.Clientbound, func() Packet { return &Disconnect{} }, []Mapping{Map(0x00, mc.Minecraft_1_7_2)}},
		{r.Login.Clientbound, func() Packet { return &EncryptionRequest{} }, []Mapping{Map(0x01, mc.Minecraft_1_7_2)}},
		{r.Login.Clientbound, func() Packet { return &LoginSuccess{} }, []Mapping{Map(0x02, mc.Minecraft_1_7_2)}},
		{r.Login.Clientbound, func() Packet { return &SetCompression{} }, []Mapping{Map(0x03, mc.Minecraft_1_8)}},
		{r.Login.Clientbound, func() Packet { return &LoginPluginRequest{} }, []Mapping{Map(0x04, mc.Minecraft_1_13)}},

		{r.Configuration.Clientbound, func() Packet { return &FinishConfiguration{} }, []Mapping{Map(0x02, mc.Minecraft_1_20_2)}},
		{r.Configuration.Serverbound, func() Packet { return &AcknowledgeFinishConfiguration{} }, []Mapping{Map(0x02, mc.Minecraft_1_20_2)}},

		{r.Play.Serverbound, func() Packet { return &SessionChatMessage{} }, []Mapping{Map(0x05, mc.Minecraft_1_19_3)}},
	}
	for _, reg := range regs {
		if err := reg.dir.Register(reg.factory, reg.mappings...); err != nil {
			return nil, err
		}
	}
	return r, nil
}
