package packet

import (
	"encoding/json"

	"github.com/realDragonium/Umbra/mc"
)

type StatusRequest struct{}

func (*StatusRequest) Kind() Kind                                  { return StatusRequestKind }
func (*StatusRequest) Encode(*mc.Buffer, mc.ProtocolVersion) error { return nil }
func (*StatusRequest) Decode(*mc.Buffer, mc.ProtocolVersion) error { return nil }

type StatusResponse struct {
	JSONResponse string
}

func (*StatusResponse) Kind() Kind { return StatusResponseKind }

func (pk *StatusResponse) Encode(buf *mc.Buffer, _ mc.ProtocolVersion) error {
	buf.WriteString(pk.JSONResponse)
	return nil
}

func (pk *StatusResponse) Decode(buf *mc.Buffer, _ mc.ProtocolVersion) (err error) {
	pk.JSONResponse, err = buf.ReadString(0)
	return err
}

// StatusPing is used for both the ping and the pong.
type StatusPing struct {
	Time int64
}

func (*StatusPing) Kind() Kind { return StatusPingKind }

func (pk *StatusPing) Encode(buf *mc.Buffer, _ mc.ProtocolVersion) error {
	buf.WriteLong(pk.Time)
	return nil
}

func (pk *StatusPing) Decode(buf *mc.Buffer, _ mc.ProtocolVersion) (err error) {
	pk.Time, err = buf.ReadLong()
	return err
}

type SimpleStatus struct {
	Name        string `json:"name"`
	Protocol    int    `json:"protocol"`
	Description string `json:"text"`
	Favicon     string `json:"favicon,omitempty"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// Response builds the status response. A zero Protocol is replaced by the
// client's own version so every client sees the server as compatible.
func (s SimpleStatus) Response(online int, clientVersion mc.ProtocolVersion) *StatusResponse {
	protocol := s.Protocol
	if protocol == 0 {
		protocol = clientVersion.ID
	}
	jsonResponse := ResponseJSON{
		Version: VersionJSON{
			Name:     s.Name,
			Protocol: protocol,
		},
		Players: PlayersJSON{
			Max:    s.MaxPlayers,
			Online: online,
		},
		Description: DescriptionJSON{
			Text: s.Description,
		},
		Favicon: s.Favicon,
	}
	text, _ := json.Marshal(jsonResponse)
	return &StatusResponse{JSONResponse: string(text)}
}

type ResponseJSON struct {
	Version     VersionJSON     `json:"version"`
	Players     PlayersJSON     `json:"players"`
	Description DescriptionJSON `json:"description"`
	Favicon     string          `json:"favicon,omitempty"`
}

type VersionJSON struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type PlayersJSON struct {
	Max    int                `json:"max"`
	Online int                `json:"online"`
	Sample []PlayerSampleJSON `json:"sample,omitempty"`
}

type PlayerSampleJSON struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type DescriptionJSON struct {
	Text string `json:"text"`
}
