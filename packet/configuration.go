package packet

import "github.com/realDragonium/Umbra/mc"

// FinishConfiguration is sent by the server when the configuration phase is over.
type FinishConfiguration struct{}

func (*FinishConfiguration) Kind() Kind                                  { return FinishConfigurationKind }
func (*FinishConfiguration) Encode(*mc.Buffer, mc.ProtocolVersion) error { return nil }
func (*FinishConfiguration) Decode(*mc.Buffer, mc.ProtocolVersion) error { return nil }

// AcknowledgeFinishConfiguration is the client's answer, after it both sides are in play.
type AcknowledgeFinishConfiguration struct{}

func (*AcknowledgeFinishConfiguration) Kind() Kind {
	return AcknowledgeFinishConfigurationKind
}
func (*AcknowledgeFinishConfiguration) Encode(*mc.Buffer, mc.ProtocolVersion) error { return nil }
func (*AcknowledgeFinishConfiguration) Decode(*mc.Buffer, mc.ProtocolVersion) error { return nil }
