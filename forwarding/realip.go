package forwarding

import (
	"fmt"
	"strings"
	"time"

	"github.com/realDragonium/Umbra/packet"
)

// RealIP appends the client address and a unix timestamp to the host as
// understood by the TCPShield RealIP plugin. A host that already carries
// RealIP data is left alone.
type RealIP struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

func (*RealIP) Mode() Mode             { return ModeRealIP }
func (*RealIP) ForwardsIdentity() bool { return false }

func (r *RealIP) RewriteHost(host string, p Player) (string, error) {
	if strings.Contains(host, packet.RealIPSeparator) {
		return host, nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	parts := strings.SplitN(host, packet.ForgeSeparator, 3)
	addr := fmt.Sprintf("%s///%s///%d", parts[0], p.Address, now().Unix())
	if len(parts) > 1 {
		addr = fmt.Sprintf("%s\x00%s\x00", addr, parts[1])
	}
	return addr, nil
}
