package predict

import (
	"strings"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
)

const mobileUserAgentPattern = `(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`

// NativeBridge is the host wrapper's view of the numeric runtime.
type NativeBridge interface {
	Supported() bool
	LogError(msg string)
}

// Environment describes where forecasts are being computed.
type Environment struct {
	Native    NativeBridge
	Hostname  string
	UserAgent string
	LowPower  bool
}

// IsProduction reports whether this is a deployed (non-local) host.
func (e Environment) IsProduction() bool {
	return e.Hostname != "" && !strings.Contains(e.Hostname, "localhost")
}

// IsLowPower reports an explicitly low-power host or a mobile user agent.
func (e Environment) IsLowPower() bool {
	if e.LowPower {
		return true
	}
	if e.UserAgent == "" {
		return false
	}
	mobile, err := common.MatchRegex(mobileUserAgentPattern, e.UserAgent)
	return err == nil && mobile
}

func (e Environment) logNative(msg string) {
	if e.Native != nil {
		e.Native.LogError(msg)
	}
}
