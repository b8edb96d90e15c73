package domain

// Signal is the ternary output of the predictor driving entries and exits.
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalUnknown Signal = "UNKNOWN"
)

func (s Signal) String() string {
	if s == "" {
		return string(SignalUnknown)
	}
	return string(s)
}

// ParseSignal maps user input (force endpoints, probes) onto a Signal.
// Anything unrecognised is UNKNOWN.
func ParseSignal(v string) Signal {
	switch v {
	case "BUY", "buy", "1":
		return SignalBuy
	case "SELL", "sell", "0":
		return SignalSell
	default:
		return SignalUnknown
	}
}
