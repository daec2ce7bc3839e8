package models

// Session is the trading-day phase governing which mover threshold applies.
type Session int

const (
	SessionClosed Session = iota
	SessionPreMarket
	SessionRegular
)

func (s Session) String() string {
	switch s {
	case SessionPreMarket:
		return "PRE-MARKET"
	case SessionRegular:
		return "REGULAR"
	default:
		return "CLOSED"
	}
}
