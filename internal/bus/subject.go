package bus

import (
	"fmt"
	"strings"
)

// streamForSubject routes a subject to its owning stream by prefix.
func streamForSubject(subject string) (StreamKind, bool) {
	switch {
	case strings.HasPrefix(subject, "titan.cmd."):
		return StreamCMD, true
	case strings.HasPrefix(subject, "titan.evt."):
		return StreamEVT, true
	case strings.HasPrefix(subject, "titan.data."):
		return StreamData, true
	default:
		return "", false
	}
}

// PlaceOrderSubject builds the outbound place-order command subject:
// titan.cmd.exec.place.v1.<venue>.<account>.<symbol>.
func PlaceOrderSubject(venue, account, symbol string) string {
	return fmt.Sprintf("titan.cmd.exec.place.v1.%s.%s.%s", venue, account, symbol)
}

// HaltSubject builds the system-halt command subject: titan.cmd.sys.halt.v1.<scope>.
func HaltSubject(scope string) string {
	return fmt.Sprintf("titan.cmd.sys.halt.v1.%s", scope)
}

// RiskPolicySubject is the fixed subject for risk policy commands.
const RiskPolicySubject = "titan.cmd.risk.policy"

// FillSubject builds the inbound fill event subject: titan.evt.exec.fill.v1.<venue>.<account>.<symbol>.
func FillSubject(venue, account, symbol string) string {
	return fmt.Sprintf("titan.evt.exec.fill.v1.%s.%s.%s", venue, account, symbol)
}

// SignalSubject builds the brain-signal event subject: titan.evt.brain.signal.v1.<strategy>.
func SignalSubject(strategy string) string {
	return fmt.Sprintf("titan.evt.brain.signal.v1.%s", strategy)
}

// RegimeSubject is the fixed subject for regime-change events.
const RegimeSubject = "titan.evt.brain.regime.v1"

// PowerLawSubject is the fixed subject for tail-risk analytics events.
const PowerLawSubject = "titan.evt.analytics.powerlaw.v1"

// DashboardSubject is the fixed subject for the ephemeral dashboard feed.
const DashboardSubject = "titan.data.dashboard.update.v1"

// DeadLetterSubject is where malformed or unroutable envelopes go.
const DeadLetterSubject = "titan.evt.bus.deadletter.v1"
