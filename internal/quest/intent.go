package quest

import (
	"fmt"
	"log/slog"

	"github.com/pavelanni/alicorn/internal/model"
)

// IntentKind is a transition the host asks for on behalf of the user.
type IntentKind string

const (
	IntentStart IntentKind = "start"
	IntentPause IntentKind = "pause"
	IntentExit  IntentKind = "exit"
	IntentHome  IntentKind = "home"
	IntentBack  IntentKind = "back"
)

// precedence orders intents when several are pending; lower wins.
var precedence = map[IntentKind]int{
	IntentExit:  0,
	IntentHome:  1,
	IntentPause: 2,
	IntentBack:  3,
	IntentStart: 4,
}

// ParseIntentKind validates a kind received from the host.
func ParseIntentKind(s string) (IntentKind, error) {
	k := IntentKind(s)
	if _, ok := precedence[k]; !ok {
		return "", fmt.Errorf("unknown intent %q", s)
	}
	return k, nil
}

// Intent is a queued request. Stakeholder is only read for IntentStart.
type Intent struct {
	Kind        IntentKind        `json:"kind"`
	Stakeholder model.Stakeholder `json:"stakeholder,omitempty"`
}

// Navigation tells the host where to go after an intent was handled.
type Navigation string

const (
	NavStay  Navigation = "stay"
	NavQuest Navigation = "quest"
	NavPause Navigation = "pause"
	NavHome  Navigation = "home"
	NavBack  Navigation = "back"
	NavExit  Navigation = "exit"
)

// Outcome describes what Dispatch did.
type Outcome struct {
	Intent   IntentKind `json:"intent,omitempty"`
	Navigate Navigation `json:"navigate"`
	Dropped  int        `json:"dropped"`
	State    State      `json:"state"`
	Err      error      `json:"-"`
}

// Request queues an intent for the next Dispatch.
func (s *Session) Request(in Intent) {
	s.intents = append(s.intents, in)
}

// Pending returns the number of queued intents.
func (s *Session) Pending() int {
	return len(s.intents)
}

// Dispatch consumes the whole queue at once. Only the intent with the highest
// precedence is applied (exit first, then home, pause, back, start; the earliest
// wins among equals) and the others are dropped, so a burst of requests yields
// one well-defined transition. The queue is always empty afterwards.
func (s *Session) Dispatch() Outcome {
	pending := s.intents
	s.intents = nil
	if len(pending) == 0 {
		return Outcome{Navigate: NavStay, State: s.state}
	}

	win := pending[0]
	for _, in := range pending[1:] {
		if precedence[in.Kind] < precedence[win.Kind] {
			win = in
		}
	}

	out := Outcome{Intent: win.Kind, Dropped: len(pending) - 1}
	switch win.Kind {
	case IntentExit:
		out.Err = s.Exit()
		out.Navigate = NavExit
	case IntentHome:
		// Going home keeps the quest resumable.
		if s.state == StateInProgress {
			out.Err = s.Pause()
		}
		out.Navigate = NavHome
	case IntentPause:
		out.Err = s.Pause()
		out.Navigate = NavPause
	case IntentBack:
		if s.state == StatePaused {
			out.Err = s.Resume()
			out.Navigate = NavQuest
		} else {
			out.Navigate = NavBack
		}
	case IntentStart:
		out.Err = s.Start(win.Stakeholder)
		out.Navigate = NavQuest
	default:
		out.Err = fmt.Errorf("unknown intent %q", win.Kind)
		out.Navigate = NavStay
	}
	if out.Err != nil {
		out.Navigate = NavStay
	}
	out.State = s.state
	slog.Debug("intent dispatched", "quest_id", s.id, "intent", win.Kind, "dropped", out.Dropped, "state", s.state)
	return out
}
