package service

// Phase is the position of a session in the coaching flow.
type Phase string

const (
	PhaseNoProfile            Phase = "no_profile"
	PhaseNoActiveConversation Phase = "no_active_conversation"
	PhaseActiveConversation   Phase = "active_conversation"
)

// SessionState is everything the server remembers about one browser
// session. It is carried by the session cookie and passed into and
// returned from every Controller operation.
type SessionState struct {
	UserID         string `json:"uid"`
	Email          string `json:"email"`
	ConversationID string `json:"cid,omitempty"`
	HasProfile     bool   `json:"profile,omitempty"`
}

// Phase derives the session phase from the state.
func (s SessionState) Phase() Phase {
	switch {
	case !s.HasProfile:
		return PhaseNoProfile
	case s.ConversationID == "":
		return PhaseNoActiveConversation
	default:
		return PhaseActiveConversation
	}
}
