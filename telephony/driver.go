package telephony

import "context"

// TrunkConfig identifies the carrier trunk used for outbound dialing.
type TrunkConfig struct {
	// Host is the SIP host (or outbound proxy) calls are placed through.
	Host string
	// Port is the SIP port on Host, 5060 when zero.
	Port int
	// TrunkID is the provider-side trunk identifier, passed through opaquely.
	TrunkID string
	// CallerNumber is the E.164 number presented as caller ID.
	CallerNumber string
}

// Driver places and controls carrier calls. Implementations block until the
// action completes or fails; retries and timeouts belong to the caller's
// context.
type Driver interface {
	// PlaceCall dials phoneNumber through the trunk and returns an opaque
	// session handle once the call is answered.
	PlaceCall(ctx context.Context, phoneNumber string, trunk TrunkConfig) (string, error)

	// TransferParticipant moves participantID of the session to destination
	// (a tel: or sip: URI) via SIP transfer.
	TransferParticipant(ctx context.Context, session, participantID, destination string) error

	// TeardownSession ends the call and releases all session resources.
	TeardownSession(ctx context.Context, session string) error
}

// Dispatcher schedules a conversational agent job on the media platform.
// The agent worker owns the actual dialing and conversation.
type Dispatcher interface {
	// DispatchAgentJob asks the platform to run agentName inside sessionName.
	// metadata is an opaque payload handed to the worker; it carries at least
	// phone_number and transfer_to, plus an optional call_id correlation key.
	DispatchAgentJob(ctx context.Context, agentName, sessionName string, metadata map[string]string) (string, error)
}
