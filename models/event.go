package models

import "encoding/json"

// Live event operations pushed over GET /ws.
const (
	EventHeartbeat          = "heartbeat"
	EventHeartbeatAck       = "heartbeat_ack"
	EventMessageCreate      = "message_create"
	EventConversationCreate = "conversation_create"
	EventReadUpdate         = "read_update"
)

// LiveEvent is an event as received by a client. Data stays raw until the
// receiver knows which payload type Op implies.
type LiveEvent struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
}

// MessageCreateData is the payload of message_create.
type MessageCreateData struct {
	ConversationID int64   `json:"conversation_id"`
	Message        Message `json:"message"`
}

// ConversationCreateData is the payload of conversation_create.
type ConversationCreateData struct {
	Conversation Conversation `json:"conversation"`
}

// ReadUpdateData is the payload of read_update, sent to every participant
// of the conversation when one of them moves their read position.
type ReadUpdateData struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	MessageID      int64 `json:"message_id"`
}
