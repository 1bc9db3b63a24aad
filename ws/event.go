// Package ws pushes live events to connected clients over WebSocket.
//
// Events are notifications only: a client that receives one refetches the
// affected resources through the REST API. The protocol is JSON frames of
// the form {"op": ..., "d": ..., "seq": ...}.
package ws

import "github.com/hatchlab/hatchdesk/models"

// Event is a frame sent to or received from a client. Seq is set by the
// hub and increases across all broadcasts.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → server.
const (
	OpHeartbeat = models.EventHeartbeat
)

// Server → client.
const (
	OpHeartbeatAck       = models.EventHeartbeatAck
	OpMessageCreate      = models.EventMessageCreate
	OpConversationCreate = models.EventConversationCreate
	OpReadUpdate         = models.EventReadUpdate
)
