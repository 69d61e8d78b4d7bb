package signaling

import (
	"encoding/json"
	"fmt"
)

// Message is the frame exchanged with the signaling server. RequestID is set
// when the sender expects exactly one correlated response; fire-and-forget
// frames leave it empty.
type Message struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Client to server message types.
const (
	MessageTypeJoinRoom        = "join_room"
	MessageTypePublishOffer    = "publish_offer"
	MessageTypeTrickleICE      = "trickle_ice"
	MessageTypeSubscribe       = "subscribe"
	MessageTypeSubscribeAnswer = "subscribe_answer"
	MessageTypeUnsubscribe     = "unsubscribe"
	MessageTypeLeave           = "leave"
	MessageTypePing            = "ping"
)

// Server to client message types.
const (
	MessageTypeJoined          = "joined"
	MessageTypePublisherJoined = "publisher_joined"
	MessageTypePublisherLeft   = "publisher_left"
	MessageTypeMemberJoined    = "member_joined"
	MessageTypeMemberLeft      = "member_left"
	MessageTypePublishAnswer   = "publish_answer"
	MessageTypeSubscribeOffer  = "subscribe_offer"
	MessageTypeRemoteCandidate = "remote_candidate"
	MessageTypeError           = "error"
	MessageTypePong            = "pong"
)

// MessageTypeAny subscribes a handler to every inbound message.
const MessageTypeAny = "*"

// Trickle targets for TrickleICEPayload.
const (
	TargetPublisher  = "publisher"
	TargetSubscriber = "subscriber"
)

// FeedRef identifies one publisher's media in a subscribe request.
type FeedRef struct {
	FeedID int64 `json:"feed_id"`
}

// JoinRoomPayload requests room membership on the signaling plane.
type JoinRoomPayload struct {
	RoomID  string `json:"room_id"`
	Display string `json:"display"`
}

// PublishOfferPayload carries the local SDP offer for outbound media.
type PublishOfferPayload struct {
	SDP  string `json:"sdp"`
	Kind string `json:"kind"`
}

// TrickleICEPayload forwards a locally discovered ICE candidate. FeedID is
// set only when Target is the subscriber side.
type TrickleICEPayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
	Target        string  `json:"target"`
	FeedID        int64   `json:"feed_id,omitempty"`
}

// SubscribePayload requests one batched offer covering the given feeds.
type SubscribePayload struct {
	Feeds []FeedRef `json:"feeds"`
}

// SubscribeAnswerPayload carries the subscriber answer. The server sends no
// acknowledgement for it.
type SubscribeAnswerPayload struct {
	SDP string `json:"sdp"`
}

// UnsubscribePayload tears down the given feeds server-side.
type UnsubscribePayload struct {
	FeedIDs []int64 `json:"feed_ids"`
}

// ParticipantInfo is the server's presence record for one member.
type ParticipantInfo struct {
	UserID     string `json:"user_id"`
	Display    string `json:"display"`
	Publishing bool   `json:"is_publishing,omitempty"`
	Muted      bool   `json:"is_muted,omitempty"`
	VideoOff   bool   `json:"is_video_off,omitempty"`
}

// PublisherInfo advertises one remote feed.
type PublisherInfo struct {
	FeedID  int64  `json:"feed_id"`
	Display string `json:"display"`
	UserID  string `json:"user_id"`
}

// JoinedPayload is the authoritative room state returned for join_room.
type JoinedPayload struct {
	RoomID       string            `json:"room_id"`
	UserID       string            `json:"user_id"`
	Participants []ParticipantInfo `json:"participants"`
	Publishers   []PublisherInfo   `json:"publishers"`
}

// PublisherJoinedPayload announces a new remote feed.
type PublisherJoinedPayload struct {
	FeedID  int64  `json:"feed_id"`
	Display string `json:"display"`
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
}

// PublisherLeftPayload announces a departed remote feed.
type PublisherLeftPayload struct {
	FeedID int64  `json:"feed_id"`
	RoomID string `json:"room_id"`
}

// MemberJoinedPayload announces a new member, publishing or not.
type MemberJoinedPayload struct {
	UserID  string `json:"user_id"`
	Display string `json:"display"`
}

// MemberLeftPayload announces a departed member.
type MemberLeftPayload struct {
	UserID string `json:"user_id"`
}

// PublishAnswerPayload is the server answer to publish_offer.
type PublishAnswerPayload struct {
	SDP string `json:"sdp"`
}

// SubscribeOfferPayload is the batched server offer covering FeedIDs, in
// m-line order.
type SubscribeOfferPayload struct {
	SDP     string  `json:"sdp"`
	FeedIDs []int64 `json:"feed_ids"`
}

// RemoteCandidatePayload trickles a server-side ICE candidate. A nil FeedID
// routes the candidate to the publisher session.
type RemoteCandidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
	FeedID        *int64  `json:"feed_id,omitempty"`
}

// ErrorPayload is the server's explicit failure frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage frames a payload for sending.
func NewMessage(msgType string, payload any) (*Message, error) {
	msg := &Message{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// DecodePayload validates an inbound payload against its expected shape.
// Payloads are never trusted as-is; a shape mismatch is a ProtocolError.
func DecodePayload[T any](msg *Message) (T, error) {
	var payload T
	if len(msg.Payload) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, &ProtocolError{Type: msg.Type, Err: err}
	}
	return payload, nil
}
