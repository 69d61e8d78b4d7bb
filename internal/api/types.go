package api

// ICEServer is an opaque ICE server record handed through to the WebRTC
// layer.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Room is a room metadata record.
type Room struct {
	RoomID    string `json:"room_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// CreateRoomRequest creates a new room.
type CreateRoomRequest struct {
	Name    string `json:"name,omitempty"`
	Display string `json:"display,omitempty"`
}

// CreateRoomResponse carries the new room id and its creator key.
type CreateRoomResponse struct {
	RoomID     string `json:"room_id"`
	CreatorKey string `json:"creator_key,omitempty"`
	ExpiresIn  int64  `json:"expires_in,omitempty"`
}

// JoinRequest authenticates a join either by creator key or by invitation.
type JoinRequest struct {
	Display     string `json:"display"`
	CreatorKey  string `json:"creator_key,omitempty"`
	InviteToken string `json:"invite_token,omitempty"`
	InviteCode  string `json:"invite_code,omitempty"`
}

// JoinParticipant is the optimistic participant list in the join response.
// The WebSocket joined payload supersedes it once signaling is up.
type JoinParticipant struct {
	UserID  string `json:"user_id"`
	Display string `json:"display"`
}

// JoinResponse is the REST join result used to bring up signaling.
type JoinResponse struct {
	RoomID       string            `json:"room_id"`
	UserID       string            `json:"user_id"`
	WSURL        string            `json:"ws_url"`
	Token        string            `json:"token"`
	ICEServers   []ICEServer       `json:"ice_servers"`
	ExpiresIn    int64             `json:"expires_in"`
	Participants []JoinParticipant `json:"participants,omitempty"`
}

// MediaStatus reports whether the media plane is accepting sessions.
type MediaStatus struct {
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}
