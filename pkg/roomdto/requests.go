package roomdto

import (
	"encoding/json"
	"strings"
)

type JoinRoom struct {
	RoomID      string `json:"roomId" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"max=64"`
	AvatarGlyph string `json:"avatarGlyph" validate:"max=16"`
}

type SubmitMove struct {
	RoomID    string `json:"roomId" validate:"required,max=64"`
	From      string `json:"from" validate:"required,len=2"`
	To        string `json:"to" validate:"required,len=2"`
	Promotion string `json:"promotion,omitempty" validate:"omitempty,oneof=q r b n"`
}

// RoomRef is the startClock/endTurn payload. Clients send either a bare
// room id string or {"roomId": "..."}.
type RoomRef struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

func (r *RoomRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.RoomID = strings.TrimSpace(s)
		return nil
	}
	type plain RoomRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	r.RoomID = strings.TrimSpace(p.RoomID)
	return nil
}
