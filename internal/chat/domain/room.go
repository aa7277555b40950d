package domain

import "realtime_chat_service/pkg"

// MemberRole 群組成員角色
type MemberRole string

const (
	// RoleAdmin group admin
	RoleAdmin MemberRole = "admin"
	// RoleMember normal member
	RoleMember MemberRole = "member"
)

// ChatRoom 表示一個聊天室 (1對1 或群組)
type ChatRoom struct {
	ID        string   `bson:"_id" json:"id"`
	Name      string   `bson:"name,omitempty" json:"name,omitempty"`
	IsGroup   bool     `bson:"is_group" json:"is_group"`
	Members   []string `bson:"members" json:"members"`
	Admins    []string `bson:"admins,omitempty" json:"admins,omitempty"`
	CreatedAt int64    `bson:"created_at" json:"created_at"`
}

// HasMember check userID in room
func (r *ChatRoom) HasMember(userID string) bool {
	return pkg.Contains(r.Members, userID)
}

// RoleOf 查詢成員角色；非群組聊天一律 member
func (r *ChatRoom) RoleOf(userID string) MemberRole {
	if !r.IsGroup {
		return RoleMember
	}
	if pkg.Contains(r.Admins, userID) {
		return RoleAdmin
	}
	return RoleMember
}

// Recipients 除了 sender 以外的所有成員
func (r *ChatRoom) Recipients(senderID string) []string {
	out := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		if m != senderID {
			out = append(out, m)
		}
	}
	return out
}
