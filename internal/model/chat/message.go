package chat

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one caller-supplied history entry. The gateway never stores it.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
