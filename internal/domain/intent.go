package domain

// OperationSpec describes one catalog operation to the intent resolver.
// Parameters is a JSON-schema object.
type OperationSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message of a multi-turn session.
type Turn struct {
	Role    Role
	Content string
}

type ResolveRequest struct {
	Instructions string
	Catalog      []OperationSpec
	Text         string
	History      []Turn
}

// Resolution is the resolver's decision for a single piece of user text.
type Resolution struct {
	Actions []ActionRequest
	Reply   string
}
