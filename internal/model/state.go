package model

// NodeState : состояние узла: активен или в корзине. Удалённый навсегда узел строки не имеет
type NodeState int

const (
	StateActive NodeState = iota
	StateTrashed
)

func (s NodeState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTrashed:
		return "trashed"
	default:
		return "unknown"
	}
}

// DeleteAction : что делает операция удаления в текущем состоянии
type DeleteAction int

const (
	ActionTrash DeleteAction = iota
	ActionPurge
)

// OnDelete : Active -> Trashed, Trashed -> удаление навсегда
func (s NodeState) OnDelete() DeleteAction {
	if s == StateTrashed {
		return ActionPurge
	}
	return ActionTrash
}

// Status : значение поля status в ответе API
func (a DeleteAction) Status() string {
	if a == ActionPurge {
		return "deleted_forever"
	}
	return "trashed"
}
