package output

import (
	"scout-agent/internal/application/port/input"
	"scout-agent/internal/domain/entity"
)

type DelegateRegistry interface {
	Register(delegate input.Delegate)
	Get(kind entity.AgentKind) (input.Delegate, bool)
	List() []entity.AgentKind
}
