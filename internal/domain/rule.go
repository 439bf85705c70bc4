package domain

import "time"

// FieldRule — правило доступа к полю объекта для субъекта.
// PrincipalID = "*" задаёт глобальное правило для всех субъектов.
// Поле без правила недоступно (Default Deny, Zero Trust).
type FieldRule struct {
	ID          string `json:"id"`
	PrincipalID string `json:"principal_id"` // "*" для всех
	Object      string `json:"object"`       // e.g. "Account"
	Field       string `json:"field"`        // e.g. "Industry"

	Readable  bool `json:"readable"`
	Creatable bool `json:"creatable"`
	Updatable bool `json:"updatable"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Allows проверяет правило против категории операции.
// Upsert требует одновременно права создания и изменения,
// потому что движок решает create-vs-update только в момент записи.
func (r *FieldRule) Allows(kind AccessKind) bool {
	if r == nil {
		return false
	}
	switch kind {
	case AccessReadable:
		return r.Readable
	case AccessCreatable:
		return r.Creatable
	case AccessUpdatable:
		return r.Updatable
	case AccessUpsertable:
		return r.Creatable && r.Updatable
	default:
		return false
	}
}
