package audit

import "time"

// Статусы решения защитного слоя
const (
	StatusPassed    = "PASSED"    // Записи прошли без изменений
	StatusStripped  = "STRIPPED"  // Часть полей вырезана, но политика не нарушена
	StatusViolation = "VIOLATION" // Критичное поле удалено — операция отклонена
	StatusFailed    = "FAILED"    // Внешний движок вернул ошибку
)

// GuardEvent — одна запись audit trail: что решил защитный слой и почему
type GuardEvent struct {
	ID        string `json:"id"`       // UUID события
	TraceID   string `json:"trace_id"` // Сквозной ID запроса
	Principal string `json:"principal"`
	Operation string `json:"operation"` // query / insert / update / upsert / delete

	Objects        []string `json:"objects"`         // Какие типы объектов затронуты
	StrippedFields []string `json:"stripped_fields"` // Вырезанные "Object.Field"
	TrustLevel     string   `json:"trust_level"`

	// Результат
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}
