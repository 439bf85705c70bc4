package domain

import "fmt"

// TrustLevel определяет, с какими привилегиями операция уходит во внешний движок
type TrustLevel string

const (
	// TrustRestricted — операция подчиняется правам субъекта (object/field permissions)
	TrustRestricted TrustLevel = "RESTRICTED"
	// TrustElevated — полный обход проверки прав (для доверенных внутренних путей)
	TrustElevated TrustLevel = "ELEVATED"
)

// ParseTrustLevel разбирает значение из конфига/запроса
func ParseTrustLevel(s string) (TrustLevel, error) {
	switch TrustLevel(s) {
	case TrustRestricted, TrustElevated:
		return TrustLevel(s), nil
	default:
		return "", fmt.Errorf("unknown trust level %q", s)
	}
}

// AccessKind — категория операции. Guard не интерпретирует её сам,
// а только пробрасывает в permission engine для выбора набора правил.
type AccessKind string

const (
	AccessReadable   AccessKind = "READABLE"
	AccessCreatable  AccessKind = "CREATABLE"
	AccessUpdatable  AccessKind = "UPDATABLE"
	AccessUpsertable AccessKind = "UPSERTABLE"
)

// Record — единица данных, проходящая через шлюз.
// Record всегда принадлежит вызывающему: шлюз не удерживает ссылки между вызовами.
type Record struct {
	ID     string         `json:"id,omitempty"`
	Object string         `json:"object"` // Тип объекта, e.g. "Account"
	Fields map[string]any `json:"fields"`
}

// Clone возвращает копию записи с независимой мапой полей.
// Нужен permission engine'у для field stripping без порчи оригинала.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Object: r.Object, Fields: fields}
}

// BulkOptions — семантика пакетных операций записи
type BulkOptions struct {
	// AllowFieldTruncation разрешает движку обрезать слишком длинные значения
	AllowFieldTruncation bool `json:"allow_field_truncation"`
	// AllOrNone: true — батч падает целиком, false — частичный успех per-record
	AllOrNone bool `json:"all_or_none"`
}

// DefaultBulkOptions — дефолты свежесозданной конфигурации: truncation on, all-or-nothing on
func DefaultBulkOptions() BulkOptions {
	return BulkOptions{AllowFieldTruncation: true, AllOrNone: true}
}

// EngineError — ошибка уровня отдельной записи, которую вернул движок хранения
type EngineError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// SaveOutcome — нативный результат insert/update для одной записи.
// Возвращается вызывающему как есть, шлюз его не трогает.
type SaveOutcome struct {
	Success bool          `json:"success"`
	ID      string        `json:"id,omitempty"`
	Errors  []EngineError `json:"errors,omitempty"`
}

// UpsertOutcome дополнительно сообщает, была ли запись создана или обновлена
type UpsertOutcome struct {
	Success bool          `json:"success"`
	ID      string        `json:"id,omitempty"`
	Created bool          `json:"created"`
	Errors  []EngineError `json:"errors,omitempty"`
}

// DeleteOutcome — результат удаления одной записи
type DeleteOutcome struct {
	Success bool          `json:"success"`
	ID      string        `json:"id,omitempty"`
	Errors  []EngineError `json:"errors,omitempty"`
}
