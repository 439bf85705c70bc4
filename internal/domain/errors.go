package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAccessDenied — отказ в object-level доступе. Его порождают только внешние
// движки (persistence/permission); шлюз не перехватывает и не транслирует его.
var ErrAccessDenied = errors.New("dmlguard: access denied")

// ConfigurationError — некорректные аргументы fluent-конфигурации.
// Возникает синхронно на этапе настройки, до выполнения любой операции.
type ConfigurationError struct {
	Op     string // Какой сеттер вызван
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("dmlguard: invalid configuration in %s: %s", e.Op, e.Reason)
}

// PolicyViolationError — единственная "своя" ошибка защитного слоя:
// permission engine удалил поле, объявленное критичным.
// Несёт полный набор нарушений "Object.Field" одним сообщением,
// а не падает на первом (порядок стабильный — отсортирован).
type PolicyViolationError struct {
	// Fields — fully-qualified имена вида "Account.Industry", sorted
	Fields []string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("dmlguard: removed fields violate policy: %s", strings.Join(e.Fields, ", "))
}

// IsPolicyViolation — хелпер для вызывающих, чтобы не тащить errors.As по коду
func IsPolicyViolation(err error) bool {
	var pv *PolicyViolationError
	return errors.As(err, &pv)
}
