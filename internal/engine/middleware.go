package engine

import (
	"context"
	"net/http"

	"github.com/xela07ax/dmlguard/internal/domain"

	"github.com/google/uuid"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const traceIDKey ctxKey = "trace_id"

// TracingMiddleware инициализирует Trace-ID для каждого запроса
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Пытаемся достать ID из заголовка (если пришел от клиента/прокси)
		traceID := r.Header.Get("X-Trace-ID")

		// 2. Если его нет — генерируем новый
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)

		// Добавляем в ответ, чтобы клиент тоже знал ID своего запроса
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TraceIDFromContext помогает безопасно достать ID в любом месте кода
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return "00000000-0000-0000-0000-000000000000" // Fallback
}

// PrincipalMiddleware кладет субъекта из заголовка в контекст запроса.
// Это идентификация для permission engine, а не аутентификация:
// проверка подлинности токенов — вне зоны ответственности шлюза.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principalID := r.Header.Get("X-Principal-ID")
		if principalID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "missing_principal", "message": "X-Principal-ID header is required"}`))
			return
		}

		ctx := domain.WithPrincipal(r.Context(), principalID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Middleware интегрирует проверку блокировки субъекта в HTTP-пайплайн шлюза
func (m *BlocklistManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principalID := r.Header.Get("X-Principal-ID")
		if principalID == "" {
			next.ServeHTTP(w, r)
			return
		}

		if m.IsBlocked(principalID) {
			// Важно: фиксируем попытку доступа заблокированного субъекта
			m.logger.Warn("intercepted blocked principal request")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "principal_blocked", "reason": "security_kill_switch"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
