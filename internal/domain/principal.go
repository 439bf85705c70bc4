package domain

import "context"

// Тип для ключа в контексте (избегаем коллизий)
type principalCtxKey struct{}

// AnonymousPrincipal используется, когда вызывающий не представился.
// Под Restricted trust для него сработает Default Deny в permission engine.
const AnonymousPrincipal = "anonymous"

// WithPrincipal кладет ID субъекта в контекст запроса.
// Это идентификация, не аутентификация: проверка подлинности — не наша забота.
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, principalID)
}

// PrincipalFromContext помогает безопасно достать субъекта в любом месте кода
func PrincipalFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(principalCtxKey{}).(string); ok && id != "" {
		return id
	}
	return AnonymousPrincipal
}
