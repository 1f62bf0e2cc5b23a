package auth

import "context"

type principalKey struct{}

// WithPrincipal кладёт вызывающего в контекст запроса.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext возвращает вызывающего или nil для анонимного запроса.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
