package model

import "context"

type ContextManager interface {
	SetSessionToContext(ctx context.Context, session Session) context.Context
	GetSessionFromContext(ctx context.Context) (Session, bool)
}
