package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/smartbank-server/internal/model"
)

// ContextManager is a mock type for the ContextManager type
type ContextManager struct {
	mock.Mock
}

// SetSessionToContext provides a mock function with given fields: ctx, session
func (_m *ContextManager) SetSessionToContext(ctx context.Context, session model.Session) context.Context {
	ret := _m.Called(ctx, session)

	if rf, ok := ret.Get(0).(func(context.Context, model.Session) context.Context); ok {
		return rf(ctx, session)
	}
	if ret.Get(0) == nil {
		return nil
	}
	return ret.Get(0).(context.Context)
}

// GetSessionFromContext provides a mock function with given fields: ctx
func (_m *ContextManager) GetSessionFromContext(ctx context.Context) (model.Session, bool) {
	ret := _m.Called(ctx)

	if rf, ok := ret.Get(0).(func(context.Context) (model.Session, bool)); ok {
		return rf(ctx)
	}
	return ret.Get(0).(model.Session), ret.Bool(1)
}

// NewContextManager creates a new instance of ContextManager. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewContextManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *ContextManager {
	m := &ContextManager{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
