package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/smartbank-server/internal/model"
)

// Authenticator is a mock type for the Authenticator type
type Authenticator struct {
	mock.Mock
}

// Authenticate provides a mock function with given fields: ctx, token
func (_m *Authenticator) Authenticate(ctx context.Context, token string) (model.Session, error) {
	ret := _m.Called(ctx, token)

	if rf, ok := ret.Get(0).(func(context.Context, string) (model.Session, error)); ok {
		return rf(ctx, token)
	}
	return ret.Get(0).(model.Session), ret.Error(1)
}

// NewAuthenticator creates a new instance of Authenticator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewAuthenticator(t interface {
	mock.TestingT
	Cleanup(func())
}) *Authenticator {
	m := &Authenticator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
