package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// Storage is a mock type for the Storage type
type Storage struct {
	mock.Mock
}

// Upload provides a mock function with given fields: ctx, key, reader
func (_m *Storage) Upload(ctx context.Context, key string, reader io.Reader) error {
	ret := _m.Called(ctx, key, reader)

	if rf, ok := ret.Get(0).(func(context.Context, string, io.Reader) error); ok {
		return rf(ctx, key, reader)
	}
	return ret.Error(0)
}

// Exists provides a mock function with given fields: ctx, key
func (_m *Storage) Exists(ctx context.Context, key string) (bool, error) {
	ret := _m.Called(ctx, key)

	if rf, ok := ret.Get(0).(func(context.Context, string) (bool, error)); ok {
		return rf(ctx, key)
	}
	return ret.Bool(0), ret.Error(1)
}

// NewStorage creates a new instance of Storage. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewStorage(t interface {
	mock.TestingT
	Cleanup(func())
}) *Storage {
	m := &Storage{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
