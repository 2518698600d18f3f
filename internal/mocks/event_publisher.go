package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/smartbank-server/internal/model"
)

// EventPublisher is a mock type for the EventPublisher type
type EventPublisher struct {
	mock.Mock
}

// Publish provides a mock function with given fields: ctx, events
func (_m *EventPublisher) Publish(ctx context.Context, events []model.Event) error {
	ret := _m.Called(ctx, events)

	if rf, ok := ret.Get(0).(func(context.Context, []model.Event) error); ok {
		return rf(ctx, events)
	}
	return ret.Error(0)
}

// NewEventPublisher creates a new instance of EventPublisher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewEventPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *EventPublisher {
	m := &EventPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
