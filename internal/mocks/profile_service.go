package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/smartbank-server/internal/model"
)

// ProfileService is a mock type for the ProfileService type
type ProfileService struct {
	mock.Mock
}

// Profile provides a mock function with given fields: ctx, address
func (_m *ProfileService) Profile(ctx context.Context, address model.Address) (model.UserProfile, error) {
	ret := _m.Called(ctx, address)
	return ret.Get(0).(model.UserProfile), ret.Error(1)
}

// UpdateProfile provides a mock function with given fields: ctx, session, update
func (_m *ProfileService) UpdateProfile(ctx context.Context, session model.Session, update model.ProfileUpdate) (model.UserProfile, error) {
	ret := _m.Called(ctx, session, update)
	return ret.Get(0).(model.UserProfile), ret.Error(1)
}

// SetRole provides a mock function with given fields: ctx, caller, address, role
func (_m *ProfileService) SetRole(ctx context.Context, caller model.Session, address model.Address, role model.Role) (model.UserProfile, error) {
	ret := _m.Called(ctx, caller, address, role)
	return ret.Get(0).(model.UserProfile), ret.Error(1)
}

// NewProfileService creates a new instance of ProfileService. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewProfileService(t interface {
	mock.TestingT
	Cleanup(func())
}) *ProfileService {
	m := &ProfileService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
