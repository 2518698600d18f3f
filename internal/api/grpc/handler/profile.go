package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/smartbank-server/internal/api/grpc/rpc"
	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// ProfileService defines profile reads and updates.
type ProfileService interface {
	Profile(ctx context.Context, address model.Address) (model.UserProfile, error)
	UpdateProfile(ctx context.Context, session model.Session, update model.ProfileUpdate) (model.UserProfile, error)
	SetRole(ctx context.Context, caller model.Session, address model.Address, role model.Role) (model.UserProfile, error)
}

var _ rpc.ProfileServer = (*Profile)(nil)

// Profile handles the smartbank.Profile service.
type Profile struct {
	profileService ProfileService
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewProfile(profileService ProfileService, contextManager model.ContextManager, logger *logger.Logger) *Profile {
	return &Profile{
		profileService: profileService,
		contextManager: contextManager,
		logger:         logger,
	}
}

func (h *Profile) GetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	session, err := sessionFromContext(ctx, h.contextManager)
	if err != nil {
		return nil, err
	}
	address, err := addressOr(req, "address", session.Address)
	if err != nil {
		return nil, handleError(err)
	}

	p, err := h.profileService.Profile(ctx, address)
	if err != nil {
		return nil, handleError(err)
	}
	return newStruct(profileValue(p))
}

// UpdateProfile changes only the fields present in the request. Preferences
// are merged field by field with the stored ones.
func (h *Profile) UpdateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	session, err := sessionFromContext(ctx, h.contextManager)
	if err != nil {
		return nil, err
	}

	update := model.ProfileUpdate{
		Username: optionalString(req, "username"),
		Email:    optionalString(req, "email"),
	}

	if v, ok := field(req, "preferences"); ok {
		current, err := h.profileService.Profile(ctx, session.Address)
		if err != nil {
			return nil, handleError(err)
		}
		prefs := mergePreferences(current.Preferences, v.GetStructValue())
		update.Preferences = &prefs
	}

	p, err := h.profileService.UpdateProfile(ctx, session, update)
	if err != nil {
		h.logger.Info("Profile handler: update rejected",
			"address", session.Address,
			"error", err.Error())
		return nil, handleError(err)
	}
	return newStruct(profileValue(p))
}

func (h *Profile) SetRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	session, err := sessionFromContext(ctx, h.contextManager)
	if err != nil {
		return nil, err
	}
	address, err := requiredAddress(req, "address")
	if err != nil {
		return nil, handleError(err)
	}
	role, err := model.ParseRole(stringField(req, "role"))
	if err != nil {
		return nil, handleError(err)
	}

	p, err := h.profileService.SetRole(ctx, session, address, role)
	if err != nil {
		return nil, handleError(err)
	}
	return newStruct(profileValue(p))
}

func mergePreferences(p model.Preferences, s *structpb.Struct) model.Preferences {
	if s == nil {
		return p
	}
	if v, ok := field(s, "theme"); ok {
		p.Theme = v.GetStringValue()
	}
	if v, ok := field(s, "notifications"); ok {
		p.Notifications = v.GetBoolValue()
	}
	if v, ok := field(s, "language"); ok {
		p.Language = v.GetStringValue()
	}
	return p
}
