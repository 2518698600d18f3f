package handler

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/smartbank-server/internal/model"
)

func field(req *structpb.Struct, name string) (*structpb.Value, bool) {
	if req == nil {
		return nil, false
	}
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

func stringField(req *structpb.Struct, name string) string {
	v, ok := field(req, name)
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func requiredString(req *structpb.Struct, name string) (string, error) {
	s := stringField(req, name)
	if s == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return s, nil
}

// optionalString distinguishes an absent field from an empty one.
func optionalString(req *structpb.Struct, name string) *string {
	v, ok := field(req, name)
	if !ok {
		return nil
	}
	s := v.GetStringValue()
	return &s
}

func requiredAddress(req *structpb.Struct, name string) (model.Address, error) {
	raw, err := requiredString(req, name)
	if err != nil {
		return "", err
	}
	return model.ParseAddress(raw)
}

// addressOr parses name when present and falls back to def otherwise.
func addressOr(req *structpb.Struct, name string, def model.Address) (model.Address, error) {
	raw := stringField(req, name)
	if raw == "" {
		return def, nil
	}
	return model.ParseAddress(raw)
}

// amountField reads "amount_wei" (integer wei) or "amount" (decimal ether units).
func amountField(req *structpb.Struct) (uint256.Int, error) {
	if wei := stringField(req, "amount_wei"); wei != "" {
		return model.ParseAmount(wei)
	}
	if units := stringField(req, "amount"); units != "" {
		return model.ParseUnits(units)
	}
	return uint256.Int{}, status.Error(codes.InvalidArgument, "amount_wei or amount is required")
}

// putAmount stores a both as wei and as formatted units under key.
func putAmount(m map[string]any, key string, a uint256.Int) {
	m[key+"_wei"] = a.Dec()
	m[key] = model.FormatUnits(a)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func profileValue(p model.UserProfile) map[string]any {
	return map[string]any{
		"address":  p.Address.String(),
		"username": p.Username,
		"email":    p.Email,
		"role":     string(p.Role),
		"preferences": map[string]any{
			"theme":         p.Preferences.Theme,
			"notifications": p.Preferences.Notifications,
			"language":      p.Preferences.Language,
		},
		"created_at":    formatTime(p.CreatedAt),
		"last_login_at": formatTime(p.LastLoginAt),
		"updated_at":    formatTime(p.UpdatedAt),
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return s, nil
}

func sessionFromContext(ctx context.Context, cm model.ContextManager) (model.Session, error) {
	session, ok := cm.GetSessionFromContext(ctx)
	if !ok {
		return model.Session{}, status.Error(codes.Unauthenticated, "no session in context")
	}
	return session, nil
}
