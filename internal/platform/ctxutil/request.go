package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData carries the authenticated caller for the lifetime of a request.
type RequestData struct {
	TokenString string
	UserID      uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// CurrentUserID reports the authenticated caller, if any.
func CurrentUserID(ctx context.Context) (uuid.UUID, bool) {
	rd := GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return rd.UserID, true
}

// WithUserID is a shorthand used by workers and tests acting on behalf of an owner.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return WithRequestData(ctx, &RequestData{UserID: userID})
}
