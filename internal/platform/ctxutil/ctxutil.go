package ctxutil

import "context"

type requestDataKey struct{}

// RequestData is attached by the auth middleware; the core trusts the
// user id it carries.
type RequestData struct {
	UserID    int64
	RequestID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// UserID returns the authenticated user id, or 0 when absent.
func UserID(ctx context.Context) int64 {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.UserID
	}
	return 0
}
