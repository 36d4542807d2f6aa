package httpapi

import "context"

// Credentials are the HTTP Basic credentials presented with a request.
// They are verified by the application services, not by the transport.
type Credentials struct {
	Email    string
	Password string
}

type credentialsKey struct{}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	v, ok := ctx.Value(credentialsKey{}).(Credentials)
	return v, ok && v.Email != ""
}
