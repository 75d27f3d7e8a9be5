package sdk

import "context"

// Authorization is one signature attached to an invocation. Nonce 0 skips replay tracking,
// which is what in-process callers use.
type Authorization struct {
	Signer Address
	Nonce  uint64
}

type authKey struct{}

// WithAuth attaches signer authorizations to ctx. Calling it again appends.
// Example payload: sdk.WithAuth(ctx, sdk.Authorization{Signer: "hive:alice"})
func WithAuth(ctx context.Context, auths ...Authorization) context.Context {
	prev := AuthFromContext(ctx)
	all := make([]Authorization, 0, len(prev)+len(auths))
	all = append(all, prev...)
	for _, a := range auths {
		a.Signer = a.Signer.Normalize()
		all = append(all, a)
	}
	return context.WithValue(ctx, authKey{}, all)
}

// AuthFromContext returns the attached authorizations, nil if there are none.
func AuthFromContext(ctx context.Context) []Authorization {
	auths, _ := ctx.Value(authKey{}).([]Authorization)
	return auths
}

// SignedBy is a shortcut for callers that only need one signer without a nonce.
func SignedBy(ctx context.Context, signers ...Address) context.Context {
	auths := make([]Authorization, len(signers))
	for i, s := range signers {
		auths[i] = Authorization{Signer: s}
	}
	return WithAuth(ctx, auths...)
}
