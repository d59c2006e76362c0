// Package admin gates privileged routes behind an admin access hash.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"trialgate/pkg/platform/httputil"
	"trialgate/pkg/requestcontext"
)

const (
	// HeaderAccessHash is checked first.
	HeaderAccessHash = "X-Admin-Hash"
	// FieldAccessHash names both the JSON body field and the query parameter.
	FieldAccessHash = "accessHash"

	maxSniffBytes = 1 << 20
)

// Authorizer validates a presented access hash.
// Implementations return a domain error (unauthorized) for missing or unknown hashes,
// and an actor label for audit attribution on success.
type Authorizer interface {
	Authorize(ctx context.Context, hash string) (actor string, err error)
}

type contextKeyAdminActor struct{}

// Actor returns the admin actor recorded by RequireAccessHash, or "".
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyAdminActor{}).(string); ok {
		return v
	}
	return ""
}

// WithActor records an admin actor on ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, contextKeyAdminActor{}, actor)
}

// RequireAccessHash rejects requests that do not carry an active admin access hash.
// The hash is read from the X-Admin-Hash header, then the JSON body field
// accessHash, then the accessHash query parameter. The body is restored so the
// downstream handler can decode it again.
func RequireAccessHash(authz Authorizer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			hash := ExtractAccessHash(r)

			actor, err := authz.Authorize(ctx, hash)
			if err != nil {
				logger.WarnContext(ctx, "admin access denied",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"hash_present", hash != "",
				)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

// ExtractAccessHash applies the header, body, query precedence.
func ExtractAccessHash(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get(HeaderAccessHash)); h != "" {
		return h
	}
	if h := hashFromBody(r); h != "" {
		return h
	}
	return strings.TrimSpace(r.URL.Query().Get(FieldAccessHash))
}

func hashFromBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	body := r.Body
	raw, err := io.ReadAll(io.LimitReader(body, maxSniffBytes))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), body), body}
	if err != nil || len(raw) == 0 {
		return ""
	}

	var fields struct {
		AccessHash string `json:"accessHash"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	return strings.TrimSpace(fields.AccessHash)
}
