package middleware

import (
	"net/http"
	"strings"

	"github.com/vendaflow/lead-api/internal/actor"
)

// Identity headers forwarded by the gateway. Authentication happens
// upstream; this API records who acted, it does not authenticate.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderChannel   = "X-Channel"
)

// utmParams are the query parameters recorded as lead provenance.
var utmParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

// ActorContext resolves the request actor from the identity headers and
// attaches it to the context. Requests without identity headers run as
// the anonymous actor; provenance (channel, request ID, UTM parameters)
// is still captured for them.
func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := &actor.Actor{
			ID:        strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Name:      strings.TrimSpace(r.Header.Get(HeaderActorName)),
			Channel:   strings.TrimSpace(r.Header.Get(HeaderChannel)),
			RequestID: r.Header.Get("X-Request-ID"),
		}
		if a.ID == "" {
			a.ID = "anonymous"
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		if a.Channel == "" {
			a.Channel = "api"
		}

		query := r.URL.Query()
		for _, param := range utmParams {
			if v := query.Get(param); v != "" {
				if a.UTM == nil {
					a.UTM = make(map[string]string, len(utmParams))
				}
				a.UTM[param] = v
			}
		}

		next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
	})
}
