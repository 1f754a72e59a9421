package backend

import (
	"context"

	"codeberg.org/mutker/fleetinv/internal/inventory"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

// ProbeTrial records one flavor trial and its outcome.
type ProbeTrial struct {
	Kind Kind
	Err  error
}

// ProbeResult classifies a target. When Kind is not KindUnknown, Session is
// the live session issued by the successful trial, ready for reuse. Trials
// carries the evidence of every failed attempt.
type ProbeResult struct {
	Kind    Kind
	Session *Session
	Trials  []ProbeTrial
}

// Probe determines a target's console flavor by attempting the registered
// dialect handshakes in registration order. The first handshake to succeed
// classifies the target and its session is kept. A failed trial is evidence,
// not an error: when every trial fails the result kind is KindUnknown and
// the caller decides how to report it.
func (r *Registry) Probe(ctx context.Context, target inventory.Target, creds CredentialSource) ProbeResult {
	result := ProbeResult{Kind: KindUnknown}

	for _, s := range r.strategies {
		if ctx.Err() != nil {
			result.Trials = append(result.Trials, ProbeTrial{Kind: s.Kind(), Err: ctx.Err()})

			continue
		}

		cred, err := creds.Lookup(s.Kind())
		if err != nil {
			result.Trials = append(result.Trials, ProbeTrial{Kind: s.Kind(), Err: err})

			continue
		}

		sess, err := s.Authenticate(ctx, target, cred)
		if err != nil {
			logger.Debug().
				Str("target", target.Address).
				Str("kind", s.Kind().String()).
				Err(err).
				Msg("probe trial failed")

			result.Trials = append(result.Trials, ProbeTrial{Kind: s.Kind(), Err: err})

			continue
		}

		result.Kind = s.Kind()
		result.Session = sess

		return result
	}

	return result
}
