/*
Package resilience cuts off resource origins that keep failing.

The fetch client holds one Breaker per origin in an Origins set. A closed
circuit passes requests through and counts failures. Once Threshold
failures arrive in a row the circuit opens and every load from that origin
fails with ErrCircuitOpen until Cooldown elapses. The circuit then admits
Probes trial requests; enough successes close it and any failure opens it
again.

	closed --Threshold failures--> open --Cooldown--> half-open --Probes ok--> closed
	                                 ^                     |
	                                 +------- failure -----+

Outcomes are tagged with the circuit epoch they started in, so a slow
request that finishes after a transition does not affect the new state.

	origins := resilience.NewOrigins(resilience.DefaultPolicy())
	body, err := resilience.Do(origins.For(u.Host), func() ([]byte, error) {
		return get(ctx, u)
	})
*/
package resilience
