// Package domain models hazard events and the geospatial primitives used
// to judge threat proximity.
//
// # Event lifecycle
//
// Events are created by ingestion with status NEW and transitioned exactly
// once by the processing pipeline to ASSESSED (risk assessment attached) or
// ERROR (failure summary attached). Both outcomes are terminal. The store's
// conditional update is the only authority for a state change: polling and
// push notifications are wake-ups, never carriers of truth, so duplicate or
// delayed triggers are harmless.
//
// # Coordinate conventions
//
// Upstream feeds disagree on pair ordering: GDACS-style feeds emit
// (lon, lat) while most others emit (lat, lon). [NormalizeCoordinatePair]
// resolves the ambiguity by range check at every ingress boundary and
// rejects pairs that are valid under neither ordering. Pairs valid under
// both orderings (both values within ±90) cannot be distinguished and are
// taken as (lat, lon); see the function docs for this limitation.
//
// # Distance and safety tiers
//
// Great-circle distances use the Haversine formula with a mean Earth
// radius of 6371 km. Distance to the nearest threat maps onto a four-tier
// safety scale:
//
//	> 50 km   safe
//	20–50 km  moderate
//	5–20 km   caution
//	< 5 km    danger
//
// Only ASSESSED events count as threats; events that could not be scored
// are excluded from every proximity and route computation.
package domain
