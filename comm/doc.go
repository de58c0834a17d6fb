// Package comm implements the inter-agent messaging bus: a collection of
// named channels, each governed by a coordination mode (broadcast, p2p,
// round-robin, debate) that controls who may send at what point, message
// formatting and turn-taking state.
//
// Send rejections are returned as result strings rather than errors so the
// calling agent can observe the rejection and adapt its next action.
package comm
