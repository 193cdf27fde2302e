// Package routing resolves which audience a request belongs to from its Host
// header and path, gates admin paths on the session role, and rewrites tenant
// traffic onto the shared /s/<subdomain> route tree.
//
// A request moves through the package in one pass:
//
//	exempt prefix?        -> serve as requested
//	operator host         -> /admin gated on operator_admin, otherwise served as requested
//	www or unparsable     -> serve as requested
//	tenant subdomain      -> /admin gated on tenant_admin, then served at /s/<subdomain><path>
//
// The middleware decodes and cleans the path first (see CleanPath), and every
// step after it works on that cleaned path.
//
// Classification and gating are pure functions of (host, path, session); the
// only I/O is resolving the session, which callers supply through SessionSource.
package routing
