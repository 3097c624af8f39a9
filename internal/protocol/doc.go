// Package protocol owns the item payload carried inside masked inspect links.
//
// Ownership boundary:
// - wire primitives (wire/)
// - item/decoration field table and codec (this package)
// - marker + checksum framing and hex transport (frame/)
// - gateway session envelopes (session/)
package protocol
