// Package domain holds the pure rules of the reveal engine: connection
// lifecycle transitions, the reveal ladder, the consent handshake, one-time
// code handling and stage-gated field visibility.
//
// Nothing here performs I/O. The service layer loads records, asks this
// package what is allowed, and applies the answer through conditional writes.
package domain
