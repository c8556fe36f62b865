// Package proto defines the client protocol version and the features gated
// on it.
//
// Both peers announce the highest version they speak during the handshake
// and agree on the lower of the two. Components that change behavior with
// the protocol check the negotiated version through [Version.Supports]:
//
//	if cc.Version().Supports(proto.FeaturePartitionAwareness) {
//	    // route by partition
//	}
package proto
