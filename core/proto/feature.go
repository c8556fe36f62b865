package proto

// Feature is a protocol capability that is only available from a certain
// version on.
type Feature string

const (
	// FeatureHeartbeat enables client initiated heartbeats.
	FeatureHeartbeat Feature = "heartbeat"
	// FeaturePartitionAwareness lets the client route keys straight to the
	// node owning them.
	FeaturePartitionAwareness Feature = "partition_awareness"
	// FeatureNodeAffinityHeader makes the client tag requests with the node
	// it expects to serve them.
	FeatureNodeAffinityHeader Feature = "node_affinity_header"
)

var featureSince = map[Feature]Version{
	FeatureHeartbeat:          {Major: 3, Minor: 0},
	FeaturePartitionAwareness: {Major: 3, Minor: 0},
	FeatureNodeAffinityHeader: {Major: 3, Minor: 1},
}

// Since returns the first version supporting f. ok is false for unknown
// features.
func (f Feature) Since() (v Version, ok bool) {
	v, ok = featureSince[f]
	return
}

// Supports reports whether f is available when speaking v. Features are
// tied to the major version they were introduced in.
func (v Version) Supports(f Feature) bool {
	since, ok := featureSince[f]
	if !ok {
		return false
	}
	return v.Compatible(since) && !v.Less(since)
}

// Features lists the known features available at v.
func (v Version) Features() []Feature {
	out := make([]Feature, 0, len(featureSince))
	for _, f := range []Feature{FeatureHeartbeat, FeaturePartitionAwareness, FeatureNodeAffinityHeader} {
		if v.Supports(f) {
			out = append(out, f)
		}
	}
	return out
}
