package sor

import "deltastore/pkg/cluster"

// KeyScanner enumerates every distinct row key present in a placement's
// delta-blocks family. It is an externally supplied capability: the
// purge path depends only on this interface.
type KeyScanner interface {
	ScanRowKeys(p *cluster.Placement, level cluster.ConsistencyLevel, fn func(rowKey string) error) error
}

// ClusterKeyScanner scans row keys directly from the placement's
// keyspace. Reads are always against the current state of the local
// store, which satisfies the strong-consistency requirement of purge.
type ClusterKeyScanner struct{}

func (ClusterKeyScanner) ScanRowKeys(p *cluster.Placement, _ cluster.ConsistencyLevel, fn func(rowKey string) error) error {
	return p.Keyspace().ScanRowKeys(p.DeltaColumnFamily(), fn)
}
