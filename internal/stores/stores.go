// Package stores implements the host's storage contracts on top of the
// document store. Every call opens its own session and closes it on every
// exit path.
package stores

import (
	"time"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/metrics"
)

// Store label values for metrics.
const (
	storeClient         = "client"
	storeResource       = "resource"
	storePersistedGrant = "persisted_grant"
	storeDeviceFlow     = "device_flow"
	storeCors           = "cors_policy"
)

// indexQuery starts a query on indexName that waits for non-stale results
// when timeout is positive.
func indexQuery[T any, PT interface {
	*T
	docdb.Document
}](sess *docdb.Session, indexName string, timeout time.Duration) *docdb.Query[T, PT] {
	q := docdb.QueryIndex[T, PT](sess, indexName)
	if timeout > 0 {
		q.WaitForNonStaleResults(timeout)
	}

	return q
}

// observe starts timing an operation. The returned func records it with
// the error *err holds at that point:
//
//	defer observe(m, storeClient, "find_client_by_id", &err)()
func observe(m *metrics.Metrics, store, operation string, err *error) func() {
	start := time.Now()

	return func() {
		m.Observe(store, operation, start, *err)
	}
}
