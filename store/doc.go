// Package store defines the typed records and storage contracts used by
// forgeauth.
//
// Implementations live in sub-packages: [github.com/MrEthical07/forgeauth/store/postgres]
// for production and [github.com/MrEthical07/forgeauth/store/memory] for tests
// and single-process deployments.
//
// Every mutation that decides a race (refresh-token consumption, reset-token
// consumption, reset-token replacement) is a single conditional write. Callers
// never read-then-write.
package store
