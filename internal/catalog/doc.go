// Package catalog models the YANG catalog records that feed the module cache.
// It owns the identity-key convention ("{name}@{revision}/{organization}"),
// decodes catalog snapshots without disturbing the original field order of each
// record, and flattens the nested vendor tree into module implementations.
// Nothing in this package talks to a backend; cache and loader build on it.
package catalog
