// Package cache implements the module cache on top of a kv.Backend.
//
// ModuleStore maps identity keys ("{name}@{revision}/{organization}") to the raw
// JSON of each module record and offers single-key and bulk writes. VendorIndex
// accumulates vendor/platform implementations in memory and publishes them as a
// full replacement of the previous index, so associations that disappeared from
// the latest snapshot never survive a reload.
//
// Both components receive their backend handle explicitly; nothing here keeps
// a package-level client.
package cache
