package config

import (
	_ "github.com/yang-catalog/catalog-cache/internal/kv/filekv"
	_ "github.com/yang-catalog/catalog-cache/internal/kv/memcachedkv"
	_ "github.com/yang-catalog/catalog-cache/internal/kv/rediskv"
	_ "github.com/yang-catalog/catalog-cache/internal/kv/sqlitekv"
)
