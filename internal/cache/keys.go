package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const prefix = "cache"

// Key builds a namespaced cache key:
//
//	cache:{tenant:<uuid>|global}:{domain}:{operation}:{md5(filtersJSON)}
//
// A nil tenant yields the global scope. Filters are hashed so arbitrary
// filter structs produce bounded-length keys; identical filters always hash
// to the same key.
func Key(tenantID *uuid.UUID, domain, operation string, filters any) string {
	scope := "global"
	if tenantID != nil && *tenantID != uuid.Nil {
		scope = "tenant:" + tenantID.String()
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", prefix, scope, domain, operation, hashFilters(filters))
}

// ScopePattern matches every key for a domain within one scope, for
// invalidation.
func ScopePattern(tenantID *uuid.UUID, domain string) string {
	scope := "global"
	if tenantID != nil && *tenantID != uuid.Nil {
		scope = "tenant:" + tenantID.String()
	}
	return fmt.Sprintf("%s:%s:%s:*", prefix, scope, domain)
}

// DomainPattern matches the domain's keys in every scope, tenant and global
// alike.
func DomainPattern(domain string) string {
	return fmt.Sprintf("%s:*:%s:*", prefix, domain)
}

func hashFilters(filters any) string {
	if filters == nil {
		return "none"
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return "none"
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
