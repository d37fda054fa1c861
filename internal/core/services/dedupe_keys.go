package services

import "fmt"

// DedupeKey namespaces a raw key as <service>:<environment>:<tenant-or-
// phone>:dedupe:<key>, preventing cross-environment collisions when
// substrates are shared. Grounded on the teacher's buildDedupKey helper
// in repository/redis_repo.go, generalized with service/environment/
// tenant segments per spec.md §4.2.
func DedupeKey(service, environment, tenantOrPhone, key string) string {
	return fmt.Sprintf("%s:%s:%s:dedupe:%s", service, environment, tenantOrPhone, key)
}
