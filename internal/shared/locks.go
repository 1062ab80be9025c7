package shared

import "fmt"

// EntityLockKey builds the redis key serialising ledger writers of one entity.
func EntityLockKey(entityID int64) string {
	return fmt.Sprintf("ledger:entity:%d:lock", entityID)
}

// PeriodLockKey builds the redis key guarding a period close or translation run.
func PeriodLockKey(entityID, periodID int64) string {
	return fmt.Sprintf("ledger:entity:%d:period:%d:lock", entityID, periodID)
}
