package models

import "github.com/google/uuid"

// assignID gives rows an application-side UUID so inserts do not depend on
// gen_random_uuid() being available (sqlite in tests).
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
