package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the primary key is still zero. Used from
// BeforeCreate hooks so inserts work on engines without gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
