package models

import "github.com/google/uuid"

// RandomnessPurpose tags a pending randomness request with the consumer that
// must receive its fulfillment.
type RandomnessPurpose string

const (
	PurposeMint          RandomnessPurpose = "MINT"
	PurposeScheduleMatch RandomnessPurpose = "SCHEDULE_MATCH"
)

// RandomnessRequest correlates an issued oracle request to the entity waiting
// on it. The record is deleted on fulfillment, which is what makes a second
// fulfillment for the same id unresolvable.
type RandomnessRequest struct {
	ID       uuid.UUID         `json:"id"`
	Purpose  RandomnessPurpose `json:"purpose"`
	EntityID uint64            `json:"entity_id"`
}
