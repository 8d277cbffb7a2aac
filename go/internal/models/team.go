package models

// RosterSize is the fixed number of roster slots per team, captain included.
const RosterSize = 23

// Team is a league team. Slot 0 of Members always holds the captain; other
// slots hold rostered players or zero when vacant. Slots are vacated in
// place, they are not compacted, so a player keeps its slot index for as long
// as it stays on the roster.
type Team struct {
	ID      uint64             `json:"id"`
	Members [RosterSize]uint64 `json:"members"`
	// Applications is the pending queue in arrival order.
	Applications []uint64 `json:"applications"`
	// CreationStakePaid records the stake escrowed at creation, refunded on
	// removal.
	CreationStakePaid uint64 `json:"creation_stake_paid"`
	// Treasury is the team's withdrawable balance, fed by release clauses.
	Treasury uint64 `json:"treasury"`
}

// Captain returns the player token occupying slot 0.
func (t *Team) Captain() uint64 {
	return t.Members[0]
}

// MemberCount counts occupied roster slots.
func (t *Team) MemberCount() int {
	n := 0
	for _, id := range t.Members {
		if id != 0 {
			n++
		}
	}
	return n
}

// SlotOf returns the roster slot holding playerID, or -1.
func (t *Team) SlotOf(playerID uint64) int {
	for i, id := range t.Members {
		if id == playerID {
			return i
		}
	}
	return -1
}

// FirstOpenSlot returns the first vacant non-captain slot, or -1 when full.
func (t *Team) FirstOpenSlot() int {
	for i := 1; i < RosterSize; i++ {
		if t.Members[i] == 0 {
			return i
		}
	}
	return -1
}
