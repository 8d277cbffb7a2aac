package models

// Address identifies an account interacting with the league. Contracts are
// addressed the same way as user accounts.
type Address string

// ZeroAddress is the null account.
const ZeroAddress Address = ""

// PlayerToken is a footballer NFT. A token record exists from the moment the
// mint is requested; the owner is assigned and the random seed fixed when the
// randomness request backing the mint is fulfilled. Tokens are never
// destroyed.
type PlayerToken struct {
	ID                  uint64  `json:"id"`
	Owner               Address `json:"owner"`
	RandomSeed          uint64  `json:"random_seed"`
	SeedFulfilled       bool    `json:"seed_fulfilled"`
	AttributesGenerated bool    `json:"attributes_generated"`
	AttributesHash      uint64  `json:"attributes_hash,omitempty"`
}

// LoanListing is an offer to loan a player out for a block duration at a
// fixed price. A zero-valued listing means the player is not listed.
type LoanListing struct {
	Duration uint64 `json:"duration"`
	Price    uint64 `json:"price"`
}

// Loan is an active loan of a player token. The borrower is the effective
// owner of the token until the term block is reached.
type Loan struct {
	Borrower Address `json:"borrower"`
	Term     uint64  `json:"term"`
}
