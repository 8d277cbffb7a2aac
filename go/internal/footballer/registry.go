package footballer

import (
	"fmt"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

// OwnerOf returns the raw registry owner of a token. Loans never show up
// here; callers that must honor loans go through an ownership resolver.
func (a *App) OwnerOf(tokenID uint64) (models.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, ok := a.tokens[tokenID]
	if !ok {
		return models.ZeroAddress, fmt.Errorf("token %d: %w", tokenID, models.ErrNotFound)
	}
	return tok.Owner, nil
}

// Exists reports whether the token was ever minted.
func (a *App) Exists(tokenID uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.tokens[tokenID]
	return ok
}

// TotalMinted returns how many tokens have been requested so far.
func (a *App) TotalMinted() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextID - 1
}

// Approve lets spender move the token once. Only the raw owner may grant it;
// approving the zero address revokes.
func (a *App) Approve(caller, spender models.Address, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, ok := a.tokens[tokenID]
	if !ok {
		return fmt.Errorf("token %d: %w", tokenID, models.ErrNotFound)
	}
	if caller != tok.Owner {
		return fmt.Errorf("caller %s does not own token %d: %w", caller, tokenID, models.ErrNotAuthorized)
	}
	if spender == models.ZeroAddress {
		delete(a.approvals, tokenID)
		return nil
	}
	a.approvals[tokenID] = spender
	return nil
}

// Approved returns who may currently move the token besides its owner.
func (a *App) Approved(tokenID uint64) models.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.approvals[tokenID]
}

// TransferOwnership moves the token to a new owner. The spender must be the
// owner or the approved address; any approval is consumed by the move.
func (a *App) TransferOwnership(spender models.Address, tokenID uint64, to models.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, ok := a.tokens[tokenID]
	if !ok {
		return fmt.Errorf("token %d: %w", tokenID, models.ErrNotFound)
	}
	if spender != tok.Owner && spender != a.approvals[tokenID] {
		return fmt.Errorf("spender %s may not move token %d: %w", spender, tokenID, models.ErrNotAuthorized)
	}
	tok.Owner = to
	delete(a.approvals, tokenID)
	return nil
}
