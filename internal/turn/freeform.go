// ABOUTME: FreeForm strategy: anyone may post at any time
// ABOUTME: Stateless; never assigns a holder, never emits notifications

package turn

import "github.com/azmaveth/jido-chat/internal/store"

// FreeForm allows every participant to post unconditionally.
type FreeForm struct{}

func (FreeForm) Kind() string { return KindFreeForm }

func (FreeForm) CanPost(*State, *store.Participant) bool { return true }

func (FreeForm) Advance(*State, *store.Participant) *Decision { return nil }

func (FreeForm) Expire(*State) *Decision { return nil }

func (FreeForm) RosterChanged(*State, []store.Participant, string) *Decision { return nil }

func (FreeForm) Resume(*State, []store.Participant) *Decision { return nil }
