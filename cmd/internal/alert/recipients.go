package alert

import (
	"context"
	"strings"

	"rpms/cmd/internal/errs"
)

// RecipientSet is an ordered, non-empty list of delivery addresses built per alert call.
type RecipientSet struct {
	addrs []string
}

// NewRecipientSet trims each address; the list and every entry must be non-empty.
func NewRecipientSet(addrs []string) (RecipientSet, error) {
	const op = "alert.NewRecipientSet"

	if len(addrs) == 0 {
		return RecipientSet{}, errs.InvalidInput(op, "no recipients")
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			return RecipientSet{}, errs.InvalidInput(op, "empty recipient address")
		}
		out = append(out, a)
	}
	return RecipientSet{addrs: out}, nil
}

// Roster supplies the current contact addresses of everyone who should receive alerts.
type Roster interface {
	Contacts(ctx context.Context) ([]string, error)
}

// FromRoster reads the roster now; the result is not cached across alerts.
func FromRoster(ctx context.Context, r Roster) (RecipientSet, error) {
	if r == nil {
		return RecipientSet{}, errs.InvalidState("alert.FromRoster", "no roster configured")
	}
	addrs, err := r.Contacts(ctx)
	if err != nil {
		return RecipientSet{}, err
	}
	return NewRecipientSet(addrs)
}

// Addresses returns a copy of the addresses in order.
func (s RecipientSet) Addresses() []string {
	return append([]string(nil), s.addrs...)
}

// Len returns the number of recipients.
func (s RecipientSet) Len() int { return len(s.addrs) }
