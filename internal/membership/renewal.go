package membership

import (
	"fmt"
	"strings"
	"time"

	"github.com/BatmanBruc/inkpay/types"
)

// RenewalPolicy picks the start of a new membership period given the requested start and
// the membership currently active, if any.
type RenewalPolicy func(requested time.Time, current *types.UserMembership) time.Time

// NonStacking starts the new period at the requested time. Remaining time on the current
// membership is discarded.
func NonStacking(requested time.Time, _ *types.UserMembership) time.Time {
	return requested
}

// Stacking starts the new period when the current one ends.
func Stacking(requested time.Time, current *types.UserMembership) time.Time {
	if current != nil && current.IsActive && current.ExpireAt.After(requested) {
		return current.ExpireAt
	}
	return requested
}

func PolicyByName(name string) (RenewalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "non_stacking":
		return NonStacking, nil
	case "stacking":
		return Stacking, nil
	default:
		return nil, fmt.Errorf("unknown renewal policy %q", name)
	}
}
