package membership

import (
	"context"
	"fmt"
	"strings"

	"github.com/BatmanBruc/inkpay/types"
	"github.com/shopspring/decimal"
)

// PlanInput carries the fields of a plan create or update. Nil fields are left unchanged on update.
type PlanInput struct {
	ID           string           `json:"id,omitempty"`
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	DurationDays *int             `json:"duration,omitempty"`
	IsActive     *bool            `json:"isActive,omitempty"`
}

// Catalog manages purchasable membership plans. Plans are disabled, never deleted.
type Catalog struct {
	store types.MembershipStore
}

func NewCatalog(store types.MembershipStore) *Catalog {
	return &Catalog{store: store}
}

func (c *Catalog) List(ctx context.Context, activeOnly bool) ([]types.MembershipType, error) {
	return c.store.ListMembershipTypes(ctx, activeOnly)
}

// Get returns a plan in any state.
func (c *Catalog) Get(ctx context.Context, id string) (*types.MembershipType, error) {
	return c.store.GetMembershipType(ctx, strings.TrimSpace(id))
}

// Resolve returns a plan that can be bought.
func (c *Catalog) Resolve(ctx context.Context, id string) (*types.MembershipType, error) {
	mt, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !mt.IsActive {
		return nil, fmt.Errorf("%w: %s is disabled", types.ErrUnknownPlan, mt.ID)
	}
	return mt, nil
}

func (c *Catalog) Create(ctx context.Context, in PlanInput) (*types.MembershipType, error) {
	if in.Name == nil || in.Price == nil || in.DurationDays == nil {
		return nil, fmt.Errorf("%w: name, price and duration are required", types.ErrValidation)
	}
	mt := &types.MembershipType{
		ID:       strings.TrimSpace(in.ID),
		IsActive: true,
	}
	apply(mt, in)
	if err := validatePlan(mt); err != nil {
		return nil, err
	}
	if err := c.store.CreateMembershipType(ctx, mt); err != nil {
		return nil, err
	}
	return mt, nil
}

func (c *Catalog) Update(ctx context.Context, id string, in PlanInput) (*types.MembershipType, error) {
	var mt *types.MembershipType
	err := c.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		mt, err = c.store.GetMembershipType(ctx, id)
		if err != nil {
			return err
		}
		apply(mt, in)
		if err := validatePlan(mt); err != nil {
			return err
		}
		return c.store.UpdateMembershipType(ctx, mt)
	})
	if err != nil {
		return nil, err
	}
	return mt, nil
}

func (c *Catalog) Disable(ctx context.Context, id string) error {
	inactive := false
	_, err := c.Update(ctx, id, PlanInput{IsActive: &inactive})
	return err
}

// Seed upserts plans, used to load the catalog from a file.
func (c *Catalog) Seed(ctx context.Context, plans []types.MembershipType) error {
	return c.store.InTx(ctx, func(ctx context.Context) error {
		for i := range plans {
			if plans[i].ID == "" {
				return fmt.Errorf("%w: plan %q has no id", types.ErrValidation, plans[i].Name)
			}
			if err := validatePlan(&plans[i]); err != nil {
				return err
			}
			if err := c.store.CreateMembershipType(ctx, &plans[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func apply(mt *types.MembershipType, in PlanInput) {
	if in.Name != nil {
		mt.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		mt.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		mt.Price = *in.Price
	}
	if in.DurationDays != nil {
		mt.DurationDays = *in.DurationDays
	}
	if in.IsActive != nil {
		mt.IsActive = *in.IsActive
	}
}

func validatePlan(mt *types.MembershipType) error {
	switch {
	case mt.Name == "":
		return fmt.Errorf("%w: plan name is required", types.ErrValidation)
	case mt.Price.IsNegative():
		return fmt.Errorf("%w: plan price must not be negative", types.ErrValidation)
	case mt.DurationDays < 1:
		return fmt.Errorf("%w: plan duration must be at least one day", types.ErrValidation)
	}
	return nil
}
