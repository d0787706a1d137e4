package access

import (
	"context"
	"errors"
	"testing"

	"github.com/BatmanBruc/inkpay/internal/i18n"
	"github.com/BatmanBruc/inkpay/internal/messages"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/stretchr/testify/require"
)

type stubMembers map[int64]bool

func (s stubMembers) IsMember(_ context.Context, userID int64) (bool, error) {
	if userID == 666 {
		return false, errors.New("db down")
	}
	return s[userID], nil
}

type stubPurchases map[int64]string

func (s stubPurchases) CheckPurchased(_ context.Context, userID int64, articleID string) (bool, error) {
	return s[userID] == articleID, nil
}

func TestResolve(t *testing.T) {
	g := NewGate(stubMembers{2: true}, stubPurchases{3: "a1"}, nil)
	article := types.Article{ID: "a1", Title: "T", Content: "secret body", HTML: "<p>secret</p>"}
	ctx := context.Background()

	cases := []struct {
		name      string
		requester *types.Requester
		locked    bool
	}{
		{"anonymous", nil, true},
		{"admin", &types.Requester{UserID: 1, Role: types.RoleAdmin}, false},
		{"member", &types.Requester{UserID: 2, Role: types.RoleVisitor}, false},
		{"buyer", &types.Requester{UserID: 3, Role: types.RoleVisitor}, false},
		{"stranger", &types.Requester{UserID: 4, Role: types.RoleVisitor}, true},
		{"lookup error", &types.Requester{UserID: 666, Role: types.RoleVisitor}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			view := g.Resolve(ctx, article, c.requester, i18n.ZH)
			require.Equal(t, c.locked, view.Locked)
			if c.locked {
				require.Equal(t, messages.LockedNotice(i18n.ZH), view.Content)
				require.Empty(t, view.HTML)
			} else {
				require.Equal(t, "secret body", view.Content)
				require.Equal(t, "<p>secret</p>", view.HTML)
			}
			require.Equal(t, "T", view.Title)
		})
	}

	require.Equal(t, "secret body", article.Content)
}
