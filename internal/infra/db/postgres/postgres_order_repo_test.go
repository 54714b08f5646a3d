//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"finedu-reconciliation/internal/domain"
	"finedu-reconciliation/internal/domain/model"
	"finedu-reconciliation/internal/domain/ports/repository"

	"github.com/google/uuid"
)

func TestOrderRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewOrderRepo(testPool)

	newOrder := func(t *testing.T, userID, productID string, status model.OrderStatus) *model.Order {
		t.Helper()
		o, err := model.NewOrder(uuid.NewString(), userID, productID, "Produit", 2500, model.MethodCarrier, status)
		if err != nil {
			t.Fatal(err)
		}
		return o
	}

	t.Run("insert, find, update round trip", func(t *testing.T) {
		cleanup(t)
		seedUser(t, "u1")

		o := newOrder(t, "u1", "capsule-budget", model.OrderStatusPendingReview)
		o.Operator = "Orange"
		o.PayerPhone = "+221770000000"
		local := int64(16500)
		o.AmountLocal = &local
		if err := repo.Insert(ctx, nil, o); err != nil {
			t.Fatalf("Insert: %v", err)
		}

		found, err := repo.FindByID(ctx, nil, o.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if found.Operator != "Orange" || found.AmountLocal == nil || *found.AmountLocal != 16500 {
			t.Errorf("found = %+v", found)
		}

		now := time.Now()
		found.Status = model.OrderStatusPaid
		found.ValidatedAt = &now
		found.ValidatedBy = "admin-1"
		if err := repo.Update(ctx, nil, found); err != nil {
			t.Fatalf("Update: %v", err)
		}

		again, err := repo.FindByID(ctx, nil, o.ID)
		if err != nil {
			t.Fatal(err)
		}
		if again.Status != model.OrderStatusPaid || again.ValidatedAt == nil || again.ValidatedBy != "admin-1" {
			t.Errorf("after update = %+v", again)
		}
	})

	t.Run("update of a missing order reports not found", func(t *testing.T) {
		cleanup(t)
		seedUser(t, "u1")

		ghost := newOrder(t, "u1", "capsule-budget", model.OrderStatusPendingReview)
		if err := repo.Update(ctx, nil, ghost); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list filters by user, status and method", func(t *testing.T) {
		cleanup(t)
		seedUser(t, "u1")
		seedUser(t, "u2")

		for _, o := range []*model.Order{
			newOrder(t, "u1", "capsule-budget", model.OrderStatusPaid),
			newOrder(t, "u1", "capsule-dette", model.OrderStatusPendingReview),
			newOrder(t, "u2", "capsule-budget", model.OrderStatusPaid),
		} {
			if err := repo.Insert(ctx, nil, o); err != nil {
				t.Fatal(err)
			}
		}

		got, err := repo.List(ctx, nil, repository.OrderFilter{UserID: "u1", Status: model.OrderStatusPaid})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 1 || got[0].UserID != "u1" || got[0].Status != model.OrderStatusPaid {
			t.Errorf("got = %+v", got)
		}

		all, err := repo.List(ctx, nil, repository.OrderFilter{})
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 {
			t.Errorf("unfiltered = %d rows, want 3", len(all))
		}
	})

	t.Run("product existence check is case-insensitive", func(t *testing.T) {
		cleanup(t)
		seedUser(t, "u1")

		o := newOrder(t, "u1", "Capsule-Budget", model.OrderStatusPaid)
		if err := repo.Insert(ctx, nil, o); err != nil {
			t.Fatal(err)
		}

		exists, err := repo.ExistsForProduct(ctx, nil, "u1", "capsule-budget")
		if err != nil || !exists {
			t.Fatalf("exists = (%v, %v), want (true, nil)", exists, err)
		}
		exists, err = repo.ExistsForProduct(ctx, nil, "u1", "capsule-dette")
		if err != nil || exists {
			t.Fatalf("exists = (%v, %v), want (false, nil)", exists, err)
		}
	})

	t.Run("delete removes the row", func(t *testing.T) {
		cleanup(t)
		seedUser(t, "u1")

		o := newOrder(t, "u1", "capsule-budget", model.OrderStatusPaid)
		if err := repo.Insert(ctx, nil, o); err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(ctx, nil, o.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, o.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}
