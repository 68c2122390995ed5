package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/persistorai/dashport/internal/domain"
	"github.com/persistorai/dashport/internal/models"
)

func TestImportStore_Associations(t *testing.T) {
	s := newTestStore(t)

	inRollbackTx(t, s, func(ctx context.Context, es domain.EntityStore) {
		db := importDatabase(ctx, t, es)
		ds := importDataset(ctx, t, es, db.ID)

		chart, err := es.ImportChart(ctx, chartDoc(newUUID(), ds.ID, "revenue"), models.EntityImportOptions{})
		if err != nil {
			t.Fatalf("ImportChart: %v", err)
		}

		dash, err := es.ImportDashboard(ctx, models.Document{"uuid": newUUID()}, models.EntityImportOptions{})
		if err != nil {
			t.Fatalf("ImportDashboard: %v", err)
		}

		link := models.Association{DashboardID: dash.ID, ChartID: chart.ID}

		n, err := es.InsertAssociations(ctx, []models.Association{link})
		if err != nil || n != 1 {
			t.Fatalf("InsertAssociations = %d, %v, want 1", n, err)
		}

		n, err = es.InsertAssociations(ctx, []models.Association{link})
		if err != nil || n != 0 {
			t.Fatalf("second InsertAssociations = %d, %v, want 0", n, err)
		}

		set, err := es.QueryAssociations(ctx, &dash.ID)
		if err != nil {
			t.Fatalf("QueryAssociations: %v", err)
		}

		if len(set) != 1 || !set.Has(link) {
			t.Errorf("links = %v, want %v", set, link)
		}

		all, err := es.QueryAssociations(ctx, nil)
		if err != nil || !all.Has(link) {
			t.Errorf("QueryAssociations(nil) = %v, %v", all, err)
		}

		if err := es.DeleteChart(ctx, chart.ID); err != nil {
			t.Fatalf("DeleteChart: %v", err)
		}

		set, err = es.QueryAssociations(ctx, &dash.ID)
		if err != nil || len(set) != 0 {
			t.Errorf("links after delete = %v, %v, want none", set, err)
		}

		if err := es.DeleteChart(ctx, chart.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("second DeleteChart = %v, want ErrNotFound", err)
		}
	})
}

func TestImportStore_UpdateDashboard(t *testing.T) {
	s := newTestStore(t)

	inRollbackTx(t, s, func(ctx context.Context, es domain.EntityStore) {
		dash, err := es.ImportDashboard(ctx, models.Document{"uuid": newUUID()}, models.EntityImportOptions{})
		if err != nil {
			t.Fatalf("ImportDashboard: %v", err)
		}

		content := models.DashboardContent{
			Position: map[string]any{"ROOT_ID": map[string]any{"type": "ROOT", "children": []any{}}},
			Metadata: map[string]any{"refresh_frequency": 60},
		}
		if err := es.UpdateDashboard(ctx, dash.ID, content); err != nil {
			t.Fatalf("UpdateDashboard: %v", err)
		}

		if err := es.UpdateDashboard(ctx, -1, models.DashboardContent{}); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestImportStore_InTxRollsBack(t *testing.T) {
	s := newTestStore(t)

	var id int64

	inRollbackTx(t, s, func(ctx context.Context, es domain.EntityStore) {
		id = importDatabase(ctx, t, es).ID
	})

	err := s.InTx(context.Background(), func(ctx context.Context, es domain.EntityStore) error {
		_, err := es.GetDatabase(ctx, id)

		return err
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetDatabase after rollback = %v, want ErrNotFound", err)
	}
}
