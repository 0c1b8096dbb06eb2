package database

import (
	"errors"
	"testing"
	"time"

	"github.com/Mr-Dark-debug/freightview/internal/api"
)

func newTestDB(t *testing.T) *DBService {
	t.Helper()
	svc, err := NewDBService(":memory:")
	if err != nil {
		t.Fatalf("NewDBService(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

// TestNewDBService verifies that the database initializes correctly
// with the embedded schema using an in-memory SQLite instance.
func TestNewDBService(t *testing.T) {
	svc, err := NewDBService(":memory:")
	if err != nil {
		t.Fatalf("NewDBService(:memory:) failed: %v", err)
	}
	defer svc.Close()
}

// TestStageRoundTrip verifies upsert keeps uid and creation time while
// replacing the status.
func TestStageRoundTrip(t *testing.T) {
	svc := newTestDB(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st := &api.Stage{
		Metadata: api.ObjectMeta{Namespace: "demo", Name: "dev", UID: "uid-dev", CreationTimestamp: created},
		Status: api.StageStatus{
			CurrentFreight: &api.Freight{ID: "f1", Charts: []api.Chart{{RegistryURL: "r", Version: "1.0.0"}}},
		},
	}
	if err := svc.UpsertStage(st); err != nil {
		t.Fatalf("UpsertStage failed: %v", err)
	}

	again := &api.Stage{Metadata: api.ObjectMeta{Namespace: "demo", Name: "dev", UID: "other"}}
	if err := svc.UpsertStage(again); err != nil {
		t.Fatalf("second UpsertStage failed: %v", err)
	}

	got, err := svc.GetStage("demo", "dev")
	if err != nil {
		t.Fatalf("GetStage failed: %v", err)
	}
	if got.Metadata.UID != "uid-dev" {
		t.Errorf("expected uid kept, got %s", got.Metadata.UID)
	}
	if !got.Metadata.CreationTimestamp.Equal(created) {
		t.Errorf("expected creation time kept, got %v", got.Metadata.CreationTimestamp)
	}
	if got.Status.CurrentFreight != nil {
		t.Errorf("expected status replaced, got %+v", got.Status.CurrentFreight)
	}

	if _, err := svc.GetStage("demo", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestListStagesOrder verifies stages come back in creation order and
// scoped to their project.
func TestListStagesOrder(t *testing.T) {
	svc := newTestDB(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"prod", "dev", "qa"} {
		st := &api.Stage{Metadata: api.ObjectMeta{
			Namespace: "demo", Name: name, UID: name,
			CreationTimestamp: base.Add(time.Duration(i) * time.Minute),
		}}
		if err := svc.UpsertStage(st); err != nil {
			t.Fatalf("UpsertStage(%s) failed: %v", name, err)
		}
	}
	if err := svc.UpsertStage(&api.Stage{Metadata: api.ObjectMeta{Namespace: "other", Name: "x", UID: "x"}}); err != nil {
		t.Fatalf("UpsertStage(other) failed: %v", err)
	}

	stages, err := svc.ListStages("demo")
	if err != nil {
		t.Fatalf("ListStages failed: %v", err)
	}
	if len(stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(stages))
	}
	for i, want := range []string{"prod", "dev", "qa"} {
		if stages[i].Metadata.Name != want {
			t.Errorf("position %d: expected %s, got %s", i, want, stages[i].Metadata.Name)
		}
	}
}

// TestRecordFreightBoundsHistory verifies current freight moves to the
// front of history and history is trimmed.
func TestRecordFreightBoundsHistory(t *testing.T) {
	svc := newTestDB(t)

	if err := svc.UpsertStage(&api.Stage{Metadata: api.ObjectMeta{Namespace: "demo", Name: "dev", UID: "u"}}); err != nil {
		t.Fatalf("UpsertStage failed: %v", err)
	}
	for _, id := range []string{"f1", "f2", "f3", "f4"} {
		f := api.Freight{ID: id, Charts: []api.Chart{{RegistryURL: "r", Version: id}}}
		if err := svc.UpsertFreight("demo", f); err != nil {
			t.Fatalf("UpsertFreight(%s) failed: %v", id, err)
		}
	}

	var st *api.Stage
	var err error
	for _, id := range []string{"f1", "f2", "f3", "f4"} {
		st, err = svc.RecordFreight("demo", "dev", id, 2)
		if err != nil {
			t.Fatalf("RecordFreight(%s) failed: %v", id, err)
		}
	}

	if st.Status.CurrentFreight == nil || st.Status.CurrentFreight.ID != "f4" {
		t.Fatalf("expected current f4, got %+v", st.Status.CurrentFreight)
	}
	if len(st.Status.History) != 2 {
		t.Fatalf("expected history of 2, got %d", len(st.Status.History))
	}
	if st.Status.History[0].ID != "f3" || st.Status.History[1].ID != "f2" {
		t.Errorf("expected history [f3 f2], got [%s %s]", st.Status.History[0].ID, st.Status.History[1].ID)
	}

	stored, err := svc.GetStage("demo", "dev")
	if err != nil {
		t.Fatalf("GetStage failed: %v", err)
	}
	if stored.Status.CurrentFreight.ID != "f4" || len(stored.Status.History) != 2 {
		t.Errorf("stored stage not updated: %+v", stored.Status)
	}

	if _, err := svc.RecordFreight("demo", "dev", "missing", 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown freight, got %v", err)
	}
}

// TestSetPromotionStatusPromotesOnce verifies a Succeeded transition
// records freight together with the status, exactly once, and that a
// failed promotion writes nothing.
func TestSetPromotionStatusPromotesOnce(t *testing.T) {
	svc := newTestDB(t)

	if err := svc.UpsertStage(&api.Stage{Metadata: api.ObjectMeta{Namespace: "demo", Name: "dev", UID: "u"}}); err != nil {
		t.Fatalf("UpsertStage failed: %v", err)
	}
	for _, id := range []string{"f1", "f2"} {
		if err := svc.UpsertFreight("demo", api.Freight{ID: id, Charts: []api.Chart{{RegistryURL: "r", Version: id}}}); err != nil {
			t.Fatalf("UpsertFreight(%s) failed: %v", id, err)
		}
	}
	if _, err := svc.RecordFreight("demo", "dev", "f1", 5); err != nil {
		t.Fatalf("RecordFreight failed: %v", err)
	}

	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for name, freight := range map[string]string{"p1": "f2", "p2": "missing"} {
		p := &api.Promotion{
			Metadata: api.ObjectMeta{Namespace: "demo", Name: name, UID: "uid-" + name, CreationTimestamp: created},
			Spec:     api.PromotionSpec{Stage: "dev", Freight: freight},
			Status:   api.PromotionStatus{Phase: api.PhasePending},
		}
		if err := svc.InsertPromotion(p); err != nil {
			t.Fatalf("InsertPromotion(%s) failed: %v", name, err)
		}
	}

	p, st, err := svc.SetPromotionStatus("demo", "p1", api.PromotionStatus{Phase: api.PhaseRunning}, 5)
	if err != nil {
		t.Fatalf("SetPromotionStatus(Running) failed: %v", err)
	}
	if st != nil || p.Status.Phase != api.PhaseRunning {
		t.Errorf("expected Running without promotion, got phase %s stage %+v", p.Status.Phase, st)
	}

	for i := 0; i < 2; i++ {
		p, st, err = svc.SetPromotionStatus("demo", "p1", api.PromotionStatus{Phase: api.PhaseSucceeded}, 5)
		if err != nil {
			t.Fatalf("SetPromotionStatus(Succeeded) #%d failed: %v", i, err)
		}
		if p.Status.Phase != api.PhaseSucceeded {
			t.Errorf("expected Succeeded, got %s", p.Status.Phase)
		}
		if i == 0 && (st == nil || st.Status.CurrentFreight.ID != "f2") {
			t.Errorf("expected first Succeeded to promote f2, got %+v", st)
		}
		if i == 1 && st != nil {
			t.Errorf("expected repeated Succeeded not to promote, got %+v", st)
		}
	}

	stored, err := svc.GetStage("demo", "dev")
	if err != nil {
		t.Fatalf("GetStage failed: %v", err)
	}
	if stored.Status.CurrentFreight.ID != "f2" || len(stored.Status.History) != 1 || stored.Status.History[0].ID != "f1" {
		t.Errorf("expected current f2 with history [f1], got %+v", stored.Status)
	}

	if _, _, err := svc.SetPromotionStatus("demo", "p2", api.PromotionStatus{Phase: api.PhaseSucceeded}, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing freight, got %v", err)
	}
	p2, err := svc.GetPromotion("demo", "p2")
	if err != nil {
		t.Fatalf("GetPromotion failed: %v", err)
	}
	if p2.Status.Phase != api.PhasePending {
		t.Errorf("expected p2 left Pending after failed promotion, got %s", p2.Status.Phase)
	}

	if _, _, err := svc.SetPromotionStatus("demo", "nope", api.PromotionStatus{Phase: api.PhaseRunning}, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown promotion, got %v", err)
	}
}

// TestPromotionLifecycle verifies insert, status update, list and delete.
func TestPromotionLifecycle(t *testing.T) {
	svc := newTestDB(t)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"p1", "p2"} {
		p := &api.Promotion{
			Metadata: api.ObjectMeta{Namespace: "demo", Name: name, UID: "uid-" + name, CreationTimestamp: base.Add(time.Duration(i) * time.Hour)},
			Spec:     api.PromotionSpec{Stage: "dev", Freight: "abcdef123456"},
			Status:   api.PromotionStatus{Phase: api.PhasePending},
		}
		if err := svc.InsertPromotion(p); err != nil {
			t.Fatalf("InsertPromotion(%s) failed: %v", name, err)
		}
	}

	dup := &api.Promotion{Metadata: api.ObjectMeta{Namespace: "demo", Name: "p1"}, Spec: api.PromotionSpec{Stage: "dev"}}
	if err := svc.InsertPromotion(dup); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	list, err := svc.ListPromotions("demo", "dev")
	if err != nil {
		t.Fatalf("ListPromotions failed: %v", err)
	}
	if len(list) != 2 || list[0].Metadata.Name != "p2" {
		t.Fatalf("expected [p2 p1], got %+v", list)
	}

	updated, err := svc.UpdatePromotionStatus("demo", "p1", api.PromotionStatus{Phase: api.PhaseErrored, Error: "x"})
	if err != nil {
		t.Fatalf("UpdatePromotionStatus failed: %v", err)
	}
	if updated.Status.Phase != api.PhaseErrored || updated.Status.Error != "x" {
		t.Errorf("unexpected status %+v", updated.Status)
	}
	if updated.Spec.Freight != "abcdef123456" {
		t.Errorf("expected freight kept, got %s", updated.Spec.Freight)
	}

	if _, err := svc.UpdatePromotionStatus("demo", "nope", api.PromotionStatus{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	deleted, err := svc.DeletePromotion("demo", "p2")
	if err != nil {
		t.Fatalf("DeletePromotion failed: %v", err)
	}
	if deleted.Metadata.UID != "uid-p2" {
		t.Errorf("expected deleted promotion returned, got %+v", deleted.Metadata)
	}
	list, _ = svc.ListPromotions("demo", "dev")
	if len(list) != 1 {
		t.Errorf("expected 1 promotion after delete, got %d", len(list))
	}
}

// TestPreferences verifies booleans round-trip and unset keys return the
// default.
func TestPreferences(t *testing.T) {
	svc := newTestDB(t)

	v, err := svc.GetBool("demo-show-history", false)
	if err != nil || v {
		t.Fatalf("expected default false, got %v err=%v", v, err)
	}
	if err := svc.SetBool("demo-show-history", true); err != nil {
		t.Fatalf("SetBool failed: %v", err)
	}
	v, err = svc.GetBool("demo-show-history", false)
	if err != nil || !v {
		t.Fatalf("expected true, got %v err=%v", v, err)
	}
	if err := svc.SetBool("demo-show-history", false); err != nil {
		t.Fatalf("SetBool failed: %v", err)
	}
	if v, _ := svc.GetBool("demo-show-history", true); v {
		t.Error("expected overwritten value false")
	}
	if v, _ := svc.GetBool("other-show-history", true); !v {
		t.Error("keys must be independent")
	}
}
