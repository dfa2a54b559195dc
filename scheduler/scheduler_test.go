package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/rxguard/prescription-api/data"
	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/refdata/entities"
)

type mockLoader struct {
	set   *interfaces.ReferenceSet
	err   error
	calls int
}

func (m *mockLoader) LoadAll() (*interfaces.ReferenceSet, error) {
	m.calls++
	return m.set, m.err
}

type mockValidator struct {
	setErr error
}

func (m *mockValidator) ValidateInput(input string) error       { return nil }
func (m *mockValidator) ValidateAge(input string) (int, error)  { return 0, nil }
func (m *mockValidator) ValidateDrugName(name string) error     { return nil }
func (m *mockValidator) ValidateReferenceSet(set *interfaces.ReferenceSet) error {
	return m.setErr
}

func testReferenceSet() *interfaces.ReferenceSet {
	return &interfaces.ReferenceSet{
		Interactions: []entities.InteractionRow{
			{DrugAName: "warfarin", DrugBName: "aspirin", Severity: "high", Description: "bleeding risk"},
		},
		Dosages: map[string]entities.StandardRange{
			"aspirin": {DrugKey: "aspirin", MinMg: 81, MaxMg: 650, Frequency: "every 4 hours"},
		},
		AgeBands: []entities.AgeBand{
			{Name: "adult", MinAge: 0, MaxAge: 120, Factor: 1.0},
		},
	}
}

func TestReloadDataSwapsGeneration(t *testing.T) {
	store := data.NewDataContainer()
	loader := &mockLoader{set: testReferenceSet()}
	s := NewScheduler(store, loader, &mockValidator{})

	before := store.GetLastUpdated()

	if err := s.reloadData(); err != nil {
		t.Fatalf("reloadData failed: %v", err)
	}

	if loader.calls != 1 {
		t.Errorf("expected 1 loader call, got %d", loader.calls)
	}
	if len(store.GetInteractions()) != 1 {
		t.Errorf("expected 1 interaction after reload, got %d", len(store.GetInteractions()))
	}
	if !store.GetLastUpdated().After(before) {
		t.Error("last updated timestamp was not advanced")
	}
	if store.IsUpdating() {
		t.Error("update flag still set after reload")
	}
}

func TestReloadDataLoaderError(t *testing.T) {
	store := data.NewDataContainer()
	loader := &mockLoader{err: errors.New("disk gone")}
	s := NewScheduler(store, loader, &mockValidator{})

	if err := s.reloadData(); err == nil {
		t.Fatal("expected error from failing loader")
	}
	if len(store.GetInteractions()) != 0 {
		t.Error("failed reload must not modify the store")
	}
	if store.IsUpdating() {
		t.Error("update flag still set after failed reload")
	}
}

func TestReloadDataKeepsPreviousGenerationOnValidationFailure(t *testing.T) {
	store := data.NewDataContainer()
	store.UpdateData(testReferenceSet())

	loader := &mockLoader{set: &interfaces.ReferenceSet{}}
	s := NewScheduler(store, loader, &mockValidator{setErr: errors.New("empty dataset")})

	if err := s.reloadData(); err == nil {
		t.Fatal("expected validation error")
	}

	if len(store.GetInteractions()) != 1 {
		t.Errorf("previous generation lost: got %d interactions", len(store.GetInteractions()))
	}
}

func TestReloadDataSkipsWhenUpdateInProgress(t *testing.T) {
	store := data.NewDataContainer()
	loader := &mockLoader{set: testReferenceSet()}
	s := NewScheduler(store, loader, &mockValidator{})

	if !store.BeginUpdate() {
		t.Fatal("could not acquire update flag")
	}
	defer store.EndUpdate()

	if err := s.reloadData(); err != nil {
		t.Fatalf("concurrent reload should be a no-op, got: %v", err)
	}
	if loader.calls != 0 {
		t.Errorf("loader called %d times during concurrent reload", loader.calls)
	}
}

func TestStartSchedulesAndStops(t *testing.T) {
	store := data.NewDataContainer()
	loader := &mockLoader{set: testReferenceSet()}
	s := NewScheduler(store, loader, &mockValidator{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if loader.calls != 1 {
		t.Errorf("expected initial load on Start, got %d calls", loader.calls)
	}

	// Give the async scheduler a moment to settle before stopping.
	time.Sleep(10 * time.Millisecond)
}

func TestStartFailsWhenInitialLoadFails(t *testing.T) {
	store := data.NewDataContainer()
	loader := &mockLoader{err: errors.New("missing data directory")}
	s := NewScheduler(store, loader, &mockValidator{})

	if err := s.Start(); err == nil {
		t.Fatal("expected Start to fail when initial load fails")
	}
}
