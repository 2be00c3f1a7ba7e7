package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pillbox/pillbox-backend/internal/dispenser/events"
	"github.com/pillbox/pillbox-backend/internal/dispenser/handler"
	"github.com/pillbox/pillbox-backend/internal/dispenser/repository"
	"github.com/pillbox/pillbox-backend/internal/dispenser/service"
	"github.com/pillbox/pillbox-backend/pkg/logger"
)

const testAPIKey = "SECRET123"

type fixture struct {
	router http.Handler
	store  service.MedicationStore
}

func newFixture(t *testing.T, store service.MedicationStore) *fixture {
	t.Helper()
	log := logger.Nop()
	var publisher *events.DispenserEventPublisher

	svc := service.NewDispenserService(store, publisher, 3, log)
	device := handler.NewDeviceHandler(svc, testAPIKey, log)
	dashboard := handler.NewDashboardHandler(svc, http.HandlerFunc(device.Report), log)

	r := chi.NewRouter()
	handler.Mount(r, dashboard)
	return &fixture{router: r, store: store}
}

func seeded(t *testing.T, meds ...*repository.Medication) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	for _, m := range meds {
		if err := store.Insert(context.Background(), m); err != nil {
			t.Fatalf("seed box %d: %v", m.BoxID, err)
		}
	}
	return store
}

func med(box int, name string, total int) *repository.Medication {
	return &repository.Medication{
		BoxID: box, MedicationID: 100 + box, Name: name, TotalPills: total,
		PillsPerIntake: 1, DosesPerDay: 1, ScheduleTime1: "08:00",
	}
}

func stockOf(t *testing.T, store service.MedicationStore, box int) int {
	t.Helper()
	m, err := store.GetByBox(context.Background(), box)
	if err != nil {
		t.Fatalf("box %d: %v", box, err)
	}
	return m.TotalPills
}

// failingStore fails every call with a driver style error
type failingStore struct{}

func (failingStore) Insert(context.Context, *repository.Medication) error {
	return errDriver
}

func (failingStore) Update(context.Context, *repository.Medication) error {
	return errDriver
}

func (failingStore) Decrement(context.Context, int, int) (int, error) {
	return 0, errDriver
}

func (failingStore) Delete(context.Context, int) (bool, error) {
	return false, errDriver
}

func (failingStore) ListAll(context.Context) ([]*repository.Medication, error) {
	return nil, errDriver
}

func (failingStore) GetByBox(context.Context, int) (*repository.Medication, error) {
	return nil, errDriver
}

var errDriver = errors.New("pq: connection refused")

func form(values map[string]string) url.Values {
	v := url.Values{}
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}
