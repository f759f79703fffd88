package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	postgres "github.com/perundhu/perundhu-backend/internal/adapter/postgres"
	"github.com/perundhu/perundhu-backend/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectationsWereMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

var locationCols = []string{"id", "name", "name_tamil", "lat", "lon", "created_at"}

var busCols = []string{
	"id", "number", "name", "from_location_id", "to_location_id",
	"from_name", "to_name", "departure_time", "arrival_time", "created_at",
}

func busRowValues(id uuid.UUID, departure domain.TimeOfDay) []any {
	return []any{
		id, "IMG-MAD-CHE-001", "Madurai - Chennai", uuid.New(), uuid.New(),
		"Madurai", "Chennai",
		postgres.PgTimeOfDay(departure), postgres.PgTimeOfDay(departure.AddMinutes(90)),
		time.Now(),
	}
}

func TestRepo_GetLocationByNameFold(t *testing.T) {
	locID := uuid.New()

	t.Run("case-insensitive hit", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		mock.ExpectQuery(`FROM locations WHERE lower`).
			WithArgs("madurai").
			WillReturnRows(pgxmock.NewRows(locationCols).
				AddRow(locID, "Madurai", pgtype.Text{}, pgtype.Float8{}, pgtype.Float8{}, time.Now()))

		loc, err := repo.GetLocationByNameFold(context.Background(), "madurai")
		if err != nil {
			t.Fatalf("GetLocationByNameFold() error = %v", err)
		}
		if loc.ID != locID || loc.Name != "Madurai" {
			t.Errorf("got %s/%s, want %s/Madurai", loc.ID, loc.Name, locID)
		}
		expectationsWereMet(t, mock)
	})

	t.Run("miss maps to ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		mock.ExpectQuery(`FROM locations WHERE lower`).
			WithArgs("nowhere").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetLocationByNameFold(context.Background(), "nowhere")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetLocationByNameFold() error = %v, want ErrNotFound", err)
		}
		expectationsWereMet(t, mock)
	})
}

func TestRepo_CreateLocation(t *testing.T) {
	loc := &domain.Location{
		ID:        uuid.New(),
		Name:      "Madurai",
		CreatedAt: time.Now(),
	}

	t.Run("ok", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		mock.ExpectExec(`INSERT INTO locations`).
			WithArgs(loc.ID, "Madurai", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), loc.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		if err := repo.CreateLocation(context.Background(), loc); err != nil {
			t.Fatalf("CreateLocation() error = %v", err)
		}
		expectationsWereMet(t, mock)
	})

	t.Run("duplicate name maps to ErrAlreadyExists", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		mock.ExpectExec(`INSERT INTO locations`).
			WithArgs(loc.ID, "Madurai", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), loc.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.CreateLocation(context.Background(), loc)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("CreateLocation() error = %v, want ErrAlreadyExists", err)
		}
		expectationsWereMet(t, mock)
	})
}

func TestRepo_CreateBus(t *testing.T) {
	bus := &domain.Bus{
		ID:             uuid.New(),
		Number:         "IMG-MAD-CHE-001",
		Name:           "Madurai - Chennai",
		FromLocationID: uuid.New(),
		ToLocationID:   uuid.New(),
		Departure:      domain.TimeOfDay{Hour: 6, Minute: 30},
		Arrival:        domain.TimeOfDay{Hour: 8, Minute: 0},
		CreatedAt:      time.Now(),
	}

	t.Run("ok", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		mock.ExpectExec(`INSERT INTO buses`).
			WithArgs(bus.ID, bus.Number, bus.Name, bus.FromLocationID, bus.ToLocationID,
				postgres.PgTimeOfDay(bus.Departure), postgres.PgTimeOfDay(bus.Arrival), bus.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		if err := repo.CreateBus(context.Background(), bus); err != nil {
			t.Fatalf("CreateBus() error = %v", err)
		}
		expectationsWereMet(t, mock)
	})

	t.Run("concurrent promotion maps to ErrAlreadyExists", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		mock.ExpectExec(`INSERT INTO buses`).
			WithArgs(bus.ID, bus.Number, bus.Name, bus.FromLocationID, bus.ToLocationID,
				postgres.PgTimeOfDay(bus.Departure), postgres.PgTimeOfDay(bus.Arrival), bus.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.CreateBus(context.Background(), bus)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("CreateBus() error = %v, want ErrAlreadyExists", err)
		}
		expectationsWereMet(t, mock)
	})
}

func TestRepo_GetBusByRoute(t *testing.T) {
	fromID, toID := uuid.New(), uuid.New()
	departure := domain.TimeOfDay{Hour: 6, Minute: 30}

	mock := newMock(t)
	repo := New(mock)

	busID := uuid.New()
	mock.ExpectQuery(`FROM buses b`).
		WithArgs(fromID, toID, postgres.PgTimeOfDay(departure)).
		WillReturnRows(pgxmock.NewRows(busCols).AddRow(busRowValues(busID, departure)...))

	bus, err := repo.GetBusByRoute(context.Background(), fromID, toID, departure)
	if err != nil {
		t.Fatalf("GetBusByRoute() error = %v", err)
	}
	if bus.ID != busID {
		t.Errorf("bus ID = %s, want %s", bus.ID, busID)
	}
	if bus.Departure != departure {
		t.Errorf("departure = %s, want %s", bus.Departure, departure)
	}
	if bus.FromName != "Madurai" || bus.ToName != "Chennai" {
		t.Errorf("route names = %s/%s, want Madurai/Chennai", bus.FromName, bus.ToName)
	}
	expectationsWereMet(t, mock)
}

func TestRepo_CountBusesBetween(t *testing.T) {
	fromID, toID := uuid.New(), uuid.New()

	mock := newMock(t)
	repo := New(mock)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(fromID, toID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountBusesBetween(context.Background(), fromID, toID)
	if err != nil {
		t.Fatalf("CountBusesBetween() error = %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	expectationsWereMet(t, mock)
}

func TestRepo_ListBusesByRouteNames(t *testing.T) {
	t.Run("matches candidates", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		departure := domain.TimeOfDay{Hour: 6, Minute: 30}
		mock.ExpectQuery(`FROM buses b`).
			WithArgs("Madurai", "Madurai", "Chennai", "Chennai").
			WillReturnRows(pgxmock.NewRows(busCols).AddRow(busRowValues(uuid.New(), departure)...))

		buses, err := repo.ListBusesByRouteNames(context.Background(), []string{"Madurai"}, []string{"Chennai"})
		if err != nil {
			t.Fatalf("ListBusesByRouteNames() error = %v", err)
		}
		if len(buses) != 1 {
			t.Fatalf("len = %d, want 1", len(buses))
		}
		expectationsWereMet(t, mock)
	})

	t.Run("expanded terms", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		// Each term contributes a containment pair in both directions.
		departure := domain.TimeOfDay{Hour: 6, Minute: 30}
		mock.ExpectQuery(`FROM buses b`).
			WithArgs("vnr", "vnr", "virudhunagar", "virudhunagar", "madurai", "madurai").
			WillReturnRows(pgxmock.NewRows(busCols).AddRow(busRowValues(uuid.New(), departure)...))

		buses, err := repo.ListBusesByRouteNames(context.Background(), []string{"vnr", "virudhunagar"}, []string{"madurai"})
		if err != nil {
			t.Fatalf("ListBusesByRouteNames() error = %v", err)
		}
		if len(buses) != 1 {
			t.Fatalf("len = %d, want 1", len(buses))
		}
		expectationsWereMet(t, mock)
	})

	t.Run("no candidates", func(t *testing.T) {
		mock := newMock(t)
		repo := New(mock)

		mock.ExpectQuery(`FROM buses b`).
			WithArgs("Hosur", "Hosur", "Krishnagiri", "Krishnagiri").
			WillReturnRows(pgxmock.NewRows(busCols))

		buses, err := repo.ListBusesByRouteNames(context.Background(), []string{"Hosur"}, []string{"Krishnagiri"})
		if err != nil {
			t.Fatalf("ListBusesByRouteNames() error = %v", err)
		}
		if len(buses) != 0 {
			t.Fatalf("len = %d, want 0", len(buses))
		}
		expectationsWereMet(t, mock)
	})
}

func TestRepo_ListBuses(t *testing.T) {
	mock := newMock(t)
	repo := New(mock)

	departure := domain.TimeOfDay{Hour: 6, Minute: 30}
	mock.ExpectQuery(`FROM buses b`).
		WithArgs(500).
		WillReturnRows(pgxmock.NewRows(busCols).
			AddRow(busRowValues(uuid.New(), departure)...).
			AddRow(busRowValues(uuid.New(), departure.AddMinutes(30))...))

	buses, err := repo.ListBuses(context.Background(), 500)
	if err != nil {
		t.Fatalf("ListBuses() error = %v", err)
	}
	if len(buses) != 2 {
		t.Fatalf("len = %d, want 2", len(buses))
	}
	expectationsWereMet(t, mock)
}

func TestRepo_CreateStops(t *testing.T) {
	busID := uuid.New()
	stops := []domain.Stop{
		{ID: uuid.New(), BusID: busID, LocationID: uuid.New(), Name: "Dindigul", StopOrder: 1},
		{ID: uuid.New(), BusID: busID, LocationID: uuid.New(), Name: "Trichy", StopOrder: 2},
	}

	mock := newMock(t)
	repo := New(mock)

	for _, s := range stops {
		mock.ExpectExec(`INSERT INTO stops`).
			WithArgs(s.ID, busID, s.LocationID, s.Name, pgxmock.AnyArg(), pgxmock.AnyArg(), s.StopOrder).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	if err := repo.CreateStops(context.Background(), stops); err != nil {
		t.Fatalf("CreateStops() error = %v", err)
	}
	expectationsWereMet(t, mock)
}
