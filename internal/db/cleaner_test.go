package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// cutoffNear matches a UTC time.Time within tolerance of want.
type cutoffNear struct {
	want      time.Time
	tolerance time.Duration
}

func (c cutoffNear) Match(v driver.Value) bool {
	got, ok := v.(time.Time)
	if !ok || got.Location() != time.UTC {
		return false
	}
	diff := got.Sub(c.want)
	if diff < 0 {
		diff = -diff
	}
	return diff <= c.tolerance
}

func waitStopped(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop after cancel")
	}
}

func TestStartAccessEventCleaner_DeletesOlderThanRetention(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	defer dbMock.Close()

	retention := 48 * time.Hour
	mock.ExpectExec("DELETE FROM access_events WHERE created_at <").
		WithArgs(cutoffNear{want: time.Now().Add(-retention), tolerance: 5 * time.Second}).
		WillReturnResult(sqlmock.NewResult(0, 3))

	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := StartAccessEventCleaner(ctx, dbMock, 10*time.Millisecond, retention, zap.New(core))

	deadline := time.Now().Add(time.Second)
	for logs.FilterMessage("cleaned access events").Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	waitStopped(t, done)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
	cleaned := logs.FilterMessage("cleaned access events").All()
	if len(cleaned) == 0 {
		t.Fatalf("expected cleaned log, got %v", logs.All())
	}
	if removed := cleaned[0].ContextMap()["removed"]; removed != int64(3) {
		t.Errorf("removed = %v; want 3", removed)
	}
}

func TestCutoffNear_RejectsWrongCutoffs(t *testing.T) {
	now := time.Now()
	m := cutoffNear{want: now.Add(-time.Hour).UTC(), tolerance: time.Second}

	cases := []struct {
		name string
		v    driver.Value
		want bool
	}{
		{"past cutoff", now.Add(-time.Hour).UTC(), true},
		{"future cutoff", now.Add(time.Hour).UTC(), false},
		{"unix seconds", now.Add(-time.Hour).Unix(), false},
		{"local time", now.Add(-time.Hour).In(time.FixedZone("X", 3600)), false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.v); got != tc.want {
			t.Errorf("%s: Match = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestStartAccessEventCleaner_ErrorLogged(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	defer dbMock.Close()

	mock.ExpectExec("DELETE FROM access_events").
		WithArgs(cutoffNear{want: time.Now().Add(-time.Hour), tolerance: 5 * time.Second}).
		WillReturnError(fmt.Errorf("db fail"))

	core, logs := observer.New(zap.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := StartAccessEventCleaner(ctx, dbMock, 10*time.Millisecond, time.Hour, zap.New(core))

	deadline := time.Now().Add(time.Second)
	for logs.FilterMessage("failed to clean access events").Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	waitStopped(t, done)

	if logs.FilterMessage("failed to clean access events").Len() == 0 {
		t.Errorf("expected error log, got %v", logs.All())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStartAccessEventCleaner_CancelBeforeTicker(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	defer dbMock.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := StartAccessEventCleaner(ctx, dbMock, 100*time.Millisecond, time.Hour, zap.NewNop())
	cancel()
	waitStopped(t, done)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected sql calls: %v", err)
	}
}
