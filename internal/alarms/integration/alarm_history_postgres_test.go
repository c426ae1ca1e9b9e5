package integration_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	alarms "gse-control/internal/alarms/domain"
	alarmpostgres "gse-control/internal/alarms/infrastructure/postgres"
)

func TestAlarmHistory_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(t, pool, "alarm_history") {
		t.Skip("alarm_history missing; run migrations")
	}

	deviceID := "device-it-alarm"
	_, _ = pool.Exec(ctx, "DELETE FROM alarm_history WHERE device_id = $1", deviceID)

	sink, err := alarmpostgres.NewHistorySink(pool, zerolog.Nop())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	triggered := time.Now().UTC().Truncate(time.Second)
	alarm := alarms.Alarm{
		ID:          "alm-it-1",
		DeviceID:    deviceID,
		Parameter:   "voltage",
		Type:        alarms.TypeThresholdHigh,
		Severity:    alarms.SeverityFault,
		Threshold:   32,
		ActualValue: 36.5,
		Status:      alarms.StatusTriggered,
		TriggeredAt: triggered,
	}
	if err := sink.Upsert(ctx, alarm); err != nil {
		t.Fatalf("upsert triggered: %v", err)
	}

	// Same row transitions to cleared; the upsert must update in place.
	alarm.Status = alarms.StatusCleared
	alarm.ClearedAt = triggered.Add(5 * time.Minute)
	alarm.Duration = 5 * time.Minute
	if err := sink.Upsert(ctx, alarm); err != nil {
		t.Fatalf("upsert cleared: %v", err)
	}

	list, err := sink.ListRange(ctx, deviceID, triggered.Add(-time.Minute), triggered.Add(time.Minute))
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("rows = %d, want 1", len(list))
	}
	got := list[0]
	if got.Status != alarms.StatusCleared || got.Duration != 5*time.Minute {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.Severity != alarms.SeverityFault || got.Type != alarms.TypeThresholdHigh {
		t.Fatalf("severity/type lost on round trip: %+v", got)
	}
}

func tableExists(t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
