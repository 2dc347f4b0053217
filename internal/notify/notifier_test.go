package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryQueue struct {
	notices []BackorderNotice
	err     error
}

func (q *memoryQueue) EnqueueBackorderNotice(ctx context.Context, notice BackorderNotice) error {
	if q.err != nil {
		return q.err
	}
	q.notices = append(q.notices, notice)
	return nil
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestBackorderRecordedDeduplicates(t *testing.T) {
	queue := &memoryQueue{}
	notifier := NewNotifier(queue, newRedisClient(t), slog.Default(), time.Hour)
	ctx := context.Background()

	notice := BackorderNotice{RecordID: 42, SKU: "AMOX-500", Quantity: 2, Location: "RH1"}
	notifier.BackorderRecorded(ctx, notice)
	notifier.BackorderRecorded(ctx, notice)

	require.Len(t, queue.notices, 1)
	require.Equal(t, int64(42), queue.notices[0].RecordID)

	notifier.BackorderRecorded(ctx, BackorderNotice{RecordID: 43, SKU: "AMOX-500"})
	require.Len(t, queue.notices, 2)
}

func TestBackorderRecordedWithoutRedis(t *testing.T) {
	queue := &memoryQueue{}
	notifier := NewNotifier(queue, nil, slog.Default(), time.Hour)
	ctx := context.Background()

	notice := BackorderNotice{RecordID: 7}
	notifier.BackorderRecorded(ctx, notice)
	notifier.BackorderRecorded(ctx, notice)
	require.Len(t, queue.notices, 2)
}

func TestBackorderRecordedSwallowsEnqueueFailure(t *testing.T) {
	queue := &memoryQueue{err: errors.New("queue down")}
	notifier := NewNotifier(queue, newRedisClient(t), slog.Default(), time.Hour)

	notifier.BackorderRecorded(context.Background(), BackorderNotice{RecordID: 9})
	require.Empty(t, queue.notices)
}

func TestMailerFormatsNotice(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := NewMailer("smtp.local", 1025, "no-reply@dispensary.local", "ops@dispensary.local")
	m.send = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.Send(BackorderNotice{
		RecordID:    42,
		PatientID:   "P-1001",
		ProductName: "Amoxicillin - 500mg",
		SKU:         "AMOX-500",
		Quantity:    2,
		Location:    "RH1",
		Doctor:      "Dr Tan",
		Remarks:     "call when in [BACKORDER]",
	})
	require.NoError(t, err)
	require.Equal(t, "smtp.local:1025", gotAddr)
	require.Equal(t, "no-reply@dispensary.local", gotFrom)
	require.Equal(t, []string{"ops@dispensary.local"}, gotTo)

	body := string(gotMsg)
	require.Contains(t, body, "Subject: BACKORDER: Amoxicillin - 500mg x2 (RH1)")
	require.Contains(t, body, "Patient:  P-1001")
	require.Contains(t, body, "SKU:      AMOX-500")
	require.Contains(t, body, "Doctor:   Dr Tan")
}
