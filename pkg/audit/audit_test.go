package audit_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"urlrisk/pkg/audit"
	mockaudit "urlrisk/pkg/audit/mock"
	"urlrisk/pkg/domain"
	"urlrisk/pkg/serrors"
	"urlrisk/pkg/storage"
	mockstorage "urlrisk/pkg/storage/mock"
)

func testRecord(url, caller string) domain.AuditRecord {
	return domain.NewAuditRecord(domain.Decision{
		ID:             domain.DecisionID(uuid.New()),
		URL:            url,
		Domain:         "example.com",
		Classification: domain.ClassificationMalicious,
		Probability:    0.91,
		Thresholds:     domain.Thresholds{Safe: 0.3, Malicious: 0.7},
		Source:         domain.SourceModel,
		ModelVersion:   "v2.0",
		Timestamp:      time.Date(2025, 3, 1, 12, 30, 45, 123456789, time.UTC),
	}, caller)
}

func decodeLine(t *testing.T, line []byte) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(line, &out))

	return out
}

func TestLine_Fields(t *testing.T) {
	rec := testRecord("https://example.com/login", "203.0.113.7")

	line := audit.Line(rec)
	require.True(t, bytes.HasSuffix(line, []byte("\n")))
	require.Equal(t, 1, bytes.Count(line, []byte("\n")))

	got := decodeLine(t, line)
	require.Equal(t, rec.ID.String(), got["id"])
	require.Equal(t, "2025-03-01T12:30:45.123456789Z", got["timestamp"])
	require.Equal(t, "203.0.113.7", got["client_ip"])
	require.Equal(t, "https://example.com/login", got["url"])
	require.Equal(t, "example.com", got["domain"])
	require.Equal(t, "malicious", got["prediction"])
	require.InDelta(t, 0.91, got["probability_malicious"], 1e-12)
	require.Equal(t, false, got["trusted_domain"])
	require.Equal(t, map[string]any{"safe": 0.3, "malicious": 0.7}, got["thresholds"])
	require.Equal(t, "v2.0", got["model_version"])
	require.Equal(t, "model", got["source"])
}

func TestLine_UnknownCallerIsNull(t *testing.T) {
	got := decodeLine(t, audit.Line(testRecord("https://example.com", "")))

	v, ok := got["client_ip"]
	require.True(t, ok)
	require.Nil(t, v)
}

func TestLine_NonASCIIIsNotEscaped(t *testing.T) {
	rec := testRecord("https://مثال.السعودية/تسجيل", "")

	line := audit.Line(rec)
	require.Contains(t, string(line), "https://مثال.السعودية/تسجيل")
	require.NotContains(t, string(line), `\u`)
}

func TestWriterSink_ConcurrentAppendsAreAtomic(t *testing.T) {
	var buf bytes.Buffer
	sink := audit.NewWriterSink("stdout", &buf)
	require.Equal(t, "stdout", sink.Name())

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, sink.Append(context.Background(),
				testRecord("https://example.com/"+strings.Repeat("a", i), "")))
		}()
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, n)
	for _, line := range lines {
		decodeLine(t, []byte(line))
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterSink_WriteError(t *testing.T) {
	sink := audit.NewWriterSink("broken", failingWriter{})

	err := sink.Append(context.Background(), testRecord("https://example.com", ""))
	require.ErrorContains(t, err, "disk full")
}

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")

	sink, err := audit.NewFileSink(path)
	require.NoError(t, err)

	first := testRecord("https://example.com/1", "")
	second := testRecord("https://example.com/2", "10.0.0.1")
	require.NoError(t, sink.Append(context.Background(), first))
	require.NoError(t, sink.Append(context.Background(), second))

	// records are flushed per append, before Close
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, bytes.Count(content, []byte("\n")))

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	require.Error(t, sink.Append(context.Background(), first))

	// reopening appends instead of truncating
	sink, err = audit.NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Append(context.Background(), testRecord("https://example.com/3", "")))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ids = append(ids, decodeLine(t, scanner.Bytes())["id"].(string))
	}
	require.NoError(t, scanner.Err())
	require.Len(t, ids, 3)
	require.Equal(t, first.ID.String(), ids[0])
	require.Equal(t, second.ID.String(), ids[1])
}

func TestFileSink_EmptyPath(t *testing.T) {
	_, err := audit.NewFileSink("")
	require.Error(t, err)
}

type fakeKafkaWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)

	return nil
}

func (w *fakeKafkaWriter) Close() error {
	w.closed = true

	return nil
}

func TestKafkaSink_Append(t *testing.T) {
	w := &fakeKafkaWriter{}
	sink := audit.NewKafkaSinkWithWriter("url-decisions", w)
	require.Equal(t, "kafka:url-decisions", sink.Name())

	rec := testRecord("https://example.com", "")
	require.NoError(t, sink.Append(context.Background(), rec))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	require.Equal(t, rec.ID.String(), string(msg.Key))
	require.False(t, bytes.HasSuffix(msg.Value, []byte("\n")))
	require.Equal(t, rec.ID.String(), decodeLine(t, msg.Value)["id"])
	require.Contains(t, msg.Headers, kafkago.Header{Key: "content-type", Value: []byte("application/json")})

	require.NoError(t, sink.Close())
	require.True(t, w.closed)
}

func TestKafkaSink_BrokerFailureIsUnavailable(t *testing.T) {
	w := &fakeKafkaWriter{err: errors.New("leader not available")}
	sink := audit.NewKafkaSinkWithWriter("url-decisions", w)

	err := sink.Append(context.Background(), testRecord("https://example.com", ""))
	require.ErrorIs(t, err, serrors.ErrUnavailable)
}

func TestNewKafkaSink_RequiresBrokersAndTopic(t *testing.T) {
	_, err := audit.NewKafkaSink(audit.KafkaOptions{Topic: "t"})
	require.ErrorIs(t, err, serrors.ErrInvalidConfig)

	_, err = audit.NewKafkaSink(audit.KafkaOptions{Brokers: []string{"localhost:9092"}})
	require.ErrorIs(t, err, serrors.ErrInvalidConfig)
}

func TestStorageSink_Append(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	rec := testRecord("https://example.com", "")

	t.Run("without outbox", func(t *testing.T) {
		strg := mockstorage.NewMockStorage(ctrl)
		strg.EXPECT().StoreAuditRecords(ctx, rec).Return(nil)

		require.NoError(t, audit.NewStorageSink(strg, false).Append(ctx, rec))
	})

	t.Run("store failure", func(t *testing.T) {
		strg := mockstorage.NewMockStorage(ctrl)
		strg.EXPECT().StoreAuditRecords(ctx, rec).Return(errors.New("connection refused"))

		require.ErrorContains(t, audit.NewStorageSink(strg, false).Append(ctx, rec), "connection refused")
	})

	t.Run("with outbox", func(t *testing.T) {
		strg := mockstorage.NewMockStorage(ctrl)
		tx := mockstorage.NewMockAllStorage(ctrl)
		strg.EXPECT().WithTx(ctx, gomock.Any()).DoAndReturn(
			func(ctx context.Context, cb func(storage.AllStorage) error) error {
				return cb(tx)
			})
		tx.EXPECT().StoreAuditRecords(ctx, rec).Return(nil)
		tx.EXPECT().AddJob(ctx, audit.ForwardArgs{ID: rec.ID.String()}, gomock.Nil()).Return(true, nil)

		require.NoError(t, audit.NewStorageSink(strg, true).Append(ctx, rec))
	})

	t.Run("outbox enqueue failure", func(t *testing.T) {
		strg := mockstorage.NewMockStorage(ctrl)
		tx := mockstorage.NewMockAllStorage(ctrl)
		strg.EXPECT().WithTx(ctx, gomock.Any()).DoAndReturn(
			func(ctx context.Context, cb func(storage.AllStorage) error) error {
				return cb(tx)
			})
		tx.EXPECT().StoreAuditRecords(ctx, rec).Return(nil)
		tx.EXPECT().AddJob(ctx, gomock.Any(), gomock.Nil()).Return(false, errors.New("river down"))

		require.ErrorContains(t, audit.NewStorageSink(strg, true).Append(ctx, rec), "river down")
	})
}

func TestMulti_AppendsToEverySink(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	rec := testRecord("https://example.com", "")

	first := mockaudit.NewMockSink(ctrl)
	second := mockaudit.NewMockSink(ctrl)
	third := mockaudit.NewMockSink(ctrl)
	for _, s := range []*mockaudit.MockSink{first, second, third} {
		s.EXPECT().Append(ctx, rec).Return(nil)
	}

	require.NoError(t, audit.NewMulti(first, second, third).Append(ctx, rec))
}

func TestMulti_FailureDoesNotStopOtherSinks(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	rec := testRecord("https://example.com", "")

	failing := mockaudit.NewMockSink(ctrl)
	failing.EXPECT().Name().Return("kafka:decisions").AnyTimes()
	failing.EXPECT().Append(ctx, rec).Return(serrors.With(serrors.ErrUnavailable, "broker down"))

	var buf bytes.Buffer
	healthy := audit.NewWriterSink("stdout", &buf)

	multi := audit.NewMulti(failing, healthy)
	require.Equal(t, "multi(kafka:decisions,stdout)", multi.Name())

	err := multi.Append(ctx, rec)
	require.ErrorIs(t, err, serrors.ErrUnavailable)
	require.ErrorContains(t, err, "kafka:decisions")
	require.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestMulti_Close(t *testing.T) {
	ctrl := gomock.NewController(t)

	first := mockaudit.NewMockSink(ctrl)
	second := mockaudit.NewMockSink(ctrl)
	first.EXPECT().Close().Return(errors.New("flush failed"))
	second.EXPECT().Close().Return(nil)

	require.ErrorContains(t, audit.NewMulti(first, second).Close(), "flush failed")
}
