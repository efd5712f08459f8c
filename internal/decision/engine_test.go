package decision_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/mock/gomock"

	"urlrisk/internal/decision"
	mockaudit "urlrisk/pkg/audit/mock"
	"urlrisk/pkg/domain"
	"urlrisk/pkg/metrics"
	mockscorer "urlrisk/pkg/scorer/mock"
	"urlrisk/pkg/serrors"
)

var fixedNow = time.Date(2025, 3, 1, 15, 4, 5, 0, time.FixedZone("AST", 3*60*60))

type engineFixture struct {
	engine decision.Engine
	scorer *mockscorer.MockScorer
	sink   *mockaudit.MockSink
}

func newTestEngine(t *testing.T, recorder *metrics.Recorder) engineFixture {
	t.Helper()

	return newTestEngineWithOptions(t, recorder, decision.Options{
		Thresholds:   defaultThresholds,
		ModelVersion: "v2.0",
	})
}

func newTestEngineWithOptions(t *testing.T, recorder *metrics.Recorder, options decision.Options) engineFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	sc := mockscorer.NewMockScorer(ctrl)
	sink := mockaudit.NewMockSink(ctrl)
	sink.EXPECT().Name().Return("test").AnyTimes()

	registry, _ := decision.NewTrustRegistry([]string{"google.com", ".edu.sa"})
	e, err := decision.New(options, decision.Deps{
		Registry: registry,
		Scorer:   sc,
		Sink:     sink,
		Metrics:  recorder,
		Clock:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	return engineFixture{engine: e, scorer: sc, sink: sink}
}

func TestEngine_TrustedDomainSkipsScorer(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()

	f.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Times(0)
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	d, err := f.engine.Decide(ctx, "https://google.com/")
	require.NoError(t, err)
	require.Equal(t, domain.ClassificationBenign, d.Classification)
	require.Equal(t, domain.SourceWhitelist, d.Source)
	require.InDelta(t, 0.01, d.Probability, 1e-12)
	require.True(t, d.Trusted)
	require.Equal(t, "google.com", d.Domain)
	require.Equal(t, "https://google.com/", d.URL)
	require.Equal(t, "v2.0", d.ModelVersion)
	require.Equal(t, defaultThresholds, d.Thresholds)
	require.Equal(t, time.UTC, d.Timestamp.Location())
	require.True(t, fixedNow.Equal(d.Timestamp))
}

func TestEngine_TrustOverrideIgnoresScorer(t *testing.T) {
	urls := []string{
		"https://www.google.com/search?q=x",
		"https://mail.kfupm.edu.sa/owa",
		"http://edu.sa",
		"HTTPS://WWW.GOOGLE.COM",
	}

	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			f := newTestEngine(t, nil)

			// the scorer would call everything malicious, but it must never be asked
			f.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(1.0, nil).Times(0)
			f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

			d, err := f.engine.Decide(context.Background(), u)
			require.NoError(t, err)
			require.Equal(t, domain.ClassificationBenign, d.Classification)
			require.Equal(t, domain.SourceWhitelist, d.Source)
		})
	}
}

func TestEngine_ModelDecision(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := context.Background()
	const u = "http://secure-paypal-login.example.com"

	f.scorer.EXPECT().Score(gomock.Any(), u).Return(0.92, nil)
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	d, err := f.engine.Decide(ctx, u)
	require.NoError(t, err)
	require.Equal(t, domain.ClassificationMalicious, d.Classification)
	require.Equal(t, domain.SourceModel, d.Source)
	require.InDelta(t, 0.92, d.Probability, 1e-12)
	require.False(t, d.Trusted)
	require.Equal(t, "secure-paypal-login.example.com", d.Domain)
}

func TestEngine_LookalikeIsNotTrusted(t *testing.T) {
	f := newTestEngine(t, nil)

	f.scorer.EXPECT().Score(gomock.Any(), "https://evil-google.com/login").Return(0.5, nil)
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	d, err := f.engine.Decide(context.Background(), "https://evil-google.com/login")
	require.NoError(t, err)
	require.Equal(t, domain.ClassificationSuspicious, d.Classification)
	require.Equal(t, domain.SourceModel, d.Source)
}

func TestEngine_DegradedInputIsStillScored(t *testing.T) {
	f := newTestEngine(t, nil)

	f.scorer.EXPECT().Score(gomock.Any(), "Free Text").Return(0.1, nil)
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	d, err := f.engine.Decide(context.Background(), "Free Text")
	require.NoError(t, err)
	require.Equal(t, "free text", d.Domain)
	require.Equal(t, domain.ClassificationBenign, d.Classification)
}

func TestEngine_DegradedInputDoesNotMatchTrustedSuffix(t *testing.T) {
	urls := []string{
		"phish-login.com/verify?next=.edu.sa",
		"login-update.com?return=ksu.edu.sa",
	}

	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			f := newTestEngine(t, nil)

			f.scorer.EXPECT().Score(gomock.Any(), u).Return(0.99, nil)
			f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

			d, err := f.engine.Decide(context.Background(), u)
			require.NoError(t, err)
			require.False(t, d.Trusted)
			require.Equal(t, domain.SourceModel, d.Source)
			require.Equal(t, domain.ClassificationMalicious, d.Classification)
		})
	}
}

func TestEngine_BareTrustedHostWithoutScheme(t *testing.T) {
	f := newTestEngine(t, nil)

	f.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Times(0)
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	d, err := f.engine.Decide(context.Background(), "mail.kfupm.edu.sa")
	require.NoError(t, err)
	require.True(t, d.Trusted)
	require.Equal(t, domain.SourceWhitelist, d.Source)
}

func TestEngine_Idempotent(t *testing.T) {
	f := newTestEngine(t, nil)
	const u = "https://example.net/a"

	f.scorer.EXPECT().Score(gomock.Any(), u).Return(0.42, nil).Times(2)
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	first, err := f.engine.Decide(context.Background(), u)
	require.NoError(t, err)
	second, err := f.engine.Decide(context.Background(), u)
	require.NoError(t, err)

	require.Equal(t, first.Classification, second.Classification)
	require.Equal(t, first.Probability, second.Probability)
	require.Equal(t, first.Domain, second.Domain)
	require.NotEqual(t, first.ID, second.ID)
}

func TestEngine_ScorerFailureIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		err  error
	}{
		{name: "error", err: errors.New("model crashed")},
		{name: "nan", p: math.NaN()},
		{name: "negative", p: -0.1},
		{name: "above one", p: 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestEngine(t, nil)

			f.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(tt.p, tt.err)
			f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

			d, err := f.engine.Decide(context.Background(), "https://unknown.example")
			require.Nil(t, d)
			require.ErrorIs(t, err, serrors.ErrUnavailable)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestEngine_AuditRecord(t *testing.T) {
	f := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(domain.WithCaller(context.Background(), "198.51.100.4"))

	var got domain.AuditRecord
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, rec domain.AuditRecord) error {
			got = rec
			require.NoError(t, ctx.Err())

			return nil
		})

	cancel()
	d, err := f.engine.Decide(ctx, "https://google.com")
	require.NoError(t, err)
	require.Equal(t, *d, got.Decision)
	require.Equal(t, "198.51.100.4", got.Caller)
}

func TestEngine_AuditFailureDoesNotFailDecision(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	recorder, err := metrics.NewRecorder(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	f := newTestEngine(t, recorder)
	f.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.8, nil)
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	d, err := f.engine.Decide(context.Background(), "https://phish.example")
	require.NoError(t, err)
	require.Equal(t, domain.ClassificationMalicious, d.Classification)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var failures int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "urlrisk.audit.append.failures" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				failures += dp.Value
			}
		}
	}
	require.Equal(t, int64(1), failures)
}

func TestEngine_SlowAuditSinkIsBounded(t *testing.T) {
	const appendTimeout = 50 * time.Millisecond

	f := newTestEngineWithOptions(t, nil, decision.Options{
		Thresholds:         defaultThresholds,
		ModelVersion:       "v2.0",
		AuditAppendTimeout: appendTimeout,
	})
	f.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return(0.2, nil)
	f.sink.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.AuditRecord) error {
			_, ok := ctx.Deadline()
			require.True(t, ok, "append must run with a deadline")

			// a stalled broker
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Second):
				return nil
			}
		})

	start := time.Now()
	d, err := f.engine.Decide(context.Background(), "https://example.org")
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, domain.ClassificationBenign, d.Classification)
	require.GreaterOrEqual(t, elapsed, appendTimeout)
	require.Less(t, elapsed, 2*time.Second)
}

func TestEngine_Info(t *testing.T) {
	f := newTestEngine(t, nil)

	require.Equal(t, decision.Info{
		ModelVersion:   "v2.0",
		Thresholds:     defaultThresholds,
		TrustedEntries: 2,
	}, f.engine.Info())
}

func TestNew_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry, _ := decision.NewTrustRegistry(nil)
	deps := decision.Deps{
		Registry: registry,
		Scorer:   mockscorer.NewMockScorer(ctrl),
		Sink:     mockaudit.NewMockSink(ctrl),
	}

	_, err := decision.New(decision.Options{Thresholds: domain.Thresholds{Safe: 0.8, Malicious: 0.2}}, deps)
	require.ErrorIs(t, err, serrors.ErrInvalidConfig)

	noScorer := deps
	noScorer.Scorer = nil
	_, err = decision.New(decision.Options{Thresholds: defaultThresholds}, noScorer)
	require.ErrorIs(t, err, serrors.ErrInvalidConfig)

	noSink := deps
	noSink.Sink = nil
	_, err = decision.New(decision.Options{Thresholds: defaultThresholds}, noSink)
	require.ErrorIs(t, err, serrors.ErrInvalidConfig)

	noRegistry := deps
	noRegistry.Registry = nil
	_, err = decision.New(decision.Options{Thresholds: defaultThresholds}, noRegistry)
	require.ErrorIs(t, err, serrors.ErrInvalidConfig)

	_, err = decision.New(decision.Options{Thresholds: defaultThresholds, AuditAppendTimeout: -time.Second}, deps)
	require.ErrorIs(t, err, serrors.ErrInvalidConfig)

	_, err = decision.New(decision.Options{Thresholds: defaultThresholds}, deps)
	require.NoError(t, err)
}
