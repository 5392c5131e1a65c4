package shadow_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"sherlock/internal/decision"
	"sherlock/internal/decision/ports"
	"sherlock/internal/devicegraph"
	"sherlock/internal/model"
	"sherlock/internal/platform/logger"
	"sherlock/internal/shadow"
	"sherlock/internal/velocity"
	"sherlock/pkg/platform/audit"
	auditmemory "sherlock/pkg/platform/audit/store/memory"
)

type fixedModel struct {
	score   float64
	version string
}

func (m fixedModel) Score(context.Context, model.Features) (float64, error) { return m.score, nil }
func (m fixedModel) Version() string { return m.version }

type sinkFunc func(shadow.ConflictRecord)

func (f sinkFunc) Report(_ context.Context, rec shadow.ConflictRecord) error {
	f(rec)
	return nil
}

type ProcessorSuite struct {
	suite.Suite
	ctx        context.Context
	production *velocity.MemoryStore
	verdicts   *auditmemory.InMemoryStore
	conflicts  []shadow.ConflictRecord
	stats      *shadow.Stats
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	s.ctx = context.Background()
	s.production = velocity.NewMemoryStore()
	s.verdicts = auditmemory.NewInMemoryStore()
	s.conflicts = nil
	s.stats = &shadow.Stats{}
}

func (s *ProcessorSuite) processor(score float64, state ports.StatePort, opts ...shadow.ProcessorOption) *shadow.Processor {
	detector := shadow.NewDetector(s.verdicts,
		sinkFunc(func(rec shadow.ConflictRecord) { s.conflicts = append(s.conflicts, rec) }),
		shadow.WithLookupRetry(1, time.Millisecond),
		shadow.WithStats(s.stats),
		shadow.WithDetectorLogger(logger.Discard()),
	)
	evaluator := decision.NewEvaluator("shadow", fixedModel{score: score, version: "challenger-test"}, time.Second)
	opts = append(opts, shadow.WithProcessorLogger(logger.Discard()))
	return shadow.NewProcessor(evaluator, state, detector, opts...)
}

// productionDecided mimics what the production path leaves behind: an
// updated counter and an audit record carrying the signals it decided on.
func (s *ProcessorSuite) productionDecided(txID, user, location, outcome string) shadow.Envelope {
	act, err := s.production.RecordAndFetch(s.ctx, user, location, time.Minute, txID)
	s.Require().NoError(err)
	s.Require().NoError(s.verdicts.Append(s.ctx, audit.Record{
		TransactionID:   txID,
		UserID:          user,
		Outcome:         outcome,
		Velocity:        act.Velocity,
		LocationChanged: act.LocationChanged,
	}))
	return shadow.Envelope{
		Transaction: ports.TransactionMessage{
			TransactionID: txID,
			UserID:        user,
			Amount:        decimal.NewFromInt(20),
			Location:      location,
		},
		DispatchedAt: time.Now(),
	}
}

func (s *ProcessorSuite) velocityOf(user string) int {
	act, err := s.production.Peek(s.ctx, user)
	s.Require().NoError(err)
	return act.Velocity
}

func (s *ProcessorSuite) TestReuseModeReadsWithoutWriting() {
	p := s.processor(10, s.production)

	var last shadow.Envelope
	for i, txID := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		outcome := "ALLOW"
		if i == 5 {
			outcome = "BLOCK"
		}
		last = s.productionDecided(txID, "u1", "London", outcome)
		s.Require().NoError(p.Process(s.ctx, last))
	}

	s.Equal(6, s.velocityOf("u1"))
	s.Empty(s.conflicts, "the shadow saw the same counter production did")

	snap := s.stats.Snapshot()
	s.Equal(int64(6), snap.Compared)
	s.Equal(1.0, snap.AgreementRate)

	s.Run("duplicate delivery is harmless", func() {
		s.Require().NoError(p.Process(s.ctx, last))
		s.Equal(6, s.velocityOf("u1"))
	})
}

func (s *ProcessorSuite) TestReuseModeUsesRecordedSignalsWhenLagging() {
	p := s.processor(10, s.production)

	envs := make([]shadow.Envelope, 0, 6)
	for _, txID := range []string{"t1", "t2", "t3", "t4", "t5"} {
		envs = append(envs, s.productionDecided(txID, "u1", "London", "ALLOW"))
	}
	envs = append(envs, s.productionDecided("t6", "u1", "London", "BLOCK"))
	s.Require().Equal(6, s.velocityOf("u1"), "worker starts after production moved on")

	s.Require().NoError(p.Process(s.ctx, envs[0]))
	s.Empty(s.conflicts, "t1 is judged at the velocity production saw, not the current one")

	s.Require().NoError(p.Process(s.ctx, envs[5]))
	s.Empty(s.conflicts)
	s.Equal(int64(2), s.stats.Snapshot().Compared)
}

func (s *ProcessorSuite) TestReuseModeKeepsDegradedProductionUnknown() {
	p := s.processor(10, s.production)

	for _, txID := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		_, err := s.production.RecordAndFetch(s.ctx, "u4", "Lima", time.Minute, txID)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.verdicts.Append(s.ctx, audit.Record{
		TransactionID: "t7",
		UserID:        "u4",
		Outcome:       "ALLOW",
		Reasons:       []string{string(decision.ReasonStateUnavailable)},
		Degraded:      true,
	}))

	env := shadow.Envelope{Transaction: ports.TransactionMessage{
		TransactionID: "t7",
		UserID:        "u4",
		Amount:        decimal.NewFromInt(5),
		Location:      "Lima",
	}}
	s.Require().NoError(p.Process(s.ctx, env))
	s.Empty(s.conflicts, "velocity rules are skipped like they were in production")
}

func (s *ProcessorSuite) TestIncrementModeUsesIsolatedStore() {
	isolated := velocity.NewMemoryStore()
	p := s.processor(10, isolated, shadow.WithCounterMode(shadow.CounterIncrement), shadow.WithWindow(time.Minute))

	env := s.productionDecided("t1", "u1", "London", "ALLOW")
	s.Require().NoError(p.Process(s.ctx, env))
	s.Require().NoError(p.Process(s.ctx, env))

	s.Equal(1, s.velocityOf("u1"))
	act, err := isolated.Peek(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(1, act.Velocity, "redelivery of the same transaction replays")
}

func (s *ProcessorSuite) TestConflictWhenModelsDisagree() {
	p := s.processor(95, s.production)

	env := s.productionDecided("t1", "u2", "Paris", "ALLOW")
	s.Require().NoError(p.Process(s.ctx, env))

	s.Require().Len(s.conflicts, 1)
	s.Equal("ALLOW", s.conflicts[0].ProductionDecision)
	s.Equal("BLOCK", s.conflicts[0].ShadowDecision)
	s.Equal(95.0, s.conflicts[0].ShadowScore)
	s.Equal("challenger-test", s.conflicts[0].ShadowModel)
}

func (s *ProcessorSuite) TestUnloggedProductionVerdictIsUncompared() {
	p := s.processor(10, s.production)
	env := shadow.Envelope{Transaction: ports.TransactionMessage{
		TransactionID: "never-audited",
		UserID:        "u3",
		Amount:        decimal.NewFromInt(5),
		Location:      "Rome",
	}}

	s.Require().NoError(p.Process(s.ctx, env))
	s.Equal(int64(1), s.stats.Snapshot().Uncompared)
	s.Empty(s.conflicts)
}

func (s *ProcessorSuite) TestSharedDeviceIsReadNotLinked() {
	devices := devicegraph.NewMemoryGraph()
	for _, user := range []string{"a", "b", "c", "d"} {
		_, err := devices.Link(s.ctx, "dev-1", user)
		s.Require().NoError(err)
	}
	p := s.processor(10, s.production, shadow.WithDeviceCounter(devices, 3))

	env := s.productionDecided("t1", "d", "Oslo", "BLOCK")
	env.Transaction.DeviceID = "dev-1"
	s.Require().NoError(p.Process(s.ctx, env))

	s.Empty(s.conflicts)
	n, err := devices.Count(s.ctx, "dev-1")
	s.Require().NoError(err)
	s.Equal(4, n)
}

func (s *ProcessorSuite) TestInvalidEnvelopeIsRejected() {
	p := s.processor(10, s.production)
	err := p.Process(s.ctx, shadow.Envelope{Transaction: ports.TransactionMessage{TransactionID: "t"}})
	s.Require().Error(err)
	s.ErrorIs(err, decision.ErrInvalidTransaction)
}

func TestParseCounterMode(t *testing.T) {
	for _, in := range []string{"reuse", "increment"} {
		if _, err := shadow.ParseCounterMode(in); err != nil {
			t.Fatalf("expected %q to parse: %v", in, err)
		}
	}
	if _, err := shadow.ParseCounterMode("double"); err == nil {
		t.Fatal("expected unknown mode to fail")
	}
}
