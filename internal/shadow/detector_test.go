package shadow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sherlock/internal/decision"
	"sherlock/internal/decision/mocks"
	"sherlock/internal/platform/logger"
	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/sentinel"
)

type recordingSink struct {
	records []ConflictRecord
	err     error
}

func (s *recordingSink) Report(_ context.Context, rec ConflictRecord) error {
	s.records = append(s.records, rec)
	return s.err
}

type DetectorSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	verdicts *mocks.MockVerdictLookup
	sink     *recordingSink
	stats    *Stats
	detector *Detector
	tx       decision.Transaction
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.verdicts = mocks.NewMockVerdictLookup(s.ctrl)
	s.sink = &recordingSink{}
	s.stats = &Stats{}
	s.detector = NewDetector(s.verdicts, s.sink,
		WithLookupRetry(3, time.Millisecond),
		WithStats(s.stats),
		WithDetectorLogger(logger.Discard()),
	)
	s.tx = decision.Transaction{
		TransactionID: "tx-1",
		UserID:        "u1",
		Amount:        decimal.NewFromInt(900),
		Location:      "London",
	}
}

func (s *DetectorSuite) production(outcome decision.Outcome, score float64) *audit.Record {
	return &audit.Record{
		TransactionID: "tx-1",
		UserID:        "u1",
		Outcome:       string(outcome),
		RiskScore:     score,
		ModelVersion:  "champion-v1",
	}
}

func (s *DetectorSuite) shadowVerdict(outcome decision.Outcome, score float64) decision.Verdict {
	return decision.Verdict{
		Outcome:      outcome,
		RiskScore:    score,
		Reasons:      []decision.Reason{decision.ReasonHighRiskScore},
		ModelVersion: "challenger-v1",
	}
}

func (s *DetectorSuite) TestAgreement() {
	s.verdicts.EXPECT().Lookup(gomock.Any(), "tx-1").Return(s.production(decision.OutcomeBlock, 90), nil)

	result := s.detector.Compare(context.Background(), s.tx, s.shadowVerdict(decision.OutcomeBlock, 85))
	s.Equal(ComparisonAgree, result)
	s.Empty(s.sink.records)
}

func (s *DetectorSuite) TestConflictIsReported() {
	s.verdicts.EXPECT().Lookup(gomock.Any(), "tx-1").Return(s.production(decision.OutcomeAllow, 12), nil)

	result := s.detector.Compare(context.Background(), s.tx, s.shadowVerdict(decision.OutcomeBlock, 88))
	s.Equal(ComparisonConflict, result)

	s.Require().Len(s.sink.records, 1)
	rec := s.sink.records[0]
	s.Equal("tx-1", rec.TransactionID)
	s.Equal("u1", rec.UserID)
	s.Equal("900", rec.Amount.String())
	s.Equal("ALLOW", rec.ProductionDecision)
	s.Equal(12.0, rec.ProductionScore)
	s.Equal("BLOCK", rec.ShadowDecision)
	s.Equal(88.0, rec.ShadowScore)
	s.Equal("challenger-v1", rec.ShadowModel)
	s.Equal([]string{"HIGH_RISK_SCORE"}, rec.ShadowReasons)
}

func (s *DetectorSuite) TestLateProductionVerdictIsFoundOnRetry() {
	gomock.InOrder(
		s.verdicts.EXPECT().Lookup(gomock.Any(), "tx-1").Return(nil, sentinel.ErrNotFound),
		s.verdicts.EXPECT().Lookup(gomock.Any(), "tx-1").Return(s.production(decision.OutcomeAllow, 5), nil),
	)

	result := s.detector.Compare(context.Background(), s.tx, s.shadowVerdict(decision.OutcomeAllow, 7))
	s.Equal(ComparisonAgree, result)
}

func (s *DetectorSuite) TestMissingProductionVerdictIsUncompared() {
	s.verdicts.EXPECT().Lookup(gomock.Any(), "tx-1").Return(nil, sentinel.ErrNotFound).Times(3)

	result := s.detector.Compare(context.Background(), s.tx, s.shadowVerdict(decision.OutcomeBlock, 99))
	s.Equal(ComparisonUncompared, result)
	s.Empty(s.sink.records)
}

func (s *DetectorSuite) TestSinkFailureDoesNotFailComparison() {
	s.sink.err = errors.New("kafka down")
	s.verdicts.EXPECT().Lookup(gomock.Any(), "tx-1").Return(s.production(decision.OutcomeAllow, 1), nil)

	result := s.detector.Compare(context.Background(), s.tx, s.shadowVerdict(decision.OutcomeBlock, 81))
	s.Equal(ComparisonConflict, result)
}

func (s *DetectorSuite) TestStats() {
	s.verdicts.EXPECT().Lookup(gomock.Any(), "tx-1").Return(s.production(decision.OutcomeAllow, 1), nil).Times(3)
	s.verdicts.EXPECT().Lookup(gomock.Any(), "tx-2").Return(nil, sentinel.ErrNotFound).Times(3)

	ctx := context.Background()
	s.detector.Compare(ctx, s.tx, s.shadowVerdict(decision.OutcomeAllow, 1))
	s.detector.Compare(ctx, s.tx, s.shadowVerdict(decision.OutcomeAllow, 1))
	s.detector.Compare(ctx, s.tx, s.shadowVerdict(decision.OutcomeBlock, 95))
	other := s.tx
	other.TransactionID = "tx-2"
	s.detector.Compare(ctx, other, s.shadowVerdict(decision.OutcomeAllow, 1))

	snap := s.stats.Snapshot()
	s.Equal(int64(4), snap.Evaluated)
	s.Equal(int64(3), snap.Compared)
	s.Equal(int64(1), snap.Conflicts)
	s.Equal(int64(1), snap.Uncompared)
	s.InDelta(2.0/3.0, snap.AgreementRate, 0.0001)
}

func TestStats_EmptyAgreementRate(t *testing.T) {
	snap := (&Stats{}).Snapshot()
	if snap.AgreementRate != 1 {
		t.Fatalf("expected agreement rate 1 with nothing compared, got %v", snap.AgreementRate)
	}
}

func TestDetector_NoVerdictIndex(t *testing.T) {
	d := NewDetector(nil, nil, WithDetectorLogger(logger.Discard()))
	got := d.Compare(context.Background(), decision.Transaction{TransactionID: "t"}, decision.Verdict{Outcome: decision.OutcomeAllow})
	if got != ComparisonUncompared {
		t.Fatalf("expected uncompared, got %s", got)
	}
}
