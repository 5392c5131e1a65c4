//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"sherlock/pkg/platform/audit"
	"sherlock/pkg/platform/sentinel"
	"sherlock/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.Pool)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *StoreSuite) SetupTest() {
	_, err := s.pg.Pool.Exec(context.Background(), "TRUNCATE decision_audit")
	s.Require().NoError(err)
}

func (s *StoreSuite) record(txID, userID, outcome string) audit.Record {
	return audit.Record{
		TransactionID:   txID,
		UserID:          userID,
		Amount:          decimal.RequireFromString("1250.50"),
		Location:        "Tokyo",
		Merchant:        "m-42",
		Outcome:         outcome,
		RiskScore:       91.5,
		Reasons:         []string{"IMPOSSIBLE_TRAVEL", "HIGH_RISK_SCORE"},
		Velocity:        2,
		LocationChanged: true,
		ModelVersion:    "champion-v1",
		LatencyMS:       3.2,
		DecidedAt:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (s *StoreSuite) TestAppendAndLookup() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.record("t1", "u2", "BLOCK")))

	got, err := s.store.Lookup(ctx, "t1")
	s.Require().NoError(err)
	s.Equal("BLOCK", got.Outcome)
	s.True(got.Amount.Equal(decimal.RequireFromString("1250.50")))
	s.Equal([]string{"IMPOSSIBLE_TRAVEL", "HIGH_RISK_SCORE"}, got.Reasons)
	s.True(got.DecidedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func (s *StoreSuite) TestDuplicateDeliveryIsIgnored() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.record("t1", "u1", "BLOCK")))
	s.Require().NoError(s.store.Append(ctx, s.record("t1", "u1", "ALLOW")))

	got, err := s.store.Lookup(ctx, "t1")
	s.Require().NoError(err)
	s.Equal("BLOCK", got.Outcome)
}

func (s *StoreSuite) TestLookupMissing() {
	_, err := s.store.Lookup(context.Background(), "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestListByUser() {
	ctx := context.Background()
	first := s.record("t1", "u1", "ALLOW")
	second := s.record("t2", "u1", "BLOCK")
	second.DecidedAt = first.DecidedAt.Add(time.Second)
	s.Require().NoError(s.store.Append(ctx, second))
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, s.record("t3", "u9", "ALLOW")))

	recs, err := s.store.ListByUser(ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal("t1", recs[0].TransactionID)
	s.Equal("t2", recs[1].TransactionID)
}
