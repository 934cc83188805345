package repository_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/tenantledger/infra/repository"
	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/amirasaad/tenantledger/pkg/repository"
	idemsvc "github.com/amirasaad/tenantledger/pkg/service/idempotency"
	txsvc "github.com/amirasaad/tenantledger/pkg/service/transaction"
	"github.com/amirasaad/tenantledger/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// PostgresSuite runs the concurrency properties against a real Postgres,
// where row locks and SKIP LOCKED actually contend.
type PostgresSuite struct {
	suite.Suite
	db  *gorm.DB
	uow *infrarepo.UoW
	svc *txsvc.Service
	fx  *testutils.Fixtures
}

func (s *PostgresSuite) SetupSuite() {
	s.db = testutils.StartPostgres(s.T())
	s.uow = infrarepo.NewUoW(s.db)
	s.svc = txsvc.New(s.uow, idemsvc.New(s.uow, testutils.DiscardLogger()), testutils.DiscardLogger())
	s.fx = testutils.NewFixtures(s.T(), s.db)
}

func (s *PostgresSuite) TestConcurrentTransfersConserveMoney() {
	biz := s.fx.Business()
	accounts := []uuid.UUID{
		s.fx.Account(biz.ID, "USD", 10_000).ID,
		s.fx.Account(biz.ID, "USD", 10_000).ID,
		s.fx.Account(biz.ID, "USD", 10_000).ID,
		s.fx.Account(biz.ID, "USD", 10_000).ID,
	}
	rng := rand.New(rand.NewSource(42))

	var wg sync.WaitGroup
	for range 200 {
		from := accounts[rng.Intn(len(accounts))]
		to := accounts[rng.Intn(len(accounts))]
		if from == to {
			continue
		}
		amount := rng.Int63n(3_000) + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Transfer(context.Background(), txsvc.TransferCommand{
				BusinessID:    biz.ID,
				FromAccountID: from.String(),
				ToAccountID:   to.String(),
				Amount:        amount,
			})
			if err != nil && !errors.Is(err, domain.ErrInsufficientBalance) {
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	var total int64
	for _, id := range accounts {
		bal := s.fx.Balance(id)
		s.GreaterOrEqual(bal, int64(0))
		total += bal
	}
	s.Equal(int64(40_000), total)
}

func (s *PostgresSuite) TestConcurrentSameKeyAppliesOnce() {
	biz := s.fx.Business()
	a := s.fx.Account(biz.ID, "USD", 1_000)
	b := s.fx.Account(biz.ID, "USD", 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied = map[uuid.UUID]bool{}
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.svc.Transfer(context.Background(), txsvc.TransferCommand{
				BusinessID:     biz.ID,
				FromAccountID:  a.ID.String(),
				ToAccountID:    b.ID.String(),
				Amount:         250,
				IdempotencyKey: "pg-race",
			})
			if errors.Is(err, domain.ErrOperationInProgress) {
				return
			}
			if !s.NoError(err) {
				return
			}
			mu.Lock()
			applied[res.TransactionID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(applied, 1)
	s.Equal(int64(750), s.fx.Balance(a.ID))
	s.Equal(int64(250), s.fx.Balance(b.ID))
	s.Equal(int64(1), s.fx.Count(&infrarepo.Transaction{}, "business_id = ? AND idempotency_key = ?", biz.ID, "pg-race"))
}

func (s *PostgresSuite) TestClaimsDoNotOverlap() {
	ctx := context.Background()
	biz := s.fx.Business()
	ep := s.fx.Endpoint(biz.ID, "https://hooks.example.com", "whsec")
	now := time.Now().UTC()
	events := make([]*webhook.Event, 20)
	for i := range events {
		events[i] = webhook.NewEvent(ep.ID, webhook.EventTransferCreated, []byte(`{}`), now.Add(-time.Duration(i)*time.Second))
	}
	s.Require().NoError(infrarepo.NewWebhookEventRepository(s.db).Create(ctx, events...))

	claim := func(hold time.Duration) []uuid.UUID {
		var ids []uuid.UUID
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			repo, err := uow.WebhookEventRepository()
			if err != nil {
				return err
			}
			claimed, err := repo.ClaimDue(ctx, time.Now().UTC(), time.Now().UTC().Add(time.Minute), 8)
			if err != nil {
				return err
			}
			for _, ev := range claimed {
				ids = append(ids, ev.ID)
			}
			time.Sleep(hold)
			return nil
		})
		s.Require().NoError(err)
		return ids
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		seen   = map[uuid.UUID]int{}
		claims int
	)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := claim(200 * time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			claims += len(ids)
			for _, id := range ids {
				seen[id]++
			}
		}()
	}
	wg.Wait()

	for id, n := range seen {
		s.Equal(1, n, "event %s claimed twice", id)
	}
	s.Equal(len(seen), claims)
	s.LessOrEqual(claims, len(events))
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}
