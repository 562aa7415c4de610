package repository

import (
	"context"
	"testing"
	"time"

	"megayield/models"
	"megayield/repository/testutil"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewSettingsRepository(testDB.DB)
	ctx := context.Background()

	t.Run("not created yet", func(t *testing.T) {
		settings, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Nil(t, settings)
	})

	t.Run("created on first lock", func(t *testing.T) {
		settings, err := repo.GetOrCreateForUpdate(ctx, 1_000_000)
		require.NoError(t, err)
		assert.Equal(t, int64(0), settings.CurrentDay)
		assert.Equal(t, int64(1_000_000), settings.TicketPrice)
		assert.False(t, settings.IsVestingConfigured())

		// A second call keeps the stored price
		settings, err = repo.GetOrCreateForUpdate(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), settings.TicketPrice)
	})

	t.Run("updates", func(t *testing.T) {
		require.NoError(t, repo.UpdateCurrentDay(ctx, 20123))
		require.NoError(t, repo.UpdateTicketPrice(ctx, 2_500_000))

		settings, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(20123), settings.CurrentDay)
		assert.Equal(t, int64(2_500_000), settings.TicketPrice)
	})

	t.Run("vesting address set once", func(t *testing.T) {
		vesting := testutil.Address(0x7e57)

		set, err := repo.SetVestingAddress(ctx, vesting)
		require.NoError(t, err)
		assert.True(t, set)

		set, err = repo.SetVestingAddress(ctx, testutil.Address(0xbad))
		require.NoError(t, err)
		assert.False(t, set)

		settings, err := repo.Get(ctx)
		require.NoError(t, err)
		require.NotNil(t, settings.VestingAddress)
		assert.Equal(t, vesting, *settings.VestingAddress)
	})

	t.Run("bootstrap keeps existing row", func(t *testing.T) {
		settings, err := BootstrapSettings(ctx, testDB.DB, 9)
		require.NoError(t, err)
		assert.Equal(t, int64(2_500_000), settings.TicketPrice)
		assert.True(t, settings.IsVestingConfigured())
	})
}

func TestBootstrapSettings_FreshDatabase(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	settings, err := BootstrapSettings(ctx, testDB.DB, 3_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), settings.TicketPrice)
	assert.False(t, settings.IsVestingConfigured())
}

func TestDayRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewDayRepository(testDB.DB)
	ctx := context.Background()

	alice := testutil.Address(1)
	bob := testutil.Address(2)
	carol := testutil.Address(3)

	t.Run("missing day", func(t *testing.T) {
		day, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, day)
	})

	t.Run("create and increment jackpot", func(t *testing.T) {
		day := testutil.CreateTestDay(10, 500)
		day.CarriedIn = 500
		require.NoError(t, repo.Create(ctx, day))
		assert.False(t, day.OpenedAt.IsZero())

		jackpot, err := repo.IncrementJackpot(ctx, 10, 700_000)
		require.NoError(t, err)
		assert.Equal(t, int64(700_500), jackpot)

		stored, err := repo.Get(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(700_500), stored.Jackpot)
		assert.Equal(t, int64(500), stored.CarriedIn)
		assert.False(t, stored.Drawn)
		assert.Nil(t, stored.Winner)
	})

	t.Run("jackpot cannot go negative", func(t *testing.T) {
		_, err := repo.IncrementJackpot(ctx, 10, -1_000_000)
		assert.Error(t, err)
	})

	t.Run("buyers are unique and ordered by first purchase", func(t *testing.T) {
		isNew, err := repo.AddBuyer(ctx, 10, alice, 1)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = repo.AddBuyer(ctx, 10, bob, 2)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = repo.AddBuyer(ctx, 10, alice, 3)
		require.NoError(t, err)
		assert.False(t, isNew)

		isNew, err = repo.AddBuyer(ctx, 10, carol, 1)
		require.NoError(t, err)
		assert.True(t, isNew)

		buyers, err := repo.GetBuyers(ctx, 10)
		require.NoError(t, err)
		require.Len(t, buyers, 3)
		assert.Equal(t, alice, buyers[0].Buyer)
		assert.Equal(t, int64(4), buyers[0].Tickets)
		assert.Equal(t, bob, buyers[1].Buyer)
		assert.Equal(t, carol, buyers[2].Buyer)
		for i, b := range buyers {
			assert.Equal(t, int64(i), b.Position)
		}

		count, err := repo.CountBuyers(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("settlement fields round trip", func(t *testing.T) {
		day, err := repo.GetForUpdate(ctx, 10)
		require.NoError(t, err)

		rv := common.BigToHash(common.Big3)
		day.MarkDrawn(bob, 1, rv, time.Now().UTC())
		require.NoError(t, repo.Update(ctx, day))
		require.NoError(t, repo.ClearBuyers(ctx, 10))

		stored, err := repo.Get(ctx, 10)
		require.NoError(t, err)
		assert.True(t, stored.Drawn)
		assert.Equal(t, int64(0), stored.Jackpot)
		assert.Equal(t, int64(700_500), stored.PrizeAmount)
		require.NotNil(t, stored.Winner)
		assert.Equal(t, bob, *stored.Winner)
		require.NotNil(t, stored.RandomValue)
		assert.Equal(t, rv, *stored.RandomValue)
		require.NotNil(t, stored.WinnerIndex)
		assert.Equal(t, int64(1), *stored.WinnerIndex)
		assert.NotNil(t, stored.DrawnAt)

		count, err := repo.CountBuyers(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestPendingDrawRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	days := NewDayRepository(testDB.DB)
	repo := NewPendingDrawRepository(testDB.DB)
	ctx := context.Background()

	require.NoError(t, days.Create(ctx, testutil.CreateTestDay(5, 0)))

	t.Run("unknown request", func(t *testing.T) {
		draw, err := repo.GetByRequestID(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, draw)
	})

	t.Run("create and fetch", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testutil.CreateTestPendingDraw(1, 5)))

		draw, err := repo.GetByRequestID(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, draw)
		assert.Equal(t, int64(5), draw.DayIndex)
		assert.True(t, draw.IsPending())
		assert.Equal(t, common.BigToHash(common.Big1), draw.CallerEntropy)

		active, err := repo.GetActiveForDay(ctx, 5)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, uint64(1), active.RequestID)
	})

	t.Run("only one pending request per day", func(t *testing.T) {
		err := repo.Create(ctx, testutil.CreateTestPendingDraw(2, 5))
		assert.Error(t, err)
	})

	t.Run("large request ids survive the round trip", func(t *testing.T) {
		require.NoError(t, days.Create(ctx, testutil.CreateTestDay(6, 0)))
		big := uint64(1<<63 + 7)
		require.NoError(t, repo.Create(ctx, testutil.CreateTestPendingDraw(big, 6)))

		draw, err := repo.GetByRequestIDForUpdate(ctx, big)
		require.NoError(t, err)
		require.NotNil(t, draw)
		assert.Equal(t, big, draw.RequestID)
	})

	t.Run("resolve once", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, repo.UpdateStatus(ctx, 1, models.PendingDrawStatusFulfilled, now))
		assert.Error(t, repo.UpdateStatus(ctx, 1, models.PendingDrawStatusFulfilled, now))

		draw, err := repo.GetByRequestID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.PendingDrawStatusFulfilled, draw.Status)
		assert.NotNil(t, draw.ResolvedAt)

		active, err := repo.GetActiveForDay(ctx, 5)
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("expire for day", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, testutil.CreateTestPendingDraw(3, 5)))

		expired, err := repo.ExpireForDay(ctx, 5, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, int64(1), expired)

		draw, err := repo.GetByRequestID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, models.PendingDrawStatusExpired, draw.Status)

		expired, err = repo.ExpireForDay(ctx, 5, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, int64(0), expired)
	})
}

func TestTicketPurchaseRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	days := NewDayRepository(testDB.DB)
	repo := NewTicketPurchaseRepository(testDB.DB)
	ctx := context.Background()

	alice := testutil.Address(1)
	bob := testutil.Address(2)

	require.NoError(t, days.Create(ctx, testutil.CreateTestDay(1, 0)))
	require.NoError(t, days.Create(ctx, testutil.CreateTestDay(2, 0)))

	plain := testutil.CreateTestPurchase(1, alice, 2, 1_000_000)
	require.NoError(t, repo.Create(ctx, plain))
	assert.NotZero(t, plain.ID)

	referred := testutil.CreateTestPurchase(1, bob, 1, 1_000_000)
	split := models.SplitPurchase(referred.TotalCost, true)
	referred.Referrer = &alice
	referred.ReferralShare = split.ReferralShare
	referred.JackpotDelta = split.JackpotDelta
	require.NoError(t, repo.Create(ctx, referred))

	require.NoError(t, repo.Create(ctx, testutil.CreateTestPurchase(2, alice, 1, 1_000_000)))

	t.Run("by day", func(t *testing.T) {
		purchases, err := repo.GetByDay(ctx, 1)
		require.NoError(t, err)
		require.Len(t, purchases, 2)
		assert.Nil(t, purchases[0].Referrer)
		require.NotNil(t, purchases[1].Referrer)
		assert.Equal(t, alice, *purchases[1].Referrer)
		assert.Equal(t, int64(300_000), purchases[1].ReferralShare)
		assert.Equal(t, int64(700_000), purchases[1].JackpotDelta)
	})

	t.Run("by buyer newest first", func(t *testing.T) {
		purchases, err := repo.GetByBuyer(ctx, alice, 10)
		require.NoError(t, err)
		require.Len(t, purchases, 2)
		assert.Equal(t, int64(2), purchases[0].DayIndex)
	})

	t.Run("split must balance", func(t *testing.T) {
		bad := testutil.CreateTestPurchase(1, bob, 1, 1_000_000)
		bad.JackpotDelta = 1
		assert.Error(t, repo.Create(ctx, bad))
	})
}
