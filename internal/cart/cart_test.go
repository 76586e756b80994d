package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TenHe10/CruchCount/internal/cart/mocks"
	"github.com/TenHe10/CruchCount/internal/logger"
	"github.com/TenHe10/CruchCount/internal/models"
)

func newTestCart() (*Cart, *mocks.MockCatalog) {
	mockCatalog := new(mocks.MockCatalog)
	return New(mockCatalog, logger.Logger{}), mockCatalog
}

func declined(string) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

func priced(price string) models.PriceResolver {
	return func(string) (decimal.Decimal, bool) {
		return decimal.RequireFromString(price), true
	}
}

func TestCart_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("same barcode twice yields one line with quantity 2", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		price := decimal.RequireFromString("3.50")
		mockCatalog.On("Get", ctx, "4901").Return(&models.Product{Barcode: "4901", Name: "Cola", Price: price}, nil).Once()

		first, err := basket.Add(ctx, "4901", nil)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, int64(1), first.Quantity)

		second, err := basket.Add(ctx, "4901", nil)
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, int64(2), second.Quantity)
		assert.Equal(t, "Cola", second.Name)

		quantity, amount := basket.Totals()
		assert.Equal(t, int64(2), quantity)
		assert.True(t, amount.Equal(decimal.RequireFromString("7.00")), "total was %s", amount)

		// the second add must not re-query the catalog
		mockCatalog.AssertExpectations(t)
	})

	t.Run("price snapshot stays sticky after catalog changes", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "4901").Return(&models.Product{Barcode: "4901", Name: "Cola", Price: decimal.RequireFromString("3.50")}, nil).Once()

		_, err := basket.Add(ctx, "4901", nil)
		require.NoError(t, err)

		// catalog now says 9.99, but the session snapshot must not move
		line, err := basket.Add(ctx, "4901", nil)
		require.NoError(t, err)
		assert.True(t, line.Price.Equal(decimal.RequireFromString("3.50")))
	})

	t.Run("unknown barcode with supplied price creates temporary line", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "999").Return(nil, nil).Once()

		line, err := basket.Add(ctx, "999", priced("7.50"))
		require.NoError(t, err)
		require.NotNil(t, line)
		assert.Equal(t, "TEMP-999", line.Name)
		assert.Equal(t, int64(1), line.Quantity)
		assert.True(t, line.Price.Equal(decimal.RequireFromString("7.50")))
	})

	t.Run("placeholder name truncates long barcodes", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "6901234567890").Return(nil, nil).Once()

		line, err := basket.Add(ctx, "6901234567890", priced("1.00"))
		require.NoError(t, err)
		assert.Equal(t, "TEMP-7890", line.Name)
	})

	t.Run("unknown barcode declined leaves cart unchanged", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "999").Return(nil, nil).Twice()

		line, err := basket.Add(ctx, "999", declined)
		require.NoError(t, err)
		assert.Nil(t, line)

		line, err = basket.Add(ctx, "999", nil)
		require.NoError(t, err)
		assert.Nil(t, line)

		assert.Empty(t, basket.Lines())
	})

	t.Run("non-positive one-off price is rejected", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "999").Return(nil, nil).Once()

		_, err := basket.Add(ctx, "999", priced("0"))
		assert.ErrorIs(t, err, ErrInvalidPrice)
		assert.Empty(t, basket.Lines())
	})

	t.Run("empty barcode is rejected", func(t *testing.T) {
		basket, _ := newTestCart()

		_, err := basket.Add(ctx, "", nil)
		assert.ErrorIs(t, err, ErrInvalidBarcode)
	})

	t.Run("catalog failure propagates unchanged", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		storeErr := errors.New("disk gone")
		mockCatalog.On("Get", ctx, "4901").Return(nil, storeErr).Once()

		_, err := basket.Add(ctx, "4901", nil)
		assert.ErrorIs(t, err, storeErr)
		assert.Empty(t, basket.Lines())
	})
}

func TestCart_SetQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("sets a positive quantity", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "4901").Return(&models.Product{Barcode: "4901", Name: "Cola", Price: decimal.RequireFromString("3.50")}, nil).Once()
		_, err := basket.Add(ctx, "4901", nil)
		require.NoError(t, err)

		line, err := basket.SetQuantity("4901", 5)
		require.NoError(t, err)
		require.NotNil(t, line)
		assert.Equal(t, int64(5), line.Quantity)
	})

	t.Run("rejects zero and negative, leaving prior quantity", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "4901").Return(&models.Product{Barcode: "4901", Name: "Cola", Price: decimal.RequireFromString("3.50")}, nil).Once()
		_, err := basket.Add(ctx, "4901", nil)
		require.NoError(t, err)

		for _, quantity := range []int64{0, -1} {
			_, err := basket.SetQuantity("4901", quantity)
			assert.ErrorIs(t, err, ErrInvalidQuantity)
		}

		lines := basket.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, int64(1), lines[0].Quantity)
	})

	t.Run("absent barcode is a no-op", func(t *testing.T) {
		basket, _ := newTestCart()

		line, err := basket.SetQuantity("missing", 3)
		require.NoError(t, err)
		assert.Nil(t, line)
	})
}

func TestCart_Decrement(t *testing.T) {
	ctx := context.Background()

	t.Run("lowers quantity by one", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "4901").Return(&models.Product{Barcode: "4901", Name: "Cola", Price: decimal.RequireFromString("3.50")}, nil).Once()
		_, err := basket.Add(ctx, "4901", nil)
		require.NoError(t, err)
		_, err = basket.Add(ctx, "4901", nil)
		require.NoError(t, err)

		line := basket.Decrement("4901")
		require.NotNil(t, line)
		assert.Equal(t, int64(1), line.Quantity)
	})

	t.Run("removes the line at quantity one", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "4901").Return(&models.Product{Barcode: "4901", Name: "Cola", Price: decimal.RequireFromString("3.50")}, nil).Once()
		_, err := basket.Add(ctx, "4901", nil)
		require.NoError(t, err)

		line := basket.Decrement("4901")
		assert.Nil(t, line)
		assert.Empty(t, basket.Lines())
	})

	t.Run("absent barcode is a no-op", func(t *testing.T) {
		basket, _ := newTestCart()
		assert.Nil(t, basket.Decrement("missing"))
	})
}

func TestCart_RemoveAndClear(t *testing.T) {
	ctx := context.Background()

	basket, mockCatalog := newTestCart()
	mockCatalog.On("Get", ctx, "A").Return(&models.Product{Barcode: "A", Name: "Bread", Price: decimal.RequireFromString("2.00")}, nil).Once()
	mockCatalog.On("Get", ctx, "B").Return(&models.Product{Barcode: "B", Name: "Milk", Price: decimal.RequireFromString("4.00")}, nil).Once()

	_, err := basket.Add(ctx, "A", nil)
	require.NoError(t, err)
	_, err = basket.Add(ctx, "B", nil)
	require.NoError(t, err)

	basket.Remove("A")
	lines := basket.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].Barcode)

	basket.Clear()
	assert.Empty(t, basket.Lines())

	quantity, amount := basket.Totals()
	assert.Zero(t, quantity)
	assert.True(t, amount.IsZero())
}

func TestCart_LinesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()

	basket, mockCatalog := newTestCart()
	for _, barcode := range []string{"A", "B", "C"} {
		mockCatalog.On("Get", ctx, barcode).Return(&models.Product{Barcode: barcode, Name: barcode, Price: decimal.RequireFromString("1.00")}, nil)
	}

	for _, barcode := range []string{"A", "B", "C"} {
		_, err := basket.Add(ctx, barcode, nil)
		require.NoError(t, err)
	}

	// removing B must not reshuffle A and C; re-adding B appends it
	basket.Remove("B")
	_, err := basket.Add(ctx, "B", nil)
	require.NoError(t, err)

	var got []string
	for _, line := range basket.Lines() {
		got = append(got, line.Barcode)
	}
	assert.Equal(t, []string{"A", "C", "B"}, got)
}

func TestCart_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("reports totals and empties the cart", func(t *testing.T) {
		basket, mockCatalog := newTestCart()
		mockCatalog.On("Get", ctx, "A").Return(&models.Product{Barcode: "A", Name: "Bread", Price: decimal.RequireFromString("3.00")}, nil).Once()
		mockCatalog.On("Get", ctx, "B").Return(&models.Product{Barcode: "B", Name: "Milk", Price: decimal.RequireFromString("5.00")}, nil).Once()

		_, err := basket.Add(ctx, "A", nil)
		require.NoError(t, err)
		_, err = basket.Add(ctx, "A", nil)
		require.NoError(t, err)
		_, err = basket.Add(ctx, "B", nil)
		require.NoError(t, err)

		receipt, err := basket.Checkout()
		require.NoError(t, err)
		assert.Equal(t, int64(3), receipt.TotalQuantity)
		assert.True(t, receipt.TotalAmount.Equal(decimal.RequireFromString("11.00")), "total was %s", receipt.TotalAmount)
		assert.Len(t, receipt.Lines, 2)
		assert.NotEqual(t, uuid.Nil, receipt.Reference)
		assert.False(t, receipt.CreatedAt.IsZero())

		assert.Empty(t, basket.Lines())
	})

	t.Run("empty cart fails and stays empty", func(t *testing.T) {
		basket, _ := newTestCart()

		_, err := basket.Checkout()
		assert.ErrorIs(t, err, ErrEmptyCart)
		assert.Empty(t, basket.Lines())
	})
}

func TestCart_SwapCatalog(t *testing.T) {
	ctx := context.Background()

	basket, oldCatalog := newTestCart()
	oldCatalog.On("Get", ctx, "A").Return(&models.Product{Barcode: "A", Name: "Bread", Price: decimal.RequireFromString("2.00")}, nil).Once()

	_, err := basket.Add(ctx, "A", nil)
	require.NoError(t, err)

	newCatalog := new(mocks.MockCatalog)
	newCatalog.On("Get", ctx, "B").Return(&models.Product{Barcode: "B", Name: "Milk", Price: decimal.RequireFromString("4.00")}, nil).Once()
	basket.SwapCatalog(newCatalog)

	line, err := basket.Add(ctx, "B", nil)
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, "Milk", line.Name)

	// existing lines survive the swap
	assert.Len(t, basket.Lines(), 2)
	newCatalog.AssertExpectations(t)
}
