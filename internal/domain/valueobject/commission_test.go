package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

func TestComputeSplit_TypicalOrder(t *testing.T) {
	b, err := ComputeSplit(10000, 0.15, DefaultProcessorFees)

	assert.NoError(t, err)
	assert.Equal(t, int64(320), b.ProcessorFee)
	assert.Equal(t, int64(9680), b.AfterProcessorFee)
	assert.Equal(t, int64(1452), b.PlatformFee)
	assert.Equal(t, int64(8228), b.SellerAmount)
	assert.Equal(t, b.TotalAmount, b.ProcessorFee+b.PlatformFee+b.SellerAmount)
	assert.NoError(t, b.Validate())
}

func TestComputeSplit_NegativeAmount(t *testing.T) {
	_, err := ComputeSplit(-1, 0.15, DefaultProcessorFees)

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestComputeSplit_RateOutOfRange(t *testing.T) {
	_, err := ComputeSplit(10000, 1.5, DefaultProcessorFees)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	_, err = ComputeSplit(10000, -0.1, DefaultProcessorFees)
	assert.Error(t, err)
}

func TestComputeSplit_SumIdentityHolds(t *testing.T) {
	// Тождество должно держаться точно для любых сумм и ставок: sellerAmount
	// считается как остаток и не вносит собственной ошибки округления.
	rates := []float64{0, 0.05, 0.1, 0.15, 0.2929, 0.5, 0.99, 1}
	for amount := int64(0); amount <= 250000; amount += 1237 {
		for _, rate := range rates {
			b, err := ComputeSplit(amount, rate, DefaultProcessorFees)
			assert.NoError(t, err)
			assert.Equal(t, amount, b.ProcessorFee+b.PlatformFee+b.SellerAmount,
				"amount=%d rate=%v", amount, rate)
		}
	}
}

func TestComputeSplit_NonNegativeComponents(t *testing.T) {
	// Для сумм, покрывающих фиксированную надбавку, все три компонента неотрицательны.
	for amount := int64(1000); amount <= 100000; amount += 997 {
		b, err := ComputeSplit(amount, 0.15, DefaultProcessorFees)
		assert.NoError(t, err)
		assert.NoError(t, b.Validate(), "amount=%d", amount)
		assert.GreaterOrEqual(t, b.ProcessorFee, int64(0))
		assert.GreaterOrEqual(t, b.PlatformFee, int64(0))
		assert.GreaterOrEqual(t, b.SellerAmount, int64(0))
	}
}

func TestComputeSplit_ZeroRate(t *testing.T) {
	b, err := ComputeSplit(10000, 0, DefaultProcessorFees)

	assert.NoError(t, err)
	assert.Equal(t, int64(0), b.PlatformFee)
	assert.Equal(t, b.AfterProcessorFee, b.SellerAmount)
}

func TestComputeSplit_CustomFees(t *testing.T) {
	// Параметры провайдера настраиваются извне.
	fees := ProcessorFees{Percent: 0.05, Fixed: 0}
	b, err := ComputeSplit(10000, 0.1, fees)

	assert.NoError(t, err)
	assert.Equal(t, int64(500), b.ProcessorFee)
	assert.Equal(t, int64(9500), b.AfterProcessorFee)
	assert.Equal(t, int64(950), b.PlatformFee)
	assert.Equal(t, int64(8550), b.SellerAmount)
}

func TestBreakdown_ValidateFlagsNegative(t *testing.T) {
	b := CommissionBreakdown{
		TotalAmount:  10,
		ProcessorFee: 40,
		PlatformFee:  0,
		SellerAmount: -30,
	}
	assert.Error(t, b.Validate())
}

func TestBreakdown_ValidateFlagsMismatch(t *testing.T) {
	b := CommissionBreakdown{
		TotalAmount:  10000,
		ProcessorFee: 320,
		PlatformFee:  1452,
		SellerAmount: 8229,
	}
	assert.Error(t, b.Validate())
}
