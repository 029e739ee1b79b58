package valueobject

import (
	"math"

	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// ProcessorFees — параметры комиссии платёжного провайдера: процент от суммы
// плюс фиксированная надбавка за транзакцию (в минорных единицах). Значения
// приходят из конфигурации, в коде нет зашитых бизнес-констант.
type ProcessorFees struct {
	Percent float64
	Fixed   int64
}

// DefaultProcessorFees — 2.9% + 30 минорных единиц.
var DefaultProcessorFees = ProcessorFees{Percent: 0.029, Fixed: 30}

// CommissionBreakdown — трёхстороннее разделение суммы продажи.
// Все суммы в минорных единицах валюты.
type CommissionBreakdown struct {
	TotalAmount       int64   `json:"total_amount"`
	ProcessorFee      int64   `json:"processor_fee"`
	AfterProcessorFee int64   `json:"after_processor_fee"`
	PlatformFee       int64   `json:"platform_fee"`
	SellerAmount      int64   `json:"seller_amount"`
	CommissionRate    float64 `json:"commission_rate"`
}

// ComputeSplit считает разделение суммы между провайдером, площадкой и
// продавцом. SellerAmount определяется как остаток, а не округляется
// независимо — поэтому тождество processorFee + platformFee + sellerAmount ==
// totalAmount держится точно, без накопления ошибки округления.
func ComputeSplit(totalAmount int64, commissionRate float64, fees ProcessorFees) (CommissionBreakdown, error) {
	if totalAmount < 0 {
		return CommissionBreakdown{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	if commissionRate < 0 || commissionRate > 1 {
		return CommissionBreakdown{}, apperror.New(apperror.ErrCodeValidation, "комиссия должна быть в диапазоне от 0 до 1")
	}

	processorFee := int64(math.Round(float64(totalAmount)*fees.Percent)) + fees.Fixed
	afterProcessorFee := totalAmount - processorFee
	platformFee := int64(math.Round(float64(afterProcessorFee) * commissionRate))
	sellerAmount := afterProcessorFee - platformFee

	return CommissionBreakdown{
		TotalAmount:       totalAmount,
		ProcessorFee:      processorFee,
		AfterProcessorFee: afterProcessorFee,
		PlatformFee:       platformFee,
		SellerAmount:      sellerAmount,
		CommissionRate:    commissionRate,
	}, nil
}

// Validate перепроверяет тождество разделения и неотрицательность
// компонентов. Допуск нулевой: сумма собирается из остатков.
func (b CommissionBreakdown) Validate() error {
	if b.ProcessorFee+b.PlatformFee+b.SellerAmount != b.TotalAmount {
		return apperror.New(apperror.ErrCodeValidation, "сумма компонентов не совпадает с общей суммой")
	}
	if b.ProcessorFee < 0 || b.PlatformFee < 0 || b.SellerAmount < 0 {
		return apperror.New(apperror.ErrCodeValidation, "компоненты разделения не могут быть отрицательными")
	}
	return nil
}
