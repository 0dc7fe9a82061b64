package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// LedgerScale число знаков после запятой у денежных колонок NUMERIC(14,2).
const LedgerScale int32 = 2

var hundred = decimal.NewFromInt(100)

// zeroDecimalCurrencies валюты без дробной части у провайдеров (XOF, XAF и т.д.).
var zeroDecimalCurrencies = map[string]struct{}{
	"XOF": {},
	"XAF": {},
	"JPY": {},
	"KRW": {},
	"GNF": {},
}

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, apperror.New(apperror.ErrCodeInvalidInput, "сумма не может быть отрицательной")
	}
	if currency == "" {
		currency = "XOF"
	}
	currency = strings.ToUpper(currency)
	if !FitsScale(amount, CurrencyScale(currency)) {
		return Money{}, apperror.ErrAmountPrecision
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// MinorUnits переводит сумму в минимальные единицы валюты для провайдера.
func (m Money) MinorUnits() int64 {
	if IsZeroDecimal(m.Currency) {
		return m.Amount.Round(0).IntPart()
	}
	return m.Amount.Mul(hundred).Round(0).IntPart()
}

// ProviderValue строковое представление суммы для API провайдеров ("12.50").
func (m Money) ProviderValue() string {
	if IsZeroDecimal(m.Currency) {
		return m.Amount.StringFixed(0)
	}
	return m.Amount.StringFixed(2)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// IsZeroDecimal сообщает, что у валюты нет дробных единиц.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]
	return ok
}

// CurrencyScale точность суммы в валюте: 0 для валют без дробной части, иначе LedgerScale.
func CurrencyScale(currency string) int32 {
	if IsZeroDecimal(currency) {
		return 0
	}
	return LedgerScale
}

// FitsScale сообщает, что сумма записывается с scale знаками без округления.
func FitsScale(amount decimal.Decimal, scale int32) bool {
	return amount.Equal(amount.Truncate(scale))
}

// Percent вычисляет amount * pct / 100 с округлением до сотых.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}

// WithdrawalQuote рассчитывает комиссию и сумму к выплате.
func WithdrawalQuote(amount, feePercentage decimal.Decimal) (fee, net decimal.Decimal) {
	fee = Percent(amount, feePercentage)
	return fee, amount.Sub(fee)
}

// NetOfCommission возвращает сумму после удержания комиссии платформы.
func NetOfCommission(price, commissionPercentage decimal.Decimal) decimal.Decimal {
	if !commissionPercentage.IsPositive() {
		return price
	}
	return price.Sub(Percent(price, commissionPercentage))
}
