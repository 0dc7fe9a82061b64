package models

// OrderStatus константы статусов заказов
const (
	OrderStatusPending           = "pending"
	OrderStatusDelivered         = "delivered"
	OrderStatusCompleted         = "completed"
	OrderStatusCancelled         = "cancelled"
	OrderStatusInDispute         = "in_dispute"
	OrderStatusRevisionRequested = "revision_requested"
)

// Способы вывода средств.
const (
	PaymentMethodWave         = "wave"
	PaymentMethodOrangeMoney  = "orange_money"
	PaymentMethodMTNMoney     = "mtn_money"
	PaymentMethodMoovMoney    = "moov_money"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodPayPal       = "paypal"
)

// Платёжные провайдеры.
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// Роли пользователей, приходящие в access токене.
const (
	RoleClient    = "client"
	RoleFreelance = "freelance"
	RoleAdmin     = "admin"
)

// CurrencyXOF валюта платформы по умолчанию.
const CurrencyXOF = "XOF"

// ValidOrderStatuses список валидных статусов заказов
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusPending:           {},
	OrderStatusDelivered:         {},
	OrderStatusCompleted:         {},
	OrderStatusCancelled:         {},
	OrderStatusInDispute:         {},
	OrderStatusRevisionRequested: {},
}

// ValidPaymentMethods список поддерживаемых способов вывода
var ValidPaymentMethods = map[string]struct{}{
	PaymentMethodWave:         {},
	PaymentMethodOrangeMoney:  {},
	PaymentMethodMTNMoney:     {},
	PaymentMethodMoovMoney:    {},
	PaymentMethodBankTransfer: {},
	PaymentMethodPayPal:       {},
}
