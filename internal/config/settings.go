package config

import (
	xerrors "fanpay-service/internal/pkg/errors"
)

// StripeSettings are the card-processor gateway credentials.
type StripeSettings struct {
	SecretKey     string
	WebhookSecret string
}

// CCBillSettings are the recurring-billing gateway credentials.
type CCBillSettings struct {
	ClientAccnum      string
	ClientSubacc      string
	FlexformID        string
	SingleFlexformID  string
	Salt              string
	DatalinkUsername  string
	DatalinkPassword  string
	WebhookAllowedIPs []string
}

// Settings is the injected configuration provider the orchestrator and the
// gateway adapters receive at construction time. No ambient lookups.
type Settings interface {
	ActiveGateway() string
	Stripe() (StripeSettings, error)
	CCBill() (CCBillSettings, error)
	WalletBounds() (min, max float64)
	AdminEmail() string
	CommissionRate() float64
}

// EnvSettings implements Settings from environment variables.
type EnvSettings struct {
	gateway        string
	stripe         StripeSettings
	ccbill         CCBillSettings
	minWalletPrice float64
	maxWalletPrice float64
	adminEmail     string
	commissionRate float64
}

func LoadSettings() *EnvSettings {
	return &EnvSettings{
		gateway: getEnv("ACTIVE_PAYMENT_GATEWAY", "stripe"),
		stripe: StripeSettings{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		ccbill: CCBillSettings{
			ClientAccnum:      getEnv("CCBILL_CLIENT_ACCNUM", ""),
			ClientSubacc:      getEnv("CCBILL_CLIENT_SUBACC", ""),
			FlexformID:        getEnv("CCBILL_FLEXFORM_ID", ""),
			SingleFlexformID:  getEnv("CCBILL_SINGLE_FLEXFORM_ID", ""),
			Salt:              getEnv("CCBILL_SALT", ""),
			DatalinkUsername:  getEnv("CCBILL_DATALINK_USERNAME", ""),
			DatalinkPassword:  getEnv("CCBILL_DATALINK_PASSWORD", ""),
			WebhookAllowedIPs: getEnvSlice("CCBILL_WEBHOOK_ALLOWED_IPS", nil),
		},
		minWalletPrice: getEnvFloat("MIN_WALLET_PRICE", 10),
		maxWalletPrice: getEnvFloat("MAX_WALLET_PRICE", 10000),
		adminEmail:     getEnv("ADMIN_EMAIL", "admin@fanpay.local"),
		commissionRate: getEnvFloat("PERFORMER_COMMISSION_RATE", 0.2),
	}
}

func (s *EnvSettings) ActiveGateway() string { return s.gateway }

func (s *EnvSettings) Stripe() (StripeSettings, error) {
	if s.stripe.SecretKey == "" {
		return StripeSettings{}, xerrors.ErrGatewayNotConfigured
	}
	return s.stripe, nil
}

func (s *EnvSettings) CCBill() (CCBillSettings, error) {
	if s.ccbill.ClientAccnum == "" || s.ccbill.Salt == "" {
		return CCBillSettings{}, xerrors.ErrGatewayNotConfigured
	}
	return s.ccbill, nil
}

func (s *EnvSettings) WalletBounds() (float64, float64) {
	return s.minWalletPrice, s.maxWalletPrice
}

func (s *EnvSettings) AdminEmail() string { return s.adminEmail }

func (s *EnvSettings) CommissionRate() float64 { return s.commissionRate }
