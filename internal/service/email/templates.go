// internal/service/email/templates.go
package email

import "fmt"

// PaymentReceiptBody is sent to the payer when a transaction settles.
func PaymentReceiptBody(name, reference, product string, amount float64) string {
	return fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Your payment has been processed successfully.</p>
		<p><strong>Reference:</strong> %s<br/>
		<strong>Item:</strong> %s<br/>
		<strong>Amount:</strong> $%.2f</p>
		<p>Thank you for your support!</p>
	`, name, reference, product, amount)
}

// PerformerSaleBody notifies a performer of a new subscription sale.
func PerformerSaleBody(performerName, tier string, net float64) string {
	return fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>You have a new %s subscriber.</p>
		<p><strong>Your earnings:</strong> $%.2f</p>
	`, performerName, tier, net)
}

// AdminSaleBody notifies the platform operator of a settled sale.
func AdminSaleBody(reference, txnType string, amount float64, couponCode string) string {
	body := fmt.Sprintf(`
		<p>A transaction has settled.</p>
		<p><strong>Reference:</strong> %s<br/>
		<strong>Type:</strong> %s<br/>
		<strong>Amount:</strong> $%.2f</p>
	`, reference, txnType, amount)
	if couponCode != "" {
		body += fmt.Sprintf(`<p><strong>Coupon used:</strong> %s</p>`, couponCode)
	}
	return body
}

// SubscriptionCancelledBody is sent to the subscriber on cancellation.
func SubscriptionCancelledBody(name, performerName string) string {
	return fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Your subscription to %s has been cancelled. You will not be billed again.</p>
	`, name, performerName)
}
