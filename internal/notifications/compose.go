package notifications

import (
	"fmt"
	"strings"

	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
)

// ComposeOrderCreated builds the admin alert for a new storefront order.
func ComposeOrderCreated(adminTo string, order *models.Order, accountExists bool) Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "New order %s from %s <%s>\n\n", order.ID, order.CustomerName, order.CustomerEmail)
	for _, item := range order.Items {
		fmt.Fprintf(&sb, "- %s x%d @ %s", item.Name, item.Qty, formatCents(item.UnitAmountCents))
		if item.IsRented {
			sb.WriteString(" (rental)")
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nSubtotal: %s\nTax: %s\nShipping: %s\nDiscount: %s\nTotal: %s\n",
		formatCents(order.SubtotalCents),
		formatCents(order.TaxCents),
		formatCents(order.ShippingCents),
		formatCents(order.DiscountCents),
		formatCents(order.TotalCents),
	)
	if accountExists {
		sb.WriteString("\nCustomer has an existing account.\n")
	}

	return Message{
		To:      adminTo,
		Subject: fmt.Sprintf("New order from %s", order.CustomerName),
		Text:    sb.String(),
	}
}

// ComposeOrderConfirmation builds the customer-facing checkout receipt.
func ComposeOrderConfirmation(order *models.Order) Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s,\n\nWe received your order and will be in touch shortly.\n\n", order.CustomerName)
	for _, item := range order.Items {
		fmt.Fprintf(&sb, "- %s x%d @ %s\n", item.Name, item.Qty, formatCents(item.UnitAmountCents))
	}
	fmt.Fprintf(&sb, "\nTotal: %s\n", formatCents(order.TotalCents))

	return Message{
		To:      order.CustomerEmail,
		Subject: "Your order confirmation",
		Text:    sb.String(),
	}
}

// ComposeOrderStatusUpdate builds the customer notice for a status change.
func ComposeOrderStatusUpdate(order *models.Order) Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s,\n\nYour order is now %s.\n", order.CustomerName, statusLabel(order.Status))
	if order.Status.IsFulfilled() {
		sb.WriteString("\nThank you for your business.\n")
	}

	return Message{
		To:      order.CustomerEmail,
		Subject: fmt.Sprintf("Order update: %s", statusLabel(order.Status)),
		Text:    sb.String(),
	}
}

// ComposePaymentReceipt builds the customer receipt for a rental payment.
func ComposePaymentReceipt(rental *models.Rental, payment *models.RentalPayment) Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s,\n\nWe recorded a payment of %s on your rental.\n", rental.CustomerName, formatCents(payment.AmountCents))
	fmt.Fprintf(&sb, "Next bill date: %s\n", rental.DueDate.Format("2006-01-02"))

	return Message{
		To:      rental.CustomerEmail,
		Subject: "Rental payment received",
		Text:    sb.String(),
	}
}

func statusLabel(status enums.OrderStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}

func formatCents(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
