package worker

import (
	"fmt"

	"rentalhub/internal/models"
)

// render builds the subject and plain-text body for a notification.
func render(n *models.Notification) (string, string) {
	d := n.Data
	subject := fmt.Sprintf("Rental #%s", d["rental_id"])
	if title := d["equipment"]; title != "" {
		subject = fmt.Sprintf("%s: %s", subject, title)
	}

	var body string
	switch n.Kind {
	case models.NotifyRentalRequested:
		subject = "New rental request. " + subject
		body = fmt.Sprintf("You have a new request from %s to %s, total %s.", d["start_date"], d["end_date"], d["total_price"])
	case models.NotifyRentalAccepted:
		subject = "Request accepted. " + subject
		body = fmt.Sprintf("The owner accepted your request for %s to %s. Pay %s to start the rental.", d["start_date"], d["end_date"], d["total_price"])
	case models.NotifyRentalRejected:
		subject = "Request rejected. " + subject
		body = "The owner rejected your request."
	case models.NotifyRentalCancelled:
		subject = "Rental cancelled. " + subject
		body = "The other party cancelled the rental."
	case models.NotifyRentalInProgress:
		subject = "Rental started. " + subject
		body = fmt.Sprintf("Payment is confirmed. The rental runs from %s to %s.", d["start_date"], d["end_date"])
	case models.NotifyRentalCompleted, models.NotifyRentalReturned:
		subject = "Rental completed. " + subject
		body = "The rental is completed. You can now leave a review."
	case models.NotifyPaymentUpdated:
		subject = "Payment update. " + subject
		body = fmt.Sprintf("Payment %s of %s is now %s.", d["transaction_id"], d["amount"], d["status"])
	case models.NotifyMessageReceived:
		subject = "New message. " + subject
		body = "You have a new message about this rental."
	default:
		body = string(n.Kind)
	}
	if note := d["note"]; note != "" {
		body += "\n\nNote: " + note
	}
	return subject, body
}
