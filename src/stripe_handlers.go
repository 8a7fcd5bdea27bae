package main

import (
	"courtbook/src/common"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tidwall/gjson"
)

func stripeWebhookRoute(g *gin.Engine, engine *common.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "checkout.session.completed", "checkout.session.async_payment_succeeded":
			session := gjson.ParseBytes(event.Data.Raw)
			sessionID := session.Get("id").String()
			if status := session.Get("payment_status").String(); status != "paid" {
				log.Printf("[Stripe] Session %s not paid yet: %s\n", sessionID, status)
				break
			}
			payment, err := engine.ConfirmCheckoutSession(ctx, sessionID)
			if err != nil {
				if common.IsNotFound(err) {
					log.Printf("[Stripe] No payment for session %s\n", sessionID)
					break
				}
				if common.IsConflict(err) || common.IsTransition(err) {
					// The slot is gone or the booking moved on. Refunds are handled by staff.
					log.Printf("[Stripe] Could not confirm session %s: %s\n", sessionID, err.Error())
					break
				}
				log.Printf("[Stripe] Error confirming session %s: %s\n", sessionID, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			log.Printf("[Stripe] Payment %s is %s\n", payment.ID.String(), payment.Status)
		case "checkout.session.expired":
			sessionID := gjson.GetBytes(event.Data.Raw, "id").String()
			log.Printf("[Stripe] Session %s expired. The hold reconciler releases the slot\n", sessionID)
		default:
			log.Printf("[Stripe] Unhandled event type: %s\n", event.Type)
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}
