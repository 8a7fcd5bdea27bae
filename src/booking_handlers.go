package main

import (
	"courtbook/src/common"
	"courtbook/src/types"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func bookingHandlers(g *gin.RouterGroup, engine *common.Engine) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			startDate, err := bindDate("start_date", body.StartDate)
			if err != nil {
				writeError(ctx, err)
				return
			}
			var endDate time.Time
			if body.EndDate != "" {
				if endDate, err = bindDate("end_date", body.EndDate); err != nil {
					writeError(ctx, err)
					return
				}
			}
			start, end, err := bindTimes(body.StartTime, body.EndTime)
			if err != nil {
				writeError(ctx, err)
				return
			}
			res, err := engine.CreateBooking(ctx, common.CreateBookingInput{
				CourtID:        body.CourtID,
				CustomerID:     body.CustomerID,
				StartDate:      startDate,
				EndDate:        endDate,
				StartTime:      start,
				EndTime:        end,
				DaysOfWeek:     types.NewDaySet(body.DaysOfWeek...),
				PaymentMethod:  types.PaymentMethod(body.PaymentMethod),
				DepositPercent: body.DepositPercent,
				HoldScope:      types.HoldScope(body.HoldScope),
			})
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": res})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := engine.GetBooking(ctx, params.ID)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		POST("/bookings/:id/confirm", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			booking, err := engine.ConfirmPayment(ctx, params.ID)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		POST("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.CancelRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && ctx.Request.ContentLength > 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			booking, err := engine.CancelBooking(ctx, params.ID, body.Reason)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		})

	return g
}
