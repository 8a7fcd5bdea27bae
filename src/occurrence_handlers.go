package main

import (
	"courtbook/src/common"
	"courtbook/src/models"
	"courtbook/src/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

// occurrenceAction adapts a single-id engine operation into a handler.
func occurrenceAction(fn func(ctx *gin.Context, id uint) (*models.Occurrence, error)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var params types.SimpleRequestParams
		if err := ctx.ShouldBindUri(&params); err != nil {
			ctx.Status(http.StatusBadRequest)
			return
		}
		occ, err := fn(ctx, params.ID)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": occ})
	}
}

func occurrenceHandlers(g *gin.RouterGroup, engine *common.Engine) *gin.RouterGroup {
	g.
		GET("/occurrences/:id", occurrenceAction(func(ctx *gin.Context, id uint) (*models.Occurrence, error) {
			return engine.Store.GetOccurrence(ctx, id)
		})).
		POST("/occurrences/:id/check-in", occurrenceAction(func(ctx *gin.Context, id uint) (*models.Occurrence, error) {
			return engine.CheckIn(ctx, id)
		})).
		POST("/occurrences/:id/no-show", occurrenceAction(func(ctx *gin.Context, id uint) (*models.Occurrence, error) {
			return engine.MarkNoShow(ctx, id)
		})).
		POST("/occurrences/:id/cancel", occurrenceAction(func(ctx *gin.Context, id uint) (*models.Occurrence, error) {
			return engine.CancelOccurrence(ctx, id)
		})).
		POST("/occurrences/:id/items", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.AddItemRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			item, err := engine.AddItem(ctx, params.ID, common.ItemInput{
				ProductID: body.ProductID,
				Name:      body.Name,
				Quantity:  body.Quantity,
				UnitPrice: body.UnitPrice,
			})
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": item})
		}).
		POST("/occurrences/:id/services", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.StartServiceRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			usage, err := engine.StartService(ctx, params.ID, common.ServiceInput{
				ServiceID: body.ServiceID,
				Name:      body.Name,
				Quantity:  body.Quantity,
				UnitPrice: body.UnitPrice,
			})
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": usage})
		}).
		POST("/services/:id/end", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			usage, err := engine.EndService(ctx, params.ID)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": usage})
		}).
		GET("/occurrences/:id/checkout", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			summary, err := engine.QuoteCheckout(ctx, params.ID)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": summary})
		}).
		POST("/occurrences/:id/checkout", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.CheckoutRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil && ctx.Request.ContentLength > 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			res, err := engine.CheckOut(ctx, params.ID, types.PaymentMethod(body.PaymentMethod))
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": res})
		})

	return g
}
