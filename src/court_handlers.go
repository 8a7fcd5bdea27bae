package main

import (
	"courtbook/src/common"
	"courtbook/src/types"
	"courtbook/src/utils"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func bindTimes(start, end string) (types.TimeOfDay, types.TimeOfDay, error) {
	s, err := types.ParseTimeOfDay(start)
	if err != nil {
		return 0, 0, common.ValidationError{Field: "start_time", Msg: err.Error()}
	}
	e, err := types.ParseTimeOfDay(end)
	if err != nil {
		return 0, 0, common.ValidationError{Field: "end_time", Msg: err.Error()}
	}
	return s, e, nil
}

func bindDate(field, value string) (time.Time, error) {
	d, err := utils.ParseDate(value)
	if err != nil {
		return time.Time{}, common.ValidationError{Field: field, Msg: "expected YYYY-MM-DD"}
	}
	return d, nil
}

func courtHandlers(g *gin.RouterGroup, engine *common.Engine) *gin.RouterGroup {
	g.
		POST("/courts", func(ctx *gin.Context) {
			var body types.CreateCourtRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			court, err := engine.CreateCourt(ctx, body.Name, types.CourtStatus(body.Status))
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": court})
		}).
		GET("/courts", func(ctx *gin.Context) {
			courts, err := engine.ListCourts(ctx)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": courts, "count": len(courts)})
		}).
		GET("/courts/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			court, err := engine.GetCourt(ctx, params.ID)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": court})
		}).
		PUT("/courts/:id/status", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateCourtStatusRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			court, err := engine.ChangeCourtStatus(ctx, params.ID, common.Action(body.Action))
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": court})
		}).
		POST("/courts/:id/pricing-rules", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.CreatePricingRuleRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			start, end, err := bindTimes(body.StartTime, body.EndTime)
			if err != nil {
				writeError(ctx, err)
				return
			}
			rule, err := engine.AddPricingRule(ctx, common.PricingRuleInput{
				CourtID:      params.ID,
				StartTime:    start,
				EndTime:      end,
				PricePerHour: body.PricePerHour,
				Priority:     body.Priority,
				DaysOfWeek:   body.DaysOfWeek,
			})
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": rule})
		}).
		GET("/courts/:id/pricing-rules", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			rules, err := engine.ListPricingRules(ctx, params.ID)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": rules, "count": len(rules)})
		}).
		GET("/courts/:id/price", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var query types.QuotePriceQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			date, err := bindDate("date", query.Date)
			if err != nil {
				writeError(ctx, err)
				return
			}
			start, end, err := bindTimes(query.StartTime, query.EndTime)
			if err != nil {
				writeError(ctx, err)
				return
			}
			quote, err := engine.QuotePrice(ctx, params.ID, date, start, end)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": quote})
		}).
		GET("/courts/:id/availability", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var query types.QuotePriceQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			date, err := bindDate("date", query.Date)
			if err != nil {
				writeError(ctx, err)
				return
			}
			start, end, err := bindTimes(query.StartTime, query.EndTime)
			if err != nil {
				writeError(ctx, err)
				return
			}
			conflict, err := engine.FindConflict(ctx, common.SlotRequest{
				CourtID:   params.ID,
				StartDate: date,
				EndDate:   date,
				StartTime: start,
				EndTime:   end,
			})
			if err != nil {
				writeError(ctx, err)
				return
			}
			res := gin.H{"available": conflict == nil}
			if conflict != nil {
				res["conflicting_booking_id"] = conflict.ID
			}
			ctx.JSON(http.StatusOK, gin.H{"data": res})
		})

	return g
}

func settingHandlers(g *gin.RouterGroup, engine *common.Engine) *gin.RouterGroup {
	g.
		GET("/settings/:group/:key", func(ctx *gin.Context) {
			setting, err := engine.Store.GetSetting(ctx, ctx.Param("group"), ctx.Param("key"))
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": setting})
		}).
		POST("/settings", func(ctx *gin.Context) {
			var body types.CreateSettingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			setting, err := engine.Settings.Save(ctx, body.Group, body.Key, body.Value)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": setting})
		})

	return g
}
