package main

import (
	"context"
	"courtbook/src/boot"
	"courtbook/src/common"
	"courtbook/src/lib"
	"courtbook/src/middlewares"
	"courtbook/src/types"
	"courtbook/src/utils"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	apiPrefix string = "/api/v1"
)

var hhmmValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	_, err := types.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

var isoDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	_, err := utils.ParseDate(fl.Field().String())
	return err == nil
}

var dayCodeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	return utils.IsValidDayCode(int(fl.Field().Int()))
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("hhmm", hhmmValidatorFunc)
		v.RegisterValidation("isodate", isoDateValidatorFunc)
		v.RegisterValidation("daycode", dayCodeValidatorFunc)
	}
}

// writeError maps engine errors onto HTTP statuses.
func writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case common.IsValidation(err):
		status = http.StatusBadRequest
	case common.IsNotFound(err):
		status = http.StatusNotFound
	case common.IsConflict(err), common.IsTransition(err):
		status = http.StatusConflict
	case common.IsConfiguration(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, lib.ErrLockTimeout):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s: %s\n", ctx.Request.Method, ctx.FullPath(), err.Error())
		ctx.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(middlewares.MaintenanceMode)
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func registerRoutes(router *gin.Engine, engine *common.Engine) {
	apiv1 := apiv1Group(router)
	courtHandlers(apiv1, engine)
	bookingHandlers(apiv1, engine)
	occurrenceHandlers(apiv1, engine)
	settingHandlers(apiv1, engine)
	stripeWebhookRoute(router, engine)
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	gin.DefaultWriter = io.MultiWriter(&lumberjack.Logger{
		Filename:   apiLogs,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     30,
	}, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func corsMiddleware(apiEnv string) gin.HandlerFunc {
	if apiEnv == "local" {
		return cors.Default()
	}
	appHost := os.Getenv("APP_HOST")
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	cc.AllowOriginFunc = func(origin string) bool {
		if appHost == "" {
			return false
		}
		match, _ := regexp.MatchString(appHost, origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := boot.NewStore()
	engine := boot.InitEngine(ctx, store)
	boot.InitScheduler()

	router := setupRouter()
	router.Use(corsMiddleware(apiEnv))
	registerValidators()
	router = maintenanceModeMiddleware(router)
	registerRoutes(router, engine)

	port := os.Getenv("PORT")
	if _, err := strconv.Atoi(port); err != nil {
		port = "9090"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	go func() {
		log.Printf("Listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %s", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %s\n", err.Error())
	}
	boot.StopScheduler()
	if b, ok := engine.Notifier.(*common.Broadcaster); ok {
		b.Close()
	}
}
