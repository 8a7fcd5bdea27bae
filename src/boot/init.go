package boot

import (
	"context"
	"courtbook/src/common"
	"courtbook/src/config"
	"courtbook/src/db"
	"courtbook/src/lib"
	"courtbook/src/models"
	"log"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Court{},
		&models.PricingRule{},
		&models.Booking{},
		&models.Occurrence{},
		&models.OccurrenceItem{},
		&models.ServiceUsage{},
		&models.Payment{},
		&models.Setting{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	log.Println("Jobs in queue:", len(sched.Jobs()))
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while shutting stopping Scheduler. Check logs for info")
		return
	}
}

// NewStore picks the persistence backend from STORE_DRIVER.
func NewStore() common.Store {
	if config.String("STORE_DRIVER", "gorm") == "memory" {
		log.Println("[Boot] Using in-memory store")
		return common.NewMemoryStore().WithNow(lib.GetClock().Now)
	}
	return common.NewGormStore(InitDb())
}

// InitEngine builds the engine with its collaborators and starts the
// background hold reconciler. The reconciler stops when ctx is cancelled.
func InitEngine(ctx context.Context, store common.Store) *common.Engine {
	clock := lib.GetClock()
	engine := common.NewEngine(store, clock)
	engine.Locker = lib.GetLocker()
	engine.Notifier = common.NewBroadcasterFromEnv(ctx, store)

	if sc := lib.GetStripeClient(); sc != nil {
		engine.Payments = common.NewPaymentIssuer(clock, lib.NewStripeCheckout(sc))
	} else {
		log.Println("[Boot] Stripe is not configured. Card payments stay pending until confirmed manually")
	}

	holds := common.NewHoldReconciler(store, clock, engine.Settings, engine.Notifier)
	engine.Holds = holds
	go holds.Run(ctx)

	if _, err := engine.ScheduleNoShowSweep(); err != nil {
		log.Printf("[Boot] Error scheduling no-show sweep: %s\n", err.Error())
	}

	return engine
}
