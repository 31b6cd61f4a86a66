package main

// @title           StudyGenius Billing API
// @version         1.0
// @description     Stripe billing reconciliation: checkout and portal sessions, webhook processing and premium access checks.

// @host      localhost:8888
// @BasePath  /

// @securityDefinitions.apikey  FirebaseAuth
// @in                          header
// @name                        Authorization
// @description                 Firebase ID token as "Bearer <token>".

// @securityDefinitions.apikey  AdminKey
// @in                          header
// @name                        X-Admin-Key

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/studygenius/billing/internal/app"
)

func main() {
	// Allow graceful stop with SIGINT/SIGTERM handled by fx
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	a := fx.New(app.Module)
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		// Logging might not be ready; fallback to zap example
		zap.NewExample().Sugar().Errorf("failed to start app: %v", err)
		exitCode = 1
		return
	}

	// Block until signal
	<-a.Done()

	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to stop app: %v", err)
		exitCode = 1
		return
	}
}
