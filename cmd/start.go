package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"provisioner/core/loader"
	"provisioner/core/logger"
	"provisioner/core/middleware/auth"
	"provisioner/core/middleware/rayid"

	"provisioner/feature/integrity"
	"provisioner/feature/provisioning"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "provisioner/docs/swagger"
)

// @title Provisioner API
// @version 1.0
// @description API for provisioning registry groups into directory targets.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the provisioner server",
	Long: `Starts the HTTP server and initializes all enabled features.
When changelog.enabled is set, the change log consumer runs next to the server.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Configuration, logger and connections
		env, err := loadEnvironment()
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		defer env.close()
		logg := env.log
		zap.ReplaceGlobals(logg)

		// 2. Provisioning runtime
		rt, err := env.runtime()
		if err != nil {
			logg.Fatal("Failed to build provisioning runtime", zap.Error(err))
		}
		logg.Info("Provisioning runtime ready",
			zap.Int("targets", len(rt.Engine.Targets())),
			zap.String("definitions", env.cfg.Provisioning.DefinitionsFile),
		)

		app := fiber.New(env.cfg.Server.Fiber())

		// 3. Feature Loader
		mgr := loader.NewManager()
		mgr.Register(provisioning.NewFeature(rt.Service, logg))
		mgr.Register(integrity.NewFeature(rt.Engine.Targets(), env.client, env.cfg.Storage.Bucket, env.db, logg))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 2.5 Swagger Documentation (Public)
		app.Get("/swagger/*", swagger.HandlerDefault)

		// 3. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: env.cfg.Server.ApiKey}))

		// 4. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 5. Change log consumer
		if env.cfg.Changelog.Enabled {
			go func() {
				logg.Info("Starting change log consumer",
					zap.String("checkpoint", env.cfg.Changelog.CheckpointName),
					zap.Duration("poll", env.cfg.Changelog.PollInterval()),
				)
				if err := rt.Service.Consume(ctx, env.cfg.Changelog.PollInterval()); err != nil && !errors.Is(err, context.Canceled) {
					logg.Error("Change log consumer stopped", zap.Error(err))
				}
			}()
		}

		// 6. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", env.cfg.Server.Port))
			if err := app.Listen(":" + env.cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 7. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
