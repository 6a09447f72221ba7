package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v9"

	"estatehub/internal/client"
	"estatehub/internal/configuration"
	"estatehub/internal/database"
	"estatehub/internal/logger"
	"estatehub/internal/otp"
	"estatehub/internal/realtime"
	"estatehub/internal/server"
)

func main() {
	if err := runApp(); err != nil {
		os.Exit(1)
	}
}

func runApp() error {
	appContext, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logOutput := io.Writer(os.Stdout)
	errOutput := io.Writer(os.Stderr)
	appLogger := logger.NewLogger(logger.LevelInfo, logOutput, errOutput)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
		}
	}()

	config, err := configuration.GetConfig("config.toml", ".env")
	if err != nil {
		appLogger.Error("Error getting configuration from config.toml:", err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile("estatehub_backend.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
		errOutput = io.MultiWriter(errOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput, errOutput)
	appLogger.Infof("Log level: %s", config.LogLevel)

	appLogger.Info("Connecting to DB at", config.DatabaseURI)
	dbConn, err := database.ConnectDB(appContext, config.DatabaseURI, config.DatabaseName)
	if err != nil {
		appLogger.Error("Error connecting to DB:", err)
		return err
	}
	defer func() {
		if err := dbConn.Disconnect(context.Background()); err != nil {
			appLogger.Error("Error disconnecting from DB:", err)
		}
	}()

	appLogger.Info("Connecting to Redis at", config.RedisAddress)
	rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddress, Password: config.RedisPassword})
	if err = rdb.Ping(appContext).Err(); err != nil {
		appLogger.Error("Error connecting to Redis:", err)
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			appLogger.Error("Error closing Redis client:", err)
		}
	}()

	if err = os.MkdirAll(config.UploadDir, 0o755); err != nil {
		appLogger.Error("Error creating upload dir:", err)
		return err
	}

	httpClient := client.Client{
		Client:          &http.Client{Timeout: 15 * time.Second},
		Redis:           rdb,
		Logger:          appLogger,
		FCMKey:          config.FCMKey,
		GeocoderBaseURL: config.GeocoderBaseURL,
		GeocoderAPIKey:  config.GeocoderAPIKey,
		GeocoderCountry: config.GeocoderCountry,
		GeocoderTimeout: config.GeocoderTimeout,
		GeocodeCacheTTL: config.GeocodeCacheTTL,
	}

	srv := server.Server{
		DB:            database.Database{Database: dbConn.Database(config.DatabaseName)},
		Pusher:        httpClient,
		Geocoder:      httpClient,
		Realtime:      realtime.NewHub(appLogger),
		OTP:           otp.NewStore(rdb, config.OTPTTL),
		Logger:        appLogger,
		AuthSecretKey: config.AuthSecretKey,
		Settings: server.Settings{
			DefaultPoint:    config.DefaultLocation.Point,
			DefaultLabel:    config.DefaultLocation.Label,
			DefaultRadiusKm: config.DefaultNearbyRadiusKm,
			PushTimeout:     config.PushTimeout,
			UploadDir:       config.UploadDir,
			ServicePricing:  config.ServicePricing,
		},
	}
	if config.FCMCredentialsFile != "" {
		appLogger.Info("Using Firebase HTTP v1 messaging with credentials from", config.FCMCredentialsFile)
		fp, err := client.NewFirebasePusher(appContext, config.FCMCredentialsFile)
		if err != nil {
			appLogger.Error("Error initializing Firebase messaging:", err)
			return err
		}
		srv.Pusher = fp
	}

	appLogger.Info("Starting reminder poller with interval:", config.ReminderPollInterval)
	go srv.PollRemindersInInterval(appContext, time.NewTicker(config.ReminderPollInterval))

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-appContext.Done()
		appLogger.Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			appLogger.Error("Error shutting down server:", err)
		}
	}()

	appLogger.Info("Serving on", httpSrv.Addr)
	if err = httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLogger.Error("Error serving:", err)
		return err
	}
	return nil
}
