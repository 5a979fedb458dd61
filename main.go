package main

import (
	"go.uber.org/zap"

	api "clustermail-backend/cmd/api"
	emaildomain "clustermail-backend/internal/email/domain"
	emailRepo "clustermail-backend/internal/email/repository"
	emailUsecase "clustermail-backend/internal/email/usecase"
	groupdomain "clustermail-backend/internal/group/domain"
	groupRepo "clustermail-backend/internal/group/repository"
	groupUsecase "clustermail-backend/internal/group/usecase"
	"clustermail-backend/pkg/config"
	"clustermail-backend/pkg/database"
	"clustermail-backend/pkg/gemini"
	"clustermail-backend/pkg/gmail"
	"clustermail-backend/pkg/logger"
	"clustermail-backend/pkg/topics"
)

func main() {
	cfg := config.Load()

	log := logger.New()
	defer log.Sync()

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&emaildomain.Email{},
		&groupdomain.Group{},
		&groupdomain.GroupEmail{},
		&groupdomain.ClusterJob{},
	); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Repositories (dependency injection)
	emailRepository := emailRepo.NewEmailRepository(db)
	groupRepository := groupRepo.NewGroupRepository(db)

	// External services
	gmailService := gmail.NewService(cfg.FetchMaxElapsed, log)
	topicsClient := topics.NewClient(cfg.TopicServerURL)

	// Summary workers (optional enrichment)
	var summaryWorker *emailUsecase.SummaryWorker
	if cfg.GeminiAPIKey != "" {
		geminiService := gemini.NewService(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.SummaryMaxTries)
		summaryWorker = emailUsecase.NewSummaryWorker(emailRepository, geminiService, cfg.SummaryWorkers, log)
		summaryWorker.Start()
		defer summaryWorker.Stop()
	} else {
		log.Warn("GEMINI_API_KEY not configured, summaries disabled")
	}

	// Use cases
	syncUsecaseInstance := emailUsecase.NewSyncUsecase(emailRepository, gmailService, summaryWorker, log)
	groupUsecaseInstance := groupUsecase.NewGroupUsecase(groupRepository, emailRepository, gmailService, topicsClient, log)

	handler := api.NewHandler(groupUsecaseInstance, syncUsecaseInstance, gmailService, cfg, log)

	log.Info("server starting", zap.String("port", cfg.Port))
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
