package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"thinkr-backend/internal/ai"
	"thinkr-backend/internal/app"
	"thinkr-backend/internal/cache"
	"thinkr-backend/internal/config"
	"thinkr-backend/internal/model"
	"thinkr-backend/internal/pkg/pdfextract"
	"thinkr-backend/internal/platform/chroma"
	"thinkr-backend/internal/platform/logger"
	mongoClient "thinkr-backend/internal/platform/mongo"
	mysqlClient "thinkr-backend/internal/platform/mysql"
	"thinkr-backend/internal/platform/objectstore"
	rabbitmqClient "thinkr-backend/internal/platform/rabbitmq"
	redisClient "thinkr-backend/internal/platform/redis"
	"thinkr-backend/internal/platform/textract"
	"thinkr-backend/internal/repository"
	"thinkr-backend/internal/worker"
)

type Services struct {
	Auth      *app.AuthService
	Documents *app.DocumentService
	Study     *app.StudyService
	Chat      *app.ChatService
	RAG       *app.RAGService
}

type App struct {
	Config      *config.Config
	Log         *logger.Logger
	MySQL       *gorm.DB
	MongoClient *mongo.Client
	Mongo       *mongo.Database
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Chroma      *chroma.Client
	StudyWorker *worker.StudyGenerationWorker
	Services    Services

	closers   []func() error
	StartedAt time.Time
}

// blobBackend is what the services and the local extractor need from a store.
type blobBackend interface {
	app.BlobStore
	pdfextract.ObjectReader
}

// New connects every backing service and wires the application. On failure
// whatever was already opened is closed again.
func New(ctx context.Context) (_ *App, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.MySQL, err = mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.DefaultPoolOptions())
	if err != nil {
		return nil, err
	}
	if err := a.MySQL.AutoMigrate(&model.User{}, &model.Document{}, &model.FlashcardSet{}, &model.QuizSet{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.MongoClient, a.Mongo, err = mongoClient.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	chatRepo := repository.NewChatSessionRepository(a.Mongo)
	if err := chatRepo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	a.Redis, err = redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	blobs, extractor, err := a.newStorage(ctx)
	if err != nil {
		return nil, err
	}

	a.Chroma = chroma.New(chroma.Config{
		URL:     cfg.Chroma.URL,
		APIPath: cfg.Chroma.APIPath,
		Timeout: time.Duration(cfg.Chroma.TimeoutSeconds) * time.Second,
	})

	llm := ai.NewOpenAICompatibleClient()
	chatCfg := ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model}
	embCfg := ai.EmbeddingConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.EmbeddingModel}

	userRepo := repository.NewUserRepository(a.MySQL)
	docRepo := repository.NewDocumentRepository(a.MySQL)
	setRepo := repository.NewStudySetRepository(a.MySQL)
	sessionCache := cache.NewSessionCache(a.Redis, time.Duration(cfg.Redis.SessionTTLSeconds)*time.Second)
	jobs := rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.StudyJobQueue)

	rag := app.NewRAGService(a.Chroma, llm, embCfg, chatCfg, app.RAGOptions{
		CollectionPrefix: cfg.Chroma.CollectionPrefix,
		ChunkSize:        cfg.RAG.ChunkSize,
		TopK:             cfg.RAG.TopK,
		MaxContextTokens: cfg.LLM.MaxContextTokens,
	})
	a.Services = Services{
		Auth: app.NewAuthService(userRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute),
		Documents: app.NewDocumentService(userRepo, docRepo, setRepo, blobs, extractor, rag, jobs, app.DocumentOptions{
			MaxUploadSize: cfg.Storage.MaxUploadSizeBytes(),
			PresignTTL:    time.Duration(cfg.Storage.PresignTTLSeconds) * time.Second,
		}),
		Study: app.NewStudyService(docRepo, setRepo, rag, llm, chatCfg.WithTemperature(cfg.LLM.Temperature)),
		Chat:  app.NewChatService(chatRepo, docRepo, sessionCache, rag, llm, chatCfg, cfg.LLM.Temperature),
		RAG:   rag,
	}

	a.StudyWorker = worker.NewStudyGenerationWorker(a.MQConn, a.Services.Study, cfg.RabbitMQ.StudyJobQueue, cfg.RabbitMQ.StudyWorkers, log)
	if err := a.StudyWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start study worker failed: %w", err)
	}

	log.Info("application wired",
		"storage", cfg.Storage.Provider,
		"extract", cfg.Extract.Provider,
		"chroma", cfg.Chroma.URL,
	)
	return a, nil
}

func (a *App) newStorage(ctx context.Context) (blobBackend, app.TextExtractor, error) {
	cfg := a.Config
	var blobs blobBackend
	switch cfg.Storage.Provider {
	case "gcs":
		store, err := objectstore.NewGCS(ctx, cfg.Storage.Bucket)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		blobs = store
	default:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config failed: %w", err)
		}
		blobs = objectstore.NewS3(awsCfg, cfg.Storage.Bucket)
		if cfg.Extract.Provider == "textract" {
			return blobs, textract.New(awsCfg, cfg.Storage.Bucket), nil
		}
	}
	return blobs, pdfextract.NewBlobExtractor(blobs), nil
}

func (a *App) Close() error {
	var errs []error
	if a.StudyWorker != nil {
		a.StudyWorker.Close()
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		errs = append(errs, a.MQConn.Close())
	}
	if a.MongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.MongoClient.Disconnect(ctx))
		cancel()
	}
	if a.MySQL != nil {
		if sqlDB, err := a.MySQL.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
