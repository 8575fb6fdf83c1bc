package http

import (
	"context"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	"thinkr-backend/internal/bootstrap"
	"thinkr-backend/internal/transport/http/handler"
	"thinkr-backend/internal/transport/http/middleware"
)

const maxMultipartMemory = 32 << 20

// Handlers groups everything the router mounts.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Documents *handler.DocumentHandler
	Study     *handler.StudyHandler
	Chat      *handler.ChatHandler
	RAG       *handler.RAGHandler
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(app.Log),
		middleware.CORS(app.Config.App.CORSOrigins),
	)

	checks := map[string]handler.Checker{
		"mysql": func(ctx context.Context) error {
			sqlDB, err := app.MySQL.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"mongo": func(ctx context.Context) error {
			return app.MongoClient.Ping(ctx, nil)
		},
		"redis": func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		},
		"rabbitmq": func(context.Context) error {
			if app.MQConn == nil || app.MQConn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		},
		"chroma": app.Chroma.Heartbeat,
	}

	services := app.Services
	RegisterRoutes(router, app.Config.Auth.JWTSecret, Handlers{
		Health:    handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, checks),
		Auth:      handler.NewAuthHandler(services.Auth, app.Log),
		Documents: handler.NewDocumentHandler(services.Documents, app.Log),
		Study:     handler.NewStudyHandler(services.Study, app.Log),
		Chat:      handler.NewChatHandler(services.Chat, app.Log),
		RAG:       handler.NewRAGHandler(services.RAG, app.Log),
	})
	return router
}

// RegisterRoutes mounts the public routes and the JWT protected API.
func RegisterRoutes(router gin.IRouter, jwtSecret string, h Handlers) {
	router.GET("/healthz", h.Health.Check)
	router.POST("/auth/login", h.Auth.Login)

	api := router.Group("/")
	api.Use(middleware.AuthJWT(jwtSecret))

	api.GET("/auth/me", h.Auth.Me)
	api.POST("/subscription", h.Auth.Subscribe)
	api.DELETE("/subscription", h.Auth.Unsubscribe)

	documents := api.Group("/document")
	documents.POST("/upload", h.Documents.Upload)
	documents.DELETE("/delete", h.Documents.Delete)
	documents.GET("/retrieve", h.Documents.Retrieve)

	study := api.Group("/study")
	study.POST("/flashcards", h.Study.GenerateFlashcards)
	study.POST("/quiz", h.Study.GenerateQuiz)
	study.GET("/flashcards", h.Study.ListFlashcards)
	study.GET("/quiz", h.Study.ListQuizzes)

	chat := api.Group("/chat")
	chat.POST("", h.Chat.CreateSession)
	chat.GET("/sessions", h.Chat.ListSessions)
	chat.GET("/:sessionId", h.Chat.GetSession)
	chat.DELETE("/:sessionId", h.Chat.DeleteSession)
	chat.POST("/:sessionId/message", h.Chat.SendMessage)
	chat.POST("/:sessionId/stream", h.Chat.StreamMessage)

	api.POST("/rag/query", h.RAG.Query)
}
