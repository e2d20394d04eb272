package main

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"bidchat/internal/adapter/api"
	"bidchat/internal/adapter/api/handler"
	apimiddleware "bidchat/internal/adapter/api/middleware"
	"bidchat/internal/adapter/api/router"
	"bidchat/internal/domain/entity"
	"bidchat/internal/domain/repository"
	gfs "bidchat/internal/infrastructure/firestore"
	"bidchat/internal/infrastructure/polling"
	"bidchat/internal/infrastructure/restream"
	"bidchat/internal/infrastructure/script"
	ws "bidchat/internal/infrastructure/websocket"
	"bidchat/internal/usecase"
	"bidchat/pkg/config"
)

// uiSink forwards merged chat updates to the browser push sockets.
type uiSink struct {
	wsManager *ws.Manager
}

func (s *uiSink) DeliverMessages(email, counterparty string, fresh []entity.Message) {
	s.wsManager.SendToUser(email, ws.Event{
		Type: "chat.message",
		Payload: map[string]interface{}{
			"counterparty": counterparty,
			"messages":     fresh,
		},
	})
}

func (s *uiSink) DeliverPresence(email string, presences []entity.Presence) {
	s.wsManager.SendToUser(email, ws.Event{
		Type:    "presence",
		Payload: presences,
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.ScriptURL == "" {
		log.Fatalf("SCRIPT_URL is required")
	}

	ctx := context.Background()

	scriptClient := script.NewClient(cfg.ScriptURL)

	var firestoreClient *firestore.Client
	if cfg.ChatBackend == "firestore" {
		if cfg.FirebaseProject == "" {
			log.Fatalf("FIREBASE_PROJECT_ID is required for the firestore chat backend")
		}

		var opts []option.ClientOption
		if path := cfg.FirebaseCredentials; path != "" {
			opts = append(opts, option.WithCredentialsFile(path))
		}

		if _, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...); err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}

		firestoreClient, err = firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()
	}

	channelFactory := func(ctx context.Context, session *entity.Session) (repository.ChatChannel, error) {
		if firestoreClient != nil {
			return gfs.NewChannel(firestoreClient, session.Email, session.IsAdmin()), nil
		}
		return polling.NewChannel(
			scriptClient,
			session.Email,
			session.Token,
			session.IsAdmin(),
			cfg.MessagePollInterval,
			cfg.PresencePollInterval,
		), nil
	}

	wsManager := ws.NewManager()
	wsManager.Start(ctx)

	sessions := usecase.NewSessionStore()
	authUseCase := usecase.NewAuthUseCase(scriptClient, sessions, cfg.JWTSecret, cfg.JWTExpiry)
	chatService := usecase.NewChatService(ctx, channelFactory, &uiSink{wsManager: wsManager})
	defer chatService.StopAll()
	auctionUseCase := usecase.NewAuctionUseCase(scriptClient, authUseCase)

	if cfg.RestreamClientID != "" && cfg.RestreamClientSecret != "" {
		relay := restream.NewClient(
			cfg.RestreamClientID,
			cfg.RestreamClientSecret,
			cfg.RestreamTokenURL,
			cfg.RestreamWebSocketURL,
			scriptClient,
		)
		go relay.Connect(ctx)
		defer relay.Disconnect()
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authUseCase)
	adminMiddleware := apimiddleware.NewAdminMiddleware()

	authHandler := handler.NewAuthHandler(authUseCase, chatService)
	chatHandler := handler.NewChatHandler(chatService, auctionUseCase)
	auctionHandler := handler.NewAuctionHandler(auctionUseCase)
	wsHandler := handler.NewWebSocketHandler(wsManager)

	router.Setup(e, authHandler, chatHandler, auctionHandler, wsHandler, authMiddleware, adminMiddleware)

	log.Printf("Starting gateway on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
