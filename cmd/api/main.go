package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/data/store"
	jobmodel "github.com/nexabot/knowledge-api/internal/domain/jobModel"
	"github.com/nexabot/knowledge-api/internal/handlers"
	"github.com/nexabot/knowledge-api/internal/job"
	"github.com/nexabot/knowledge-api/internal/leads"
	"github.com/nexabot/knowledge-api/internal/rag"
	"github.com/nexabot/knowledge-api/internal/rag/completion"
	"github.com/nexabot/knowledge-api/internal/rag/embedding/googleEmbedding"
	"github.com/nexabot/knowledge-api/internal/rag/ingest"
	"github.com/nexabot/knowledge-api/internal/rag/vectorDB/qdrantDB"
	"github.com/nexabot/knowledge-api/internal/scrape/transport"
	"github.com/nexabot/knowledge-api/internal/server"
	"github.com/nexabot/knowledge-api/internal/worker"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	//local runs keep secrets in .env; missing file is fine in deployment
	_ = godotenv.Load()

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and stores
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
	}

	redisJobStore := store.GetRedisJobStore(serviceContext)
	redisConversationStore := store.GetRedisConversationStore(serviceContext)
	if redisJobStore == nil || redisConversationStore == nil {
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			logger.Error("Redis stores are offline. Shutting down.")
			return
		}
		logger.Error("Redis stores are offline, falling back to in-memory stores")
		serviceConfig.JobStore = store.InitInMemoryJobStore()
		serviceConfig.ConversationStore = store.InitInMemoryConversationStore()
	} else {
		serviceConfig.JobStore = redisJobStore
		serviceConfig.ConversationStore = redisConversationStore
	}

	logger.Info("Starting job service")
	service := job.InitJobService(serviceConfig)

	vectorDB := qdrantDB.GetQdrantClient(serviceContext)
	embeddingService := googleEmbedding.GetGoogleEmbeddingClient(serviceContext, config.GoogleEmbeddingModel, config.GeminiAPIKey())
	if vectorDB == nil || embeddingService == nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services", "VectorDB", vectorDB != nil, "EmbeddingService", embeddingService != nil)
		return
	}

	chunker, err := ingest.NewChunker(config.TokenEncoding, config.ChunkOverlapChars)
	if err != nil {
		logger.Error("Token encoding failed to load. Shutting down.", "error", err)
		return
	}

	//ordered backend cascade: managed platform first, direct key second
	gateway := completion.NewGateway(completion.GatewayConfig{
		AttemptTimeout:      config.CompletionTimeout,
		ConfigErrorMessage:  config.CompletionConfigErrorMessage,
		NetworkErrorMessage: config.CompletionNetworkErrorMessage,
	},
		completion.NewManagedBackend(config.ManagedAPIBaseURL(), config.ManagedAPIToken()),
		completion.NewDirectBackend(config.OpenAIAPIKey(), config.OpenAIModelName),
	)

	resolver := transport.NewResolver(transport.Config{
		ManagedFetchURL: config.ManagedAPIBaseURL(),
		ManagedToken:    config.ManagedAPIToken(),
		ReaderBaseURL:   config.ReaderServiceBaseURL,
		RelayProxies:    config.RelayProxies(),
		AttemptTimeout:  config.TransportAttemptTimeout,
		MinContentSize:  config.MinScrapedContentBytes,
	})

	ragService := rag.NewService(vectorDB, embeddingService, gateway, resolver, chunker)
	leadExtractor := leads.NewExtractor(leads.NewCRMClient(config.CRMLeadEndpoint()))

	handlers.InitJobHandler(service)

	//init worker pool
	worker.InitServices(service, ragService, leadExtractor)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
