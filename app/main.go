package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ericpp/thumbs/internal/cache"
	mysqlRepo "github.com/ericpp/thumbs/internal/repository/mysql"
	redisRepo "github.com/ericpp/thumbs/internal/repository/redis"
	"github.com/ericpp/thumbs/internal/rest"
	"github.com/ericpp/thumbs/internal/rest/middleware"
	"github.com/ericpp/thumbs/internal/retry"
	"github.com/ericpp/thumbs/internal/usecase/blog"
	"github.com/ericpp/thumbs/internal/usecase/thumb"
	"github.com/ericpp/thumbs/internal/usecase/user"
	"github.com/ericpp/thumbs/internal/workers"
)

const (
	defaultTimeout         = 30
	defaultAddress         = ":9090"
	defaultCacheDB         = 0
	defaultBloomBitSize    = 10000000
	defaultEventPartitions = 4
	defaultReconcileHours  = 24

	mirrorMaxEntries = 100000
	mirrorTTL        = 10 * time.Minute
	evictQueueSize   = 1024
	evictWorkers     = 4
	reconcileWorkers = 8
)

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}
}

func main() {
	//prepare database
	dbHost := os.Getenv("DATABASE_HOST")
	dbPort := os.Getenv("DATABASE_PORT")
	dbUser := os.Getenv("DATABASE_USER")
	dbPass := os.Getenv("DATABASE_PASS")
	dbName := os.Getenv("DATABASE_NAME")
	connection := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", dbUser, dbPass, dbHost, dbPort, dbName)
	val := url.Values{}
	val.Add("parseTime", "1")
	dsn := fmt.Sprintf("%s?%s", connection, val.Encode())

	var db *gorm.DB
	err := retry.DoVoid(context.Background(), retry.Policy{
		MaxAttempts:    10,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			log.Printf("failed to connect to database (attempt %d): %v, retrying in %s", attempt, err, backoff)
		},
	}, func() error {
		var err error
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	if err != nil {
		log.Fatal("could not connect to database after retries:", err)
	}

	defer func() {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal("got error when getting sql.DB from gorm.DB", err)
		}
		if err := sqlDB.Close(); err != nil {
			log.Fatal("got error when closing the DB connection", err)
		}
	}()

	// prepare cache
	cacheHost := os.Getenv("CACHE_HOST")
	cachePort := os.Getenv("CACHE_PORT")
	cachePass := os.Getenv("CACHE_PASS")
	cacheDB, err := strconv.Atoi(os.Getenv("CACHE_DB"))
	if err != nil {
		log.Println("failed to parse cacheDB, using default cacheDB")
		cacheDB = defaultCacheDB
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cacheHost + ":" + cachePort,
		Password: cachePass,
		DB:       cacheDB,
	})
	defer func() {
		if err := client.Close(); err != nil {
			log.Fatal("got error when closing the cache connection", err)
		}
	}()

	if _, err = client.Ping(context.Background()).Result(); err != nil {
		log.Fatal("failed to open connection to cache", err)
	}

	// prepare gin
	route := gin.Default()
	route.Use(middleware.CORS())
	timeout, err := strconv.Atoi(os.Getenv("CONTEXT_TIMEOUT"))
	if err != nil {
		log.Println("failed to parse timeout, using default timeout")
		timeout = defaultTimeout
	}
	route.Use(middleware.SetRequestContextWithTimeout(time.Duration(timeout) * time.Second))

	// Prepare repository layer
	userRepo := mysqlRepo.NewUserRepository(db)
	blogRepo := mysqlRepo.NewBlogRepository(db)
	thumbRepo := mysqlRepo.NewThumbRepository(db)
	thumbCache := redisRepo.NewThumbCache(client)

	bloomBitSize, err := strconv.ParseUint(os.Getenv("BLOOM_FILTER_SIZE"), 10, 64)
	if err != nil {
		log.Println("failed to parse bloom bit size, using default size")
		bloomBitSize = defaultBloomBitSize
	}
	bloomRepo := redisRepo.NewRedisBloomRepo(client, bloomBitSize)

	// Prepare the event pipeline
	partitions, err := strconv.Atoi(os.Getenv("EVENT_PARTITIONS"))
	if err != nil || partitions <= 0 {
		log.Println("failed to parse event partitions, using default")
		partitions = defaultEventPartitions
	}
	consumerName := os.Getenv("CONSUMER_NAME")
	if consumerName == "" {
		consumerName, _ = os.Hostname()
	}
	broker := redisRepo.NewEventBroker(client, partitions, consumerName)
	if err := broker.EnsureGroups(context.Background()); err != nil {
		log.Fatal("failed to create consumer groups:", err)
	}

	// Start workers
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	evictor := workers.NewMarkerEvictor(thumbCache, evictQueueSize, evictWorkers)
	evictor.Start(ctx)

	consumer := workers.NewThumbConsumer(broker, thumbRepo, workers.DefaultConsumerConfig())
	consumer.Start(ctx)

	reconcileHours, err := strconv.Atoi(os.Getenv("RECONCILE_INTERVAL_HOURS"))
	if err != nil || reconcileHours <= 0 {
		reconcileHours = defaultReconcileHours
	}
	reconcileJob := workers.NewReconcileJob(thumbCache, thumbRepo, broker,
		time.Duration(reconcileHours)*time.Hour, reconcileWorkers)
	go reconcileJob.Start(ctx)

	// Build service layer
	jwtSecret := os.Getenv("JWT_SECRET")
	jwtTTL, err := strconv.Atoi(os.Getenv("JWT_EXPIRE_HOURS"))
	if err != nil {
		log.Println("failed to parse JWT TTL, using default 24 hours")
		jwtTTL = 24
	}

	mirror := cache.NewMirror(mirrorMaxEntries, mirrorTTL)
	thumbSvc := thumb.NewService(thumbCache, thumbRepo, broker, mirror, bloomRepo, evictor)
	blogSvc := blog.NewService(blogRepo, userRepo, thumbSvc, bloomRepo)
	userSvc := user.NewService(userRepo, []byte(jwtSecret), time.Duration(jwtTTL)*time.Hour)

	thumbHandler := rest.NewThumbHandler(thumbSvc)
	blogHandler := rest.NewBlogHandler(blogSvc)
	userHandler := rest.NewUserHandler(userSvc)

	authMiddleware := middleware.AuthMiddleware(jwtSecret)
	optionalAuth := middleware.OptionalAuthMiddleware(jwtSecret)

	// Prepare bloom filter
	if err := blogSvc.InitBloomFilter(ctx); err != nil {
		log.Printf("failed to init bloom filter: %v\n", err)
		return
	}

	// Register routes
	route.POST("/register", userHandler.Register)
	route.POST("/login", userHandler.Login)

	route.GET("/blogs", optionalAuth, blogHandler.Fetch)
	route.GET("/blogs/:id", optionalAuth, blogHandler.GetByID)

	authorized := route.Group("/")
	authorized.Use(authMiddleware)
	{
		authorized.POST("/blogs", blogHandler.Store)
		authorized.POST("/blogs/:id/thumb", thumbHandler.Like)
		authorized.DELETE("/blogs/:id/thumb", thumbHandler.Unlike)
		authorized.GET("/blogs/:id/thumb", thumbHandler.HasLiked)
	}

	// Start server
	address := os.Getenv("SERVER_ADDRESS")
	if address == "" {
		address = defaultAddress
	}
	srv := &http.Server{
		Addr:    address,
		Handler: route,
	}
	go func() {
		log.Printf("Server is running on %s\n", address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err) // nolint
		}
	}()

	// shutdown
	<-ctx.Done()
	log.Println("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Waiting for workers to cleanup...")
	time.Sleep(2 * time.Second)

	log.Println("Server exiting")
}
